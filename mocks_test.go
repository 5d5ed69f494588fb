package auth_test

import (
	"context"
	"mime/multipart"
	"sync"
	"time"

	auth "github.com/odelora/go-auth"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockPrincipalStore implements auth.PrincipalStore
type MockPrincipalStore struct {
	mock.Mock
}

func (m *MockPrincipalStore) FindByIdentifier(ctx context.Context, kind auth.PrincipalKind, identifier string) (auth.Principal, error) {
	args := m.Called(ctx, kind, identifier)
	return args.Get(0).(auth.Principal), args.Error(1)
}

func (m *MockPrincipalStore) FindByID(ctx context.Context, kind auth.PrincipalKind, id uuid.UUID) (auth.Principal, error) {
	args := m.Called(ctx, kind, id)
	return args.Get(0).(auth.Principal), args.Error(1)
}

func (m *MockPrincipalStore) FindByEmail(ctx context.Context, kind auth.PrincipalKind, email string) (auth.Principal, error) {
	args := m.Called(ctx, kind, email)
	return args.Get(0).(auth.Principal), args.Error(1)
}

func (m *MockPrincipalStore) TouchLastLogin(ctx context.Context, kind auth.PrincipalKind, id uuid.UUID) error {
	args := m.Called(ctx, kind, id)
	return args.Error(0)
}

func (m *MockPrincipalStore) ResetPassword(ctx context.Context, kind auth.PrincipalKind, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, kind, id, passwordHash)
	return args.Error(0)
}

func (m *MockPrincipalStore) MarkEmailVerified(ctx context.Context, kind auth.PrincipalKind, id uuid.UUID) error {
	args := m.Called(ctx, kind, id)
	return args.Error(0)
}

// MockOneTimeTokenLedger implements auth.OneTimeTokenLedger
type MockOneTimeTokenLedger struct {
	mock.Mock
}

func (m *MockOneTimeTokenLedger) Issue(ctx context.Context, kind auth.PrincipalKind, ownerID uuid.UUID, purpose string, ttl time.Duration) (*auth.OneTimeToken, error) {
	args := m.Called(ctx, kind, ownerID, purpose, ttl)
	if token, ok := args.Get(0).(*auth.OneTimeToken); ok {
		return token, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOneTimeTokenLedger) Consume(ctx context.Context, token, purpose string) (*auth.OneTimeToken, error) {
	args := m.Called(ctx, token, purpose)
	if record, ok := args.Get(0).(*auth.OneTimeToken); ok {
		return record, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOneTimeTokenLedger) InvalidatePrior(ctx context.Context, kind auth.PrincipalKind, ownerID uuid.UUID, purpose string) error {
	args := m.Called(ctx, kind, ownerID, purpose)
	return args.Error(0)
}

// MockRevocationStore implements auth.RevocationStore
type MockRevocationStore struct {
	mock.Mock
}

func (m *MockRevocationStore) Revoke(ctx context.Context, jti string, until time.Time) error {
	args := m.Called(ctx, jti, until)
	return args.Error(0)
}

func (m *MockRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	args := m.Called(ctx, jti)
	return args.Bool(0), args.Error(1)
}

// MockMailer implements auth.Mailer and signals deliveries on a channel so
// tests can wait for the fire-and-forget goroutine.
type MockMailer struct {
	mock.Mock
	Delivered chan string
}

func NewMockMailer() *MockMailer {
	return &MockMailer{Delivered: make(chan string, 4)}
}

func (m *MockMailer) SendVerificationEmail(ctx context.Context, principal auth.PrincipalSummary, token string) error {
	args := m.Called(ctx, principal, token)
	if m.Delivered != nil {
		m.Delivered <- token
	}
	return args.Error(0)
}

func (m *MockMailer) SendPasswordResetEmail(ctx context.Context, principal auth.PrincipalSummary, token string) error {
	args := m.Called(ctx, principal, token)
	if m.Delivered != nil {
		m.Delivered <- token
	}
	return args.Error(0)
}

// recordingSink captures activity events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) Events() []auth.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEvent, len(r.events))
	copy(out, r.events)
	return out
}

func newTestConfig() *auth.StaticConfig {
	return &auth.StaticConfig{
		SigningKey: "test-signing-key",
		Issuer:     "test-issuer",
		Audience:   []string{"test:audience"},
	}
}

var (
	testHashOnce sync.Once
	testHash     string
)

// testPasswordHash hashes the shared test password once; bcrypt at the
// production cost is too slow to run per assertion.
func testPasswordHash() string {
	testHashOnce.Do(func() {
		h, err := auth.HashPassword(testPassword)
		if err != nil {
			panic(err)
		}
		testHash = h
	})
	return testHash
}

const testPassword = "correct horse battery staple"

func testUserPrincipal() auth.Principal {
	return auth.Principal{
		ID:            uuid.New(),
		Kind:          auth.KindUser,
		Username:      "testuser",
		Email:         "test@example.com",
		PasswordHash:  testPasswordHash(),
		IsActive:      true,
		EmailVerified: true,
		TokenVersion:  1,
	}
}

func testStaffPrincipal() auth.Principal {
	return auth.Principal{
		ID:           uuid.New(),
		Kind:         auth.KindStaff,
		Username:     "opsadmin",
		Email:        "ops@example.com",
		PasswordHash: testPasswordHash(),
		IsActive:     true,
		IsAdmin:      true,
		TokenVersion: 3,
	}
}

// MockContext mocks the router.Context
type MockContext struct {
	mock.Mock
	NextCalled bool
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	args := m.Called()
	c, ok := args.Get(0).(context.Context)
	if !ok {
		panic("arg needs to be context.Context")
	}
	return c
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockContext) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Method() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) Status(code int) router.Context {
	m.Called(code)
	return m
}

func (m *MockContext) SendString(s string) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *MockContext) Send(b []byte) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockContext) JSON(code int, val any) error {
	args := m.Called(code, val)
	return args.Error(0)
}

func (m *MockContext) NoContent(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) Render(name string, bind any, layout ...string) error {
	if len(layout) > 0 {
		args := m.Called(name, bind, layout[0])
		return args.Error(0)
	}
	args := m.Called(name, bind)
	return args.Error(0)
}

func (m *MockContext) Redirect(path string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(path, status)
		return args.Error(0)
	}
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockContext) RedirectToRoute(name string, data router.ViewContext, status ...int) error {
	if len(status) > 0 {
		args := m.Called(name, data, status[0])
		return args.Error(0)
	}
	args := m.Called(name, data)
	return args.Error(0)
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(fallback, status)
		return args.Error(0)
	}
	args := m.Called(fallback)
	return args.Error(0)
}

func (m *MockContext) SetHeader(key, val string) router.Context {
	m.Called(key, val)
	return m
}

func (m *MockContext) Header(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Get(key string, defaultValue any) any {
	args := m.Called(key, defaultValue)
	return args.Get(0)
}

func (m *MockContext) GetBool(key string, defaultValue bool) bool {
	args := m.Called(key, defaultValue)
	return args.Bool(0)
}

func (m *MockContext) GetInt(key string, def int) int {
	args := m.Called(key, def)
	return args.Int(0)
}

func (m *MockContext) Set(key string, val any) {
	m.Called(key, val)
}

func (m *MockContext) Bind(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindJSON(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindXML(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindQuery(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) CookieParser(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.Called(cookie)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Query(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) QueryInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Queries() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

func (m *MockContext) GetString(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.Called(key, value[0])
		return nil
	}
	args := m.Called(key)
	return args.Get(0)
}

func (m *MockContext) OriginalURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) OnNext(callback func() error) {
	m.Called(callback)
}

func (m *MockContext) Referer() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) SendStatus(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) FormFile(key string) (*multipart.FileHeader, error) {
	args := m.Called(key)
	if fh, ok := args.Get(0).(*multipart.FileHeader); ok {
		return fh, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockContext) FormValue(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) RouteName() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) RouteParams() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}
