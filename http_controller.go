package auth

import (
	"fmt"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// ErrorResponse is the wire shape of every error this API returns. Type is a
// stable machine-readable code; Message is safe for humans. Internals never
// leak through either field.
type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type AuthControllerRoutes struct {
	Login          string
	Refresh        string
	Logout         string
	ForgotPassword string
	ResetPassword  string
	VerifyEmail    string
	Register       string
}

// AuthController exposes the session lifecycle as a JSON API.
type AuthController struct {
	Debug    bool
	Logger   Logger
	Session  *SessionManager
	Register *RegisterUserHandler
	Routes   *AuthControllerRoutes
	Config   Config
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithSessionManager(session *SessionManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Session = session
		return c
	}
}

func WithRegisterHandler(handler *RegisterUserHandler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Register = handler
		return c
	}
}

func WithControllerConfig(cfg Config) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Config = cfg
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Login:          "/auth/login",
			Refresh:        "/auth/refresh-token",
			Logout:         "/auth/logout",
			ForgotPassword: "/auth/forgot-password",
			ResetPassword:  "/auth/reset-password",
			VerifyEmail:    "/auth/verify-email",
			Register:       "/auth/register",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Session == nil {
		panic("Missing SessionManager in auth controller...")
	}

	if c.Config == nil {
		c.Config = &StaticConfig{}
	}

	return c
}

// RegisterAuthRoutes mounts the auth endpoints on the given router.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("auth.login")
	app.Post(controller.Routes.Refresh, controller.RefreshPost).
		SetName("auth.refresh")
	app.Post(controller.Routes.Logout, controller.LogoutPost).
		SetName("auth.logout")
	app.Post(controller.Routes.ForgotPassword, controller.ForgotPasswordPost).
		SetName("auth.forgot-password")
	app.Post(controller.Routes.ResetPassword, controller.ResetPasswordPost).
		SetName("auth.reset-password")
	app.Post(controller.Routes.VerifyEmail, controller.VerifyEmailPost).
		SetName("auth.verify-email")

	if controller.Register != nil {
		app.Post(controller.Routes.Register, controller.RegisterPost).
			SetName("auth.register")
	}

	return controller
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Password, validation.Required),
	)
}

type LoginResponse struct {
	AccessToken      string           `json:"access_token"`
	RefreshToken     string           `json:"refresh_token"`
	AccessExpiresAt  string           `json:"access_expires_at"`
	RefreshExpiresAt string           `json:"refresh_expires_at"`
	User             PrincipalSummary `json:"user"`
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= AUTH LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=========================")
	}

	result, err := a.Session.Login(ctx.Context(), payload.Identifier, payload.Password)
	if err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, LoginResponse{
		AccessToken:      result.Tokens.AccessToken,
		RefreshToken:     result.Tokens.RefreshToken,
		AccessExpiresAt:  result.Tokens.AccessExpiresAt.UTC().Format(time.RFC3339),
		RefreshExpiresAt: result.Tokens.RefreshExpiresAt.UTC().Format(time.RFC3339),
		User:             result.Principal,
	})
}

type RefreshRequest struct {
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
}

func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

func (a *AuthController) RefreshPost(ctx router.Context) error {
	payload := new(RefreshRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	pair, err := a.Session.Refresh(ctx.Context(), payload.RefreshToken)
	if err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, pair)
}

func (a *AuthController) LogoutPost(ctx router.Context) error {
	// Logout succeeds no matter what was presented; a missing or garbage
	// token gets the same response as a valid one.
	if token, err := a.bearerToken(ctx); err == nil {
		a.Session.Logout(ctx.Context(), token)
	}

	return ctx.JSON(fiber.StatusOK, map[string]string{
		"message": "logged out",
	})
}

type ForgotPasswordRequest struct {
	Email    string `form:"email" json:"email"`
	UserType string `form:"user_type" json:"user_type"`
}

func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.UserType, validation.In(KindUser, KindStaff)),
	)
}

// forgotPasswordResponse is shared by the found and not-found paths so the
// two are byte-identical on the wire.
var forgotPasswordResponse = map[string]string{
	"message": "If the address exists, a reset link has been sent",
}

func (a *AuthController) ForgotPasswordPost(ctx router.Context) error {
	payload := new(ForgotPasswordRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	kind := payload.UserType
	if kind == "" {
		kind = KindUser
	}

	// The response stays generic no matter what happened downstream.
	if err := a.Session.ForgotPassword(ctx.Context(), kind, payload.Email); err != nil {
		a.Logger.Error("forgot password flow error: %v", err)
	}

	return ctx.JSON(fiber.StatusOK, forgotPasswordResponse)
}

type ResetPasswordRequest struct {
	Token              string `form:"token" json:"token"`
	NewPassword        string `form:"new_password" json:"new_password"`
	ConfirmNewPassword string `form:"confirm_new_password" json:"confirm_new_password"`
}

func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(PasswordMinLength, PasswordMaxLength)),
		validation.Field(
			&r.ConfirmNewPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.NewPassword)),
		),
	)
}

func (a *AuthController) ResetPasswordPost(ctx router.Context) error {
	payload := new(ResetPasswordRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	if err := a.Session.ResetPassword(ctx.Context(), payload.Token, payload.NewPassword); err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]string{
		"message": "password updated",
	})
}

type VerifyEmailRequest struct {
	Token string `form:"token" json:"token"`
}

func (r VerifyEmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

func (a *AuthController) VerifyEmailPost(ctx router.Context) error {
	payload := new(VerifyEmailRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	if err := a.Session.VerifyEmail(ctx.Context(), payload.Token); err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]string{
		"message": "email verified",
	})
}

// RegisterRequest is the signup payload
type RegisterRequest struct {
	Username        string `form:"username" json:"username"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(PasswordMinLength, PasswordMaxLength)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) RegisterPost(ctx router.Context) error {
	payload := new(RegisterRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	user, err := a.Register.Execute(ctx.Context(), RegisterUserMessage{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		return a.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusCreated, PrincipalFromUser(user).Summary())
}

// bearerToken pulls the raw token from the Authorization header, honoring
// the configured auth scheme.
func (a *AuthController) bearerToken(ctx router.Context) (string, error) {
	return tokenFromHeader(ctx.Header("Authorization"), a.Config.GetAuthScheme())
}

func (a *AuthController) badPayload(ctx router.Context, err error) error {
	a.Logger.Error("failed to parse request body: %v", err)
	return ctx.JSON(fiber.StatusBadRequest, ErrorResponse{
		Type:    "INVALID_PAYLOAD",
		Message: "could not parse request body",
	})
}

func (a *AuthController) invalidPayload(ctx router.Context, err error) error {
	return ctx.JSON(fiber.StatusBadRequest, ErrorResponse{
		Type:    "VALIDATION_ERROR",
		Message: err.Error(),
	})
}

// respondError maps domain errors to the wire contract. Rich errors carry
// their own status and TextCode; anything else collapses to a generic 500 so
// internals never reach the client.
func (a *AuthController) respondError(ctx router.Context, err error) error {
	if richErr, ok := asRichError(err); ok {
		status := richErr.Code
		if status == 0 {
			status = categoryStatus(richErr.Category)
		}

		if status >= http.StatusInternalServerError {
			a.Logger.Error("auth request failed: %v", err)
			if a.Debug {
				fmt.Println(print.MaybePrettyJSON(richErr.Metadata))
			}
		}

		message := richErr.Message
		if status == http.StatusInternalServerError {
			message = "internal server error"
		}

		return ctx.JSON(status, ErrorResponse{
			Type:    string(richErr.TextCode),
			Message: message,
		})
	}

	a.Logger.Error("auth request failed: %v", err)
	return ctx.JSON(fiber.StatusInternalServerError, ErrorResponse{
		Type:    "INTERNAL_ERROR",
		Message: "internal server error",
	})
}

func categoryStatus(category errors.Category) int {
	switch category {
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryBadInput, errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ValidateStringEquals builds an ozzo rule asserting equality with expected.
func ValidateStringEquals(expected string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != expected {
			return fmt.Errorf("values do not match")
		}
		return nil
	}
}
