package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	// UseHashid derives the user ID deterministically from the email, which
	// keeps IDs stable across environment rebuilds and seed imports.
	UseHashid bool
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// RegisterUserHandler creates a user account and starts the email
// verification flow. New accounts are active but unverified, so a login
// before verification is rejected with EMAIL_NOT_VERIFIED.
type RegisterUserHandler struct {
	repo   RepositoryManager
	cfg    Config
	mailer Mailer
	logger Logger
}

func NewRegisterUserHandler(repo RepositoryManager, cfg Config) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:   repo,
		cfg:    cfg,
		mailer: noopMailer{},
		logger: defLogger{},
	}
}

func (h *RegisterUserHandler) WithMailer(mailer Mailer) *RegisterUserHandler {
	h.mailer = normalizeMailer(mailer)
	return h
}

func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	user := &User{}
	var verification *OneTimeToken

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := ValidatePasswordStrength(event.Password); err != nil {
		return nil, err
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash
		user.Email = event.Email
		user.Username = getUsername(event.Username, event.Email)
		user.IsActive = true
		user.EmailVerified = false
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		verification, err = h.repo.OneTimeTokens().IssueTx(ctx, tx, KindUser, user.ID, OneTimePurposeEmailVerification, h.cfg.GetVerificationTokenTTL())
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not issue verification token")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}

		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	// Delivery happens after the transaction commits; a bounced email never
	// rolls back the account.
	go func(summary PrincipalSummary, token string) {
		mailCtx, mailCancel := context.WithTimeout(context.Background(), mailTimeout)
		defer mailCancel()

		if err := h.mailer.SendVerificationEmail(mailCtx, summary, token); err != nil {
			h.logger.Error("verification email to %s failed: %v", summary.Email, err)
		}
	}(PrincipalFromUser(user).Summary(), verification.Token)

	return user, nil
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
