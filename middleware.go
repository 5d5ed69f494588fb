package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
)

// RequireAuth guards protected routes with the full verification pipeline:
// signature, expiry, and purpose first, then the revocation denylist, then
// the live tokenVersion. Verified claims land in router locals under the
// configured context key and in the request context for downstream handlers.
func RequireAuth(session *SessionManager, cfg Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			raw, err := tokenFromHeader(ctx.Header("Authorization"), cfg.GetAuthScheme())
			if err != nil {
				return unauthorized(ctx, err)
			}

			claims, principal, err := session.Authenticate(ctx.Context(), raw)
			if err != nil {
				return unauthorized(ctx, err)
			}

			contextKey := cfg.GetContextKey()
			if contextKey == "" {
				contextKey = "user"
			}

			ctx.Locals(contextKey, claims)

			reqCtx := WithClaimsContext(ctx.Context(), claims)
			reqCtx = WithPrincipalContext(reqCtx, principal.Summary())
			ctx.SetContext(reqCtx)

			return hf(ctx)
		}
	}
}

// RequireAdmin layers on top of RequireAuth and rejects non-admin staff.
// It expects RequireAuth to have run first.
func RequireAdmin() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if !IsAdminContext(ctx.Context()) {
				return ctx.JSON(fiber.StatusForbidden, ErrorResponse{
					Type:    "FORBIDDEN",
					Message: "admin access required",
				})
			}
			return hf(ctx)
		}
	}
}

func tokenFromHeader(header, scheme string) (string, error) {
	if scheme == "" {
		scheme = "Bearer"
	}

	if header == "" || !strings.HasPrefix(header, scheme+" ") {
		return "", ErrTokenMalformed
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, scheme+" "))
	if token == "" {
		return "", ErrTokenMalformed
	}

	return token, nil
}

func unauthorized(ctx router.Context, err error) error {
	if richErr, ok := asRichError(err); ok {
		status := richErr.Code
		if status == 0 {
			status = fiber.StatusUnauthorized
		}
		return ctx.JSON(status, ErrorResponse{
			Type:    string(richErr.TextCode),
			Message: richErr.Message,
		})
	}

	return ctx.JSON(fiber.StatusUnauthorized, ErrorResponse{
		Type:    TextCodeTokenMalformed,
		Message: "invalid authentication token",
	})
}
