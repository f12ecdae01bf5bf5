package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/vaughan-dsouza/ledger/internal/apperr"
	"github.com/vaughan-dsouza/ledger/internal/log"
	"github.com/vaughan-dsouza/ledger/internal/models"
	"github.com/vaughan-dsouza/ledger/internal/utils"
)

// SessionCookie carries the access token for browser clients.
const SessionCookie = "session"

// Session is the authenticated caller of a request.
type Session struct {
	User models.User
}

type sessionKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session stored by Authenticator.Require.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// UserFinder looks a user up by id.
type UserFinder interface {
	UserByID(ctx context.Context, id string) (models.User, error)
}

// Authenticator resolves access tokens to users.
type Authenticator struct {
	secret string
	users  UserFinder
}

func NewAuthenticator(secret string, users UserFinder) *Authenticator {
	return &Authenticator{secret: secret, users: users}
}

// tokenFrom reads the session cookie, falling back to a bearer header.
func tokenFrom(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}

	auth := r.Header.Get("Authorization")
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Resolve returns the user behind the request's access token.
func (a *Authenticator) Resolve(r *http.Request) (models.User, error) {
	token := tokenFrom(r)
	if token == "" {
		return models.User{}, apperr.Unauthorized("authentication required")
	}

	claims, err := utils.VerifyToken(token, a.secret)
	if err != nil {
		return models.User{}, apperr.Unauthorized("invalid or expired session")
	}

	u, err := a.users.UserByID(r.Context(), claims.UserID())
	if apperr.KindOf(err) == apperr.NotFound {
		return models.User{}, apperr.Unauthorized("invalid or expired session")
	}
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

// Require rejects requests without a valid session and stores the session
// in the request context.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := a.Resolve(r)
		if err != nil {
			if apperr.KindOf(err) == apperr.Internal {
				log.FromContext(r.Context()).ErrorContext(r.Context(), "session lookup failed", log.FieldError, err)
			}
			utils.WriteError(w, err)
			return
		}

		ctx := WithSession(r.Context(), Session{User: u})
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, u.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission answers 403 when the session's role lacks p.
func RequirePermission(p models.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := SessionFrom(r.Context())
			if !ok {
				utils.WriteError(w, apperr.Unauthorized("authentication required"))
				return
			}
			if !s.User.Role.Can(p) {
				utils.WriteError(w, apperr.Denied("insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
