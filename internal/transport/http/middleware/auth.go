package httpmw

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/amarket/chat-service/internal/domain"
	"github.com/amarket/chat-service/pkg/httputil"
	"github.com/amarket/chat-service/pkg/logger"
)

type ctxKey string

const ctxKeyUser ctxKey = "user"

type TokenVerifier interface {
	Verify(token string) (domain.UserID, error)
}

type UserLookup interface {
	UserByID(ctx context.Context, id domain.UserID) (*domain.User, error)
}

// Auth привязывает к запросу пользователя из access-токена.
// Токен: Authorization: Bearer ... или ?access_token= (браузерный websocket не умеет заголовки).
func Auth(v TokenVerifier, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				httputil.Error(r.Context(), w, http.StatusUnauthorized, "missing bearer token", nil)
				return
			}

			uid, err := v.Verify(token)
			if err != nil {
				logger.FromContext(r.Context()).Debug("token rejected", "err", err)
				httputil.Error(r.Context(), w, http.StatusUnauthorized, "invalid token", nil)
				return
			}

			u, err := users.UserByID(r.Context(), uid)
			if errors.Is(err, domain.ErrUserNotFound) {
				// токен валиден, но пользователя уже нет
				httputil.Fail(r.Context(), w, domain.ErrAuthenticationRequired)
				return
			}
			if err != nil {
				httputil.Fail(r.Context(), w, err)
				return
			}

			l := logger.FromContext(r.Context()).With("user", u.Username)
			ctx := logger.WithContext(WithUser(r.Context(), *u), l)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func BearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(auth[len("Bearer "):])
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}

func WithUser(ctx context.Context, u domain.User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, u)
}

func UserFromCtx(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(ctxKeyUser).(domain.User)
	return u, ok && u.ID != 0
}
