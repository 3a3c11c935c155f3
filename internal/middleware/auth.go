// Package middleware содержит HTTP middleware для сервиса сапатарии.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bcastroea/sapatariacapacita-backend/internal/model"
)

type contextKey string

const identityKey contextKey = "identity"

const bearerScheme = "bearer"

// Verifier проверяет bearer-токен и возвращает данные вызывающего.
type Verifier interface {
	Verify(credential string) (model.IdentityContext, error)
}

// AuthMiddleware выполняет аутентификацию по заголовку Authorization: Bearer <token>.
type AuthMiddleware struct {
	verifier Verifier
}

// NewAuthMiddleware создаёт AuthMiddleware поверх verifier.
func NewAuthMiddleware(verifier Verifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Middleware проверяет токен и добавляет IdentityContext в контекст запроса.
// При любой ошибке отвечает 401, обработчик не вызывается.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential, err := bearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeUnauthorized(w, err)
			return
		}

		identity, err := a.verifier.Verify(credential)
		if err != nil {
			writeUnauthorized(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", model.Unauthenticated("token not provided")
	}

	scheme, token, found := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !found || !strings.EqualFold(scheme, bearerScheme) || token == "" {
		return "", model.Unauthenticated("token malformed")
	}

	return token, nil
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	msg := "invalid or expired token"
	var e *model.Error
	if errors.As(err, &e) && e.Kind == model.KindUnauthenticated {
		msg = e.Error()
	}

	writeJSONError(w, http.StatusUnauthorized, msg)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// WithIdentity возвращает копию ctx с данными вызывающего.
func WithIdentity(ctx context.Context, identity model.IdentityContext) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext извлекает данные вызывающего из контекста запроса.
func IdentityFromContext(ctx context.Context) (*model.IdentityContext, bool) {
	identity, ok := ctx.Value(identityKey).(model.IdentityContext)
	if !ok {
		return nil, false
	}
	return &identity, true
}
