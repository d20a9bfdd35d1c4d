package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"memories/app/logging"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
)

type userKey struct{}

// WithUserID returns a context carrying the caller's user id.
func WithUserID(ctx context.Context, id string) context.Context {
	ctx = context.WithValue(ctx, userKey{}, id)
	return logging.WithUserID(ctx, id)
}

// UserID returns the caller's user id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

// Auth resolves an optional bearer token into a caller id.
// Requests without an Authorization header pass through anonymously;
// a header that does not hold a valid HS256 token is rejected with 401.
func Auth(secret string) mux.MiddlewareFunc {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				writeMessage(w, http.StatusUnauthorized, "Invalid authorization header format")
				return
			}

			id, err := ParseUserID(strings.TrimSpace(token), key)
			if err != nil {
				writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
		})
	}
}

// ParseUserID validates token and returns its "id" claim, falling back to "sub".
func ParseUserID(token string, key []byte) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type %T", parsed.Claims)
	}
	for _, name := range []string{"id", "sub"} {
		switch v := claims[name].(type) {
		case string:
			if v != "" {
				return v, nil
			}
		case float64:
			return fmt.Sprintf("%.0f", v), nil
		}
	}
	return "", fmt.Errorf("token has no user id")
}
