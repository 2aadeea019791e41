package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chocolata/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// Feature: storefront-api, Property 43: Protected endpoints reject missing tokens
func TestProperty_ProtectedEndpointsRejectMissingTokens(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("requests without authorization header are rejected", prop.ForAll(
		func(pathSuffix string, method string) bool {
			handler := AuthMiddleware(testSecret, zap.NewNop())(okHandler())

			req := httptest.NewRequest(method, "/api/"+pathSuffix, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.AlphaString(),
		gen.OneConstOf("GET", "POST", "PUT", "DELETE"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: storefront-api, Property 44: Expired tokens are rejected
func TestProperty_ExpiredTokensAreRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("expired tokens are rejected with 401", prop.ForAll(
		func(role string, ageMinutes int) bool {
			token := signToken(t, testSecret, jwt.MapClaims{
				"user_id": uuid.NewString(),
				"role":    role,
				"exp":     time.Now().Add(-time.Duration(ageMinutes) * time.Minute).Unix(),
			})

			handler := AuthMiddleware(testSecret, zap.NewNop())(okHandler())
			req := httptest.NewRequest("GET", "/api/orders", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.OneConstOf("buyer", "seller", "admin"),
		gen.IntRange(1, 24*60),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: storefront-api, Property 45: Valid tokens allow processing
func TestProperty_ValidTokensAllowProcessing(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("valid tokens put the caller in the context", prop.ForAll(
		func(role string) bool {
			userID := uuid.New()
			token := signToken(t, testSecret, jwt.MapClaims{
				"user_id": userID.String(),
				"role":    role,
				"exp":     time.Now().Add(time.Hour).Unix(),
			})

			handlerCalled := false
			handler := AuthMiddleware(testSecret, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
				ctxUserID, ok1 := GetUserID(r.Context())
				ctxRole, ok2 := GetUserRole(r.Context())
				if !ok1 || !ok2 || ctxUserID != userID || ctxRole != domain.Role(role) {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/api/cart", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return handlerCalled && w.Code == http.StatusOK
		},
		gen.OneConstOf("buyer", "seller", "admin"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_InvalidTokenFormatRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("invalid tokens and missing Bearer prefixes are rejected", prop.ForAll(
		func(garbage string, withPrefix bool) bool {
			handler := AuthMiddleware(testSecret, zap.NewNop())(okHandler())

			header := garbage
			if withPrefix {
				header = "Bearer " + garbage
			}
			req := httptest.NewRequest("GET", "/api/orders", nil)
			req.Header.Set("Authorization", header)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.AnyString(),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestAuthMiddleware_RejectsBadClaims(t *testing.T) {
	cases := map[string]jwt.MapClaims{
		"non-uuid user": {"user_id": "42", "role": "buyer", "exp": time.Now().Add(time.Hour).Unix()},
		"missing role":  {"user_id": uuid.NewString(), "exp": time.Now().Add(time.Hour).Unix()},
	}
	for name, claims := range cases {
		t.Run(name, func(t *testing.T) {
			handler := AuthMiddleware(testSecret, zap.NewNop())(okHandler())
			req := httptest.NewRequest("GET", "/api/orders", nil)
			req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, claims))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}

	handler := AuthMiddleware(testSecret, zap.NewNop())(okHandler())
	req := httptest.NewRequest("GET", "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", jwt.MapClaims{
		"user_id": uuid.NewString(), "role": "admin", "exp": time.Now().Add(time.Hour).Unix(),
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_UnknownRoleBecomesBuyer(t *testing.T) {
	var got domain.Role
	handler := AuthMiddleware(testSecret, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetUserRole(r.Context())
	}))

	req := httptest.NewRequest("GET", "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, jwt.MapClaims{
		"user_id": uuid.NewString(), "role": "superuser", "exp": time.Now().Add(time.Hour).Unix(),
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, domain.RoleBuyer, got)
}

func TestOptionalAuth(t *testing.T) {
	var authenticated bool
	handler := OptionalAuth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, authenticated = GetUserID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/api/catalog", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, authenticated)

	req = httptest.NewRequest("GET", "/api/catalog", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, authenticated)

	req = httptest.NewRequest("GET", "/api/catalog", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, jwt.MapClaims{
		"user_id": uuid.NewString(), "role": "buyer", "exp": time.Now().Add(time.Hour).Unix(),
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, authenticated)
}
