package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanecrew/tournament-system/models"
)

var testSecret = []byte("test-secret")

func signTestToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func bowlerClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"user_id": 42,
		"role":    "bowler",
		"email":   "ivan.petrov@example.com",
		"exp":     time.Now().Add(time.Hour).Unix(),
		"iat":     time.Now().Unix(),
	}
}

func TestAuthenticator_Authenticate(t *testing.T) {
	auth := NewAuthenticator(testSecret)

	t.Run("valid token puts claims into the context", func(t *testing.T) {
		var gotID int
		var gotRole models.UserRole
		var gotEmail string
		handler := auth.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var err error
			gotID, err = GetUserIDFromContext(r.Context())
			require.NoError(t, err)
			gotRole, err = GetUserRoleFromContext(r.Context())
			require.NoError(t, err)
			gotEmail, err = GetUserEmailFromContext(r.Context())
			require.NoError(t, err)
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/registrations", nil)
		req.Header.Set("Authorization", "Bearer "+signTestToken(t, jwt.SigningMethodHS256, testSecret, bowlerClaims()))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 42, gotID)
		assert.Equal(t, models.RoleBowler, gotRole)
		assert.Equal(t, "ivan.petrov@example.com", gotEmail)
	})

	rejected := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{"missing header", func(r *http.Request) {}},
		{"not a bearer scheme", func(r *http.Request) {
			r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		}},
		{"garbage token", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer not.a.token")
		}},
		{"wrong signing key", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signTestToken(t, jwt.SigningMethodHS256, []byte("other-secret"), bowlerClaims()))
		}},
		{"alg none is not accepted", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signTestToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, bowlerClaims()))
		}},
		{"expired token", func(r *http.Request) {
			claims := bowlerClaims()
			claims["exp"] = time.Now().Add(-time.Hour).Unix()
			r.Header.Set("Authorization", "Bearer "+signTestToken(t, jwt.SigningMethodHS256, testSecret, claims))
		}},
	}
	for _, tc := range rejected {
		t.Run(tc.name, func(t *testing.T) {
			handler := auth.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler must not be reached")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/registrations", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestAuthenticator_RequireRole(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	serve := func(t *testing.T, role string, protected http.Handler) *httptest.ResponseRecorder {
		t.Helper()
		claims := bowlerClaims()
		claims["role"] = role
		req := httptest.NewRequest(http.MethodPost, "/api/tournaments", nil)
		req.Header.Set("Authorization", "Bearer "+signTestToken(t, jwt.SigningMethodHS256, testSecret, claims))
		rec := httptest.NewRecorder()
		auth.Authenticate(protected).ServeHTTP(rec, req)
		return rec
	}

	t.Run("admin passes an admin gate", func(t *testing.T) {
		rec := serve(t, "admin", auth.RequireRole(models.RoleAdmin)(okHandler))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("bowler is forbidden at an admin gate", func(t *testing.T) {
		rec := serve(t, "bowler", auth.RequireRole(models.RoleAdmin)(okHandler))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("any of the listed roles passes", func(t *testing.T) {
		rec := serve(t, "bowler", auth.RequireRole(models.RoleAdmin, models.RoleBowler)(okHandler))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("without authentication the gate returns unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/tournaments", nil)
		rec := httptest.NewRecorder()
		auth.RequireRole(models.RoleAdmin)(okHandler).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
