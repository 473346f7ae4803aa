package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func identityRouter(issuer string) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Identity(testSecret, issuer))
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})
	return r
}

func TestIdentity(t *testing.T) {
	valid := jwt.RegisteredClaims{
		Subject:   "user-42",
		Issuer:    "idp",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	noSubject := valid
	noSubject.Subject = ""

	tests := []struct {
		name       string
		issuer     string
		header     func(t *testing.T) string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "valid token",
			header:     func(t *testing.T) string { return "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), valid) },
			wantStatus: http.StatusOK,
			wantBody:   "user-42",
		},
		{
			name:       "issuer enforced",
			issuer:     "idp",
			header:     func(t *testing.T) string { return "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), valid) },
			wantStatus: http.StatusOK,
			wantBody:   "user-42",
		},
		{
			name:       "wrong issuer",
			issuer:     "other",
			header:     func(t *testing.T) string { return "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), valid) },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing header",
			header:     func(t *testing.T) string { return "" },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "not bearer",
			header:     func(t *testing.T) string { return "Basic abc" },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong secret",
			header:     func(t *testing.T) string { return "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("nope"), valid) },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "expired",
			header:     func(t *testing.T) string { return "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired) },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "no subject",
			header:     func(t *testing.T) string { return "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), noSubject) },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "alg none",
			header:     func(t *testing.T) string { return "Bearer " + signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid) },
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if h := tt.header(t); h != "" {
				req.Header.Set("Authorization", h)
			}
			w := httptest.NewRecorder()

			identityRouter(tt.issuer).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestIdentity_EmptySecretRejects(t *testing.T) {
	r := gin.New()
	r.Use(Identity("", ""))
	r.GET("/me", func(c *gin.Context) { c.Status(http.StatusOK) })

	token := signToken(t, jwt.SigningMethodHS256, []byte("any"), jwt.RegisteredClaims{Subject: "u"})
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Logging())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextRequestID))
	})

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

		id := w.Header().Get(HeaderRequestID)
		assert.Len(t, id, 36)
		assert.Equal(t, id, w.Body.String())
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(HeaderRequestID, "abc-123")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))
		assert.Equal(t, "abc-123", w.Body.String())
	})
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	_, ok = BearerToken("Bearer   ")
	assert.False(t, ok)
	_, ok = BearerToken("bearer abc")
	assert.False(t, ok)
	_, ok = BearerToken("")
	assert.False(t, ok)
}
