package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/intervyu/internal/logger"
	"github.com/yoockh/intervyu/internal/metrics"
)

const secret = "test-secret"

func init() { gin.SetMode(gin.TestMode) }

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":           "user-1",
		"exp":           time.Now().Add(time.Hour).Unix(),
		"aud":           "authenticated",
		"iss":           "https://proj.supabase.co/auth/v1",
		"app_metadata":  map[string]any{"role": "admin"},
		"user_metadata": map[string]any{"full_name": "Ada Lovelace"},
	}
}

func whoami(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_id": c.GetString(CtxUserID),
		"role":    c.GetString(CtxRole),
		"name":    c.GetString(CtxUserName),
	})
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := gin.New()
	r.GET("/me", JWTAuth(JWTConfig{Secret: secret, Audience: "authenticated"}), whoami)

	w := do(r, "/me", sign(t, validClaims()))
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "user-1", body["user_id"])
	assert.Equal(t, "admin", body["role"])
	assert.Equal(t, "Ada Lovelace", body["name"])

	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "garbage").Code)

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", sign(t, expired)).Code)

	wrongAud := validClaims()
	wrongAud["aud"] = "anon"
	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", sign(t, wrongAud)).Code)

	// websocket handshakes pass the token as a query parameter
	assert.Equal(t, http.StatusOK, do(r, "/me?access_token="+sign(t, validClaims()), "").Code)
}

func TestJWTAuthMissingSecret(t *testing.T) {
	r := gin.New()
	r.GET("/me", JWTAuth(JWTConfig{}), whoami)
	assert.Equal(t, http.StatusInternalServerError, do(r, "/me", "x").Code)
}

func TestOptionalJWTAuth(t *testing.T) {
	r := gin.New()
	r.GET("/me", OptionalJWTAuth(JWTConfig{Secret: secret}), whoami)

	w := do(r, "/me", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":""`)

	assert.Equal(t, http.StatusOK, do(r, "/me", sign(t, validClaims())).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "garbage").Code)
}

func TestRequireAdmin(t *testing.T) {
	r := gin.New()
	r.GET("/admin", JWTAuth(JWTConfig{Secret: secret}), RequireAdmin(), whoami)

	assert.Equal(t, http.StatusOK, do(r, "/admin", sign(t, validClaims())).Code)

	plain := validClaims()
	delete(plain, "app_metadata")
	w := do(r, "/admin", sign(t, plain))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestRequestLoggerAndMetrics(t *testing.T) {
	var buf bytes.Buffer
	m := metrics.New(prometheus.NewRegistry())

	r := gin.New()
	r.Use(RequestLogger(logger.NewWithOutput(&buf, "info")), Metrics(m))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := do(r, "/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.Contains(t, buf.String(), `"path":"/ping"`)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/ping", "200")))

	do(r, "/nowhere", "")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "unmatched", "404")))
}
