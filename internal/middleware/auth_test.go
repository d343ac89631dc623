package middleware

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

type staticSession string

func (s staticSession) Token() string { return string(s) }

type staticMaintenance bool

func (s staticMaintenance) Active() bool { return bool(s) }

func signedToken(t *testing.T, secret string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func runGate(cfg GateConfig, path string, bearer string) (int, bool) {
	called := false
	gate := SessionGate(cfg, zap.NewNop())
	handler := gate(func(ctx *fasthttp.RequestCtx) { called = true })

	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI(path)
	if bearer != "" {
		ctx.Request.Header.Set("Authorization", "Bearer "+bearer)
	}
	handler(&ctx)
	return ctx.Response.StatusCode(), called
}

func TestPublicPrefixBypassesGate(t *testing.T) {
	cfg := GateConfig{
		PublicPrefixes: []string{"/login", "/portal/"},
		Sessions:       staticSession(""),
	}

	_, called := runGate(cfg, "/login", "")
	assert.True(t, called)

	_, called = runGate(cfg, "/portal/approve/abc123", "")
	assert.True(t, called)
}

func TestProtectedWithoutSessionRecordsIntendedPath(t *testing.T) {
	var recorded string
	cfg := GateConfig{
		Sessions:       staticSession(""),
		RecordIntended: func(path string) { recorded = path },
	}

	status, called := runGate(cfg, "/reports/monthly", "")
	assert.False(t, called)
	assert.Equal(t, fasthttp.StatusUnauthorized, status)
	assert.Equal(t, "/reports/monthly", recorded)
}

func TestValidSessionPasses(t *testing.T) {
	token := signedToken(t, "secret", time.Hour)
	cfg := GateConfig{
		Secret:   "secret",
		Sessions: staticSession(token),
	}

	_, called := runGate(cfg, "/dashboard", "")
	assert.True(t, called)
}

func TestExpiredTokenRejected(t *testing.T) {
	token := signedToken(t, "secret", -time.Minute)
	cfg := GateConfig{
		Secret:   "secret",
		Sessions: staticSession(token),
	}

	status, called := runGate(cfg, "/dashboard", "")
	assert.False(t, called)
	assert.Equal(t, fasthttp.StatusUnauthorized, status)
}

func TestExpiryCheckedWithoutSecret(t *testing.T) {
	cfg := GateConfig{
		Sessions: staticSession(signedToken(t, "whatever", -time.Minute)),
	}

	status, called := runGate(cfg, "/dashboard", "")
	assert.False(t, called)
	assert.Equal(t, fasthttp.StatusUnauthorized, status)

	cfg.Sessions = staticSession(signedToken(t, "whatever", time.Hour))
	_, called = runGate(cfg, "/dashboard", "")
	assert.True(t, called)
}

func TestMaintenanceGatesProtectedRoutes(t *testing.T) {
	token := signedToken(t, "secret", time.Hour)
	cfg := GateConfig{
		Secret:         "secret",
		PublicPrefixes: []string{"/maintenance"},
		Sessions:       staticSession(token),
		Maintenance:    staticMaintenance(true),
	}

	status, called := runGate(cfg, "/dashboard", "")
	assert.False(t, called)
	assert.Equal(t, fasthttp.StatusServiceUnavailable, status)

	// the maintenance page itself stays reachable
	_, called = runGate(cfg, "/maintenance", "")
	assert.True(t, called)
}

func TestBearerMismatchRejected(t *testing.T) {
	token := signedToken(t, "secret", time.Hour)
	other := signedToken(t, "secret", 2*time.Hour)
	cfg := GateConfig{
		Secret:   "secret",
		Sessions: staticSession(token),
	}

	status, called := runGate(cfg, "/dashboard", other)
	assert.False(t, called)
	assert.Equal(t, fasthttp.StatusUnauthorized, status)

	_, called = runGate(cfg, "/dashboard", token)
	assert.True(t, called)
}
