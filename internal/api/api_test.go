package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialweight/socialweight/internal/engine"
	"github.com/socialweight/socialweight/internal/store"
	"github.com/socialweight/socialweight/pkg/scoring"
)

const (
	secret = "test-secret"
	alice  = "11111111-1111-1111-1111-111111111111"
	bob    = "22222222-2222-2222-2222-222222222222"
)

type fakeScorer struct {
	got []engine.Request
	res *engine.Result
	err error
}

func (f *fakeScorer) Score(_ context.Context, req engine.Request) (*engine.Result, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return nil, f.err
	}
	res := *f.res
	res.UserID = req.UserID
	return &res, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func token(t *testing.T, sub, role, key string) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func sampleResult() *engine.Result {
	score, _ := scoring.Finalize(227, scoring.Breakdown{
		scoring.CategoryRegistration: scoring.Weighted(1, 100),
	}, 10, 1, scoring.DefaultTiers())
	return &engine.Result{Score: *score, Weights: scoring.Defaults()}
}

func newServer(t *testing.T, scorer Scorer, production bool) *httptest.Server {
	t.Helper()
	h := NewHandler(scorer, scoring.StaticProvider{Cfg: scoring.DefaultConfig()}, fakePinger{}, Options{JWTSecret: secret, Production: production}, zerolog.Nop())
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path, bearer string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func TestCalculate(t *testing.T) {
	scorer := &fakeScorer{res: sampleResult()}
	srv := newServer(t, scorer, false)

	resp, body := get(t, srv, "/sw/calculate?user_id="+bob, token(t, alice, "", secret))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 237.0, body["totalSW"])
	assert.Equal(t, 237.0, body["originalSW"])
	assert.Equal(t, 227.0, body["baseSW"])
	assert.Equal(t, 10.0, body["adminAdjustments"])
	assert.Equal(t, 1.0, body["inflationRate"])
	assert.Equal(t, "Beginner", body["tier"])
	assert.Equal(t, false, body["cached"])
	assert.NotContains(t, body, "cacheAge")
	assert.Contains(t, body, "weights")
	assert.Contains(t, body["breakdown"], string(scoring.CategoryAdminAdjustments))

	require.Len(t, scorer.got, 1)
	assert.Equal(t, bob, scorer.got[0].UserID)
	assert.False(t, scorer.got[0].Elevated)
}

func TestCalculateDefaultsToCaller(t *testing.T) {
	scorer := &fakeScorer{res: sampleResult()}
	srv := newServer(t, scorer, false)

	resp, _ := get(t, srv, "/sw/calculate", token(t, alice, "admin", secret))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, alice, scorer.got[0].UserID)
	assert.True(t, scorer.got[0].Elevated)
}

func TestCalculateCachedReportsAge(t *testing.T) {
	res := sampleResult()
	res.Cached = true
	res.CacheAge = 90 * time.Second
	srv := newServer(t, &fakeScorer{res: res}, false)

	_, body := get(t, srv, "/sw/calculate", token(t, alice, "", secret))
	assert.Equal(t, true, body["cached"])
	assert.Equal(t, 90.0, body["cacheAge"])
}

func TestCalculateFreshOnlyForElevated(t *testing.T) {
	scorer := &fakeScorer{res: sampleResult()}
	srv := newServer(t, scorer, false)

	get(t, srv, "/sw/calculate?fresh=true", token(t, alice, "", secret))
	get(t, srv, "/sw/calculate?fresh=true", token(t, alice, "service_role", secret))
	require.Len(t, scorer.got, 2)
	assert.False(t, scorer.got[0].Fresh)
	assert.True(t, scorer.got[1].Fresh)
}

func TestCalculateErrors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		bearer     func(t *testing.T) string
		err        error
		production bool
		status     int
		code       string
		stack      bool
	}{
		{
			name:   "missing token",
			path:   "/sw/calculate",
			bearer: func(*testing.T) string { return "" },
			status: http.StatusUnauthorized,
			code:   CodeUnauthorized,
		},
		{
			name:   "wrong key",
			path:   "/sw/calculate",
			bearer: func(t *testing.T) string { return token(t, alice, "", "other") },
			status: http.StatusUnauthorized,
			code:   CodeUnauthorized,
		},
		{
			name:   "subject not a uuid",
			path:   "/sw/calculate",
			bearer: func(t *testing.T) string { return token(t, "alice", "", secret) },
			status: http.StatusUnauthorized,
			code:   CodeUnauthorized,
		},
		{
			name:   "malformed user id",
			path:   "/sw/calculate?user_id=not-a-uuid",
			bearer: func(t *testing.T) string { return token(t, alice, "", secret) },
			status: http.StatusBadRequest,
			code:   CodeInvalidUserID,
		},
		{
			name:   "access denied",
			path:   "/sw/calculate",
			bearer: func(t *testing.T) string { return token(t, alice, "admin", secret) },
			err:    fmt.Errorf("collect comments: %w", store.ErrAccessDenied),
			status: http.StatusForbidden,
			code:   CodeAccessDenied,
		},
		{
			name:   "config missing",
			path:   "/sw/calculate",
			bearer: func(t *testing.T) string { return token(t, alice, "", secret) },
			err:    fmt.Errorf("load config: %w", engine.ErrConfigMissing),
			status: http.StatusInternalServerError,
			code:   CodeConfigMissing,
			stack:  true,
		},
		{
			name:   "internal in dev",
			path:   "/sw/calculate",
			bearer: func(t *testing.T) string { return token(t, alice, "", secret) },
			err:    fmt.Errorf("load profile: %w", errors.New("connection reset")),
			status: http.StatusInternalServerError,
			code:   CodeInternal,
			stack:  true,
		},
		{
			name:       "internal in production",
			path:       "/sw/calculate",
			bearer:     func(t *testing.T) string { return token(t, alice, "", secret) },
			err:        errors.New("connection reset"),
			production: true,
			status:     http.StatusInternalServerError,
			code:       CodeInternal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, &fakeScorer{res: sampleResult(), err: tt.err}, tt.production)
			resp, body := get(t, srv, tt.path, tt.bearer(t))
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, body["error"])
			if tt.stack {
				assert.Contains(t, body, "stack")
			} else {
				assert.NotContains(t, body, "stack")
			}
		})
	}
}

func TestTiers(t *testing.T) {
	srv := newServer(t, &fakeScorer{}, false)
	resp, body := get(t, srv, "/sw/tiers", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tiers, ok := body["tiers"].([]any)
	require.True(t, ok)
	assert.Len(t, tiers, len(scoring.DefaultTiers()))
}

func TestHealth(t *testing.T) {
	h := NewHandler(&fakeScorer{}, scoring.StaticProvider{}, fakePinger{err: errors.New("down")}, Options{JWTSecret: secret}, zerolog.Nop())
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	resp, body := get(t, srv, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "unavailable", body["code"])
}

func TestCORSPreflight(t *testing.T) {
	srv := newServer(t, &fakeScorer{}, false)
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/sw/calculate", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestRoutersFromOneHandlerHideStack(t *testing.T) {
	scorer := &fakeScorer{err: errors.New("boom")}
	h := NewHandler(scorer, scoring.StaticProvider{Cfg: scoring.DefaultConfig()}, fakePinger{}, Options{JWTSecret: secret, Production: true}, zerolog.Nop())
	first := httptest.NewServer(h.Router())
	defer first.Close()
	second := httptest.NewServer(h.Router())
	defer second.Close()

	assert.True(t, h.opts.Production)
	for _, srv := range []*httptest.Server{first, second} {
		resp, body := get(t, srv, "/sw/calculate", token(t, alice, "", secret))
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.NotContains(t, body, "stack")
	}
}
