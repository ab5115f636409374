package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	cases := []struct {
		in    string
		token string
		ok    bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer   abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
	}
	for _, tc := range cases {
		token, ok := bearerToken(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.token, token, tc.in)
	}
}

func TestIssuerIsEnforcedWhenConfigured(t *testing.T) {
	cfg := AuthConfig{JWTSecret: testSecret, Issuer: "impactline"}

	good, err := cfg.Sign("erin", []string{"admin"}, time.Minute)
	require.NoError(t, err)
	p, err := cfg.parse(good)
	require.NoError(t, err)
	assert.Equal(t, Principal{ActorID: "erin", Roles: []string{"admin"}, Source: sourceJWT}, p)

	foreign, err := SignToken(testSecret, "erin", nil, time.Minute)
	require.NoError(t, err)
	_, err = cfg.parse(foreign)
	assert.Error(t, err)

	expired, err := cfg.Sign("erin", nil, -time.Hour)
	require.NoError(t, err)
	_, err = cfg.parse(expired)
	assert.Error(t, err)

	_, err = AuthConfig{}.Sign("erin", nil, time.Minute)
	assert.ErrorIs(t, err, errNoSecret)
}

func TestIdentify(t *testing.T) {
	cfg := AuthConfig{JWTSecret: testSecret}
	req := httptest.NewRequest(http.MethodGet, "/v0/tasks", nil)

	p, authErr := cfg.identify(req)
	assert.Nil(t, authErr)
	assert.Nil(t, p)

	req.Header.Set(legacyActorHeader, "alice")
	p, authErr = cfg.identify(req)
	assert.Nil(t, authErr)
	assert.Nil(t, p)

	cfg.AllowLegacyActorHeader = true
	p, authErr = cfg.identify(req)
	require.Nil(t, authErr)
	require.NotNil(t, p)
	assert.Equal(t, "alice", p.ActorID)
	assert.Equal(t, sourceLegacyHeader, p.Source)

	req.Header.Set("Authorization", "Token nope")
	_, authErr = cfg.identify(req)
	require.NotNil(t, authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.GetStatus())
}

func TestMiddlewarePublicRoutes(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := principalFromContext(r.Context()); ok {
			seen = p.ActorID
		}
		w.WriteHeader(http.StatusNoContent)
	})
	h := newAuthMiddleware("/v0", AuthConfig{JWTSecret: testSecret})(next)

	for _, target := range []string{"/v0/health", "/v0/openapi.json", "/metrics", "/docs"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusNoContent, rec.Code, target)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v0/tasks", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"unauthorized"`)

	token, err := SignToken(testSecret, "frank", nil, time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/v0/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "frank", seen)
}

func TestActorIDFromContext(t *testing.T) {
	_, authErr := actorIDFromContext(context.Background())
	require.NotNil(t, authErr)

	id, authErr := actorIDFromContext(withPrincipal(context.Background(), Principal{ActorID: "gina"}))
	assert.Nil(t, authErr)
	assert.Equal(t, "gina", id)
}
