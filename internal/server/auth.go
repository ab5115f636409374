package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	sourceJWT          = "jwt"
	sourceLegacyHeader = "legacy_header"
	legacyActorHeader  = "X-Actor-Id"
	tokenLeeway        = 30 * time.Second
)

var errNoSecret = errors.New("jwt secret not configured")

// AuthConfig controls how callers are identified. A bearer token always
// wins over the legacy actor header; the header is honored only when
// AllowLegacyActorHeader is set.
type AuthConfig struct {
	JWTSecret              string
	Issuer                 string
	AllowLegacyActorHeader bool
	Logger                 *slog.Logger
}

// Principal is the authenticated caller. ActorID becomes the actor on every
// mutation and audit entry.
type Principal struct {
	ActorID string
	Roles   []string
	Source  string
}

type principalKey struct{}

func (c AuthConfig) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.ActorID != ""
}

func unauthenticated() huma.StatusError {
	return newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

func badCredentials() huma.StatusError {
	return newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil)
}

func actorIDFromContext(ctx context.Context) (string, huma.StatusError) {
	p, ok := principalFromContext(ctx)
	if !ok {
		return "", unauthenticated()
	}
	return p.ActorID, nil
}

type actorClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

func (c AuthConfig) parse(raw string) (Principal, error) {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return Principal{}, errNoSecret
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(tokenLeeway),
	}
	if c.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.Issuer))
	}
	claims := &actorClaims{}
	if _, err := jwt.NewParser(opts...).ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(c.JWTSecret), nil
	}); err != nil {
		return Principal{}, err
	}
	if claims.Subject == "" {
		return Principal{}, errors.New("token has no subject")
	}
	return Principal{ActorID: claims.Subject, Roles: claims.Roles, Source: sourceJWT}, nil
}

// Sign mints an HS256 token for actorID carrying the configured issuer.
func (c AuthConfig) Sign(actorID string, roles []string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return "", errNoSecret
	}
	now := time.Now()
	claims := actorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.Issuer,
			Subject:   actorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Roles: roles,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.JWTSecret))
}

// SignToken mints an HS256 token whose subject is the actor id.
func SignToken(secret, actorID string, roles []string, ttl time.Duration) (string, error) {
	return AuthConfig{JWTSecret: secret}.Sign(actorID, roles, ttl)
}

func bearerToken(authz string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authz), " ")
	token = strings.TrimSpace(token)
	if !ok || token == "" || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	return token, true
}

// identify resolves the caller of req. A nil principal with a nil error
// means the request carried no credentials at all.
func (c AuthConfig) identify(req *http.Request) (*Principal, huma.StatusError) {
	if authz := req.Header.Get("Authorization"); strings.TrimSpace(authz) != "" {
		token, ok := bearerToken(authz)
		if !ok {
			return nil, badCredentials()
		}
		p, err := c.parse(token)
		if err != nil {
			c.logger().Debug("bearer token rejected", "error", err)
			return nil, badCredentials()
		}
		return &p, nil
	}
	actor := strings.TrimSpace(req.Header.Get(legacyActorHeader))
	if actor == "" || !c.AllowLegacyActorHeader {
		return nil, nil
	}
	c.logger().Warn("legacy actor header used without a token", "actor_id", actor)
	return &Principal{ActorID: actor, Source: sourceLegacyHeader}, nil
}

// newAuthMiddleware guards every route under basePath except the public
// ones. Routes outside basePath pass through untouched.
func newAuthMiddleware(basePath string, cfg AuthConfig) func(http.Handler) http.Handler {
	public := publicPaths(basePath)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			guarded := basePath == "" || strings.HasPrefix(req.URL.Path, basePath)
			if !guarded || public[req.URL.Path] {
				next.ServeHTTP(w, req)
				return
			}
			p, authErr := cfg.identify(req)
			switch {
			case authErr != nil:
				respondStatusError(w, authErr)
			case p == nil:
				respondStatusError(w, unauthenticated())
			default:
				next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), *p)))
			}
		})
	}
}

// publicPaths lists the routes under basePath that need no credentials.
func publicPaths(basePath string) map[string]bool {
	return map[string]bool{
		path.Join("/", basePath, "health"):         true,
		path.Join("/", basePath, "auth/dev/login"): true,
		path.Join("/", basePath, "openapi.json"):   true,
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.GetStatus())
	_ = json.NewEncoder(w).Encode(err)
}
