package server

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type AuthConfig struct {
	JWTSecret string
	APIKeys   []string
	Logger    *log.Logger
}

type Principal struct {
	Subject string
	Source  string
}

type principalKey struct{}

func (c AuthConfig) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

// enabled reports whether any credential source is configured; an
// unconfigured API stays open for local use.
func (c AuthConfig) enabled() bool {
	return c.JWTSecret != "" || len(c.APIKeys) > 0
}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func authenticateJWT(token, secret string) (Principal, error) {
	if strings.TrimSpace(secret) == "" {
		return Principal{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwt.RegisteredClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return Principal{}, errors.New("subject claim required")
	}
	return Principal{Subject: claims.Subject, Source: "jwt"}, nil
}

func authenticateAPIKey(key string, allowed []string) (Principal, error) {
	if strings.TrimSpace(key) == "" {
		return Principal{}, errors.New("api key required")
	}
	sum := sha256.Sum256([]byte(key))
	for _, candidate := range allowed {
		want := sha256.Sum256([]byte(candidate))
		if subtle.ConstantTimeCompare(sum[:], want[:]) == 1 {
			return Principal{Subject: "api-key", Source: "api_key"}, nil
		}
	}
	return Principal{}, errors.New("unknown api key")
}

func newAuthMiddleware(basePath string, cfg AuthConfig) func(http.Handler) http.Handler {
	open := map[string]bool{
		basePath + "/health": true,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.enabled() || open[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				p, err := authenticateJWT(strings.TrimPrefix(auth, "Bearer "), cfg.JWTSecret)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
					return
				}
				cfg.logger().Printf("auth: jwt rejected: %v", err)
			}
			if key := r.Header.Get("X-Api-Key"); key != "" {
				p, err := authenticateAPIKey(key, cfg.APIKeys)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
					return
				}
				cfg.logger().Printf("auth: api key rejected: %v", err)
			}
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		})
	}
}
