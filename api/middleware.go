package api

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/seanlongden/lead-formatter-waitlist/config"
)

// AdminKeyHeader carries the admin key when no bearer token is sent
const AdminKeyHeader = "X-Admin-Key"

const adminCacheTTL = 10 * time.Minute

var errInvalidAdminKey = errors.New("invalid admin key")

// AdminAuth gates the admin routes behind WAITLIST_ADMIN_KEY. The key may be stored
// in plain text or as a bcrypt hash.
type AdminAuth struct {
	key           string
	authenticator auth.Authenticator
}

// NewAdminAuth sets up go-guardian with a cached bearer strategy validating against key
func NewAdminAuth(key string) *AdminAuth {
	a := &AdminAuth{key: key}
	cache := store.NewFIFO(context.Background(), adminCacheTTL)
	a.authenticator = auth.New()
	a.authenticator.EnableStrategy(bearer.CachedStrategyKey, bearer.New(a.validateKey, cache))
	return a
}

// Middleware rejects requests without a valid admin key
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.key == "" {
			config.ErrorStatus("Unauthorized", http.StatusUnauthorized, w, errors.New("admin key is not configured"))
			return
		}
		if key := r.Header.Get(AdminKeyHeader); key != "" && r.Header.Get("Authorization") == "" {
			r = r.Clone(r.Context())
			r.Header.Set("Authorization", "Bearer "+key)
		}

		info, err := a.authenticator.Authenticate(r)
		if err != nil {
			zap.S().Warnw("unauthorized admin request",
				"url", r.URL.Path,
				"requestId", RequestID(r.Context()))
			config.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		zap.S().Debugw("admin authenticated", "user", info.UserName())
		next.ServeHTTP(w, r)
	})
}

func (a *AdminAuth) validateKey(_ context.Context, _ *http.Request, token string) (auth.Info, error) {
	if !a.matches(token) {
		return nil, errInvalidAdminKey
	}
	return auth.NewDefaultUser("admin", "admin", nil, nil), nil
}

func (a *AdminAuth) matches(token string) bool {
	if token == "" {
		return false
	}
	if strings.HasPrefix(a.key, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(a.key), []byte(token)) == nil
	}
	want := sha256.Sum256([]byte(a.key))
	got := sha256.Sum256([]byte(token))
	return subtle.ConstantTimeCompare(want[:], got[:]) == 1
}
