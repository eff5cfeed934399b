package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"family-tree-go/internal/config"
	"family-tree-go/pkg/logger"
)

var (
	errTokenRejected       = errors.New("token rejected")
	errIdentityUnavailable = errors.New("identity server unavailable")
)

type User struct {
	ID    string
	Email string
	Name  string
}

// IdentityResolver turns a bearer token into the user it belongs to.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (User, error)
}

// Auth authenticates requests against an IdentityResolver. With AUTH_SKIP
// every request runs as the configured mock user.
type Auth struct {
	resolver IdentityResolver
	skipAuth bool
	mockUser User
	ready    bool
	log      logger.Logger
}

func NewAuth(cfg config.AuthConfig, log logger.Logger) *Auth {
	a := &Auth{
		skipAuth: cfg.SkipAuth,
		mockUser: User{
			ID:    strings.TrimSpace(cfg.MockUserID),
			Email: strings.TrimSpace(cfg.MockUserEmail),
		},
		log: log,
	}
	if cfg.URL != "" && cfg.PublishableKey != "" {
		a.resolver = newCachedResolver(newHTTPResolver(cfg), cfg.CacheTTL)
		a.ready = true
	}
	return a
}

// NewAuthWithResolver builds an Auth that resolves tokens through resolver.
func NewAuthWithResolver(resolver IdentityResolver, log logger.Logger) *Auth {
	return &Auth{resolver: resolver, ready: resolver != nil, log: log}
}

func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context(), a.log)

		if a.skipAuth {
			if a.mockUser.ID == "" {
				writeError(w, http.StatusInternalServerError, "auth_not_configured", "auth mock user id not configured")
				return
			}
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), a.mockUser, log)))
			return
		}

		if !a.ready {
			writeError(w, http.StatusInternalServerError, "auth_not_configured", "auth not configured")
			return
		}

		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			unauthorized(w)
			return
		}

		user, err := a.resolver.Resolve(r.Context(), token)
		switch {
		case errors.Is(err, errIdentityUnavailable):
			log.Warn("auth: identity server unreachable", "err", err)
			unauthorized(w)
			return
		case err != nil:
			log.Debug("auth: token rejected", "err", err)
			unauthorized(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user, log)))
	})
}

// withUser stores the user and tags the request logger with its id.
func withUser(ctx context.Context, user User, log logger.Logger) context.Context {
	ctx = WithUser(ctx, user)
	return logger.IntoContext(ctx, log.With("user_id", user.ID))
}

type userKey struct{}

func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

func UserFromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(userKey{}).(User)
	if !ok || user.ID == "" {
		return User{}, false
	}
	return user, true
}

// httpResolver asks the identity server's /auth/v1/user endpoint who owns a
// token.
type httpResolver struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type identityPayload struct {
	ID           string         `json:"id"`
	Sub          string         `json:"sub"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	User         struct {
		ID  string `json:"id"`
		Sub string `json:"sub"`
	} `json:"user"`
}

func newHTTPResolver(cfg config.AuthConfig) *httpResolver {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &httpResolver{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.PublishableKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (h *httpResolver) Resolve(ctx context.Context, token string) (User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return User{}, fmt.Errorf("build identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", h.apiKey)

	resp, err := h.client.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", errIdentityUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return User{}, fmt.Errorf("%w: status %d", errIdentityUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return User{}, fmt.Errorf("%w: status %d", errTokenRejected, resp.StatusCode)
	}

	var payload identityPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return User{}, fmt.Errorf("%w: decode identity: %v", errTokenRejected, err)
	}

	id := firstNonEmpty(payload.ID, payload.Sub, payload.User.ID, payload.User.Sub)
	if id == "" {
		return User{}, fmt.Errorf("%w: identity without id", errTokenRejected)
	}
	return User{
		ID:    id,
		Email: payload.Email,
		Name:  firstNonEmpty(metadataString(payload.UserMetadata, "name"), metadataString(payload.UserMetadata, "full_name")),
	}, nil
}

// cachedResolver remembers successful resolutions for ttl. Tokens are keyed
// by their sha256 digest. Failures are never cached.
type cachedResolver struct {
	next  IdentityResolver
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
	items map[string]cachedUser
}

type cachedUser struct {
	user      User
	expiresAt time.Time
}

func newCachedResolver(next IdentityResolver, ttl time.Duration) IdentityResolver {
	if ttl <= 0 {
		return next
	}
	return &cachedResolver{next: next, ttl: ttl, now: time.Now, items: map[string]cachedUser{}}
}

func (c *cachedResolver) Resolve(ctx context.Context, token string) (User, error) {
	sum := sha256.Sum256([]byte(token))
	key := hex.EncodeToString(sum[:])

	c.mu.Lock()
	entry, ok := c.items[key]
	if ok && c.now().Before(entry.expiresAt) {
		c.mu.Unlock()
		return entry.user, nil
	}
	delete(c.items, key)
	c.mu.Unlock()

	user, err := c.next.Resolve(ctx, token)
	if err != nil {
		return User{}, err
	}

	c.mu.Lock()
	c.items[key] = cachedUser{user: user, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return user, nil
}

func bearerToken(value string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != "" && !strings.ContainsAny(token, " \t")
}

func unauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorEnvelope
	body.Error.Code = code
	body.Error.Message = message

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func metadataString(values map[string]any, key string) string {
	value, _ := values[key].(string)
	return value
}
