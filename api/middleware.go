package api

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/basic"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/ambulance-dispatch-api/config"
	"github.com/linesmerrill/ambulance-dispatch-api/databases"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

type identityKey struct{}

// MiddlewareDB authenticates requests against the users in the store
type MiddlewareDB struct {
	DB        databases.Store
	Secret    []byte
	TicketTTL time.Duration

	authenticator auth.Authenticator
	cache         store.Cache
}

// ticketClaims are carried by the short lived websocket ticket
type ticketClaims struct {
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// NewMiddleware returns a ready to use MiddlewareDB. An empty secret gets a
// random per-process key, so tickets do not survive a restart.
func NewMiddleware(db databases.Store, secret string, ticketTTL time.Duration) *MiddlewareDB {
	if secret == "" {
		zap.S().Warn("JWT_SECRET is not set, using a random websocket ticket key")
		secret = uuid.NewString() + uuid.NewString()
	}
	if ticketTTL <= 0 {
		ticketTTL = time.Minute
	}
	m := &MiddlewareDB{DB: db, Secret: []byte(secret), TicketTTL: ticketTTL}
	m.SetupGoGuardian()
	return m
}

// SetupGoGuardian sets up the go-guardian strategies
func (m *MiddlewareDB) SetupGoGuardian() {
	m.authenticator = auth.New()
	m.cache = store.NewFIFO(context.Background(), 24*time.Hour)
	basicStrategy := basic.New(m.ValidateUser, m.cache)
	tokenStrategy := bearer.New(bearer.NoOpAuthenticate, m.cache)

	m.authenticator.EnableStrategy(basic.StrategyKey, basicStrategy)
	m.authenticator.EnableStrategy(bearer.CachedStrategyKey, tokenStrategy)
}

// Middleware rejects unauthenticated requests and stores the caller's
// identity on the request context
func (m *MiddlewareDB) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		user, err := m.authenticator.Authenticate(r)
		if err != nil {
			zap.S().Infow("unauthorized",
				"url", r.URL.Path)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "unauthorized"}`))
			return
		}
		zap.S().Debugw("user authenticated", "userId", user.ID())
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identityFromInfo(user))))
	})
}

// ValidateUser checks basic credentials against the stored bcrypt hash
func (m *MiddlewareDB) ValidateUser(ctx context.Context, r *http.Request, email, password string) (auth.Info, error) {
	usernameHash := sha256.Sum256([]byte(strings.ToLower(email)))

	user, err := m.DB.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("no matching email found")
	}

	expectedUsernameHash := sha256.Sum256([]byte(strings.ToLower(user.Details.Email)))
	usernameMatch := subtle.ConstantTimeCompare(usernameHash[:], expectedUsernameHash[:]) == 1

	err = bcrypt.CompareHashAndPassword([]byte(user.Details.Password), []byte(password))
	if err != nil {
		return nil, fmt.Errorf("failed to compare password")
	}

	if usernameMatch {
		return auth.NewDefaultUser(user.Details.Username, user.ID, []string{string(user.Details.Role)}, nil), nil
	}
	return nil, fmt.Errorf("invalid credentials")
}

// CreateToken exchanges basic credentials for a bearer token
func (m *MiddlewareDB) CreateToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id := IdentityFromContext(r.Context())
	if !id.Authenticated {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, errors.New("missing identity"))
		return
	}

	token := uuid.New().String()
	authUser := auth.NewDefaultUser(id.Username, id.UserID, []string{string(id.Role)}, nil)
	tokenStrategy := m.authenticator.Strategy(bearer.CachedStrategyKey)
	if err := auth.Append(tokenStrategy, token, authUser, r); err != nil {
		config.ErrorStatus("failed to store token", http.StatusInternalServerError, w, err)
		return
	}

	response := map[string]string{
		"token": token,
		"_id":   id.UserID,
		"role":  string(id.Role),
	}

	responseBody, err := json.Marshal(response)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}

	w.Write(responseBody)
}

// RevokeToken revokes the bearer token of the request
func (m *MiddlewareDB) RevokeToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	reqToken, ok := bearerToken(r)
	if !ok {
		config.ErrorStatus("missing bearer token", http.StatusBadRequest, w, errors.New("no bearer token"))
		return
	}

	tokenStrategy := m.authenticator.Strategy(bearer.CachedStrategyKey)
	if err := auth.Revoke(tokenStrategy, reqToken, r); err != nil {
		config.ErrorStatus("failed to revoke token", http.StatusInternalServerError, w, err)
		return
	}
	b, _ := json.Marshal(map[string]string{"revoked token": reqToken})
	w.Write(b)
}

// CreateWebsocketTicket issues a signed ticket for the realtime endpoints.
// Browsers cannot set headers on websocket upgrades, so the ticket travels in
// the query string.
func (m *MiddlewareDB) CreateWebsocketTicket(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id := IdentityFromContext(r.Context())

	ticket, expires, err := m.issueTicket(id)
	if err != nil {
		config.ErrorStatus("failed to sign ticket", http.StatusInternalServerError, w, err)
		return
	}
	b, _ := json.Marshal(map[string]interface{}{
		"ticket":    ticket,
		"expiresAt": expires,
	})
	w.Write(b)
}

func (m *MiddlewareDB) issueTicket(id models.Identity) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(m.TicketTTL)
	claims := ticketClaims{
		Username: id.Username,
		Role:     id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.Secret)
	return signed, expires, err
}

func (m *MiddlewareDB) parseTicket(ticket string) (models.Identity, error) {
	claims := &ticketClaims{}
	_, err := jwt.ParseWithClaims(ticket, claims, func(*jwt.Token) (interface{}, error) {
		return m.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Identity{}, err
	}
	return models.Identity{
		UserID:        claims.Subject,
		Username:      claims.Username,
		Role:          claims.Role,
		Authenticated: claims.Subject != "",
	}, nil
}

// ResolveIdentity resolves the caller of a websocket upgrade from a ticket
// query parameter or a bearer token. Failures yield an unauthenticated
// identity.
func (m *MiddlewareDB) ResolveIdentity(r *http.Request) models.Identity {
	if ticket := r.URL.Query().Get("ticket"); ticket != "" {
		id, err := m.parseTicket(ticket)
		if err != nil {
			zap.S().Infow("invalid websocket ticket", "error", err)
			return models.Identity{}
		}
		return id
	}
	if _, ok := bearerToken(r); !ok {
		return models.Identity{}
	}
	user, err := m.authenticator.Authenticate(r)
	if err != nil {
		return models.Identity{}
	}
	return identityFromInfo(user)
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return token, token != ""
}

func identityFromInfo(info auth.Info) models.Identity {
	id := models.Identity{UserID: info.ID(), Username: info.UserName(), Authenticated: true}
	if groups := info.Groups(); len(groups) > 0 {
		id.Role = models.Role(groups[0])
	}
	return id
}

// WithIdentity returns a copy of ctx carrying id
func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by Middleware, or an
// unauthenticated one
func IdentityFromContext(ctx context.Context) models.Identity {
	id, _ := ctx.Value(identityKey{}).(models.Identity)
	return id
}
