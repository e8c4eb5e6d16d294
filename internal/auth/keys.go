// ABOUTME: API key lifecycle and authorization checks for openmcp services
// ABOUTME: Owns the in-memory key store and the localhost bypass policy

package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/openmcp-ai/openmcp/internal/config"
)

// Auth errors. All validation failures wrap ErrUnauthorized so callers can
// distinguish "who you are" failures from ErrForbidden "what you may do" ones.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrUnknownKey  = fmt.Errorf("%w: invalid API key", ErrUnauthorized)
	ErrInactiveKey = fmt.Errorf("%w: API key is inactive", ErrUnauthorized)
	ErrExpiredKey  = fmt.Errorf("%w: API key has expired", ErrUnauthorized)
)

// keyPrefix marks generated tokens so they are recognizable in logs and configs.
const keyPrefix = "bmcp_"

// MockLocalhostToken is a well-known token that resolves to the synthetic
// localhost key when presented from a loopback peer. It lets local clients
// that insist on sending an Authorization header work without provisioning.
const MockLocalhostToken = "openmcp-localhost-auth"

// DefaultService is the service enabled on keys created without explicit permissions.
const DefaultService = "browseruse"

// defaultKeyExpiryDays is the lifetime of the key auto-minted at startup.
const defaultKeyExpiryDays = 365

// APIKey is an opaque credential authorizing calls to specific services.
type APIKey struct {
	Key         string          `json:"key"`
	Name        string          `json:"name"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	Active      bool            `json:"is_active"`
	Permissions map[string]bool `json:"permissions"`

	// AllServices marks the synthetic localhost key, which grants every
	// service without an entry in Permissions. Never set on stored keys.
	AllServices bool `json:"-"`
}

// Usable reports whether the key may authenticate a request right now.
func (k *APIKey) Usable() bool {
	if !k.Active {
		return false
	}
	if k.ExpiresAt != nil && time.Now().After(*k.ExpiresAt) {
		return false
	}
	return true
}

// Allows reports whether the key grants access to the named service.
// Absent entries default to false.
func (k *APIKey) Allows(service string) bool {
	if k.AllServices {
		return true
	}
	return k.Permissions[service]
}

// Manager is the sole authority on whether a request may proceed and against
// which service. It owns the in-memory API key store; keys are never deleted,
// only deactivated, so the store doubles as an audit trail for the process
// lifetime. State is not persisted across restarts.
type Manager struct {
	cfg    config.AuthConfig
	issuer *tokenIssuer
	logger *slog.Logger

	mu   sync.RWMutex
	keys map[string]*APIKey
}

// NewManager creates a Manager and auto-mints the "default" API key.
func NewManager(cfg config.AuthConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		cfg:    cfg,
		issuer: newTokenIssuer([]byte(cfg.SecretKey), cfg.AccessTokenExpiry),
		logger: logger,
		keys:   make(map[string]*APIKey),
	}

	m.CreateKey("default", defaultKeyExpiryDays, nil)
	return m
}

// CreateKey generates a fresh unique token and stores an active APIKey.
// A zero expiresDays means the key never expires. Nil permissions default to
// enabling only the default service. Always succeeds.
func (m *Manager) CreateKey(name string, expiresDays int, permissions map[string]bool) string {
	key := keyPrefix + randomToken()

	var expiresAt *time.Time
	if expiresDays > 0 {
		t := time.Now().UTC().Add(time.Duration(expiresDays) * 24 * time.Hour)
		expiresAt = &t
	}

	if permissions == nil {
		permissions = map[string]bool{DefaultService: true}
	}

	m.mu.Lock()
	m.keys[key] = &APIKey{
		Key:         key,
		Name:        name,
		CreatedAt:   time.Now().UTC(),
		ExpiresAt:   expiresAt,
		Active:      true,
		Permissions: permissions,
	}
	m.mu.Unlock()

	m.logger.Info("created API key", "name", name, "expires_days", expiresDays)
	return key
}

// ValidateKey looks up the token and checks that it is usable.
// Returns a copy of the key so callers cannot mutate store state.
func (m *Manager) ValidateKey(token string) (*APIKey, error) {
	m.mu.RLock()
	key, ok := m.keys[token]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrUnknownKey
	}
	if !key.Active {
		return nil, ErrInactiveKey
	}
	if key.ExpiresAt != nil && time.Now().After(*key.ExpiresAt) {
		return nil, ErrExpiredKey
	}

	cp := *key
	return &cp, nil
}

// CheckPermission validates the token and then looks up the service grant.
// Validation failures propagate; an absent permission entry yields false, nil.
func (m *Manager) CheckPermission(token, service string) (bool, error) {
	key, err := m.ValidateKey(token)
	if err != nil {
		return false, err
	}
	return key.Allows(service), nil
}

// RevokeKey deactivates the token and reports whether it existed.
// Revoking an already-inactive key returns true again: the token is still in
// the store, only its active flag changes. Keys are never physically deleted.
func (m *Manager) RevokeKey(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.keys[token]
	if !ok {
		return false
	}
	key.Active = false
	m.logger.Info("revoked API key", "name", key.Name)
	return true
}

// ListKeys returns a snapshot copy of every stored key, indexed by token.
// Redacting tokens for less-privileged callers is the router's job.
func (m *Manager) ListKeys() map[string]APIKey {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]APIKey, len(m.keys))
	for token, key := range m.keys {
		out[token] = *key
	}
	return out
}

// LocalhostKey synthesizes a transient full-access key for a recognized
// loopback peer. The key is never stored.
func (m *Manager) LocalhostKey() *APIKey {
	return &APIKey{
		Key:         MockLocalhostToken,
		Name:        "localhost",
		CreatedAt:   time.Now().UTC(),
		Active:      true,
		AllServices: true,
	}
}

// Authorize resolves the credential for a request given the bearer token (may
// be empty) and the transport-level peer address. The bypass decision looks
// only at remoteAddr, never at client-supplied headers, so it cannot be forged
// by a remote caller spoofing X-Forwarded-For.
func (m *Manager) Authorize(token, remoteAddr string) (*APIKey, error) {
	localPeer := m.cfg.AllowLocalhost && isLocalPeer(remoteAddr)

	if token == "" {
		if !m.cfg.RequireAuth || localPeer {
			return m.LocalhostKey(), nil
		}
		return nil, fmt.Errorf("%w: authorization header required", ErrUnauthorized)
	}

	if token == MockLocalhostToken && localPeer {
		return m.LocalhostKey(), nil
	}

	return m.ValidateKey(token)
}

// isLocalPeer reports whether the transport peer address is loopback or
// private-range, the addresses the bypass policy recognizes as "localhost".
func isLocalPeer(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	return addr.IsLoopback() || addr.IsPrivate()
}

// randomToken returns 32 bytes of cryptographic randomness, URL-safe encoded.
func randomToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("generating API key: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
