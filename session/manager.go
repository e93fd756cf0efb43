package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GoDataGuard/go-data-guard/models"
)

var (
	// ErrWeakSecret is returned when the signing secret violates the
	// minimum-length policy.
	ErrWeakSecret = errors.New("signing secret violates the minimum secret policy")
)

// Manager owns refresh-token issuance, validation, blacklist enforcement and
// bulk invalidation. Token records live in the expiring store under
// session:refresh:<userID>:<tokenID>; blacklist entries under
// session:blacklist:<tokenID> with a TTL of at least the token's remaining
// lifetime, so a blacklisted token can never outlive its blacklist record.
type Manager struct {
	store  models.ExpiringStore
	logger models.Logger
	signer *accessTokenSigner

	tokenLifetime       time.Duration
	accessTokenLifetime time.Duration
}

// ManagerOptions configures a session Manager.
type ManagerOptions struct {
	// Secret signs the bearer access tokens minted on issue.
	Secret string
	// MinSecretLength is the secret policy floor; defaults to 32.
	MinSecretLength int
	// TokenLifetime is the refresh token TTL; defaults to 7 days.
	TokenLifetime time.Duration
	// AccessTokenLifetime defaults to 15 minutes.
	AccessTokenLifetime time.Duration
}

// NewManager creates a session Manager. It fails fast on a weak signing
// secret rather than silently issuing insecure tokens.
func NewManager(store models.ExpiringStore, logger models.Logger, opts ManagerOptions) (*Manager, error) {
	minLen := opts.MinSecretLength
	if minLen <= 0 {
		minLen = 32
	}
	if len(opts.Secret) < minLen {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrWeakSecret, minLen, len(opts.Secret))
	}

	tokenLifetime := opts.TokenLifetime
	if tokenLifetime == 0 {
		tokenLifetime = 7 * 24 * time.Hour
	}
	accessLifetime := opts.AccessTokenLifetime
	if accessLifetime == 0 {
		accessLifetime = 15 * time.Minute
	}

	return &Manager{
		store:               store,
		logger:              logger,
		signer:              newAccessTokenSigner(opts.Secret),
		tokenLifetime:       tokenLifetime,
		accessTokenLifetime: accessLifetime,
	}, nil
}

// Issue creates a new refresh token for the user and mints a signed bearer
// access token alongside it.
func (m *Manager) Issue(ctx context.Context, userID string) (*models.IssueResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}

	now := time.Now()
	token := models.RefreshToken{
		TokenID:   uuid.NewString(),
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.tokenLifetime),
	}

	payload, err := json.Marshal(token)
	if err != nil {
		return nil, fmt.Errorf("failed to encode refresh token: %w", err)
	}

	ttl := m.tokenLifetime
	if err := m.store.Set(ctx, refreshTokenKey(userID, token.TokenID), string(payload), &ttl); err != nil {
		m.logger.Error("failed to store refresh token", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	if err := m.store.Set(ctx, tokenIndexKey(token.TokenID), userID, &ttl); err != nil {
		m.logger.Error("failed to store refresh token index", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to store refresh token index: %w", err)
	}

	accessToken, err := m.signer.Sign(userID, token.TokenID, m.accessTokenLifetime)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	return &models.IssueResult{
		TokenID:     token.TokenID,
		AccessToken: accessToken,
		ExpiresAt:   token.ExpiresAt,
	}, nil
}

// Validate fails closed: it returns nil if the blacklist contains the id, if
// the store has no record, or if the record has expired (deleting the stale
// record in that case). Store errors also validate as nil.
func (m *Manager) Validate(ctx context.Context, tokenID string) (*models.RefreshToken, error) {
	if tokenID == "" {
		return nil, nil
	}

	blacklisted, err := m.isBlacklisted(ctx, tokenID)
	if err != nil {
		m.logger.Error("blacklist check failed, treating token as invalid", "token_id", tokenID, "error", err)
		return nil, err
	}
	if blacklisted {
		return nil, nil
	}

	token, key, err := m.findToken(ctx, tokenID)
	if err != nil {
		m.logger.Error("refresh token lookup failed, treating token as invalid", "token_id", tokenID, "error", err)
		return nil, err
	}
	if token == nil {
		return nil, nil
	}

	if time.Now().After(token.ExpiresAt) {
		// The backend kept a record past its expiry; remove it.
		if err := m.store.Delete(ctx, key); err != nil {
			m.logger.Warn("failed to delete stale refresh token", "token_id", tokenID, "error", err)
		}
		if err := m.store.Delete(ctx, tokenIndexKey(tokenID)); err != nil {
			m.logger.Warn("failed to delete stale refresh token index", "token_id", tokenID, "error", err)
		}
		return nil, nil
	}

	return token, nil
}

// Revoke deletes the refresh-token record and inserts a blacklist entry whose
// TTL covers the token's remaining lifetime, so a still-valid-looking token
// cannot resurrect itself from a backend that dropped the positive record.
// Revoking an already-revoked or unknown token is a no-op, which lets
// concurrent revocations converge.
func (m *Manager) Revoke(ctx context.Context, tokenID string) error {
	if tokenID == "" {
		return fmt.Errorf("tokenID cannot be empty")
	}

	token, key, err := m.findToken(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("failed to look up refresh token: %w", err)
	}

	ttl := m.tokenLifetime
	if token != nil {
		if remaining := time.Until(token.ExpiresAt); remaining > ttl {
			ttl = remaining
		}
	}

	if err := m.store.Set(ctx, blacklistKey(tokenID), "1", &ttl); err != nil {
		m.logger.Error("failed to blacklist token", "token_id", tokenID, "error", err)
		return fmt.Errorf("failed to blacklist token: %w", err)
	}

	if key != "" {
		if err := m.store.Delete(ctx, key); err != nil {
			m.logger.Error("failed to delete refresh token", "token_id", tokenID, "error", err)
			return fmt.Errorf("failed to delete refresh token: %w", err)
		}
	}
	if err := m.store.Delete(ctx, tokenIndexKey(tokenID)); err != nil {
		m.logger.Warn("failed to delete refresh token index", "token_id", tokenID, "error", err)
	}

	return nil
}

// RevokeAllForUser scans the user's refresh-token keys and revokes each
// independently: one failure never prevents attempting the rest. The
// per-token outcomes, including failures, are always returned.
func (m *Manager) RevokeAllForUser(ctx context.Context, userID string) ([]models.RevokeOutcome, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}

	prefix := refreshTokenPrefix(userID)
	keys, err := m.store.Keys(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to scan refresh tokens for user: %w", err)
	}

	outcomes := make([]models.RevokeOutcome, 0, len(keys))
	for _, key := range keys {
		tokenID := strings.TrimPrefix(key, prefix)
		outcome := models.RevokeOutcome{TokenID: tokenID}
		if err := m.Revoke(ctx, tokenID); err != nil {
			outcome.Err = err
			m.logger.Error("failed to revoke token during bulk invalidation",
				"user_id", userID,
				"token_id", tokenID,
				"error", err,
			)
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

// VerifyAccessToken checks the bearer token's signature and expiry, then
// consults the blacklist for its refresh token id. Fails closed.
func (m *Manager) VerifyAccessToken(ctx context.Context, token string) (string, error) {
	userID, tokenID, err := m.signer.Verify(token)
	if err != nil {
		return "", err
	}

	blacklisted, err := m.isBlacklisted(ctx, tokenID)
	if err != nil {
		return "", err
	}
	if blacklisted {
		return "", fmt.Errorf("token has been revoked")
	}

	return userID, nil
}

func (m *Manager) isBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	value, err := m.store.Get(ctx, blacklistKey(tokenID))
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return value != nil, nil
}

// findToken resolves a token id to its record without knowing the user id,
// going through the token index written at issue time.
func (m *Manager) findToken(ctx context.Context, tokenID string) (*models.RefreshToken, string, error) {
	owner, err := m.store.Get(ctx, tokenIndexKey(tokenID))
	if err != nil {
		return nil, "", err
	}
	if owner == nil {
		return nil, "", nil
	}
	userID, ok := owner.(string)
	if !ok {
		return nil, "", fmt.Errorf("unexpected token index value type %T", owner)
	}

	key := refreshTokenKey(userID, tokenID)
	value, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, "", err
	}
	if value == nil {
		return nil, "", nil
	}
	raw, ok := value.(string)
	if !ok {
		return nil, "", fmt.Errorf("unexpected refresh token value type %T", value)
	}

	var token models.RefreshToken
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		return nil, "", fmt.Errorf("failed to decode refresh token: %w", err)
	}
	return &token, key, nil
}
