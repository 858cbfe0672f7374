package database

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"media-ingest/internal/logging"
)

// ErrInvalidToken is returned for malformed, unknown, revoked or mismatched
// bearer tokens. Callers should not distinguish between these cases.
var ErrInvalidToken = errors.New("invalid token")

// secretBytes is the length of the random token secret before hex encoding.
const secretBytes = 32

// Token is an issued API token. The secret is never stored.
type Token struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"userId"`
	Label      string     `json:"label,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

// CreateToken issues a token for userID and returns the bearer value
// "<id>.<secret>". The plaintext is only available here.
func (d *Database) CreateToken(ctx context.Context, userID int64, label string) (bearer string, tok *Token, err error) {
	start := time.Now()
	defer func() { recordQuery("create_token", start, err) }()

	raw := make([]byte, secretBytes)
	if _, err = rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}
	secret := hex.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("failed to hash token: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now()
	result, err := d.db.ExecContext(ctx,
		"INSERT INTO api_tokens (user_id, label, secret_hash, created_at) VALUES (?, ?, ?, ?)",
		userID, label, string(hash), now.Unix(),
	)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create token: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return "", nil, fmt.Errorf("failed to read token id: %w", err)
	}

	tok = &Token{ID: id, UserID: userID, Label: label, CreatedAt: time.Unix(now.Unix(), 0)}
	return FormatToken(id, secret), tok, nil
}

// FormatToken builds the bearer value for a token id and secret.
func FormatToken(id int64, secret string) string {
	return strconv.FormatInt(id, 10) + "." + secret
}

// ParseToken splits a bearer value into id and secret.
func ParseToken(bearer string) (int64, string, error) {
	idPart, secret, ok := strings.Cut(strings.TrimSpace(bearer), ".")
	if !ok || secret == "" {
		return 0, "", ErrInvalidToken
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", ErrInvalidToken
	}
	return id, secret, nil
}

// Authenticate validates a bearer value and returns the token it names.
func (d *Database) Authenticate(ctx context.Context, bearer string) (tok *Token, err error) {
	start := time.Now()
	defer func() { recordQuery("authenticate_token", start, err) }()

	id, secret, err := ParseToken(bearer)
	if err != nil {
		return nil, err
	}

	d.mu.RLock()
	qctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	var (
		t        Token
		hash     string
		revoked  bool
		created  int64
		lastUsed sql.NullInt64
	)
	err = d.db.QueryRowContext(qctx,
		"SELECT id, user_id, label, secret_hash, revoked, created_at, last_used_at FROM api_tokens WHERE id = ?",
		id,
	).Scan(&t.ID, &t.UserID, &t.Label, &hash, &revoked, &created, &lastUsed)
	cancel()
	d.mu.RUnlock()

	if errors.Is(err, sql.ErrNoRows) {
		err = ErrInvalidToken
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if revoked {
		err = ErrInvalidToken
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) != nil {
		err = ErrInvalidToken
		return nil, err
	}

	t.CreatedAt = time.Unix(created, 0)
	if lastUsed.Valid {
		lu := time.Unix(lastUsed.Int64, 0)
		t.LastUsedAt = &lu
	}

	if touchErr := d.touchToken(ctx, t.ID); touchErr != nil {
		logging.Warn("failed to update last use of token %d: %v", t.ID, touchErr)
	}
	return &t, nil
}

func (d *Database) touchToken(ctx context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, "UPDATE api_tokens SET last_used_at = ? WHERE id = ?", time.Now().Unix(), id)
	return err
}

// RevokeToken disables a token. Revoking an unknown token returns ErrNotFound.
func (d *Database) RevokeToken(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { recordQuery("revoke_token", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, "UPDATE api_tokens SET revoked = 1 WHERE id = ?", id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		err = ErrNotFound
	}
	return err
}

// ListTokens returns the tokens issued to userID, revoked ones excluded.
func (d *Database) ListTokens(ctx context.Context, userID int64) ([]Token, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		"SELECT id, user_id, label, created_at, last_used_at FROM api_tokens WHERE user_id = ? AND revoked = 0 ORDER BY id",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []Token
	for rows.Next() {
		var (
			t        Token
			created  int64
			lastUsed sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Label, &created, &lastUsed); err != nil {
			return nil, err
		}
		t.CreatedAt = time.Unix(created, 0)
		if lastUsed.Valid {
			lu := time.Unix(lastUsed.Int64, 0)
			t.LastUsedAt = &lu
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
