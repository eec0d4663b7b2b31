package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hearthhq/hearth/internal/model"
)

type MagicLinkStore struct {
	db *sql.DB
}

func NewMagicLinkStore(db *sql.DB) *MagicLinkStore {
	return &MagicLinkStore{db: db}
}

func scanMagicLink(scanner interface{ Scan(...any) error }) (*model.MagicLink, error) {
	var ml model.MagicLink
	var familyID sql.NullInt64
	var usedAt sql.NullTime

	err := scanner.Scan(&ml.ID, &ml.Token, &ml.Email, &ml.Purpose, &familyID, &ml.ExpiresAt, &usedAt, &ml.CreatedAt)
	if err != nil {
		return nil, err
	}

	if familyID.Valid {
		ml.FamilyID = &familyID.Int64
	}
	if usedAt.Valid {
		ml.UsedAt = &usedAt.Time
	}
	return &ml, nil
}

const magicLinkCols = `id, token, email, purpose, family_id, expires_at, used_at, created_at`

// Create issues a single-use login token with a 15-minute expiry. Previous
// pending tokens for the same email are invalidated first.
func (s *MagicLinkStore) Create(email, purpose string, familyID *int64) (*model.MagicLink, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	_, err := s.db.Exec(
		`UPDATE magic_links SET used_at = datetime('now') WHERE email = ? AND used_at IS NULL AND expires_at > datetime('now')`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("invalidate previous links: %w", err)
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().UTC().Add(15 * time.Minute)

	var fID sql.NullInt64
	if familyID != nil {
		fID = sql.NullInt64{Int64: *familyID, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO magic_links (token, email, purpose, family_id, expires_at) VALUES (?, ?, ?, ?, ?)`,
		token, email, purpose, fID, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert magic link: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+magicLinkCols+` FROM magic_links WHERE id = ?`, id)
	return scanMagicLink(row)
}

// Consume marks an unused, unexpired token as used and returns it; nil if the
// token is invalid.
func (s *MagicLinkStore) Consume(token string) (*model.MagicLink, error) {
	row := s.db.QueryRow(
		`SELECT `+magicLinkCols+` FROM magic_links WHERE token = ? AND used_at IS NULL AND expires_at > datetime('now')`,
		token,
	)
	ml, err := scanMagicLink(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get magic link: %w", err)
	}

	_, err = s.db.Exec(`UPDATE magic_links SET used_at = datetime('now') WHERE id = ?`, ml.ID)
	if err != nil {
		return nil, fmt.Errorf("consume magic link: %w", err)
	}
	return ml, nil
}

// DeleteExpired removes stale links; called periodically from main.
func (s *MagicLinkStore) DeleteExpired() error {
	_, err := s.db.Exec(`DELETE FROM magic_links WHERE expires_at <= datetime('now')`)
	if err != nil {
		return fmt.Errorf("delete expired magic links: %w", err)
	}
	return nil
}
