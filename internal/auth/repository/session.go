// Package repository persists login sessions.
package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/almoxsms/almox-backend/pkg/database"
	"github.com/almoxsms/almox-backend/pkg/errors"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Session represents a user session. Only a hash of the refresh token is
// stored.
type Session struct {
	ID               string     `db:"id"`
	UsuarioID        string     `db:"usuario_id"`
	RefreshTokenHash string     `db:"refresh_token_hash"`
	UserAgent        string     `db:"user_agent"`
	IPAddress        string     `db:"ip_address"`
	ExpiresAt        time.Time  `db:"expires_at"`
	RevokedAt        *time.Time `db:"revoked_at"`
	CreatedAt        time.Time  `db:"created_at"`
}

// SessionRepository handles session persistence
type SessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a session for refreshToken
func (r *SessionRepository) Create(ctx context.Context, s *Session, refreshToken string) error {
	s.RefreshTokenHash = HashToken(refreshToken)
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}

	query := psql.Insert("sessions").SetMap(map[string]any{
		"id":                 s.ID,
		"usuario_id":         s.UsuarioID,
		"refresh_token_hash": s.RefreshTokenHash,
		"user_agent":         s.UserAgent,
		"ip_address":         s.IPAddress,
		"expires_at":         s.ExpiresAt,
		"created_at":         s.CreatedAt,
	})
	_, err := r.exec(ctx, query)
	return err
}

// GetByRefreshToken gets a live session by refresh token
func (r *SessionRepository) GetByRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	query := psql.Select("*").From("sessions").Where(sq.And{
		sq.Eq{"refresh_token_hash": HashToken(refreshToken)},
		sq.Eq{"revoked_at": nil},
		sq.Expr("expires_at > NOW()"),
	})
	text, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var s Session
	if err := r.db.Querier(ctx).GetContext(ctx, &s, text, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("sessao")
		}
		return nil, database.Translate(err)
	}
	return &s, nil
}

// Rotate replaces the refresh token of a session
func (r *SessionRepository) Rotate(ctx context.Context, id, refreshToken string, expiresAt time.Time) error {
	n, err := r.exec(ctx, psql.Update("sessions").
		Set("refresh_token_hash", HashToken(refreshToken)).
		Set("expires_at", expiresAt).
		Where(sq.Eq{"id": id, "revoked_at": nil}))
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFound("sessao")
	}
	return nil
}

// RevokeByRefreshToken revokes a session by refresh token
func (r *SessionRepository) RevokeByRefreshToken(ctx context.Context, refreshToken string) error {
	_, err := r.exec(ctx, psql.Update("sessions").
		Set("revoked_at", sq.Expr("NOW()")).
		Where(sq.Eq{"refresh_token_hash": HashToken(refreshToken), "revoked_at": nil}))
	return err
}

// RevokeAllForUser revokes all sessions for a user
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, usuarioID string) error {
	_, err := r.exec(ctx, psql.Update("sessions").
		Set("revoked_at", sq.Expr("NOW()")).
		Where(sq.Eq{"usuario_id": usuarioID, "revoked_at": nil}))
	return err
}

// CleanExpired removes expired and revoked sessions
func (r *SessionRepository) CleanExpired(ctx context.Context) (int64, error) {
	return r.exec(ctx, psql.Delete("sessions").Where(sq.Or{
		sq.Expr("expires_at < NOW()"),
		sq.NotEq{"revoked_at": nil},
	}))
}

func (r *SessionRepository) exec(ctx context.Context, query sq.Sqlizer) (int64, error) {
	text, args, err := query.ToSql()
	if err != nil {
		return 0, err
	}
	res, err := r.db.Querier(ctx).ExecContext(ctx, text, args...)
	if err != nil {
		return 0, database.Translate(err)
	}
	return res.RowsAffected()
}

// HashToken is the stored form of a refresh token.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
