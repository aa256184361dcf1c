package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/polarisid/polaris/internal/idp/domain"
)

type sessionsRepo struct {
	db dbtx
}

func (r *sessionsRepo) GetSessionByTokenHash(ctx context.Context, tokenHash string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, token_hash, user_ids, extended_auth, expires_at, created_at, updated_at
		 FROM sessions WHERE token_hash = ?`, tokenHash)

	var (
		s       domain.Session
		userIDs string
		ext     sql.NullString
	)
	err := row.Scan(&s.ID, &s.TokenHash, &userIDs, &ext, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	s.UserIDs = splitList(userIDs)
	if ext.Valid && ext.String != "" {
		var ea domain.ExtendedAuth
		if err := json.Unmarshal([]byte(ext.String), &ea); err != nil {
			return domain.Session{}, err
		}
		s.ExtendedAuth = &ea
	}
	return s, nil
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	ext, err := marshalExtendedAuth(s.ExtendedAuth)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, token_hash, user_ids, extended_auth, expires_at)
		 VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.TokenHash, joinList(s.UserIDs), ext, s.ExpiresAt)
	return err
}

func (r *sessionsRepo) UpdateSession(ctx context.Context, s domain.Session) error {
	ext, err := marshalExtendedAuth(s.ExtendedAuth)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions
		 SET user_ids = ?, extended_auth = ?, expires_at = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		joinList(s.UserIDs), ext, s.ExpiresAt, s.ID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now)
	return err
}

func marshalExtendedAuth(ea *domain.ExtendedAuth) (sql.NullString, error) {
	if ea == nil {
		return sql.NullString{}, nil
	}
	s, err := marshalJSON(ea)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: s, Valid: true}, nil
}
