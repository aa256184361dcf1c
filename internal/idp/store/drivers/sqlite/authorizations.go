package sqlite

import (
	"context"
	"database/sql"

	"github.com/polarisid/polaris/internal/idp/domain"
)

type authorizationsRepo struct {
	db dbtx
}

func scanAuthorization(row interface{ Scan(...any) error }) (domain.Authorization, error) {
	var (
		a      domain.Authorization
		userID sql.NullString
		perms  string
	)
	err := row.Scan(&a.ID, &userID, &a.ClientID, &perms, &a.CreatedAt)
	if err != nil {
		return domain.Authorization{}, err
	}
	a.UserID = userID.String
	a.Permissions = splitList(perms)
	return a, nil
}

func (r *authorizationsRepo) GetAuthorizationByID(ctx context.Context, id string) (domain.Authorization, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, client_id, permissions, created_at
		 FROM authorizations WHERE id = ?`, id)
	a, err := scanAuthorization(row)
	if err != nil {
		return domain.Authorization{}, mapNotFound(err)
	}
	return a, nil
}

func (r *authorizationsRepo) ListAuthorizationsByUserAndClient(ctx context.Context, userID, clientID string) ([]domain.Authorization, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, client_id, permissions, created_at
		 FROM authorizations
		 WHERE user_id = ? AND client_id = ?
		 ORDER BY created_at`,
		userID, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auths []domain.Authorization
	for rows.Next() {
		a, err := scanAuthorization(rows)
		if err != nil {
			return nil, err
		}
		auths = append(auths, a)
	}
	return auths, rows.Err()
}

func (r *authorizationsRepo) CreateAuthorization(ctx context.Context, a domain.Authorization) error {
	// Pending device-flow authorizations have no user yet. NULL keeps the
	// foreign key satisfied until AttachUser binds one.
	userID := sql.NullString{String: a.UserID, Valid: a.UserID != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO authorizations (id, user_id, client_id, permissions)
		 VALUES (?, ?, ?, ?)`,
		a.ID, userID, a.ClientID, joinList(a.Permissions))
	return err
}

func (r *authorizationsRepo) AttachUser(ctx context.Context, authorizationID, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE authorizations SET user_id = ? WHERE id = ?`,
		userID, authorizationID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}
