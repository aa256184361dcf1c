package sqlite

import (
	"context"
	"database/sql"

	"github.com/polarisid/polaris/internal/idp/domain"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, username, name, email, phone, profile_url, groups,
	use_two_factor, last_authenticated_at, last_signed_in_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var (
		u      domain.User
		groups string
		lastAu sql.NullTime
		lastSi sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Username, &u.Name, &u.Email, &u.Phone, &u.ProfileURL, &groups,
		&u.UseTwoFactor, &lastAu, &lastSi, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.Groups = splitList(groups)
	u.LastAuthenticatedAt = mapNullTimePtr(lastAu)
	u.LastSignedInAt = mapNullTimePtr(lastSi)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) FindUsersByIdentifier(ctx context.Context, identifier string) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE username = ? OR (email = ? AND email <> '') OR (phone = ? AND phone <> '')
		 ORDER BY created_at`,
		identifier, identifier, identifier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, name, email, phone, profile_url, groups, use_two_factor)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Name, u.Email, u.Phone, u.ProfileURL,
		joinList(u.Groups), u.UseTwoFactor)
	return err
}

func (r *usersRepo) SetUseTwoFactor(ctx context.Context, userID string, enabled bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET use_two_factor = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		enabled, userID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *usersRepo) TouchLastAuthenticated(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_authenticated_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`, userID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *usersRepo) TouchLastSignedIn(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_signed_in_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`, userID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}
