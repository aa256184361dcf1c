package sqlite

import (
	"context"

	"github.com/polarisid/polaris/internal/idp/domain"
)

type credentialsRepo struct {
	db dbtx
}

const credentialColumns = `id, user_id, method, secret,
	allow_single_factor, allow_two_factor, allow_password_reset, created_at, updated_at`

func scanCredential(row interface{ Scan(...any) error }) (domain.Credential, error) {
	var c domain.Credential
	err := row.Scan(
		&c.ID, &c.UserID, &c.Method, &c.Secret,
		&c.AllowSingleFactor, &c.AllowTwoFactor, &c.AllowPasswordReset,
		&c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (r *credentialsRepo) GetCredentialByID(ctx context.Context, id string) (domain.Credential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE id = ?`, id)
	c, err := scanCredential(row)
	if err != nil {
		return domain.Credential{}, mapNotFound(err)
	}
	return c, nil
}

func (r *credentialsRepo) ListCredentialsByUser(ctx context.Context, userID string) ([]domain.Credential, error) {
	return r.list(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE user_id = ? ORDER BY created_at`,
		userID)
}

func (r *credentialsRepo) ListCredentialsByMethod(ctx context.Context, method domain.Method) ([]domain.Credential, error) {
	return r.list(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE method = ? ORDER BY created_at`,
		string(method))
}

func (r *credentialsRepo) list(ctx context.Context, query string, args ...any) ([]domain.Credential, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []domain.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

func (r *credentialsRepo) CreateCredential(ctx context.Context, c domain.Credential) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO credentials
		 (id, user_id, method, secret, allow_single_factor, allow_two_factor, allow_password_reset)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, string(c.Method), c.Secret,
		c.AllowSingleFactor, c.AllowTwoFactor, c.AllowPasswordReset)
	return err
}

func (r *credentialsRepo) UpdateCredentialFlags(ctx context.Context, id string, singleFactor, twoFactor, passwordReset bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE credentials
		 SET allow_single_factor = ?, allow_two_factor = ?, allow_password_reset = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		singleFactor, twoFactor, passwordReset, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *credentialsRepo) DeleteCredential(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}
