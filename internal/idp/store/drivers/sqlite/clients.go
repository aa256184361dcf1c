package sqlite

import (
	"context"

	"github.com/polarisid/polaris/internal/idp/domain"
)

type clientsRepo struct {
	db dbtx
}

func (r *clientsRepo) GetClientByID(ctx context.Context, id string) (domain.Client, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, secret_hashes, redirect_uris, acl_id, owner_ids, created_at, updated_at
		 FROM clients WHERE id = ?`, id)

	var (
		c       domain.Client
		secrets string
		uris    string
		owners  string
	)
	err := row.Scan(&c.ID, &c.Name, &secrets, &uris, &c.ACLID, &owners, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.Client{}, mapNotFound(err)
	}
	c.SecretHashes = splitList(secrets)
	c.RedirectURIs = splitList(uris)
	c.OwnerIDs = splitList(owners)
	return c, nil
}

func (r *clientsRepo) CreateClient(ctx context.Context, c domain.Client) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO clients (id, name, secret_hashes, redirect_uris, acl_id, owner_ids)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, joinList(c.SecretHashes), joinList(c.RedirectURIs),
		c.ACLID, joinList(c.OwnerIDs))
	return err
}

func (r *clientsRepo) UpdateClientRedirectURIs(ctx context.Context, clientID string, uris []string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE clients SET redirect_uris = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		joinList(uris), clientID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}
