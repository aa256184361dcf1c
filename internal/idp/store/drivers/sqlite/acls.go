package sqlite

import (
	"context"
	"encoding/json"

	"github.com/polarisid/polaris/internal/idp/domain"
)

type aclsRepo struct {
	db dbtx
}

func (r *aclsRepo) GetACLByID(ctx context.Context, id string) (domain.ACL, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, rules, created_at, updated_at FROM acls WHERE id = ?`, id)

	var (
		acl   domain.ACL
		rules string
	)
	err := row.Scan(&acl.ID, &rules, &acl.CreatedAt, &acl.UpdatedAt)
	if err != nil {
		return domain.ACL{}, mapNotFound(err)
	}
	if err := json.Unmarshal([]byte(rules), &acl.Rules); err != nil {
		return domain.ACL{}, err
	}
	return acl, nil
}

func (r *aclsRepo) CreateACL(ctx context.Context, acl domain.ACL) error {
	rules, err := marshalJSON(acl.Rules)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO acls (id, rules) VALUES (?, ?)`, acl.ID, rules)
	return err
}

type permissionsRepo struct {
	db dbtx
}

func (r *permissionsRepo) GetPermissionByName(ctx context.Context, name string) (domain.Permission, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT name, created_at FROM permissions WHERE name = ?`, name)

	var p domain.Permission
	if err := row.Scan(&p.Name, &p.CreatedAt); err != nil {
		return domain.Permission{}, mapNotFound(err)
	}
	return p, nil
}

func (r *permissionsRepo) CreatePermission(ctx context.Context, p domain.Permission) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO permissions (name) VALUES (?)`, p.Name)
	return err
}
