package sqlite

import (
	"context"
	"encoding/json"
	"time"

	"github.com/polarisid/polaris/internal/idp/domain"
)

type tokensRepo struct {
	db dbtx
}

func scanToken(row interface{ Scan(...any) error }) (domain.Token, error) {
	var (
		t  domain.Token
		md string
	)
	err := row.Scan(&t.ID, &t.TokenHash, &t.Type, &t.AuthorizationID, &md, &t.IssuedAt)
	if err != nil {
		return domain.Token{}, err
	}
	if err := json.Unmarshal([]byte(md), &t.Metadata); err != nil {
		return domain.Token{}, err
	}
	return t, nil
}

func (r *tokensRepo) GetTokenByHash(ctx context.Context, tokenHash string) (domain.Token, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, token_hash, type, authorization_id, metadata, issued_at
		 FROM tokens WHERE token_hash = ?`, tokenHash)
	t, err := scanToken(row)
	if err != nil {
		return domain.Token{}, mapNotFound(err)
	}
	return t, nil
}

func (r *tokensRepo) CreateToken(ctx context.Context, t domain.Token) error {
	md, err := marshalJSON(t.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO tokens (id, token_hash, type, authorization_id, metadata, issued_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.TokenHash, string(t.Type), t.AuthorizationID, md, t.IssuedAt)
	return err
}

func (r *tokensRepo) DeleteToken(ctx context.Context, tokenHash string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tokens WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *tokensRepo) ListTokensByTypeIssuedAfter(ctx context.Context, typ domain.TokenType, after time.Time) ([]domain.Token, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, token_hash, type, authorization_id, metadata, issued_at
		 FROM tokens WHERE type = ? AND issued_at > ?
		 ORDER BY issued_at`,
		string(typ), after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (r *tokensRepo) UpdateTokenMetadata(ctx context.Context, id string, md domain.TokenMetadata) error {
	payload, err := marshalJSON(md)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE tokens SET metadata = ? WHERE id = ?`, payload, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}
