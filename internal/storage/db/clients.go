package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type CreateClientParams struct {
	ServiceID    pgtype.UUID
	ClientID     string
	SecretHash   pgtype.Text
	Confidential bool
}

func (q *Queries) CreateClient(ctx context.Context, arg CreateClientParams) (Client, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO clients (service_id, client_id, secret_hash, confidential)
VALUES ($1, $2, $3, $4)
RETURNING id, service_id, client_id, secret_hash, confidential, created_at, updated_at`,
		arg.ServiceID, arg.ClientID, arg.SecretHash, arg.Confidential)
	var c Client
	err := row.Scan(&c.ID, &c.ServiceID, &c.ClientID, &c.SecretHash, &c.Confidential, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (q *Queries) GetClientByClientID(ctx context.Context, clientID string) (Client, error) {
	row := q.db.QueryRow(ctx, `
SELECT id, service_id, client_id, secret_hash, confidential, created_at, updated_at
FROM clients WHERE client_id = $1`, clientID)
	var c Client
	err := row.Scan(&c.ID, &c.ServiceID, &c.ClientID, &c.SecretHash, &c.Confidential, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (q *Queries) ListClientsByService(ctx context.Context, serviceID pgtype.UUID) ([]Client, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, service_id, client_id, secret_hash, confidential, created_at, updated_at
FROM clients WHERE service_id = $1 ORDER BY created_at ASC`, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.ServiceID, &c.ClientID, &c.SecretHash, &c.Confidential, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) RegenerateClientSecret(ctx context.Context, id pgtype.UUID, secretHash string) error {
	_, err := q.db.Exec(ctx, `
UPDATE clients SET secret_hash = $2, updated_at = now() WHERE id = $1`, id, secretHash)
	return err
}
