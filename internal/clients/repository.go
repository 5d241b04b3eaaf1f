package clients

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agfood/agfood/internal/platform/db"
	"github.com/agfood/agfood/internal/shared"
)

type Repository interface {
	List(ctx context.Context, search string) ([]Client, error)
	Get(ctx context.Context, id int64) (Client, error)
	Create(ctx context.Context, client Client) (Client, error)
	Update(ctx context.Context, id int64, client Client) error
	Delete(ctx context.Context, id int64) error
	CountReferences(ctx context.Context, id int64) (invoices, payments int, err error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const columns = `id, name, COALESCE(phone, ''), COALESCE(email, ''), COALESCE(address, ''), COALESCE(city, ''), created_at, updated_at`

func scan(row pgx.Row) (Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.City, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *repository) List(ctx context.Context, search string) ([]Client, error) {
	query := `SELECT ` + columns + ` FROM clients`
	args := []any{}
	if search != "" {
		query += ` WHERE name ILIKE $1 OR phone ILIKE $1 OR email ILIKE $1 OR city ILIKE $1`
		args = append(args, "%"+search+"%")
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Client
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Client, error) {
	c, err := scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM clients WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, shared.ErrNotFound
		}
		return Client{}, err
	}
	return c, nil
}

func (r *repository) Create(ctx context.Context, client Client) (Client, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO clients (name, phone, email, address, city, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id, created_at, updated_at`,
		client.Name, client.Phone, client.Email, client.Address, client.City).
		Scan(&client.ID, &client.CreatedAt, &client.UpdatedAt)
	if err != nil {
		return Client{}, db.MapError(err)
	}
	return client, nil
}

func (r *repository) Update(ctx context.Context, id int64, client Client) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE clients SET name = $1, phone = $2, email = $3, address = $4, city = $5, updated_at = NOW() WHERE id = $6`,
		client.Name, client.Phone, client.Email, client.Address, client.City, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) CountReferences(ctx context.Context, id int64) (invoices, payments int, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM invoices WHERE client_id = $1),
		        (SELECT COUNT(*) FROM client_payments WHERE client_id = $1)`, id).
		Scan(&invoices, &payments)
	return invoices, payments, err
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
