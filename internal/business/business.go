// Package business holds the seller's legal and contact details printed
// on generated documents. One row, id fixed to 1.
package business

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agfood/agfood/internal/shared"
)

// Info is the singleton business record.
type Info struct {
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	TaxID     string    `json:"tax_id,omitempty"`
	Footer    string    `json:"footer,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Get returns the stored record, or an empty Info when none was saved yet.
func (s *Service) Get(ctx context.Context) (Info, error) {
	var info Info
	err := s.pool.QueryRow(ctx,
		`SELECT name, COALESCE(address, ''), COALESCE(phone, ''), COALESCE(email, ''), COALESCE(tax_id, ''), COALESCE(footer, ''), updated_at
		 FROM business_info WHERE id = 1`).
		Scan(&info.Name, &info.Address, &info.Phone, &info.Email, &info.TaxID, &info.Footer, &info.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Info{}, nil
		}
		return Info{}, err
	}
	return info, nil
}

// Upsert writes the singleton row.
func (s *Service) Upsert(ctx context.Context, info Info) error {
	if strings.TrimSpace(info.Name) == "" {
		return fmt.Errorf("business: name is required: %w", shared.ErrValidation)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO business_info (id, name, address, phone, email, tax_id, footer, updated_at)
		 VALUES (1, $1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name, address = EXCLUDED.address, phone = EXCLUDED.phone,
		   email = EXCLUDED.email, tax_id = EXCLUDED.tax_id, footer = EXCLUDED.footer, updated_at = NOW()`,
		info.Name, info.Address, info.Phone, info.Email, info.TaxID, info.Footer)
	return err
}
