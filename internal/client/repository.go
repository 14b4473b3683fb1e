package client

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var ErrClientNotFound = errors.New("client not found")

type Repository interface {
	Create(ctx context.Context, userID *int, name, email, phone, notes string) (*Client, error)
	GetByID(ctx context.Context, id int) (*Client, error)
	FindByUserID(ctx context.Context, userID int) (*Client, error)
	List(ctx context.Context) ([]Client, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, userID *int, name, email, phone, notes string) (*Client, error) {
	query := `
		INSERT INTO clients (user_id, name, email, phone, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, name, email, phone, notes, created_at
	`

	var client Client
	err := r.db.GetContext(ctx, &client, query, userID, name, email, phone, notes)
	if err != nil {
		return nil, err
	}

	return &client, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*Client, error) {
	query := `
		SELECT id, user_id, name, email, phone, notes, created_at
		FROM clients
		WHERE id = $1
	`

	var client Client
	err := r.db.GetContext(ctx, &client, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	return &client, nil
}

func (r *repository) FindByUserID(ctx context.Context, userID int) (*Client, error) {
	query := `
		SELECT id, user_id, name, email, phone, notes, created_at
		FROM clients
		WHERE user_id = $1
	`

	var client Client
	err := r.db.GetContext(ctx, &client, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	return &client, nil
}

func (r *repository) List(ctx context.Context) ([]Client, error) {
	query := `
		SELECT id, user_id, name, email, phone, notes, created_at
		FROM clients
		ORDER BY name ASC
	`

	var clients []Client
	err := r.db.SelectContext(ctx, &clients, query)
	if err != nil {
		return nil, err
	}

	return clients, nil
}
