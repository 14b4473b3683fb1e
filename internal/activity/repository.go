package activity

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
)

type Repository interface {
	Insert(ctx context.Context, clientID int, actorID *int, action, description string, metadata types.JSONText) error
	ListByClient(ctx context.Context, clientID, limit, offset int) ([]Entry, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, clientID int, actorID *int, action, description string, metadata types.JSONText) error {
	query := `
		INSERT INTO activity_log (client_id, actor_id, action, description, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, clientID, actorID, action, description, metadata)
	return err
}

func (r *repository) ListByClient(ctx context.Context, clientID, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, client_id, actor_id, action, description, metadata, created_at
		FROM activity_log
		WHERE client_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	var entries []Entry
	err := r.db.SelectContext(ctx, &entries, query, clientID, limit, offset)
	if err != nil {
		return nil, err
	}

	return entries, nil
}
