package class

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

var ErrClassNotFound = errors.New("class not found")

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, name string, instructorID int, startsAt, endsAt time.Time, capacity int) (*Class, error) {
	query := `
		INSERT INTO classes (name, instructor_id, starts_at, ends_at, capacity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, instructor_id, starts_at, ends_at, capacity, created_at
	`

	var class Class
	err := r.db.GetContext(ctx, &class, query, name, instructorID, startsAt, endsAt, capacity)
	if err != nil {
		return nil, err
	}

	return &class, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*Class, error) {
	query := `
		SELECT id, name, instructor_id, starts_at, ends_at, capacity, created_at
		FROM classes
		WHERE id = $1
	`

	var class Class
	err := r.db.GetContext(ctx, &class, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}

	return &class, nil
}

func (r *repository) ListUpcoming(ctx context.Context) ([]Class, error) {
	query := `
		SELECT id, name, instructor_id, starts_at, ends_at, capacity, created_at
		FROM classes
		WHERE starts_at > NOW()
		ORDER BY starts_at ASC
	`

	var classes []Class
	err := r.db.SelectContext(ctx, &classes, query)
	if err != nil {
		return nil, err
	}

	return classes, nil
}

func (r *repository) ListByInstructor(ctx context.Context, instructorID int, onlyFuture bool) ([]Class, error) {
	query := `
		SELECT id, name, instructor_id, starts_at, ends_at, capacity, created_at
		FROM classes
		WHERE instructor_id = $1
	`

	if onlyFuture {
		query += " AND starts_at > NOW()"
	}

	query += " ORDER BY starts_at ASC"

	var classes []Class
	err := r.db.SelectContext(ctx, &classes, query, instructorID)
	if err != nil {
		return nil, err
	}

	return classes, nil
}

func (r *repository) ListWithAvailability(ctx context.Context, onlyFuture bool) ([]ClassWithAvailability, error) {
	query := `
		SELECT
			c.id, c.name, c.instructor_id, c.starts_at, c.ends_at, c.capacity, c.created_at,
			COUNT(b.id) FILTER (WHERE b.status IN ('confirmed', 'attended')) AS enrolled_count
		FROM classes c
		LEFT JOIN bookings b ON b.class_id = c.id
	`

	if onlyFuture {
		query += " WHERE c.starts_at > NOW()"
	}

	query += `
		GROUP BY c.id
		ORDER BY c.starts_at ASC
	`

	var classes []ClassWithAvailability
	err := r.db.SelectContext(ctx, &classes, query)
	if err != nil {
		return nil, err
	}

	for i := range classes {
		classes[i].Available = classes[i].Capacity - classes[i].EnrolledCount
		classes[i].IsFull = classes[i].Available <= 0
	}

	return classes, nil
}
