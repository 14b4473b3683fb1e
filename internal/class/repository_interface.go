package class

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, name string, instructorID int, startsAt, endsAt time.Time, capacity int) (*Class, error)
	GetByID(ctx context.Context, id int) (*Class, error)
	ListUpcoming(ctx context.Context) ([]Class, error)
	ListByInstructor(ctx context.Context, instructorID int, onlyFuture bool) ([]Class, error)
	ListWithAvailability(ctx context.Context, onlyFuture bool) ([]ClassWithAvailability, error)
}
