package class

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

const (
	createClassQuery  = "INSERT INTO classes (name, instructor_id, starts_at, ends_at, capacity) VALUES ($1, $2, $3, $4, $5) RETURNING id, name, instructor_id, starts_at, ends_at, capacity, created_at"
	getClassQuery     = "SELECT id, name, instructor_id, starts_at, ends_at, capacity, created_at FROM classes WHERE id = $1"
	availabilityQuery = "SELECT c.id, c.name, c.instructor_id, c.starts_at, c.ends_at, c.capacity, c.created_at, COUNT(b.id) FILTER (WHERE b.status IN ('confirmed', 'attended')) AS enrolled_count FROM classes c LEFT JOIN bookings b ON b.class_id = c.id WHERE c.starts_at > NOW() GROUP BY c.id ORDER BY c.starts_at ASC"
)

func setupMock(t *testing.T) (Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB)

	closer := func() {
		sqlxDB.Close()
	}

	return repo, mock, closer
}

func classColumns() []string {
	return []string{"id", "name", "instructor_id", "starts_at", "ends_at", "capacity", "created_at"}
}

func classRow(id int, name string, instructorID, capacity int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(classColumns()).
		AddRow(id, name, instructorID, now.Add(24*time.Hour), now.Add(25*time.Hour), capacity, now)
}

func TestCreateClass(t *testing.T) {
	repo, mock, close := setupMock(t)
	defer close()

	starts := time.Now().Add(24 * time.Hour)
	ends := starts.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(createClassQuery)).
		WithArgs("Reformer Flow", 2, starts, ends, 12).
		WillReturnRows(classRow(1, "Reformer Flow", 2, 12))

	class, err := repo.Create(context.Background(), "Reformer Flow", 2, starts, ends, 12)

	require.NoError(t, err)
	require.Equal(t, "Reformer Flow", class.Name)
	require.Equal(t, 12, class.Capacity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDMissing(t *testing.T) {
	repo, mock, close := setupMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta(getClassQuery)).
		WithArgs(404).
		WillReturnRows(sqlmock.NewRows(classColumns()))

	_, err := repo.GetByID(context.Background(), 404)

	require.ErrorIs(t, err, ErrClassNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListWithAvailability(t *testing.T) {
	repo, mock, close := setupMock(t)
	defer close()

	now := time.Now()
	rows := sqlmock.NewRows(append(classColumns(), "enrolled_count")).
		AddRow(1, "Reformer Flow", 2, now.Add(24*time.Hour), now.Add(25*time.Hour), 10, now, 4).
		AddRow(2, "Mat Basics", 2, now.Add(48*time.Hour), now.Add(49*time.Hour), 8, now, 8)

	mock.ExpectQuery(regexp.QuoteMeta(availabilityQuery)).WillReturnRows(rows)

	classes, err := repo.ListWithAvailability(context.Background(), true)

	require.NoError(t, err)
	require.Len(t, classes, 2)

	require.Equal(t, 6, classes[0].Available)
	require.False(t, classes[0].IsFull)

	require.Equal(t, 0, classes[1].Available)
	require.True(t, classes[1].IsFull)

	require.NoError(t, mock.ExpectationsWereMet())
}
