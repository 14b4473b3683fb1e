package class

import "time"

type Class struct {
	ID           int       `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	InstructorID int       `db:"instructor_id" json:"instructor_id"`
	StartsAt     time.Time `db:"starts_at" json:"starts_at"`
	EndsAt       time.Time `db:"ends_at" json:"ends_at"`
	Capacity     int       `db:"capacity" json:"capacity"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ClassWithAvailability carries the derived enrolled count (confirmed plus
// attended bookings) next to the capacity.
type ClassWithAvailability struct {
	Class
	EnrolledCount int  `db:"enrolled_count" json:"enrolled_count"`
	Available     int  `json:"available"`
	IsFull        bool `json:"is_full"`
}

type CreateClassRequest struct {
	Name         string `json:"name" binding:"required"`
	InstructorID int    `json:"instructor_id" binding:"required"`
	StartsAt     string `json:"starts_at" binding:"required"`
	EndsAt       string `json:"ends_at" binding:"required"`
	Capacity     int    `json:"capacity" binding:"required,min=1"`
}
