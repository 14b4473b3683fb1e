package client

import "time"

// Client is a studio customer record. UserID links the record to a login
// account when the client uses self-service booking; walk-ins managed
// entirely by reception have no account.
type Client struct {
	ID        int       `db:"id" json:"id"`
	UserID    *int      `db:"user_id" json:"user_id,omitempty"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	Notes     string    `db:"notes" json:"notes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type CreateClientRequest struct {
	UserID *int   `json:"user_id,omitempty"`
	Name   string `json:"name" binding:"required"`
	Email  string `json:"email" binding:"required,email"`
	Phone  string `json:"phone,omitempty"`
	Notes  string `json:"notes,omitempty"`
}
