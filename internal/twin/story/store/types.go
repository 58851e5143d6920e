package store

import "time"

// User is an account allowed to log in to the twin.
type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash,omitempty"`
	Password     string    `json:"password,omitempty"` // plaintext accepted in seed files only; hashed on load
	CreatedAt    time.Time `json:"created_at"`
}

// Story is a stored story spoiler.
type Story struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
