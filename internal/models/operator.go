package models

import "time"

// Operator is a console account. Only signed-in operators may emit actions.
type Operator struct {
	ID           int        `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	LastSignInAt *time.Time `json:"lastSignInAt,omitempty"`
}

// Credentials is the sign-up/sign-in payload.
type Credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}
