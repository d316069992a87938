package domain

import (
	"context"
	"time"
)

type User struct {
	ID        int
	Email     string
	Username  string
	Language  string
	Credits   int
	Activated bool
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int
}

type UserRepository interface {
	GetById(ctx context.Context, id int) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}
