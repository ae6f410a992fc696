package users

import (
	"time"

	"jobboard-backend/internal/shared/auth"
	"jobboard-backend/internal/shared/storage/repo"
)

type User struct {
	repo.Base
	Email      string
	Password   string
	IsActive   bool
	IsAdmin    bool
	IsVerified bool
	Coin       int
}

// Output is the public view of a user; the password hash never leaves the service.
type Output struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	Coin      int       `json:"coin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u User) Output() Output {
	return Output{
		ID:        u.ID,
		Email:     u.Email,
		IsActive:  u.IsActive,
		Coin:      u.Coin,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (u User) Principal() auth.Principal {
	return auth.Principal{
		ID:         u.ID,
		Email:      u.Email,
		IsActive:   u.IsActive,
		IsAdmin:    u.IsAdmin,
		IsVerified: u.IsVerified,
	}
}

// Token purposes.
const (
	PurposeVerify = "verify"
	PurposeReset  = "reset"
)

// RecoveryToken is a one-time token mailed for email verification or password recovery.
type RecoveryToken struct {
	repo.Base
	UserID  string
	Token   string
	Purpose string
	IsUsed  bool
}

var Table = repo.Table[User]{
	Name:    "users",
	Columns: []string{"email", "password", "is_active", "is_admin", "is_verified", "coin"},
	Fields: func(u *User) []any {
		return []any{&u.Email, &u.Password, &u.IsActive, &u.IsAdmin, &u.IsVerified, &u.Coin}
	},
	Meta:   func(u *User) *repo.Base { return &u.Base },
	Unique: [][]string{{"email"}},
}

var TokenTable = repo.Table[RecoveryToken]{
	Name:    "recovery_tokens",
	Columns: []string{"user_id", "token", "purpose", "is_used"},
	Fields: func(t *RecoveryToken) []any {
		return []any{&t.UserID, &t.Token, &t.Purpose, &t.IsUsed}
	},
	Meta:   func(t *RecoveryToken) *repo.Base { return &t.Base },
	Unique: [][]string{{"token"}},
}
