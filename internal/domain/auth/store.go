package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUserNotFound = errors.New("user not found")

type AuthUser struct {
	ID           string
	Email        string
	PasswordHash string
	RoleName     string
	EmployeeID   string
}

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (AuthUser, error) {
	var u AuthUser
	err := s.DB.QueryRow(ctx, `
    SELECT u.id, u.email, u.password_hash, u.role_name,
           COALESCE(e.id::text, '')
    FROM users u
    LEFT JOIN employees e ON e.user_id = u.id
    WHERE u.email = $1 AND u.active
  `, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.RoleName, &u.EmployeeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return AuthUser{}, ErrUserNotFound
	}
	if err != nil {
		return AuthUser{}, err
	}
	return u, nil
}
