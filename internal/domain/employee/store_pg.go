package employee

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGStore struct {
	DB *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{DB: db}
}

const profileColumns = `
    id,
    COALESCE(user_id::text, ''),
    first_name, last_name,
    COALESCE(gender, 'all'),
    COALESCE(department_id::text, ''),
    COALESCE(manager_id::text, ''),
    joined_on,
    active
`

func (s *PGStore) Profile(ctx context.Context, employeeID string) (Profile, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT `+profileColumns+`
    FROM employees
    WHERE id = $1
  `, employeeID)
	return scanProfile(row)
}

func (s *PGStore) ProfileByUserID(ctx context.Context, userID string) (Profile, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT `+profileColumns+`
    FROM employees
    WHERE user_id = $1
  `, userID)
	return scanProfile(row)
}

func (s *PGStore) IsManagerOf(ctx context.Context, managerID, employeeID string) (bool, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM employees
    WHERE id = $1 AND manager_id = $2
  `, employeeID, managerID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *PGStore) ListActive(ctx context.Context) ([]Profile, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+profileColumns+`
    FROM employees
    WHERE active
    ORDER BY last_name, first_name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.UserID, &p.FirstName, &p.LastName, &p.Gender,
		&p.DepartmentID, &p.ManagerID, &p.JoinedOn, &p.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}
