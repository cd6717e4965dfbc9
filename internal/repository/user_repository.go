package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/airline-checkin/internal/database"
	"github.com/iliyamo/airline-checkin/internal/model"
	"github.com/iliyamo/airline-checkin/internal/utils"
)

// ErrEmailExists is returned by Create for a duplicate email.
var ErrEmailExists = errors.New("email already exists")

// ErrStaffNotFound is returned when no staff account matches.
var ErrStaffNotFound = errors.New("staff not found")

// StaffRepo persists staff accounts.
type StaffRepo struct{ DB *sql.DB }

func NewStaffRepo(db *sql.DB) *StaffRepo { return &StaffRepo{DB: db} }

const staffColumns = `id, email, display_name, password_hash, role, is_active, created_at, updated_at`

func scanStaff(rs rowScanner) (model.Staff, error) {
	var s model.Staff
	err := rs.Scan(&s.ID, &s.Email, &s.DisplayName, &s.PasswordHash, &s.Role, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Staff{}, ErrStaffNotFound
	}
	return s, err
}

// Create inserts a staff account and returns its ID.
func (r *StaffRepo) Create(ctx context.Context, email, displayName, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO staff_users (email, display_name, password_hash, role) VALUES (?,?,?,?)",
		email, strings.TrimSpace(displayName), hash, role)
	if err != nil {
		if database.IsDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a staff account by normalized email.
func (r *StaffRepo) GetByEmail(ctx context.Context, email string) (model.Staff, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanStaff(r.DB.QueryRowContext(ctx,
		"SELECT "+staffColumns+" FROM staff_users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a staff account by id.
func (r *StaffRepo) GetByID(ctx context.Context, id uint64) (model.Staff, error) {
	return scanStaff(r.DB.QueryRowContext(ctx,
		"SELECT "+staffColumns+" FROM staff_users WHERE id=? LIMIT 1", id))
}
