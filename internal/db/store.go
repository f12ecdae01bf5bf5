package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/vaughan-dsouza/ledger/internal/apperr"
	"github.com/vaughan-dsouza/ledger/internal/models"
)

// Store is the relational repository for users, movements and refresh tokens.
// Queries are written with ? placeholders and rebound for the driver.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a unique constraint failure on
// either supported driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Missing(what)
	}
	return err
}

// ---------------------- USERS ----------------------

const userColumns = `u.id, u.name, u.email, u.password_hash, u.role, u.email_verified, u.created_at, u.updated_at`

// CreateUser inserts u, assigning its id and timestamps.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = s.now()
	u.UpdatedAt = u.CreatedAt

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO users (id, name, email, password_hash, role, email_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), u.ID, u.Name, u.Email, u.Password, u.Role, u.EmailVerified, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return apperr.New(apperr.Conflict, "email already in use")
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) UserByID(ctx context.Context, id string) (models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, s.db.Rebind(`SELECT `+userColumns+` FROM users u WHERE u.id = ?`), id)
	if err != nil {
		return models.User{}, notFound(err, "user")
	}
	return normalizeUser(u), nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, s.db.Rebind(`SELECT `+userColumns+` FROM users u WHERE u.email = ?`),
		strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return models.User{}, notFound(err, "user")
	}
	return normalizeUser(u), nil
}

// EmailTaken reports whether a user other than exceptID owns email.
func (s *Store) EmailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	query := `SELECT COUNT(*) FROM users WHERE email = ?`
	args := []any{strings.ToLower(strings.TrimSpace(email))}
	if exceptID != "" {
		query += ` AND id <> ?`
		args = append(args, exceptID)
	}

	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(query), args...); err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return n > 0, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListUsers returns one page of users with their movement counts, newest
// first, and the total number of users matching search.
func (s *Store) ListUsers(ctx context.Context, search string, offset, limit int) ([]models.UserListItem, int, error) {
	where := ""
	var args []any
	if search = strings.ToLower(strings.TrimSpace(search)); search != "" {
		where = ` WHERE LOWER(u.name) LIKE ? ESCAPE '\' OR LOWER(u.email) LIKE ? ESCAPE '\'`
		pattern := "%" + likeEscaper.Replace(search) + "%"
		args = append(args, pattern, pattern)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, s.db.Rebind(`SELECT COUNT(*) FROM users u`+where), args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := `SELECT ` + userColumns + `, COUNT(m.id) AS movement_count
		FROM users u
		LEFT JOIN movements m ON m.user_id = u.id` + where + `
		GROUP BY u.id
		ORDER BY u.created_at DESC, u.id
		LIMIT ? OFFSET ?`

	users := []models.UserListItem{}
	if err := s.db.SelectContext(ctx, &users, s.db.Rebind(query), append(args, limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	for i := range users {
		users[i].User = normalizeUser(users[i].User)
	}
	return users, total, nil
}

// UpdateUser applies the non-nil fields of upd and returns the stored row.
func (s *Store) UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (models.User, error) {
	if upd.Empty() {
		return s.UserByID(ctx, id)
	}

	var (
		sets []string
		args []any
	)
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, strings.TrimSpace(*upd.Name))
	}
	if upd.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(*upd.Email)))
	}
	if upd.Role != nil {
		sets = append(sets, "role = ?")
		args = append(args, *upd.Role)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, s.now(), id)

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`), args...)
	if isUniqueViolation(err) {
		return models.User{}, apperr.New(apperr.Conflict, "email already in use")
	}
	if err != nil {
		return models.User{}, fmt.Errorf("update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.User{}, apperr.Missing("user")
	}

	return s.UserByID(ctx, id)
}

func normalizeUser(u models.User) models.User {
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u
}

// ---------------------- MOVEMENTS ----------------------

// CreateMovement inserts m, assigning its id and creation time.
func (s *Store) CreateMovement(ctx context.Context, m *models.Movement) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = s.now()
	m.Date = m.Date.UTC()

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO movements (id, user_id, amount, description, type, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), m.ID, m.UserID, m.Amount, m.Description, m.Type, m.Date, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

// movementWhere builds the shared WHERE clause of movement reads.
func movementWhere(f models.MovementFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if len(f.UserIDs) > 0 {
		conds = append(conds, "m.user_id IN (?)")
		args = append(args, f.UserIDs)
	}
	if f.Type != "" {
		conds = append(conds, "m.type = ?")
		args = append(args, string(f.Type))
	}
	if f.Since != nil {
		conds = append(conds, "m.date >= ?")
		args = append(args, f.Since.UTC())
	}
	if f.Until != nil {
		conds = append(conds, "m.date <= ?")
		args = append(args, f.Until.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Movements returns the movements matching f joined with their owner.
func (s *Store) Movements(ctx context.Context, f models.MovementFilter) ([]models.Movement, error) {
	where, args := movementWhere(f)

	order := " ORDER BY m.date ASC, m.created_at ASC"
	if f.Newest {
		order = " ORDER BY m.date DESC, m.created_at DESC"
	}

	query := `SELECT m.id, m.user_id, m.amount, m.description, m.type, m.date, m.created_at,
			u.name AS owner_name, u.email AS owner_email
		FROM movements m
		JOIN users u ON u.id = m.user_id` + where + order
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("build movement query: %w", err)
	}

	movs := []models.Movement{}
	if err := s.db.SelectContext(ctx, &movs, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	for i := range movs {
		movs[i].Date = movs[i].Date.UTC()
		movs[i].CreatedAt = movs[i].CreatedAt.UTC()
	}
	return movs, nil
}

// CountMovements counts the movements matching f, ignoring paging.
func (s *Store) CountMovements(ctx context.Context, f models.MovementFilter) (int, error) {
	where, args := movementWhere(f)

	query, args, err := sqlx.In(`SELECT COUNT(*) FROM movements m`+where, args...)
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("count movements: %w", err)
	}
	return n, nil
}

// ---------------------- REFRESH TOKENS ----------------------

func (s *Store) SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO refresh_tokens (user_id, token, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`), userID, token, expiresAt.UTC(), s.now())
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// RotateRefreshToken atomically swaps a live refresh token for a new one.
// A token that is unknown, expired or already used is rejected.
func (s *Store) RotateRefreshToken(ctx context.Context, userID, oldToken, newToken string, expiresAt time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, tx.Rebind(`
		DELETE FROM refresh_tokens WHERE token = ? AND user_id = ? AND expires_at > ?
	`), oldToken, userID, s.now())
	if err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return apperr.Unauthorized("refresh token expired or invalid")
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO refresh_tokens (user_id, token, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`), userID, newToken, expiresAt.UTC(), s.now())
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return tx.Commit()
}

func (s *Store) DeleteRefreshToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM refresh_tokens WHERE token = ?`), token)
	if err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}
