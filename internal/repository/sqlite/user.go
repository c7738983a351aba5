package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/event-rsvp/internal/apperror"
	"github.com/sakif/event-rsvp/internal/model"
)

// userColumns is the SELECT list shared by every query that returns a user.
// scanUser reads the columns in exactly this order.
const userColumns = `id, first_name, last_name, email, phone, google_id, picture, has_rsvpd, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u        model.User
		googleID sql.NullString
	)
	if err := row.Scan(
		&u.ID,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.Phone,
		&googleID,
		&u.Picture,
		&u.HasRSVPd,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if googleID.Valid {
		id := googleID.String
		u.GoogleID = &id
	}
	return &u, nil
}

// nullable turns a nil *string into SQL NULL.
func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// uniqueViolation reports whether err is a UNIQUE constraint failure and, if
// so, which API field caused it. SQLite names the column in the message:
//
//	UNIQUE constraint failed: users.google_id
func uniqueViolation(err error) (string, bool) {
	var sqliteErr *moderncsqlite.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return "", false
	}
	if strings.Contains(sqliteErr.Error(), "google_id") {
		return "googleId", true
	}
	return "email", true
}

// Create inserts a new user, generating its xid and timestamps.
//
// The email and google_id uniqueness rules live in the schema, so a racing
// duplicate is rejected by SQLite itself and comes back as DuplicateKey.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Email,
		user.Phone,
		nullable(user.GoogleID),
		user.Picture,
		user.HasRSVPd,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if field, ok := uniqueViolation(err); ok {
			return apperror.DuplicateKey("user", field)
		}
		return fmt.Errorf("sqlite: creating user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return db.getOne(ctx, "id", id)
}

// GetByEmail retrieves a user by email. The column's NOCASE collation makes
// the comparison case-insensitive.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getOne(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

// GetByGoogleID retrieves the user linked to a Google account.
func (db *DB) GetByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return db.getOne(ctx, "google_id", googleID)
}

// getOne runs a single-row lookup on one column. column is always one of the
// constants above, never caller input, so building the WHERE clause with
// string concatenation is safe here.
func (db *DB) getOne(ctx context.Context, column, value string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`,
		value,
	)
	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", column, err)
	}
	return u, nil
}

// List returns every user, newest first. rowid breaks ties between users
// created within the same timestamp tick.
func (db *DB) List(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	return users, nil
}

// Update applies a partial update inside a transaction: read the row, apply
// the patch in Go, write every mutable column back.
//
// Reading first keeps the "only non-nil fields change" rule in one place
// (model.UserPatch.Apply) instead of building dynamic SET clauses.
func (db *DB) Update(ctx context.Context, id string, patch model.UserPatch) (*model.User, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning update of user %s: %w", id, err)
	}
	// Rollback after Commit is a no-op, so deferring it is always safe.
	defer tx.Rollback()

	u, err := scanUser(tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: loading user %s for update: %w", id, err)
	}

	patch.Apply(u)
	u.Email = strings.ToLower(u.Email)
	u.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`UPDATE users
		 SET first_name = ?, last_name = ?, email = ?, phone = ?, google_id = ?,
		     picture = ?, has_rsvpd = ?, updated_at = ?
		 WHERE id = ?`,
		u.FirstName,
		u.LastName,
		u.Email,
		u.Phone,
		nullable(u.GoogleID),
		u.Picture,
		u.HasRSVPd,
		u.UpdatedAt,
		u.ID,
	)
	if err != nil {
		if field, ok := uniqueViolation(err); ok {
			return nil, apperror.DuplicateKey("user", field)
		}
		return nil, fmt.Errorf("sqlite: updating user %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing update of user %s: %w", id, err)
	}

	return u, nil
}

// Delete removes a user. RowsAffected distinguishes "deleted" from "was never there".
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", id)
	}

	return nil
}
