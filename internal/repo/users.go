package repo

import (
	"context"
	"database/sql"
	"strings"

	"shiftreport/internal/db"
	"shiftreport/internal/domain"
)

const userColumns = `id,email,full_name,role,password_hash,created_at`

func scanUser(row rowScanner) (domain.User, string, error) {
	var u domain.User
	var hash, created string
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &hash, &created)
	if err == sql.ErrNoRows {
		return u, "", ErrNotFound
	}
	if err != nil {
		return u, "", err
	}
	u.CreatedAt, err = db.ParseTime(created)
	return u, hash, err
}

// InsertUserTx stores a user. Emails compare case-insensitively; a clash returns ErrDuplicate.
func (r Repo) InsertUserTx(ctx context.Context, tx *sql.Tx, u domain.User, passwordHash string) error {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE LOWER(email)=?`, strings.ToLower(u.Email)).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrDuplicate
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO users(`+userColumns+`) VALUES (?,?,?,?,?,?)`,
		u.ID, u.Email, u.FullName, u.Role, passwordHash, db.FormatTime(u.CreatedAt))
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	u, _, err := scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
	return u, err
}

// GetUserByEmail also returns the stored password hash.
func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, string, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email)=?`, strings.ToLower(strings.TrimSpace(email))))
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.User{}
	for rows.Next() {
		u, _, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r Repo) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`).Scan(&n)
	return n, err
}
