package course

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/checkmark/internal/checkmark"
	"github.com/mind-engage/checkmark/internal/db"
)

// Site roles.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

type User struct {
	ID           int64  `db:"id" json:"id"`
	Username     string `db:"username" json:"username"`
	FirstName    string `db:"firstname" json:"firstname"`
	LastName     string `db:"lastname" json:"lastname"`
	Email        string `db:"email" json:"email"`
	IDNumber     string `db:"idnumber" json:"idnumber"`
	Role         string `db:"role" json:"role"`
	PasswordHash string `db:"password_hash" json:"-"`
	CreatedAt    int64  `db:"created_at" json:"created_at"`
}

// UserRow is one line of a bulk import. ID 0 lets the database pick one.
type UserRow struct {
	ID        int64  `csv:"id" json:"id"`
	Username  string `csv:"username" json:"username" validate:"required,max=100"`
	FirstName string `csv:"firstname" json:"firstname" validate:"max=100"`
	LastName  string `csv:"lastname" json:"lastname" validate:"max=100"`
	Email     string `csv:"email" json:"email" validate:"omitempty,email"`
	IDNumber  string `csv:"idnumber" json:"idnumber" validate:"max=100"`
	Role      string `csv:"role" json:"role" validate:"omitempty,oneof=student teacher admin"`
	Password  string `csv:"password" json:"password,omitempty"`
}

// ParseUsers reads a JSON array or a CSV file with a header line.
func ParseUsers(r io.Reader) ([]UserRow, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty upload: %w", checkmark.ErrInvalidArgument)
		}
		return nil, err
	}
	var rows []UserRow
	if first == '[' {
		if err := json.NewDecoder(br).Decode(&rows); err != nil {
			return nil, fmt.Errorf("bad json: %v: %w", err, checkmark.ErrInvalidArgument)
		}
	} else {
		if err := gocsv.Unmarshal(br, &rows); err != nil {
			return nil, fmt.Errorf("bad csv: %v: %w", err, checkmark.ErrInvalidArgument)
		}
	}
	for i := range rows {
		rows[i].Username = strings.TrimSpace(rows[i].Username)
		rows[i].Role = strings.ToLower(strings.TrimSpace(rows[i].Role))
	}
	return rows, nil
}

// WriteUsers writes users as CSV in the layout ParseUsers reads. The
// password column is left empty so a re-import keeps existing passwords.
func WriteUsers(w io.Writer, us []User) error {
	rows := make([]UserRow, len(us))
	for i, u := range us {
		rows[i] = UserRow{ID: u.ID, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName,
			Email: u.Email, IDNumber: u.IDNumber, Role: u.Role}
	}
	return gocsv.Marshal(&rows, w)
}

var bom = []byte{0xEF, 0xBB, 0xBF}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	if b, err := br.Peek(3); err == nil && bytes.Equal(b, bom) {
		_, _ = br.Discard(3)
	}
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if !strings.ContainsRune(" \t\r\n", rune(b)) {
			return b, br.UnreadByte()
		}
	}
}

// BulkUpsertUsers inserts new users and updates existing ones matched by id
// or username. New users need a password; existing ones keep theirs unless a
// new one is given. Nothing is written if any row is invalid.
func (s *Service) BulkUpsertUsers(ctx context.Context, rows []UserRow) (inserted, updated int, err error) {
	verr := &checkmark.ValidationError{}
	for i, r := range rows {
		if err := validate.Struct(r); err != nil {
			verr.Add(fmt.Sprintf("row %d", i+1), fieldErrors(err))
		}
	}
	if !verr.Empty() {
		return 0, 0, verr
	}
	now := s.now().Unix()
	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for i, r := range rows {
			if r.Role == "" {
				r.Role = RoleStudent
			}
			var hash string
			if r.Password != "" {
				h, err := bcrypt.GenerateFromPassword([]byte(r.Password), s.cost)
				if err != nil {
					return err
				}
				hash = string(h)
			}
			var id int64
			err := tx.GetContext(ctx, &id, tx.Rebind(`SELECT id FROM users WHERE id=? OR username=? ORDER BY id LIMIT 1`), r.ID, r.Username)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				if hash == "" {
					verr.Add(fmt.Sprintf("row %d", i+1), "password required for new user "+r.Username)
					return verr
				}
				if err := insertUser(ctx, tx, r, hash, now); err != nil {
					return err
				}
				inserted++
			case err != nil:
				return err
			default:
				q := `UPDATE users SET username=?, firstname=?, lastname=?, email=?, idnumber=?, role=?`
				args := []interface{}{r.Username, r.FirstName, r.LastName, r.Email, r.IDNumber, r.Role}
				if hash != "" {
					q += `, password_hash=?`
					args = append(args, hash)
				}
				if _, err := tx.ExecContext(ctx, tx.Rebind(q+` WHERE id=?`), append(args, id)...); err != nil {
					if db.IsUniqueViolation(err) {
						return fmt.Errorf("username %q: %w", r.Username, checkmark.ErrConflict)
					}
					return err
				}
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return inserted, updated, nil
}

func insertUser(ctx context.Context, tx *sqlx.Tx, r UserRow, hash string, now int64) error {
	cols := `username, firstname, lastname, email, idnumber, role, password_hash, created_at`
	vals := `?, ?, ?, ?, ?, ?, ?, ?`
	args := []interface{}{r.Username, r.FirstName, r.LastName, r.Email, r.IDNumber, r.Role, hash, now}
	if r.ID != 0 {
		cols = "id, " + cols
		vals = "?, " + vals
		args = append([]interface{}{r.ID}, args...)
	}
	_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO users (`+cols+`) VALUES (`+vals+`)`), args...)
	return err
}

// ListUsers returns users ordered by username, optionally of one site role.
func (s *Service) ListUsers(ctx context.Context, role string) ([]User, error) {
	q := `SELECT id, username, firstname, lastname, email, idnumber, role, password_hash, created_at FROM users`
	var args []interface{}
	if role != "" {
		q += ` WHERE role=?`
		args = append(args, role)
	}
	out := []User{}
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(q+` ORDER BY username`), args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, s.db.Rebind(`SELECT id, username, firstname, lastname, email, idnumber, role, password_hash, created_at
		FROM users WHERE id=?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return u, fmt.Errorf("user %d: %w", id, checkmark.ErrNotFound)
	}
	return u, err
}

// Authenticate checks a username and password. Unknown users and wrong
// passwords both yield ErrForbidden.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, s.db.Rebind(`SELECT id, username, firstname, lastname, email, idnumber, role, password_hash, created_at
		FROM users WHERE username=?`), username)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && u.PasswordHash == "") {
		return User{}, checkmark.ErrForbidden
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, checkmark.ErrForbidden
	}
	return u, nil
}

// ChangePassword replaces the password after checking the old one.
func (s *Service) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	if len(newPassword) < 8 {
		verr := &checkmark.ValidationError{}
		verr.Add("new_password", "must be at least 8 characters")
		return verr
	}
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)) != nil {
		return fmt.Errorf("incorrect old password: %w", checkmark.ErrForbidden)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`UPDATE users SET password_hash=? WHERE id=?`), string(hash), userID)
	return err
}
