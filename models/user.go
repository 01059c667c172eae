package models

import (
	"errors"
	"reevdb/db/pgw"
	"reevdb/oops"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	Id          uuid.UUID
	Email       string
	IsActive    bool
	IsSuperuser bool
	IsVerified  bool
}

const minPasswordLength = 8

var ErrPasswordTooShort = errors.New("password is too short")
var ErrUserAlreadyExists = errors.New("user already exists")
var ErrUserNotFound = errors.New("user not found")
var ErrInvalidCredentials = errors.New("invalid credentials")

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func User_Create(tx pgw.Queryable, email string, password string) (*User, error) {
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, oops.Wrap(err)
	}

	user := User{
		Id:          uuid.New(),
		Email:       normalizeEmail(email),
		IsActive:    true,
		IsSuperuser: false,
		IsVerified:  false,
	}
	_, err = tx.Exec(`
		insert into "user" (id, email, hashed_password, is_active, is_superuser, is_verified)
		values ($1, $2, $3, $4, $5, $6)
	`, user.Id, user.Email, string(hashedPassword), user.IsActive, user.IsSuperuser, user.IsVerified)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation &&
		pgErr.ConstraintName == "ix_user_email" {
		return nil, ErrUserAlreadyExists
	} else if err != nil {
		return nil, err
	}

	return &user, nil
}

func User_FindByEmail(tx pgw.Queryable, email string) (*User, error) {
	user, _, err := user_FindByEmailWithPassword(tx, email)
	return user, err
}

func user_FindByEmailWithPassword(tx pgw.Queryable, email string) (*User, string, error) {
	row := tx.QueryRow(`
		select id, email, is_active, is_superuser, is_verified, hashed_password
		from "user"
		where email = $1
	`, normalizeEmail(email))
	var user User
	var hashedPassword string
	err := row.Scan(
		&user.Id, &user.Email, &user.IsActive, &user.IsSuperuser, &user.IsVerified, &hashedPassword,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", ErrUserNotFound
	} else if err != nil {
		return nil, "", err
	}

	return &user, hashedPassword, nil
}

// User_Authenticate doesn't distinguish between unknown emails and wrong passwords.
func User_Authenticate(tx pgw.Queryable, email string, password string) (*User, error) {
	user, hashedPassword, err := user_FindByEmailWithPassword(tx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	} else if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	err = bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return nil, ErrInvalidCredentials
	} else if err != nil {
		return nil, oops.Wrap(err)
	}
	return user, nil
}

// User_Delete removes the user together with their comments.
func User_Delete(tx pgw.Queryable, userId uuid.UUID) error {
	tag, err := tx.Exec(`delete from "user" where id = $1`, userId)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
