package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"presensure/internal/attendance"
)

// Role is one of the three kinds of PresenSure users.
type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
	RoleAdmin   Role = "admin"
)

// User is the authenticated identity handed to the rest of the system.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrUnknownRole        = errors.New("unknown role")
	ErrStudentNotFound    = errors.New("student not found")
	ErrBadCredentials     = errors.New("invalid credentials")
)

// StudentDirectory looks students up by id.
type StudentDirectory interface {
	Student(ctx context.Context, id string) (attendance.Student, error)
}

// Authenticator checks login credentials.
//
// Students log in with their roster id. Staff accounts are not stored: any
// non-empty credentials are accepted unless a shared staff password is set.
type Authenticator struct {
	students      StudentDirectory
	staffPassword string
}

// NewAuthenticator creates an authenticator.
func NewAuthenticator(students StudentDirectory, staffPassword string) *Authenticator {
	return &Authenticator{students: students, staffPassword: staffPassword}
}

// Login resolves credentials to a user.
func (a *Authenticator) Login(ctx context.Context, role Role, id, password string) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" || password == "" {
		return User{}, ErrMissingCredentials
	}
	switch role {
	case RoleStudent:
		st, err := a.students.Student(ctx, id)
		if errors.Is(err, attendance.ErrNotFound) {
			return User{}, ErrStudentNotFound
		}
		if err != nil {
			return User{}, err
		}
		return User{ID: st.ID, Name: st.Name, Role: RoleStudent}, nil
	case RoleFaculty, RoleAdmin:
		if a.staffPassword != "" && subtle.ConstantTimeCompare([]byte(password), []byte(a.staffPassword)) != 1 {
			return User{}, ErrBadCredentials
		}
		name := "Faculty"
		if role == RoleAdmin {
			name = "Admin"
		}
		return User{ID: id, Name: name, Role: role}, nil
	}
	return User{}, ErrUnknownRole
}
