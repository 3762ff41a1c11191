package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/practicas-ubb/practicas/core"
)

// Role is the closed set of portals a User can access.
type Role string

const (
	RoleStudent      Role = "STUDENT"
	RoleCoordination Role = "COORDINATION"
	RoleEvaluator    Role = "EVALUATOR"
	RoleSupervisor   Role = "SUPERVISOR"
)

var (
	AllRoles   = []Role{RoleStudent, RoleCoordination, RoleEvaluator, RoleSupervisor}
	StaffRoles = []Role{RoleCoordination, RoleEvaluator, RoleSupervisor}

	errNoPassword = errors.New("user has no usable password")
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleCoordination, RoleEvaluator, RoleSupervisor:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

type User struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	Role         Role      `json:"role" db:"role"`
	Enabled      bool      `json:"enabled" db:"enabled"`
	PasswordHash []byte    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"` // UTC
	LastLogin    null.Time `json:"last_login" db:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	if len(u.PasswordHash) == 0 {
		return errNoPassword
	}
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// CanLogin reports whether the account may open a session.
// Only students go through activation; staff accounts are never gated by Enabled.
func (u User) CanLogin() bool {
	switch u.Role {
	case RoleStudent:
		return u.Enabled
	case RoleCoordination, RoleEvaluator, RoleSupervisor:
		return true
	}
	return false
}

func (u User) IsStudent() bool      { return u.Role == RoleStudent }
func (u User) IsCoordination() bool { return u.Role == RoleCoordination }
func (u User) IsEvaluator() bool    { return u.Role == RoleEvaluator }
func (u User) IsSupervisor() bool   { return u.Role == RoleSupervisor }

// Student is the academic profile attached one-to-one to a STUDENT User.
type Student struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Rut       string    `json:"rut" db:"rut"`
	Career    string    `json:"career" db:"career"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	User      User      `json:"user" db:"user"`
}

// StudentSummary is the Student projection embedded in workflow records.
type StudentSummary struct {
	ID     int64  `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Email  string `json:"email" db:"email"`
	Rut    string `json:"rut" db:"rut"`
	Career string `json:"career" db:"career"`
}

func (st Student) Summary() StudentSummary {
	return StudentSummary{ID: st.ID, Name: st.User.Name, Email: st.User.Email, Rut: st.Rut, Career: st.Career}
}

// NewUser contains information needed to create a new staff User.
type NewUser struct {
	Name            string `json:"name" validate:"required,notblank"`
	Email           string `json:"email" validate:"required,email"`
	Role            Role   `json:"role" validate:"required,staffrole"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	return validate.Struct(nu)
}

// NewStudent contains information needed to create a new Student on behalf of coordination.
// When Password is empty the student receives a link to set it.
type NewStudent struct {
	Name            string `json:"name" validate:"required,notblank"`
	Email           string `json:"email" validate:"required,email"`
	Rut             string `json:"rut" validate:"required,rut"`
	Career          string `json:"career" validate:"required,notblank"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Rut = core.CleanRut(ns.Rut)
	ns.Career = core.CleanString(ns.Career)
	return validate.Struct(ns)
}

// RegisterStudent contains information needed for a student to sign up; the account waits for activation.
type RegisterStudent struct {
	Name            string `json:"name" validate:"required,notblank"`
	Email           string `json:"email" validate:"required,email"`
	Rut             string `json:"rut" validate:"required,rut"`
	Career          string `json:"career" validate:"required,notblank"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (rs *RegisterStudent) Validate(validate *validator.Validate) error {
	rs.Name = core.CleanString(rs.Name)
	rs.Email = core.CleanString(rs.Email, true /* lower */)
	rs.Rut = core.CleanRut(rs.Rut)
	rs.Career = core.CleanString(rs.Career)
	return validate.Struct(rs)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// GetFilter selects a single User; the first non-zero field wins.
type GetFilter struct {
	ID    int64
	Email string
}

// StudentFilter selects a single Student; the first non-zero field wins.
type StudentFilter struct {
	ID     int64
	UserID int64
	Rut    string
}

type QueryFilter struct {
	Search  string // case-insensitive match on name, email or RUT
	Enabled *bool
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
