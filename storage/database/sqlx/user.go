package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/user"
	"github.com/practicas-ubb/practicas/storage/database"
)

const (
	userColumns = `u.id, u.name, u.email, u.role, u.enabled, u.password_hash, u.created_at, u.updated_at, u.last_login`

	studentSelect = `
		SELECT s.id, s.user_id, s.rut, s.career, s.created_at,
		       u.id AS "user.id", u.name AS "user.name", u.email AS "user.email", u.role AS "user.role",
		       u.enabled AS "user.enabled", u.password_hash AS "user.password_hash",
		       u.created_at AS "user.created_at", u.updated_at AS "user.updated_at", u.last_login AS "user.last_login"
		FROM students s
		JOIN users u ON u.id = s.user_id`
)

type userRepository struct {
	repo
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{repo{exec: exec}}
}

func (r userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	const q = `
		INSERT INTO users (name, email, role, enabled, password_hash, created_at, updated_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	err := r.getExec(exec).QueryRowxContext(
		ctx, q,
		usr.Name, usr.Email, usr.Role, usr.Enabled, usr.PasswordHash, usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(), usr.LastLogin,
	).Scan(&usr.ID)
	if err != nil {
		if database.IsUniqueViolation(err, "users_email_key") {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (r userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var w where
	switch {
	case filter.ID > 0:
		w.add("u.id = ?", filter.ID)
	case filter.Email != "":
		w.add("u.email = ?", filter.Email)
	default:
		return user.User{}, user.ErrNotFound
	}

	var usr user.User
	err := r.getExec(exec).GetContext(ctx, &usr, "SELECT "+userColumns+" FROM users u"+w.String(), w.args...)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return usr, nil
}

func (r userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	const q = `
		UPDATE users
		SET name = :name, email = :email, role = :role, enabled = :enabled, password_hash = :password_hash,
		    updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	updated, err := rowsAffected(r.getExec(exec).NamedExecContext(ctx, q, usr))
	if err != nil {
		if database.IsUniqueViolation(err, "users_email_key") {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if !updated {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (r userRepository) CreateStudent(ctx context.Context, st user.Student, exec ...core.DBExecutor) (user.Student, error) {
	const q = `
		INSERT INTO students (user_id, rut, career, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	err := r.getExec(exec).QueryRowxContext(ctx, q, st.UserID, st.Rut, st.Career, st.CreatedAt.UTC()).Scan(&st.ID)
	if err != nil {
		if database.IsUniqueViolation(err, "students_rut_key") {
			return user.Student{}, user.ErrRutExists
		}
		return user.Student{}, errors.Wrap(err, "inserting student")
	}
	return st, nil
}

func (r userRepository) GetStudent(ctx context.Context, filter user.StudentFilter, exec ...core.DBExecutor) (user.Student, error) {
	var w where
	switch {
	case filter.ID > 0:
		w.add("s.id = ?", filter.ID)
	case filter.UserID > 0:
		w.add("s.user_id = ?", filter.UserID)
	case filter.Rut != "":
		w.add("s.rut = ?", filter.Rut)
	default:
		return user.Student{}, user.ErrStudentNotFound
	}

	var st user.Student
	if err := r.getExec(exec).GetContext(ctx, &st, studentSelect+w.String(), w.args...); err != nil {
		return user.Student{}, trapNoRowsErr(err, user.ErrStudentNotFound, "finding student")
	}
	return st, nil
}

func (r userRepository) QueryStudents(ctx context.Context, filter user.QueryFilter, exec ...core.DBExecutor) ([]user.Student, error) {
	var w where
	if filter.Search != "" {
		w.add("(u.name ILIKE ? OR u.email ILIKE ? OR s.rut ILIKE ?)", "%"+filter.Search+"%")
	}
	if filter.Enabled != nil {
		w.add("u.enabled = ?", *filter.Enabled)
	}

	students := make([]user.Student, 0)
	if err := r.getExec(exec).SelectContext(ctx, &students, studentSelect+w.String()+" ORDER BY u.name, s.id", w.args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return students, nil
}
