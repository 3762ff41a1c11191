package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) emailTaken(email string, excludedID int64) bool {
	for _, u := range repo.db.tables.users {
		if u.Email == email && u.ID != excludedID {
			return true
		}
	}
	return false
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	defer repo.db.lockWrite(exec)()

	if repo.emailTaken(usr.Email, 0) {
		return user.User{}, user.ErrEmailExists
	}
	usr.ID = repo.db.nextID("users")
	repo.db.tables.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	switch {
	case filter.ID > 0:
		if usr, ok := repo.db.tables.users[filter.ID]; ok {
			return usr, nil
		}
	case filter.Email != "":
		for _, usr := range repo.db.tables.users {
			if usr.Email == filter.Email {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	defer repo.db.lockWrite(exec)()

	if _, ok := repo.db.tables.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if repo.emailTaken(usr.Email, usr.ID) {
		return user.User{}, user.ErrEmailExists
	}
	repo.db.tables.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) CreateStudent(_ context.Context, st user.Student, exec ...core.DBExecutor) (user.Student, error) {
	defer repo.db.lockWrite(exec)()

	for _, s := range repo.db.tables.students {
		if s.Rut == st.Rut {
			return user.Student{}, user.ErrRutExists
		}
	}
	st.ID = repo.db.nextID("students")
	st.User = user.User{}
	repo.db.tables.students[st.ID] = st
	st.User = repo.db.tables.users[st.UserID]
	return st, nil
}

func (repo *userRepository) GetStudent(_ context.Context, filter user.StudentFilter, _ ...core.DBExecutor) (user.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, st := range repo.db.tables.students {
		if (filter.ID > 0 && st.ID == filter.ID) ||
			(filter.ID == 0 && filter.UserID > 0 && st.UserID == filter.UserID) ||
			(filter.ID == 0 && filter.UserID == 0 && filter.Rut != "" && st.Rut == filter.Rut) {
			st.User = repo.db.tables.users[st.UserID]
			return st, nil
		}
	}
	return user.Student{}, user.ErrStudentNotFound
}

func (repo *userRepository) QueryStudents(_ context.Context, filter user.QueryFilter, _ ...core.DBExecutor) ([]user.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	search := strings.ToLower(filter.Search)
	students := make([]user.Student, 0, len(repo.db.tables.students))
	for _, st := range repo.db.tables.students {
		st.User = repo.db.tables.users[st.UserID]
		if search != "" &&
			!strings.Contains(strings.ToLower(st.User.Name), search) &&
			!strings.Contains(strings.ToLower(st.User.Email), search) &&
			!strings.Contains(strings.ToLower(st.Rut), search) {
			continue
		}
		if filter.Enabled != nil && st.User.Enabled != *filter.Enabled {
			continue
		}
		students = append(students, st)
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].User.Name != students[j].User.Name {
			return students[i].User.Name < students[j].User.Name
		}
		return students[i].ID < students[j].ID
	})
	return students, nil
}
