package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/practicas-ubb/practicas/core/offer"
	"github.com/practicas-ubb/practicas/core/practice"
	"github.com/practicas-ubb/practicas/core/user"
)

// Password satisfies the password policy.
const Password = "Xk9#mQz!7wRt"

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	role user.Role,
	enabled bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC().Truncate(time.Microsecond)
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		Enabled:   enabled,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateStudent(t *testing.T, repo user.Repository, name, email, rut, pwd string, enabled bool) user.Student {
	t.Helper()

	usr := CreateUser(t, repo, name, email, pwd, user.RoleStudent, enabled)
	st, err := repo.CreateStudent(context.Background(), user.Student{
		UserID:    usr.ID,
		Rut:       rut,
		Career:    "Ingeniería Civil en Informática",
		CreatedAt: usr.CreatedAt,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	st.User = usr
	return st
}

// CreateOffer creates an offer; a zero deadline means no deadline.
func CreateOffer(t *testing.T, repo offer.Repository, title, company string, active bool, deadline time.Time, createdAt ...time.Time) offer.Offer {
	t.Helper()

	tstamp := time.Now().UTC().Truncate(time.Microsecond)
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	o := offer.Offer{
		Title:     title,
		Company:   company,
		Location:  "Concepción",
		Hours:     360,
		Modality:  "Presencial",
		Details:   "Desarrollo de software",
		Deadline:  null.NewTime(deadline.UTC(), !deadline.IsZero()),
		StartDate: null.TimeFrom(tstamp.AddDate(0, 1, 0)),
		IsActive:  active,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	o, err := repo.CreateOffer(context.Background(), o)
	if err != nil {
		t.Fatalf("CreateOffer() failed: %v", err)
	}
	return o
}

func CreateEvaluator(t *testing.T, repo practice.Repository, name, email string) practice.Evaluator {
	t.Helper()

	ev, err := repo.CreateEvaluator(context.Background(), practice.Evaluator{
		Name:      name,
		Email:     email,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	})
	if err != nil {
		t.Fatalf("CreateEvaluator() failed: %v", err)
	}
	return ev
}

// CreatePractice opens an INTERNAL practice for the student, bypassing the approval workflow.
func CreatePractice(t *testing.T, repo practice.Repository, studentID int64, company string) practice.Practice {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Microsecond)
	p, err := repo.CreatePractice(context.Background(), practice.Practice{
		StudentID: studentID,
		Kind:      practice.KindInternal,
		Company:   company,
		Status:    practice.StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreatePractice() failed: %v", err)
	}
	return p
}

func FloatPtr(f float64) *float64 { return &f }
