package application

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/user"
)

// Status is shared by Applications and PracticeRequests: PEND_EVAL -> APPROVED | REJECTED, both terminal.
type Status string

const (
	StatusPending  Status = "PEND_EVAL"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// OfferSummary is the Offer projection embedded in Applications.
type OfferSummary struct {
	ID      int64  `json:"id" db:"id"`
	Title   string `json:"title" db:"title"`
	Company string `json:"company" db:"company"`
}

type Application struct {
	ID        int64      `json:"id" db:"id"`
	StudentID int64      `json:"student_id" db:"student_id"`
	OfferID   int64      `json:"offer_id" db:"offer_id"`
	Status    Status     `json:"status" db:"status"`
	DecidedAt null.Time  `json:"decided_at" db:"decided_at"`
	DecidedBy null.Int64 `json:"decided_by" db:"decided_by"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"` // UTC
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"` // UTC

	Offer   *OfferSummary        `json:"offer,omitempty" db:"-"`
	Student *user.StudentSummary `json:"student,omitempty" db:"-"`
}

// PracticeRequest is a student-sourced proposal for an external internship.
type PracticeRequest struct {
	ID          int64      `json:"id" db:"id"`
	StudentID   int64      `json:"student_id" db:"student_id"`
	CompanyName string     `json:"company_name" db:"company_name"`
	TutorName   string     `json:"tutor_name" db:"tutor_name"`
	TutorEmail  string     `json:"tutor_email" db:"tutor_email"`
	StartDate   time.Time  `json:"start_date" db:"start_date"`
	EndDate     time.Time  `json:"end_date" db:"end_date"`
	Details     string     `json:"details" db:"details"`
	Status      Status     `json:"status" db:"status"`
	DecidedAt   null.Time  `json:"decided_at" db:"decided_at"`
	DecidedBy   null.Int64 `json:"decided_by" db:"decided_by"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"` // UTC
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"` // UTC

	Student *user.StudentSummary `json:"student,omitempty" db:"-"`
}

// Decision moves a pending record to a terminal status.
type Decision struct {
	Status    Status
	DecidedBy int64
	DecidedAt time.Time
}

type NewApplication struct {
	OfferID int64 `json:"offer_id" validate:"required,gt=0"`
}

func (na NewApplication) Validate(validate *validator.Validate) error { return validate.Struct(na) }

// NewPracticeRequest contains information needed to submit an external PracticeRequest.
type NewPracticeRequest struct {
	CompanyName string    `json:"company_name" validate:"required,notblank"`
	TutorName   string    `json:"tutor_name" validate:"required,notblank"`
	TutorEmail  string    `json:"tutor_email" validate:"required,email"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required,gtefield=StartDate"`
	Details     string    `json:"details"`
}

func (nr *NewPracticeRequest) Validate(validate *validator.Validate) error {
	nr.CompanyName = core.CleanString(nr.CompanyName)
	nr.TutorName = core.CleanString(nr.TutorName)
	nr.TutorEmail = core.CleanString(nr.TutorEmail, true /* lower */)
	nr.Details = core.CleanString(nr.Details)
	nr.StartDate = nr.StartDate.UTC()
	nr.EndDate = nr.EndDate.UTC()
	return validate.Struct(nr)
}

// QueryFilter narrows listings; zero fields are ignored.
type QueryFilter struct {
	StudentID int64
	OfferID   int64
	Status    Status
}

// StudentRequests gathers everything a student submitted, newest first.
type StudentRequests struct {
	Applications     []Application     `json:"applications"`
	PracticeRequests []PracticeRequest `json:"practice_requests"`
}
