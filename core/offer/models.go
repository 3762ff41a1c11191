package offer

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/practicas-ubb/practicas/core"
)

type Offer struct {
	ID        int64     `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Company   string    `json:"company" db:"company"`
	Location  string    `json:"location" db:"location"`
	Hours     int       `json:"hours" db:"hours"`
	Modality  string    `json:"modality" db:"modality"`
	Details   string    `json:"details" db:"details"`
	Deadline  null.Time `json:"deadline" db:"deadline"`
	StartDate null.Time `json:"start_date" db:"start_date"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // UTC
}

// IsExpired reports whether the deadline day is over at `now`.
// The deadline is inclusive: an offer due today still accepts applications.
func (o Offer) IsExpired(now time.Time) bool {
	if !o.Deadline.Valid {
		return false
	}
	return truncateDay(o.Deadline.Time).Before(truncateDay(now))
}

// IsOpen reports whether students may apply to the offer at `now`.
func (o Offer) IsOpen(now time.Time) bool {
	return o.IsActive && !o.IsExpired(now)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NewOffer contains information needed to publish a new Offer.
type NewOffer struct {
	Title     string    `json:"title" validate:"required,notblank"`
	Company   string    `json:"company" validate:"required,notblank"`
	Location  string    `json:"location" validate:"required,notblank"`
	Hours     int       `json:"hours" validate:"gte=0"`
	Modality  string    `json:"modality"`
	Details   string    `json:"details" validate:"required,notblank"`
	Deadline  null.Time `json:"deadline"`
	StartDate null.Time `json:"start_date"`
}

func (no *NewOffer) Validate(validate *validator.Validate) error {
	no.Title = core.CleanString(no.Title)
	no.Company = core.CleanString(no.Company)
	no.Location = core.CleanString(no.Location)
	no.Modality = core.CleanString(no.Modality)
	no.Details = core.CleanString(no.Details)
	return validate.Struct(no)
}
