package practice

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/user"
)

type (
	Status         string
	Kind           string
	DocumentType   string
	EvaluationRole string
)

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"

	KindInternal Kind = "INTERNAL" // from an approved Application to an Offer
	KindExternal Kind = "EXTERNAL" // from an approved PracticeRequest

	DocumentReport  DocumentType = "REPORT"
	DocumentLogbook DocumentType = "LOGBOOK"

	RoleSupervisor EvaluationRole = "SUPERVISOR"
	RoleEvaluator  EvaluationRole = "EVALUATOR"

	// final grade weights
	supervisorWeight = .5
	evaluatorWeight  = .5
)

type Evaluator struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Document struct {
	ID         int64        `json:"id" db:"id"`
	PracticeID int64        `json:"practice_id" db:"practice_id"`
	Type       DocumentType `json:"type" db:"type"`
	URL        string       `json:"url" db:"url"`
	UploadedBy null.Int64   `json:"uploaded_by" db:"uploaded_by"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
}

type Evaluation struct {
	ID          int64          `json:"id" db:"id"`
	PracticeID  int64          `json:"practice_id" db:"practice_id"`
	Role        EvaluationRole `json:"role" db:"role"`
	Score       float64        `json:"score" db:"score"`
	Comments    null.String    `json:"comments" db:"comments"`
	SubmittedBy null.Int64     `json:"submitted_by" db:"submitted_by"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

type Practice struct {
	ID              int64        `json:"id" db:"id"`
	StudentID       int64        `json:"student_id" db:"student_id"`
	Kind            Kind         `json:"kind" db:"kind"`
	ApplicationID   null.Int64   `json:"application_id" db:"application_id"`
	RequestID       null.Int64   `json:"request_id" db:"request_id"`
	Company         string       `json:"company" db:"company"`
	StartDate       null.Time    `json:"start_date" db:"start_date"`
	EndDate         null.Time    `json:"end_date" db:"end_date"`
	Hours           null.Int     `json:"hours" db:"hours"`
	SupervisorEmail null.String  `json:"supervisor_email" db:"supervisor_email"`
	Status          Status       `json:"status" db:"status"`
	EvaluatorID     null.Int64   `json:"evaluator_id" db:"evaluator_id"`
	FinalGrade      null.Float64 `json:"final_grade" db:"final_grade"`
	ClosedAt        null.Time    `json:"closed_at" db:"closed_at"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"` // UTC
	UpdatedAt       time.Time    `json:"updated_at" db:"updated_at"` // UTC

	Student     *user.StudentSummary `json:"student,omitempty" db:"-"`
	Evaluator   *Evaluator           `json:"evaluator,omitempty" db:"-"`
	Documents   []Document           `json:"documents,omitempty" db:"-"`   // oldest first
	Evaluations []Evaluation         `json:"evaluations,omitempty" db:"-"` // oldest first
}

func (p Practice) IsClosed() bool { return p.Status == StatusClosed }

// Readiness reports which closure requirements a practice meets.
type Readiness struct {
	Report               bool `json:"informe"`
	Logbook              bool `json:"bitacora"`
	SupervisorEvaluation bool `json:"evalSupervisor"`
	EvaluatorEvaluation  bool `json:"evalEvaluador"`
	IsReadyToClose       bool `json:"isReadyToClose"`
}

func (p Practice) Readiness() Readiness {
	var r Readiness
	for _, doc := range p.Documents {
		switch doc.Type {
		case DocumentReport:
			r.Report = true
		case DocumentLogbook:
			r.Logbook = true
		}
	}
	for _, ev := range p.Evaluations {
		switch ev.Role {
		case RoleSupervisor:
			r.SupervisorEvaluation = true
		case RoleEvaluator:
			r.EvaluatorEvaluation = true
		}
	}
	r.IsReadyToClose = r.Report && r.Logbook && r.SupervisorEvaluation && r.EvaluatorEvaluation
	return r
}

// fieldErrors lists the unmet requirements, keyed like the Readiness JSON.
func (r Readiness) fieldErrors() []core.FieldError {
	flds := make([]core.FieldError, 0, 4)
	if !r.Report {
		flds = append(flds, core.FieldError{Field: "informe", Error: "missing REPORT document"})
	}
	if !r.Logbook {
		flds = append(flds, core.FieldError{Field: "bitacora", Error: "missing LOGBOOK document"})
	}
	if !r.SupervisorEvaluation {
		flds = append(flds, core.FieldError{Field: "evalSupervisor", Error: "missing SUPERVISOR evaluation"})
	}
	if !r.EvaluatorEvaluation {
		flds = append(flds, core.FieldError{Field: "evalEvaluador", Error: "missing EVALUATOR evaluation"})
	}
	return flds
}

// LatestEvaluation returns the most recent evaluation submitted for the role.
// Ties on the timestamp are broken by insertion order.
func (p Practice) LatestEvaluation(role EvaluationRole) (Evaluation, bool) {
	var (
		latest Evaluation
		found  bool
	)
	for _, ev := range p.Evaluations {
		if ev.Role != role {
			continue
		}
		if !found || ev.CreatedAt.After(latest.CreatedAt) || (ev.CreatedAt.Equal(latest.CreatedAt) && ev.ID > latest.ID) {
			latest = ev
			found = true
		}
	}
	return latest, found
}

// ComputeFinalGrade weighs the latest SUPERVISOR and EVALUATOR scores equally.
func (p Practice) ComputeFinalGrade() (float64, bool) {
	sup, ok := p.LatestEvaluation(RoleSupervisor)
	if !ok {
		return 0, false
	}
	eval, ok := p.LatestEvaluation(RoleEvaluator)
	if !ok {
		return 0, false
	}
	return supervisorWeight*sup.Score + evaluatorWeight*eval.Score, true
}

// NewDocument contains information needed to attach a Document to a Practice.
type NewDocument struct {
	Type       DocumentType `json:"type" validate:"required,oneof=REPORT LOGBOOK"`
	URL        string       `json:"url" validate:"required,url"`
	UploadedBy int64        `json:"-"`
}

func (nd *NewDocument) Validate(validate *validator.Validate) error {
	nd.URL = core.CleanString(nd.URL)
	return validate.Struct(nd)
}

// NewEvaluation contains information needed to record an Evaluation on a Practice.
type NewEvaluation struct {
	Role        EvaluationRole `json:"role" validate:"required,oneof=SUPERVISOR EVALUATOR"`
	Score       *float64       `json:"score" validate:"required,gte=0,lte=100"`
	Comments    string         `json:"comments"`
	SubmittedBy int64          `json:"-"`
}

func (ne *NewEvaluation) Validate(validate *validator.Validate) error {
	ne.Comments = core.CleanString(ne.Comments)
	return validate.Struct(ne)
}

// NewEvaluator contains information needed to add an Evaluator to the directory.
type NewEvaluator struct {
	Name  string `json:"name" validate:"required,notblank"`
	Email string `json:"email" validate:"required,email"`
}

func (ne *NewEvaluator) Validate(validate *validator.Validate) error {
	ne.Name = core.CleanString(ne.Name)
	ne.Email = core.CleanString(ne.Email, true /* lower */)
	return validate.Struct(ne)
}

type AssignEvaluator struct {
	EvaluatorID int64 `json:"evaluator_id" validate:"required,gt=0"`
}

func (ae AssignEvaluator) Validate(validate *validator.Validate) error { return validate.Struct(ae) }

// QueryFilter narrows practice listings; zero fields are ignored.
type QueryFilter struct {
	Status      Status
	StudentID   int64
	EvaluatorID int64
}

// EvaluatorFilter selects a single Evaluator; the first non-zero field wins.
type EvaluatorFilter struct {
	ID    int64
	Email string
}
