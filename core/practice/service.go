package practice

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/user"
)

var (
	// errors
	ErrNotFound             = core.NewNotFoundError("practice")
	ErrEvaluatorNotFound    = core.NewNotFoundError("evaluator")
	ErrAlreadyClosed        = core.NewAlreadyClosedError("practice")
	ErrEvaluatorEmailExists = core.NewConflictError("an evaluator with this email already exists")
	ErrNotReady             = errors.New("missing documents or evaluations")
)

type (
	Repository interface {
		CreatePractice(ctx context.Context, p Practice, exec ...core.DBExecutor) (Practice, error)
		// GetPractice loads the practice with its student, evaluator, documents and evaluations.
		GetPractice(ctx context.Context, id int64, exec ...core.DBExecutor) (Practice, error)
		// LockPractice returns the practice status, holding a row lock until the transaction ends.
		LockPractice(ctx context.Context, id int64, exec ...core.DBExecutor) (Status, error)
		// QueryPractices returns the practices newest first, with their student and evaluator.
		QueryPractices(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Practice, error)
		HasOpenPractice(ctx context.Context, studentID int64, exec ...core.DBExecutor) (bool, error)
		SetEvaluator(ctx context.Context, practiceID, evaluatorID int64, at time.Time, exec ...core.DBExecutor) error
		AddDocument(ctx context.Context, doc Document, exec ...core.DBExecutor) (Document, error)
		AddEvaluation(ctx context.Context, ev Evaluation, exec ...core.DBExecutor) (Evaluation, error)
		// ClosePractice closes an OPEN practice; it reports false when no OPEN practice matched.
		ClosePractice(ctx context.Context, id int64, grade float64, at time.Time, exec ...core.DBExecutor) (bool, error)

		CreateEvaluator(ctx context.Context, ev Evaluator, exec ...core.DBExecutor) (Evaluator, error)
		GetEvaluator(ctx context.Context, filter EvaluatorFilter, exec ...core.DBExecutor) (Evaluator, error)
		// QueryEvaluators returns the directory ordered by name.
		QueryEvaluators(ctx context.Context, exec ...core.DBExecutor) ([]Evaluator, error)
	}

	Service interface {
		Get(ctx context.Context, id int64) (Practice, error)
		Query(ctx context.Context, filter QueryFilter) ([]Practice, error)
		AssignEvaluator(ctx context.Context, practiceID, evaluatorID int64) (Practice, error)
		RecordDocument(ctx context.Context, practiceID int64, nd NewDocument) (Document, error)
		RecordEvaluation(ctx context.Context, practiceID int64, ne NewEvaluation) (Evaluation, error)
		CheckClosureReadiness(ctx context.Context, practiceID int64) (Readiness, error)
		// Close validates completeness, stamps the final grade and closes the practice.
		Close(ctx context.Context, practiceID int64) (Practice, error)

		CreateEvaluator(ctx context.Context, ne NewEvaluator) (Evaluator, error)
		GetEvaluatorByEmail(ctx context.Context, email string) (Evaluator, error)
		QueryEvaluators(ctx context.Context) ([]Evaluator, error)
	}

	service struct {
		tx       core.Transactor
		repo     Repository
		students user.Repository
		mailSvc  core.EmailService
		events   core.EventPublisher
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	tx core.Transactor,
	repo Repository,
	students user.Repository,
	mailSvc core.EmailService,
	events core.EventPublisher,
	logger core.Logger,
) Service {
	return &service{
		tx:       tx,
		repo:     repo,
		students: students,
		mailSvc:  mailSvc,
		events:   events,
		logger:   logger,
	}
}

func (svc *service) Get(ctx context.Context, id int64) (Practice, error) {
	return svc.repo.GetPractice(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]Practice, error) {
	return svc.repo.QueryPractices(ctx, filter)
}

// lockOpen locks the practice row and fails unless the practice is OPEN.
func (svc *service) lockOpen(ctx context.Context, id int64, exec core.DBExecutor) error {
	status, err := svc.repo.LockPractice(ctx, id, exec)
	if err != nil {
		return err
	}
	if status == StatusClosed {
		return ErrAlreadyClosed
	}
	return nil
}

func (svc *service) AssignEvaluator(ctx context.Context, practiceID, evaluatorID int64) (Practice, error) {
	var p Practice
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.lockOpen(ctx, practiceID, exec); err != nil {
			return err
		}
		if _, err := svc.repo.GetEvaluator(ctx, EvaluatorFilter{ID: evaluatorID}, exec); err != nil {
			return err
		}
		if err := svc.repo.SetEvaluator(ctx, practiceID, evaluatorID, core.Now(), exec); err != nil {
			return errors.Wrap(err, "setting evaluator")
		}
		var err error
		p, err = svc.repo.GetPractice(ctx, practiceID, exec)
		return err
	})
	if err != nil {
		return Practice{}, err
	}

	svc.publish(ctx, core.EventEvaluatorAssigned, map[string]interface{}{
		"practice_id":  p.ID,
		"student_id":   p.StudentID,
		"evaluator_id": evaluatorID,
	})
	return p, nil
}

func (svc *service) RecordDocument(ctx context.Context, practiceID int64, nd NewDocument) (Document, error) {
	var doc Document
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.lockOpen(ctx, practiceID, exec); err != nil {
			return err
		}
		var err error
		doc, err = svc.repo.AddDocument(ctx, Document{
			PracticeID: practiceID,
			Type:       nd.Type,
			URL:        nd.URL,
			UploadedBy: nullID(nd.UploadedBy),
			CreatedAt:  core.Now(),
		}, exec)
		return err
	})
	return doc, err
}

func (svc *service) RecordEvaluation(ctx context.Context, practiceID int64, ne NewEvaluation) (Evaluation, error) {
	var score float64
	if ne.Score != nil {
		score = *ne.Score
	}
	comments := null.NewString(ne.Comments, ne.Comments != "")

	var ev Evaluation
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.lockOpen(ctx, practiceID, exec); err != nil {
			return err
		}
		var err error
		ev, err = svc.repo.AddEvaluation(ctx, Evaluation{
			PracticeID:  practiceID,
			Role:        ne.Role,
			Score:       score,
			Comments:    comments,
			SubmittedBy: nullID(ne.SubmittedBy),
			CreatedAt:   core.Now(),
		}, exec)
		return err
	})
	return ev, err
}

func (svc *service) CheckClosureReadiness(ctx context.Context, practiceID int64) (Readiness, error) {
	p, err := svc.repo.GetPractice(ctx, practiceID)
	if err != nil {
		return Readiness{}, err
	}
	return p.Readiness(), nil
}

func (svc *service) Close(ctx context.Context, practiceID int64) (Practice, error) {
	var p Practice
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.lockOpen(ctx, practiceID, exec); err != nil {
			return err
		}
		var err error
		if p, err = svc.repo.GetPractice(ctx, practiceID, exec); err != nil {
			return err
		}

		readiness := p.Readiness()
		if !readiness.IsReadyToClose {
			return core.NewValidationError(ErrNotReady, readiness.fieldErrors()...)
		}
		grade, _ := p.ComputeFinalGrade()

		now := core.Now()
		closed, err := svc.repo.ClosePractice(ctx, practiceID, grade, now, exec)
		if err != nil {
			return errors.Wrap(err, "closing practice")
		}
		if !closed {
			return ErrAlreadyClosed
		}
		p.Status = StatusClosed
		p.FinalGrade = null.Float64From(grade)
		p.ClosedAt = null.TimeFrom(now)
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Practice{}, err
	}

	svc.publish(ctx, core.EventPracticeClosed, map[string]interface{}{
		"practice_id": p.ID,
		"student_id":  p.StudentID,
		"final_grade": p.FinalGrade.Float64,
	})
	svc.notifyClosed(ctx, p)
	return p, nil
}

func (svc *service) CreateEvaluator(ctx context.Context, ne NewEvaluator) (Evaluator, error) {
	return svc.repo.CreateEvaluator(ctx, Evaluator{
		Name:      ne.Name,
		Email:     ne.Email,
		CreatedAt: core.Now(),
	})
}

func (svc *service) GetEvaluatorByEmail(ctx context.Context, email string) (Evaluator, error) {
	email = core.CleanString(email, true /* lower */)
	if email == "" {
		return Evaluator{}, ErrEvaluatorNotFound
	}
	return svc.repo.GetEvaluator(ctx, EvaluatorFilter{Email: email})
}

func (svc *service) QueryEvaluators(ctx context.Context) ([]Evaluator, error) {
	return svc.repo.QueryEvaluators(ctx)
}

// publish broadcasts a domain event once the transaction is committed; failures are only logged.
func (svc *service) publish(ctx context.Context, name string, payload interface{}) {
	if err := svc.events.Publish(ctx, core.NewEvent(name, payload)); err != nil {
		svc.logger.Error(fmt.Sprintf("publishing %s: %v", name, err), err)
	}
}

func (svc *service) notifyClosed(ctx context.Context, p Practice) {
	st, err := svc.students.GetStudent(ctx, user.StudentFilter{ID: p.StudentID})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("notifying practice closure: %v", err), err)
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: st.User.Name, Address: st.User.Email}},
		Subject:      "Práctica cerrada",
		TemplateName: "practice_closed",
		TemplateData: struct {
			Name       string
			Company    string
			FinalGrade float64
		}{st.User.Name, p.Company, p.FinalGrade.Float64},
	})
}

func nullID(id int64) null.Int64 {
	return null.NewInt64(id, id > 0)
}
