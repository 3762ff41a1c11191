package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/practice"
	"github.com/practicas-ubb/practicas/storage/database"
)

const (
	practiceSelect = `
		SELECT p.id, p.student_id, p.kind, p.application_id, p.request_id, p.company, p.start_date, p.end_date, p.hours,
		       p.supervisor_email, p.status, p.evaluator_id, p.final_grade, p.closed_at, p.created_at, p.updated_at,
		       ev.name AS ev_name, ev.email AS ev_email, ev.created_at AS ev_created_at, ` + studentSummaryColumns + `
		FROM practices p
		JOIN students s ON s.id = p.student_id
		JOIN users su ON su.id = s.user_id
		LEFT JOIN evaluators ev ON ev.id = p.evaluator_id`

	evaluatorColumns = `id, name, email, created_at`
)

type practiceRow struct {
	practice.Practice
	EvName      null.String `db:"ev_name"`
	EvEmail     null.String `db:"ev_email"`
	EvCreatedAt null.Time   `db:"ev_created_at"`
	studentSummaryRow
}

func (row practiceRow) toPractice() practice.Practice {
	p := row.Practice
	p.Student = row.summary()
	if p.EvaluatorID.Valid {
		p.Evaluator = &practice.Evaluator{
			ID:        p.EvaluatorID.Int64,
			Name:      row.EvName.String,
			Email:     row.EvEmail.String,
			CreatedAt: row.EvCreatedAt.Time,
		}
	}
	return p
}

type practiceRepository struct {
	repo
}

var _ practice.Repository = (*practiceRepository)(nil)

func NewPracticeRepository(exec core.DBExecutor) *practiceRepository {
	return &practiceRepository{repo{exec: exec}}
}

func (r practiceRepository) CreatePractice(ctx context.Context, p practice.Practice, exec ...core.DBExecutor) (practice.Practice, error) {
	const q = `
		INSERT INTO practices
		    (student_id, kind, application_id, request_id, company, start_date, end_date, hours, supervisor_email,
		     status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`
	err := r.getExec(exec).QueryRowxContext(
		ctx, q,
		p.StudentID, p.Kind, p.ApplicationID, p.RequestID, p.Company, p.StartDate, p.EndDate, p.Hours, p.SupervisorEmail,
		p.Status, p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	).Scan(&p.ID)
	if err != nil {
		return practice.Practice{}, errors.Wrap(err, "inserting practice")
	}
	return p, nil
}

func (r practiceRepository) GetPractice(ctx context.Context, id int64, exec ...core.DBExecutor) (practice.Practice, error) {
	exe := r.getExec(exec)

	var row practiceRow
	if err := exe.GetContext(ctx, &row, practiceSelect+" WHERE p.id = $1", id); err != nil {
		return practice.Practice{}, trapNoRowsErr(err, practice.ErrNotFound, "finding practice")
	}
	p := row.toPractice()

	p.Documents = make([]practice.Document, 0)
	const docsQ = `
		SELECT id, practice_id, type, url, uploaded_by, created_at
		FROM documents WHERE practice_id = $1 ORDER BY created_at, id`
	if err := exe.SelectContext(ctx, &p.Documents, docsQ, id); err != nil {
		return practice.Practice{}, errors.Wrap(err, "querying documents")
	}

	p.Evaluations = make([]practice.Evaluation, 0)
	const evalsQ = `
		SELECT id, practice_id, role, score, comments, submitted_by, created_at
		FROM evaluations WHERE practice_id = $1 ORDER BY created_at, id`
	if err := exe.SelectContext(ctx, &p.Evaluations, evalsQ, id); err != nil {
		return practice.Practice{}, errors.Wrap(err, "querying evaluations")
	}
	return p, nil
}

func (r practiceRepository) LockPractice(ctx context.Context, id int64, exec ...core.DBExecutor) (practice.Status, error) {
	var status practice.Status
	err := r.getExec(exec).GetContext(ctx, &status, "SELECT status FROM practices WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return "", trapNoRowsErr(err, practice.ErrNotFound, "locking practice")
	}
	return status, nil
}

func (r practiceRepository) QueryPractices(ctx context.Context, filter practice.QueryFilter, exec ...core.DBExecutor) ([]practice.Practice, error) {
	var w where
	if filter.Status != "" {
		w.add("p.status = ?", filter.Status)
	}
	if filter.StudentID > 0 {
		w.add("p.student_id = ?", filter.StudentID)
	}
	if filter.EvaluatorID > 0 {
		w.add("p.evaluator_id = ?", filter.EvaluatorID)
	}

	var rows []practiceRow
	if err := r.getExec(exec).SelectContext(ctx, &rows, practiceSelect+w.String()+" ORDER BY p.created_at DESC, p.id DESC", w.args...); err != nil {
		return nil, errors.Wrap(err, "querying practices")
	}
	practices := make([]practice.Practice, 0, len(rows))
	for _, row := range rows {
		practices = append(practices, row.toPractice())
	}
	return practices, nil
}

func (r practiceRepository) HasOpenPractice(ctx context.Context, studentID int64, exec ...core.DBExecutor) (bool, error) {
	var open bool
	const q = `SELECT EXISTS (SELECT 1 FROM practices WHERE student_id = $1 AND status = $2)`
	if err := r.getExec(exec).GetContext(ctx, &open, q, studentID, practice.StatusOpen); err != nil {
		return false, errors.Wrap(err, "checking open practice")
	}
	return open, nil
}

func (r practiceRepository) SetEvaluator(ctx context.Context, practiceID, evaluatorID int64, at time.Time, exec ...core.DBExecutor) error {
	const q = `UPDATE practices SET evaluator_id = $2, updated_at = $3 WHERE id = $1`
	updated, err := rowsAffected(r.getExec(exec).ExecContext(ctx, q, practiceID, evaluatorID, at.UTC()))
	if err != nil {
		return errors.Wrap(err, "setting evaluator")
	}
	if !updated {
		return practice.ErrNotFound
	}
	return nil
}

func (r practiceRepository) AddDocument(ctx context.Context, doc practice.Document, exec ...core.DBExecutor) (practice.Document, error) {
	const q = `
		INSERT INTO documents (practice_id, type, url, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	err := r.getExec(exec).QueryRowxContext(ctx, q, doc.PracticeID, doc.Type, doc.URL, doc.UploadedBy, doc.CreatedAt.UTC()).Scan(&doc.ID)
	if err != nil {
		return practice.Document{}, errors.Wrap(err, "inserting document")
	}
	return doc, nil
}

func (r practiceRepository) AddEvaluation(ctx context.Context, ev practice.Evaluation, exec ...core.DBExecutor) (practice.Evaluation, error) {
	const q = `
		INSERT INTO evaluations (practice_id, role, score, comments, submitted_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	err := r.getExec(exec).QueryRowxContext(ctx, q, ev.PracticeID, ev.Role, ev.Score, ev.Comments, ev.SubmittedBy, ev.CreatedAt.UTC()).Scan(&ev.ID)
	if err != nil {
		return practice.Evaluation{}, errors.Wrap(err, "inserting evaluation")
	}
	return ev, nil
}

func (r practiceRepository) ClosePractice(ctx context.Context, id int64, grade float64, at time.Time, exec ...core.DBExecutor) (bool, error) {
	const q = `
		UPDATE practices
		SET status = $2, final_grade = $3, closed_at = $4, updated_at = $4
		WHERE id = $1 AND status = $5`
	return rowsAffected(r.getExec(exec).ExecContext(ctx, q, id, practice.StatusClosed, grade, at.UTC(), practice.StatusOpen))
}

func (r practiceRepository) CreateEvaluator(ctx context.Context, ev practice.Evaluator, exec ...core.DBExecutor) (practice.Evaluator, error) {
	const q = `INSERT INTO evaluators (name, email, created_at) VALUES ($1, $2, $3) RETURNING id`
	err := r.getExec(exec).QueryRowxContext(ctx, q, ev.Name, ev.Email, ev.CreatedAt.UTC()).Scan(&ev.ID)
	if err != nil {
		if database.IsUniqueViolation(err, "evaluators_email_key") {
			return practice.Evaluator{}, practice.ErrEvaluatorEmailExists
		}
		return practice.Evaluator{}, errors.Wrap(err, "inserting evaluator")
	}
	return ev, nil
}

func (r practiceRepository) GetEvaluator(ctx context.Context, filter practice.EvaluatorFilter, exec ...core.DBExecutor) (practice.Evaluator, error) {
	var w where
	switch {
	case filter.ID > 0:
		w.add("id = ?", filter.ID)
	case filter.Email != "":
		w.add("email = ?", filter.Email)
	default:
		return practice.Evaluator{}, practice.ErrEvaluatorNotFound
	}

	var ev practice.Evaluator
	if err := r.getExec(exec).GetContext(ctx, &ev, "SELECT "+evaluatorColumns+" FROM evaluators"+w.String(), w.args...); err != nil {
		return practice.Evaluator{}, trapNoRowsErr(err, practice.ErrEvaluatorNotFound, "finding evaluator")
	}
	return ev, nil
}

func (r practiceRepository) QueryEvaluators(ctx context.Context, exec ...core.DBExecutor) ([]practice.Evaluator, error) {
	evaluators := make([]practice.Evaluator, 0)
	if err := r.getExec(exec).SelectContext(ctx, &evaluators, "SELECT "+evaluatorColumns+" FROM evaluators ORDER BY name, id"); err != nil {
		return nil, errors.Wrap(err, "querying evaluators")
	}
	return evaluators, nil
}
