package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/application"
	"github.com/practicas-ubb/practicas/core/user"
	"github.com/practicas-ubb/practicas/storage/database"
)

const (
	studentSummaryColumns = `s.id AS st_id, su.name AS st_name, su.email AS st_email, s.rut AS st_rut, s.career AS st_career`

	applicationSelect = `
		SELECT a.id, a.student_id, a.offer_id, a.status, a.decided_at, a.decided_by, a.created_at, a.updated_at,
		       o.title AS offer_title, o.company AS offer_company, ` + studentSummaryColumns + `
		FROM applications a
		JOIN offers o ON o.id = a.offer_id
		JOIN students s ON s.id = a.student_id
		JOIN users su ON su.id = s.user_id`

	requestSelect = `
		SELECT r.id, r.student_id, r.company_name, r.tutor_name, r.tutor_email, r.start_date, r.end_date, r.details,
		       r.status, r.decided_at, r.decided_by, r.created_at, r.updated_at, ` + studentSummaryColumns + `
		FROM practice_requests r
		JOIN students s ON s.id = r.student_id
		JOIN users su ON su.id = s.user_id`
)

type studentSummaryRow struct {
	StID     int64  `db:"st_id"`
	StName   string `db:"st_name"`
	StEmail  string `db:"st_email"`
	StRut    string `db:"st_rut"`
	StCareer string `db:"st_career"`
}

func (row studentSummaryRow) summary() *user.StudentSummary {
	return &user.StudentSummary{ID: row.StID, Name: row.StName, Email: row.StEmail, Rut: row.StRut, Career: row.StCareer}
}

type applicationRow struct {
	application.Application
	OfferTitle   string `db:"offer_title"`
	OfferCompany string `db:"offer_company"`
	studentSummaryRow
}

func (row applicationRow) toApplication() application.Application {
	app := row.Application
	app.Offer = &application.OfferSummary{ID: app.OfferID, Title: row.OfferTitle, Company: row.OfferCompany}
	app.Student = row.summary()
	return app
}

type requestRow struct {
	application.PracticeRequest
	studentSummaryRow
}

func (row requestRow) toRequest() application.PracticeRequest {
	req := row.PracticeRequest
	req.Student = row.summary()
	return req
}

type applicationRepository struct {
	repo
}

var _ application.Repository = (*applicationRepository)(nil)

func NewApplicationRepository(exec core.DBExecutor) *applicationRepository {
	return &applicationRepository{repo{exec: exec}}
}

func (r applicationRepository) CreateApplication(ctx context.Context, app application.Application, exec ...core.DBExecutor) (application.Application, error) {
	const q = `
		INSERT INTO applications (student_id, offer_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	err := r.getExec(exec).QueryRowxContext(ctx, q, app.StudentID, app.OfferID, app.Status, app.CreatedAt.UTC(), app.UpdatedAt.UTC()).Scan(&app.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return application.Application{}, application.ErrAlreadyApplied
		}
		return application.Application{}, errors.Wrap(err, "inserting application")
	}
	return app, nil
}

func (r applicationRepository) GetApplication(ctx context.Context, id int64, exec ...core.DBExecutor) (application.Application, error) {
	var row applicationRow
	if err := r.getExec(exec).GetContext(ctx, &row, applicationSelect+" WHERE a.id = $1", id); err != nil {
		return application.Application{}, trapNoRowsErr(err, application.ErrNotFound, "finding application")
	}
	return row.toApplication(), nil
}

func (r applicationRepository) QueryApplications(ctx context.Context, filter application.QueryFilter, exec ...core.DBExecutor) ([]application.Application, error) {
	var w where
	if filter.StudentID > 0 {
		w.add("a.student_id = ?", filter.StudentID)
	}
	if filter.OfferID > 0 {
		w.add("a.offer_id = ?", filter.OfferID)
	}
	if filter.Status != "" {
		w.add("a.status = ?", filter.Status)
	}

	var rows []applicationRow
	if err := r.getExec(exec).SelectContext(ctx, &rows, applicationSelect+w.String()+" ORDER BY a.created_at DESC, a.id DESC", w.args...); err != nil {
		return nil, errors.Wrap(err, "querying applications")
	}
	apps := make([]application.Application, 0, len(rows))
	for _, row := range rows {
		apps = append(apps, row.toApplication())
	}
	return apps, nil
}

func (r applicationRepository) DecideApplication(ctx context.Context, id int64, d application.Decision, exec ...core.DBExecutor) (bool, error) {
	const q = `
		UPDATE applications
		SET status = $2, decided_by = $3, decided_at = $4, updated_at = $4
		WHERE id = $1 AND status = $5`
	return rowsAffected(r.getExec(exec).ExecContext(ctx, q, id, d.Status, d.DecidedBy, d.DecidedAt.UTC(), application.StatusPending))
}

func (r applicationRepository) CreateRequest(ctx context.Context, req application.PracticeRequest, exec ...core.DBExecutor) (application.PracticeRequest, error) {
	const q = `
		INSERT INTO practice_requests
		    (student_id, company_name, tutor_name, tutor_email, start_date, end_date, details, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	err := r.getExec(exec).QueryRowxContext(
		ctx, q,
		req.StudentID, req.CompanyName, req.TutorName, req.TutorEmail, req.StartDate.UTC(), req.EndDate.UTC(), req.Details,
		req.Status, req.CreatedAt.UTC(), req.UpdatedAt.UTC(),
	).Scan(&req.ID)
	if err != nil {
		return application.PracticeRequest{}, errors.Wrap(err, "inserting practice request")
	}
	return req, nil
}

func (r applicationRepository) GetRequest(ctx context.Context, id int64, exec ...core.DBExecutor) (application.PracticeRequest, error) {
	var row requestRow
	if err := r.getExec(exec).GetContext(ctx, &row, requestSelect+" WHERE r.id = $1", id); err != nil {
		return application.PracticeRequest{}, trapNoRowsErr(err, application.ErrRequestNotFound, "finding practice request")
	}
	return row.toRequest(), nil
}

func (r applicationRepository) QueryRequests(ctx context.Context, filter application.QueryFilter, exec ...core.DBExecutor) ([]application.PracticeRequest, error) {
	var w where
	if filter.StudentID > 0 {
		w.add("r.student_id = ?", filter.StudentID)
	}
	if filter.Status != "" {
		w.add("r.status = ?", filter.Status)
	}

	var rows []requestRow
	if err := r.getExec(exec).SelectContext(ctx, &rows, requestSelect+w.String()+" ORDER BY r.created_at DESC, r.id DESC", w.args...); err != nil {
		return nil, errors.Wrap(err, "querying practice requests")
	}
	reqs := make([]application.PracticeRequest, 0, len(rows))
	for _, row := range rows {
		reqs = append(reqs, row.toRequest())
	}
	return reqs, nil
}

func (r applicationRepository) DecideRequest(ctx context.Context, id int64, d application.Decision, exec ...core.DBExecutor) (bool, error) {
	const q = `
		UPDATE practice_requests
		SET status = $2, decided_by = $3, decided_at = $4, updated_at = $4
		WHERE id = $1 AND status = $5`
	return rowsAffected(r.getExec(exec).ExecContext(ctx, q, id, d.Status, d.DecidedBy, d.DecidedAt.UTC(), application.StatusPending))
}
