package application

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/offer"
	"github.com/practicas-ubb/practicas/core/practice"
	"github.com/practicas-ubb/practicas/core/user"
)

var (
	// errors
	ErrNotFound               = core.NewNotFoundError("application")
	ErrRequestNotFound        = core.NewNotFoundError("practice request")
	ErrAlreadyApplied         = core.NewConflictError("you already applied to this offer")
	ErrApplicationProcessed   = core.NewAlreadyProcessedError("application")
	ErrRequestProcessed       = core.NewAlreadyProcessedError("practice request")
	ErrOfferInactive          = errors.New("this offer is no longer active")
	ErrOfferExpired           = errors.New("the deadline of this offer has passed")
	ErrStudentHasOpenPractice = errors.New("you already have an open practice")
	errDecisionNotFinal       = errors.New("decision must be APPROVED or REJECTED")
)

type (
	Repository interface {
		// CreateApplication returns ErrAlreadyApplied when the student already applied to the offer.
		CreateApplication(ctx context.Context, app Application, exec ...core.DBExecutor) (Application, error)
		GetApplication(ctx context.Context, id int64, exec ...core.DBExecutor) (Application, error)
		// QueryApplications returns the applications newest first, with their offer and student.
		QueryApplications(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Application, error)
		// DecideApplication only updates a PEND_EVAL application; it reports whether a row was updated.
		DecideApplication(ctx context.Context, id int64, d Decision, exec ...core.DBExecutor) (bool, error)

		CreateRequest(ctx context.Context, req PracticeRequest, exec ...core.DBExecutor) (PracticeRequest, error)
		GetRequest(ctx context.Context, id int64, exec ...core.DBExecutor) (PracticeRequest, error)
		// QueryRequests returns the requests newest first, with their student.
		QueryRequests(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]PracticeRequest, error)
		// DecideRequest only updates a PEND_EVAL request; it reports whether a row was updated.
		DecideRequest(ctx context.Context, id int64, d Decision, exec ...core.DBExecutor) (bool, error)
	}

	Service interface {
		// Apply registers the student's application to an open offer.
		Apply(ctx context.Context, studentID int64, na NewApplication) (Application, error)
		SubmitRequest(ctx context.Context, studentID int64, nr NewPracticeRequest) (PracticeRequest, error)
		// ApproveApplication approves a pending application and opens its practice atomically.
		ApproveApplication(ctx context.Context, id, deciderID int64) (Application, practice.Practice, error)
		RejectApplication(ctx context.Context, id, deciderID int64) (Application, error)
		// ApproveRequest approves a pending request and opens its practice atomically.
		ApproveRequest(ctx context.Context, id, deciderID int64) (PracticeRequest, practice.Practice, error)
		RejectRequest(ctx context.Context, id, deciderID int64) (PracticeRequest, error)
		GetApplication(ctx context.Context, id int64) (Application, error)
		GetRequest(ctx context.Context, id int64) (PracticeRequest, error)
		QueryApplications(ctx context.Context, filter QueryFilter) ([]Application, error)
		QueryRequests(ctx context.Context, filter QueryFilter) ([]PracticeRequest, error)
		StudentRequests(ctx context.Context, studentID int64) (StudentRequests, error)
	}

	service struct {
		tx        core.Transactor
		repo      Repository
		offers    offer.Repository
		practices practice.Repository
		students  user.Repository
		mailSvc   core.EmailService
		events    core.EventPublisher
		logger    core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	tx core.Transactor,
	repo Repository,
	offers offer.Repository,
	practices practice.Repository,
	students user.Repository,
	mailSvc core.EmailService,
	events core.EventPublisher,
	logger core.Logger,
) Service {
	return &service{
		tx:        tx,
		repo:      repo,
		offers:    offers,
		practices: practices,
		students:  students,
		mailSvc:   mailSvc,
		events:    events,
		logger:    logger,
	}
}

// checkNoOpenPractice blocks new submissions while the student holds an OPEN practice.
func (svc *service) checkNoOpenPractice(ctx context.Context, studentID int64, exec core.DBExecutor) error {
	open, err := svc.practices.HasOpenPractice(ctx, studentID, exec)
	if err != nil {
		return errors.Wrap(err, "checking open practice")
	}
	if open {
		return core.NewValidationError(ErrStudentHasOpenPractice)
	}
	return nil
}

func (svc *service) Apply(ctx context.Context, studentID int64, na NewApplication) (Application, error) {
	var app Application
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		o, err := svc.offers.GetOffer(ctx, na.OfferID, exec)
		if err != nil {
			return err
		}
		if !o.IsActive {
			return core.NewValidationError(ErrOfferInactive, core.FieldError{Field: "offer_id", Error: ErrOfferInactive.Error()})
		}
		if o.IsExpired(core.Now()) {
			return core.NewValidationError(ErrOfferExpired, core.FieldError{Field: "offer_id", Error: ErrOfferExpired.Error()})
		}
		if err = svc.checkNoOpenPractice(ctx, studentID, exec); err != nil {
			return err
		}

		existing, err := svc.repo.QueryApplications(ctx, QueryFilter{StudentID: studentID, OfferID: o.ID}, exec)
		if err != nil {
			return errors.Wrap(err, "checking existing applications")
		}
		if len(existing) > 0 {
			return ErrAlreadyApplied
		}

		now := core.Now()
		app, err = svc.repo.CreateApplication(ctx, Application{
			StudentID: studentID,
			OfferID:   o.ID,
			Status:    StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}, exec)
		if err != nil {
			return err
		}
		app.Offer = &OfferSummary{ID: o.ID, Title: o.Title, Company: o.Company}
		return nil
	})
	return app, err
}

func (svc *service) SubmitRequest(ctx context.Context, studentID int64, nr NewPracticeRequest) (PracticeRequest, error) {
	var req PracticeRequest
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.checkNoOpenPractice(ctx, studentID, exec); err != nil {
			return err
		}
		now := core.Now()
		var err error
		req, err = svc.repo.CreateRequest(ctx, PracticeRequest{
			StudentID:   studentID,
			CompanyName: nr.CompanyName,
			TutorName:   nr.TutorName,
			TutorEmail:  nr.TutorEmail,
			StartDate:   nr.StartDate,
			EndDate:     nr.EndDate,
			Details:     nr.Details,
			Status:      StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}, exec)
		return err
	})
	return req, err
}

func (svc *service) decideApplication(ctx context.Context, id int64, d Decision, onApproved func(app Application, exec core.DBExecutor) error) (Application, error) {
	if d.Status != StatusApproved && d.Status != StatusRejected {
		return Application{}, errDecisionNotFinal
	}

	var app Application
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		decided, err := svc.repo.DecideApplication(ctx, id, d, exec)
		if err != nil {
			return errors.Wrap(err, "deciding application")
		}
		if app, err = svc.repo.GetApplication(ctx, id, exec); err != nil {
			return err // ErrNotFound
		}
		if !decided {
			return ErrApplicationProcessed
		}
		if d.Status == StatusApproved {
			return onApproved(app, exec)
		}
		return nil
	})
	if err != nil {
		return Application{}, err
	}

	name := core.EventApplicationRejected
	if d.Status == StatusApproved {
		name = core.EventApplicationApproved
	}
	svc.publish(ctx, name, map[string]interface{}{
		"application_id": app.ID,
		"student_id":     app.StudentID,
		"offer_id":       app.OfferID,
		"status":         app.Status,
	})
	title, company := "", ""
	if app.Offer != nil {
		title, company = app.Offer.Title, app.Offer.Company
	}
	svc.notify(ctx, app.StudentID, "Tu postulación fue revisada", "application_decided", decisionMailData{
		Title:    title,
		Company:  company,
		Approved: app.Status == StatusApproved,
	})
	return app, nil
}

func (svc *service) ApproveApplication(ctx context.Context, id, deciderID int64) (Application, practice.Practice, error) {
	var prac practice.Practice
	app, err := svc.decideApplication(ctx, id, svc.decision(StatusApproved, deciderID), func(app Application, exec core.DBExecutor) error {
		o, err := svc.offers.GetOffer(ctx, app.OfferID, exec)
		if err != nil {
			return errors.Wrap(err, "getting offer")
		}
		now := core.Now()
		prac, err = svc.practices.CreatePractice(ctx, practice.Practice{
			StudentID:     app.StudentID,
			Kind:          practice.KindInternal,
			ApplicationID: null.Int64From(app.ID),
			Company:       o.Company,
			StartDate:     o.StartDate,
			Hours:         null.NewInt(o.Hours, o.Hours > 0),
			Status:        practice.StatusOpen,
			CreatedAt:     now,
			UpdatedAt:     now,
		}, exec)
		return errors.Wrap(err, "creating practice")
	})
	if err != nil {
		return Application{}, practice.Practice{}, err
	}
	return app, prac, nil
}

func (svc *service) RejectApplication(ctx context.Context, id, deciderID int64) (Application, error) {
	return svc.decideApplication(ctx, id, svc.decision(StatusRejected, deciderID), nil)
}

func (svc *service) decideRequest(ctx context.Context, id int64, d Decision, onApproved func(req PracticeRequest, exec core.DBExecutor) error) (PracticeRequest, error) {
	if d.Status != StatusApproved && d.Status != StatusRejected {
		return PracticeRequest{}, errDecisionNotFinal
	}

	var req PracticeRequest
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		decided, err := svc.repo.DecideRequest(ctx, id, d, exec)
		if err != nil {
			return errors.Wrap(err, "deciding practice request")
		}
		if req, err = svc.repo.GetRequest(ctx, id, exec); err != nil {
			return err // ErrRequestNotFound
		}
		if !decided {
			return ErrRequestProcessed
		}
		if d.Status == StatusApproved {
			return onApproved(req, exec)
		}
		return nil
	})
	if err != nil {
		return PracticeRequest{}, err
	}

	name := core.EventRequestRejected
	if d.Status == StatusApproved {
		name = core.EventRequestApproved
	}
	svc.publish(ctx, name, map[string]interface{}{
		"request_id": req.ID,
		"student_id": req.StudentID,
		"status":     req.Status,
	})
	svc.notify(ctx, req.StudentID, "Tu solicitud de práctica fue revisada", "request_decided", decisionMailData{
		Company:  req.CompanyName,
		Approved: req.Status == StatusApproved,
	})
	return req, nil
}

func (svc *service) ApproveRequest(ctx context.Context, id, deciderID int64) (PracticeRequest, practice.Practice, error) {
	var prac practice.Practice
	req, err := svc.decideRequest(ctx, id, svc.decision(StatusApproved, deciderID), func(req PracticeRequest, exec core.DBExecutor) error {
		now := core.Now()
		var err error
		prac, err = svc.practices.CreatePractice(ctx, practice.Practice{
			StudentID:       req.StudentID,
			Kind:            practice.KindExternal,
			RequestID:       null.Int64From(req.ID),
			Company:         req.CompanyName,
			StartDate:       null.TimeFrom(req.StartDate),
			EndDate:         null.TimeFrom(req.EndDate),
			SupervisorEmail: null.StringFrom(req.TutorEmail),
			Status:          practice.StatusOpen,
			CreatedAt:       now,
			UpdatedAt:       now,
		}, exec)
		return errors.Wrap(err, "creating practice")
	})
	if err != nil {
		return PracticeRequest{}, practice.Practice{}, err
	}
	return req, prac, nil
}

func (svc *service) RejectRequest(ctx context.Context, id, deciderID int64) (PracticeRequest, error) {
	return svc.decideRequest(ctx, id, svc.decision(StatusRejected, deciderID), nil)
}

func (svc *service) GetApplication(ctx context.Context, id int64) (Application, error) {
	return svc.repo.GetApplication(ctx, id)
}

func (svc *service) GetRequest(ctx context.Context, id int64) (PracticeRequest, error) {
	return svc.repo.GetRequest(ctx, id)
}

func (svc *service) QueryApplications(ctx context.Context, filter QueryFilter) ([]Application, error) {
	return svc.repo.QueryApplications(ctx, filter)
}

func (svc *service) QueryRequests(ctx context.Context, filter QueryFilter) ([]PracticeRequest, error) {
	return svc.repo.QueryRequests(ctx, filter)
}

func (svc *service) StudentRequests(ctx context.Context, studentID int64) (StudentRequests, error) {
	apps, err := svc.repo.QueryApplications(ctx, QueryFilter{StudentID: studentID})
	if err != nil {
		return StudentRequests{}, errors.Wrap(err, "querying applications")
	}
	reqs, err := svc.repo.QueryRequests(ctx, QueryFilter{StudentID: studentID})
	if err != nil {
		return StudentRequests{}, errors.Wrap(err, "querying practice requests")
	}
	if apps == nil {
		apps = []Application{}
	}
	if reqs == nil {
		reqs = []PracticeRequest{}
	}
	return StudentRequests{Applications: apps, PracticeRequests: reqs}, nil
}

func (svc *service) decision(status Status, deciderID int64) Decision {
	return Decision{Status: status, DecidedBy: deciderID, DecidedAt: core.Now()}
}

// publish broadcasts a domain event once the transaction is committed; failures are only logged.
func (svc *service) publish(ctx context.Context, name string, payload interface{}) {
	if err := svc.events.Publish(ctx, core.NewEvent(name, payload)); err != nil {
		svc.logger.Error(fmt.Sprintf("publishing %s: %v", name, err), err)
	}
}

type decisionMailData struct {
	Name     string
	Title    string
	Company  string
	Approved bool
}

func (svc *service) notify(ctx context.Context, studentID int64, subject, tmpl string, data decisionMailData) {
	st, err := svc.students.GetStudent(ctx, user.StudentFilter{ID: studentID})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("notifying student %d: %v", studentID, err), err)
		return
	}
	data.Name = st.User.Name
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: st.User.Name, Address: st.User.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: data,
	})
}
