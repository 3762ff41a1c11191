package inmemdb

import (
	"context"
	"sort"

	"github.com/volatiletech/null/v8"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/application"
)

type applicationRepository struct {
	db *DB
}

var _ application.Repository = (*applicationRepository)(nil)

func NewApplicationRepository(db *DB) application.Repository {
	return &applicationRepository{db: db}
}

// load fills in the relations; it must be called with the lock held.
func (repo *applicationRepository) load(app application.Application) application.Application {
	if o, ok := repo.db.tables.offers[app.OfferID]; ok {
		app.Offer = &application.OfferSummary{ID: o.ID, Title: o.Title, Company: o.Company}
	}
	app.Student = repo.db.studentSummary(app.StudentID)
	return app
}

func (repo *applicationRepository) CreateApplication(_ context.Context, app application.Application, exec ...core.DBExecutor) (application.Application, error) {
	defer repo.db.lockWrite(exec)()

	for _, a := range repo.db.tables.applications {
		if a.StudentID == app.StudentID && a.OfferID == app.OfferID {
			return application.Application{}, application.ErrAlreadyApplied
		}
	}
	app.ID = repo.db.nextID("applications")
	app.Offer, app.Student = nil, nil
	repo.db.tables.applications[app.ID] = app
	return app, nil
}

func (repo *applicationRepository) GetApplication(_ context.Context, id int64, _ ...core.DBExecutor) (application.Application, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if app, ok := repo.db.tables.applications[id]; ok {
		return repo.load(app), nil
	}
	return application.Application{}, application.ErrNotFound
}

func (repo *applicationRepository) QueryApplications(_ context.Context, filter application.QueryFilter, _ ...core.DBExecutor) ([]application.Application, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	apps := make([]application.Application, 0)
	for _, app := range repo.db.tables.applications {
		if (filter.StudentID > 0 && app.StudentID != filter.StudentID) ||
			(filter.OfferID > 0 && app.OfferID != filter.OfferID) ||
			(filter.Status != "" && app.Status != filter.Status) {
			continue
		}
		apps = append(apps, repo.load(app))
	}
	sort.Slice(apps, func(i, j int) bool {
		return newerFirst(apps[i].CreatedAt, apps[j].CreatedAt, apps[i].ID, apps[j].ID)
	})
	return apps, nil
}

func (repo *applicationRepository) DecideApplication(_ context.Context, id int64, d application.Decision, exec ...core.DBExecutor) (bool, error) {
	defer repo.db.lockWrite(exec)()

	app, ok := repo.db.tables.applications[id]
	if !ok || app.Status != application.StatusPending {
		return false, nil
	}
	app.Status = d.Status
	app.DecidedBy = null.Int64From(d.DecidedBy)
	app.DecidedAt = null.TimeFrom(d.DecidedAt)
	app.UpdatedAt = d.DecidedAt
	repo.db.tables.applications[id] = app
	return true, nil
}

func (repo *applicationRepository) CreateRequest(_ context.Context, req application.PracticeRequest, exec ...core.DBExecutor) (application.PracticeRequest, error) {
	defer repo.db.lockWrite(exec)()

	req.ID = repo.db.nextID("practice_requests")
	req.Student = nil
	repo.db.tables.requests[req.ID] = req
	return req, nil
}

func (repo *applicationRepository) GetRequest(_ context.Context, id int64, _ ...core.DBExecutor) (application.PracticeRequest, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if req, ok := repo.db.tables.requests[id]; ok {
		req.Student = repo.db.studentSummary(req.StudentID)
		return req, nil
	}
	return application.PracticeRequest{}, application.ErrRequestNotFound
}

func (repo *applicationRepository) QueryRequests(_ context.Context, filter application.QueryFilter, _ ...core.DBExecutor) ([]application.PracticeRequest, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	reqs := make([]application.PracticeRequest, 0)
	for _, req := range repo.db.tables.requests {
		if (filter.StudentID > 0 && req.StudentID != filter.StudentID) ||
			(filter.Status != "" && req.Status != filter.Status) {
			continue
		}
		req.Student = repo.db.studentSummary(req.StudentID)
		reqs = append(reqs, req)
	}
	sort.Slice(reqs, func(i, j int) bool {
		return newerFirst(reqs[i].CreatedAt, reqs[j].CreatedAt, reqs[i].ID, reqs[j].ID)
	})
	return reqs, nil
}

func (repo *applicationRepository) DecideRequest(_ context.Context, id int64, d application.Decision, exec ...core.DBExecutor) (bool, error) {
	defer repo.db.lockWrite(exec)()

	req, ok := repo.db.tables.requests[id]
	if !ok || req.Status != application.StatusPending {
		return false, nil
	}
	req.Status = d.Status
	req.DecidedBy = null.Int64From(d.DecidedBy)
	req.DecidedAt = null.TimeFrom(d.DecidedAt)
	req.UpdatedAt = d.DecidedAt
	repo.db.tables.requests[id] = req
	return true, nil
}
