package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/application"
	"github.com/practicas-ubb/practicas/core/practice"
	"github.com/practicas-ubb/practicas/core/user"
	"github.com/practicas-ubb/practicas/testutil"
)

func fixtures(t *testing.T) (*testutil.Env, user.User, user.Student) {
	t.Helper()
	env := testutil.NewEnv()
	coord := testutil.CreateUser(t, env.UserRepo, "Coord", "coord@ubiobio.cl", "", user.RoleCoordination, true)
	st := testutil.CreateStudent(t, env.UserRepo, "Ana Pérez", "ana@alumnos.ubiobio.cl", "12345678-5", testutil.Password, true)
	return env, coord, st
}

func TestService_Apply(t *testing.T) {
	env, _, st := fixtures(t)
	ctx := context.Background()

	open := testutil.CreateOffer(t, env.OfferRepo, "Backend Go", "ACME", true, time.Time{})
	inactive := testutil.CreateOffer(t, env.OfferRepo, "DevOps", "Umbrella", false, time.Time{})
	expired := testutil.CreateOffer(t, env.OfferRepo, "Data", "Initech", true, time.Now().AddDate(0, 0, -1))
	dueToday := testutil.CreateOffer(t, env.OfferRepo, "QA", "Globex", true, time.Now())

	app, err := env.ApplicationSvc.Apply(ctx, st.ID, application.NewApplication{OfferID: open.ID})
	require.NoError(t, err)
	assert.Equal(t, application.StatusPending, app.Status)
	require.NotNil(t, app.Offer)
	assert.Equal(t, "ACME", app.Offer.Company)

	_, err = env.ApplicationSvc.Apply(ctx, st.ID, application.NewApplication{OfferID: dueToday.ID})
	assert.NoError(t, err, "the deadline day is inclusive")

	tests := []struct {
		name    string
		offerID int64
		wantErr error
	}{
		{name: "duplicate", offerID: open.ID, wantErr: application.ErrAlreadyApplied},
		{name: "unknown offer", offerID: 999},
		{name: "inactive", offerID: inactive.ID, wantErr: application.ErrOfferInactive},
		{name: "expired", offerID: expired.ID, wantErr: application.ErrOfferExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.ApplicationSvc.Apply(ctx, st.ID, application.NewApplication{OfferID: tt.offerID})
			require.Error(t, err)
			if tt.wantErr == nil {
				assert.True(t, core.IsNotFound(err))
				return
			}
			if verr, ok := err.(*core.ValidationError); ok {
				assert.Equal(t, tt.wantErr, verr.Err)
				assert.Equal(t, "offer_id", verr.Fields[0].Field)
				return
			}
			assert.Equal(t, tt.wantErr, errors.Cause(err))
		})
	}

	apps, err := env.ApplicationSvc.QueryApplications(ctx, application.QueryFilter{StudentID: st.ID})
	require.NoError(t, err)
	assert.Len(t, apps, 2)
}

func TestService_openPracticeBlocksSubmissions(t *testing.T) {
	env, _, st := fixtures(t)
	ctx := context.Background()

	o := testutil.CreateOffer(t, env.OfferRepo, "Backend Go", "ACME", true, time.Time{})
	p := testutil.CreatePractice(t, env.PracticeRepo, st.ID, "Globex")

	_, err := env.ApplicationSvc.Apply(ctx, st.ID, application.NewApplication{OfferID: o.ID})
	verr, ok := err.(*core.ValidationError)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, application.ErrStudentHasOpenPractice, verr.Err)

	nr := application.NewPracticeRequest{
		CompanyName: "Initech", TutorName: "Bill", TutorEmail: "bill@initech.com",
		StartDate: time.Now().AddDate(0, 1, 0), EndDate: time.Now().AddDate(0, 4, 0),
	}
	_, err = env.ApplicationSvc.SubmitRequest(ctx, st.ID, nr)
	verr, ok = err.(*core.ValidationError)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, application.ErrStudentHasOpenPractice, verr.Err)

	// a CLOSED practice no longer blocks
	_, err = env.PracticeRepo.ClosePractice(ctx, p.ID, 70, core.Now())
	require.NoError(t, err)
	_, err = env.ApplicationSvc.Apply(ctx, st.ID, application.NewApplication{OfferID: o.ID})
	assert.NoError(t, err)
	_, err = env.ApplicationSvc.SubmitRequest(ctx, st.ID, nr)
	assert.NoError(t, err)
}

func TestService_ApproveApplication(t *testing.T) {
	env, coord, st := fixtures(t)
	ctx := context.Background()

	o := testutil.CreateOffer(t, env.OfferRepo, "Backend Go", "ACME", true, time.Time{})
	app, err := env.ApplicationSvc.Apply(ctx, st.ID, application.NewApplication{OfferID: o.ID})
	require.NoError(t, err)

	approved, p, err := env.ApplicationSvc.ApproveApplication(ctx, app.ID, coord.ID)
	require.NoError(t, err)
	assert.Equal(t, application.StatusApproved, approved.Status)
	assert.Equal(t, coord.ID, approved.DecidedBy.Int64)
	assert.Equal(t, practice.StatusOpen, p.Status)
	assert.Equal(t, practice.KindInternal, p.Kind)
	assert.Equal(t, st.ID, p.StudentID)
	assert.Equal(t, app.ID, p.ApplicationID.Int64)
	assert.Equal(t, o.StartDate, p.StartDate)
	assert.Equal(t, o.Hours, p.Hours.Int)

	_, _, err = env.ApplicationSvc.ApproveApplication(ctx, app.ID, coord.ID)
	assert.Equal(t, application.ErrApplicationProcessed, err)
	_, err = env.ApplicationSvc.RejectApplication(ctx, app.ID, coord.ID)
	assert.Equal(t, application.ErrApplicationProcessed, err)
	_, _, err = env.ApplicationSvc.ApproveApplication(ctx, 999, coord.ID)
	assert.Equal(t, application.ErrNotFound, err)

	practices, err := env.PracticeRepo.QueryPractices(ctx, practice.QueryFilter{StudentID: st.ID})
	require.NoError(t, err)
	assert.Len(t, practices, 1)

	events := env.Events.Published()
	require.Len(t, events, 1)
	assert.Equal(t, core.EventApplicationApproved, events[0].Name)

	msgs := env.Mail.SentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "application_decided", msgs[0].TemplateName)
	assert.Contains(t, msgs[0].TextContent, "Backend Go")
}

func TestService_concurrentApprovals(t *testing.T) {
	env, coord, st := fixtures(t)
	ctx := context.Background()

	o := testutil.CreateOffer(t, env.OfferRepo, "Backend Go", "ACME", true, time.Time{})
	app, err := env.ApplicationSvc.Apply(ctx, st.ID, application.NewApplication{OfferID: o.ID})
	require.NoError(t, err)
	req, err := env.ApplicationSvc.SubmitRequest(ctx, st.ID, application.NewPracticeRequest{
		CompanyName: "Initech", TutorName: "Bill", TutorEmail: "bill@initech.com",
		StartDate: time.Now().AddDate(0, 1, 0), EndDate: time.Now().AddDate(0, 4, 0),
	})
	require.NoError(t, err)

	const workers = 8
	var (
		wg               sync.WaitGroup
		mu               sync.Mutex
		appOK, reqOK     int
		appLost, reqLost int
	)
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, err := env.ApplicationSvc.ApproveApplication(ctx, app.ID, coord.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				appOK++
			} else if err == application.ErrApplicationProcessed {
				appLost++
			}
		}()
		go func() {
			defer wg.Done()
			_, _, err := env.ApplicationSvc.ApproveRequest(ctx, req.ID, coord.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				reqOK++
			} else if err == application.ErrRequestProcessed {
				reqLost++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, appOK)
	assert.Equal(t, workers-1, appLost)
	assert.Equal(t, 1, reqOK)
	assert.Equal(t, workers-1, reqLost)

	practices, err := env.PracticeRepo.QueryPractices(ctx, practice.QueryFilter{StudentID: st.ID})
	require.NoError(t, err)
	assert.Len(t, practices, 2)
}

func TestService_requests(t *testing.T) {
	env, coord, st := fixtures(t)
	ctx := context.Background()

	start := time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC)
	nr := application.NewPracticeRequest{
		CompanyName: "Initech", TutorName: "Bill", TutorEmail: "bill@initech.com",
		StartDate: start, EndDate: start.AddDate(0, 3, 0), Details: "Soporte TI",
	}
	first, err := env.ApplicationSvc.SubmitRequest(ctx, st.ID, nr)
	require.NoError(t, err)
	second, err := env.ApplicationSvc.SubmitRequest(ctx, st.ID, nr)
	require.NoError(t, err)

	rejected, err := env.ApplicationSvc.RejectRequest(ctx, first.ID, coord.ID)
	require.NoError(t, err)
	assert.Equal(t, application.StatusRejected, rejected.Status)
	_, _, err = env.ApplicationSvc.ApproveRequest(ctx, first.ID, coord.ID)
	assert.Equal(t, application.ErrRequestProcessed, err)
	_, err = env.ApplicationSvc.RejectRequest(ctx, 999, coord.ID)
	assert.Equal(t, application.ErrRequestNotFound, err)

	approved, p, err := env.ApplicationSvc.ApproveRequest(ctx, second.ID, coord.ID)
	require.NoError(t, err)
	assert.Equal(t, application.StatusApproved, approved.Status)
	assert.Equal(t, practice.KindExternal, p.Kind)
	assert.Equal(t, second.ID, p.RequestID.Int64)
	assert.Equal(t, "Initech", p.Company)
	assert.Equal(t, "bill@initech.com", p.SupervisorEmail.String)
	assert.True(t, p.StartDate.Time.Equal(start))
	assert.True(t, p.EndDate.Time.Equal(start.AddDate(0, 3, 0)))

	pending, err := env.ApplicationSvc.QueryRequests(ctx, application.QueryFilter{Status: application.StatusPending})
	require.NoError(t, err)
	assert.Empty(t, pending)

	mine, err := env.ApplicationSvc.StudentRequests(ctx, st.ID)
	require.NoError(t, err)
	assert.NotNil(t, mine.Applications)
	assert.Empty(t, mine.Applications)
	require.Len(t, mine.PracticeRequests, 2)
	assert.Equal(t, second.ID, mine.PracticeRequests[0].ID, "newest first")

	assert.Equal(t, []string{core.EventRequestRejected, core.EventRequestApproved}, env.Events.Names())
	assert.Len(t, env.Mail.SentMessages(), 2)
}

// failingPractices fails every practice creation.
type failingPractices struct {
	practice.Repository
}

var errPracticeInsert = errors.New("inserting practice: connection reset")

func (failingPractices) CreatePractice(context.Context, practice.Practice, ...core.DBExecutor) (practice.Practice, error) {
	return practice.Practice{}, errPracticeInsert
}

func TestService_approvalRollsBack(t *testing.T) {
	env, coord, st := fixtures(t)
	ctx := context.Background()

	failing := application.NewService(
		env.DB, env.ApplicationRepo, env.OfferRepo, failingPractices{env.PracticeRepo}, env.UserRepo, env.Mail, env.Events, env.Logger,
	)

	o := testutil.CreateOffer(t, env.OfferRepo, "Backend Go", "ACME", true, time.Time{})
	app, err := env.ApplicationSvc.Apply(ctx, st.ID, application.NewApplication{OfferID: o.ID})
	require.NoError(t, err)
	req, err := env.ApplicationSvc.SubmitRequest(ctx, st.ID, application.NewPracticeRequest{
		CompanyName: "Initech", TutorName: "Bill", TutorEmail: "bill@initech.com",
		StartDate: time.Now().AddDate(0, 1, 0), EndDate: time.Now().AddDate(0, 4, 0),
	})
	require.NoError(t, err)

	_, _, err = failing.ApproveApplication(ctx, app.ID, coord.ID)
	assert.Equal(t, errPracticeInsert, errors.Cause(err))
	_, _, err = failing.ApproveRequest(ctx, req.ID, coord.ID)
	assert.Equal(t, errPracticeInsert, errors.Cause(err))

	storedApp, err := env.ApplicationRepo.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, application.StatusPending, storedApp.Status)
	assert.False(t, storedApp.DecidedBy.Valid)
	storedReq, err := env.ApplicationRepo.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, application.StatusPending, storedReq.Status)

	practices, err := env.PracticeRepo.QueryPractices(ctx, practice.QueryFilter{StudentID: st.ID})
	require.NoError(t, err)
	assert.Empty(t, practices)
	assert.Empty(t, env.Events.Names())
	assert.Empty(t, env.Mail.SentMessages())

	// the records can still be decided
	_, p, err := env.ApplicationSvc.ApproveApplication(ctx, app.ID, coord.ID)
	require.NoError(t, err)
	assert.Equal(t, app.ID, p.ApplicationID.Int64)
}
