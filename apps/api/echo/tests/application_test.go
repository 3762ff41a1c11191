package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/practicas-ubb/practicas/apps/api/echo"
	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/application"
	"github.com/practicas-ubb/practicas/core/practice"
	"github.com/practicas-ubb/practicas/core/user"
	"github.com/practicas-ubb/practicas/testutil"
)

func Test_applicationApi_applyAndApprove(t *testing.T) {
	env.Reset()

	coord := testutil.CreateUser(t, env.UserRepo, "Coord", "coord@ubiobio.cl", "", user.RoleCoordination, true)
	student := testutil.CreateStudent(t, env.UserRepo, "Ana Pérez", "ana@alumnos.ubiobio.cl", "12345678-5", testutil.Password, true)
	o := testutil.CreateOffer(t, env.OfferRepo, "Backend Go", "ACME", true, time.Time{})
	stToken, coordToken := getToken(t, student.User), getToken(t, coord)

	// apply
	rec := serve(httpTest{method: http.MethodPost, path: "/v1/student/applications", token: stToken, body: []byte(`{"offer_id":` + itoa(o.ID) + `}`)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var app application.Application
	unmarshal(t, rec, &app)
	assert.Equal(t, application.StatusPending, app.Status)
	assert.Equal(t, student.ID, app.StudentID)

	runHTTPTests(t, []httpTest{
		{
			name: "duplicate application", method: http.MethodPost, path: "/v1/student/applications", token: stToken,
			body: []byte(`{"offer_id":` + itoa(o.ID) + `}`), wantCode: http.StatusConflict,
			wantData: []byte(`{"error":"you already applied to this offer"}`),
		},
		{
			name: "unknown offer", method: http.MethodPost, path: "/v1/student/applications", token: stToken,
			body: []byte(`{"offer_id":999}`), wantCode: http.StatusNotFound, wantData: []byte(`{"error":"offer not found"}`),
		},
		{
			name: "offer required", method: http.MethodPost, path: "/v1/student/applications", token: stToken,
			body: []byte(`{}`), wantCode: http.StatusBadRequest, wantData: []byte(`{"offer_id":"this field is required"}`),
		},
		{
			name: "coordination cannot apply", method: http.MethodPost, path: "/v1/student/applications", token: coordToken,
			body: []byte(`{"offer_id":` + itoa(o.ID) + `}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
	})

	// approve
	path := "/v1/coord/applications/" + itoa(app.ID) + "/approve"
	rec = serve(httpTest{method: http.MethodPost, path: path, token: coordToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var approval echoapi.ApplicationApproval
	unmarshal(t, rec, &approval)
	require.NotNil(t, approval.Application)
	assert.Equal(t, application.StatusApproved, approval.Application.Status)
	assert.Equal(t, coord.ID, approval.Application.DecidedBy.Int64)
	assert.True(t, approval.Application.DecidedAt.Valid)

	p := approval.Practice
	assert.Equal(t, practice.StatusOpen, p.Status)
	assert.Equal(t, practice.KindInternal, p.Kind)
	assert.Equal(t, student.ID, p.StudentID)
	assert.Equal(t, app.ID, p.ApplicationID.Int64)
	assert.Equal(t, "ACME", p.Company)
	assert.False(t, p.EvaluatorID.Valid)

	runHTTPTests(t, []httpTest{
		{
			name: "re-approve", method: http.MethodPost, path: path, token: coordToken,
			wantCode: http.StatusConflict, wantData: []byte(`{"error":"application has already been processed"}`),
		},
		{
			name: "reject after approval", method: http.MethodPost, path: "/v1/coord/applications/" + itoa(app.ID) + "/reject", token: coordToken,
			wantCode: http.StatusConflict, wantData: []byte(`{"error":"application has already been processed"}`),
		},
		{
			name: "unknown application", method: http.MethodPost, path: "/v1/coord/applications/999/approve", token: coordToken,
			wantCode: http.StatusNotFound, wantData: []byte(`{"error":"application not found"}`),
		},
		{
			name: "students cannot decide", method: http.MethodPost, path: path, token: stToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
	})

	// exactly one practice
	practices, err := env.PracticeRepo.QueryPractices(context.Background(), practice.QueryFilter{StudentID: student.ID})
	require.NoError(t, err)
	require.Len(t, practices, 1)
	assert.Equal(t, p.ID, practices[0].ID)

	// the student now holds an OPEN practice
	other := testutil.CreateOffer(t, env.OfferRepo, "Frontend", "Globex", true, time.Time{})
	checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: []byte(`{"error":"you already have an open practice"}`)},
		serve(httpTest{method: http.MethodPost, path: "/v1/student/applications", token: stToken, body: []byte(`{"offer_id":` + itoa(other.ID) + `}`)}))

	assert.Equal(t, []string{core.EventApplicationApproved}, env.Events.Names())
	msgs := env.Mail.SentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, student.User.Email, msgs[0].To[0].Address)
}

func Test_applicationApi_closedOffers(t *testing.T) {
	env.Reset()

	student := testutil.CreateStudent(t, env.UserRepo, "Ana Pérez", "ana@alumnos.ubiobio.cl", "12345678-5", testutil.Password, true)
	inactive := testutil.CreateOffer(t, env.OfferRepo, "DevOps", "Umbrella", false, time.Time{})
	expired := testutil.CreateOffer(t, env.OfferRepo, "Data", "Initech", true, time.Now().AddDate(0, 0, -2))
	token := getToken(t, student.User)

	runHTTPTests(t, []httpTest{
		{
			name: "inactive offer", method: http.MethodPost, path: "/v1/student/applications", token: token,
			body: []byte(`{"offer_id":` + itoa(inactive.ID) + `}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"offer_id":"this offer is no longer active","error":"this offer is no longer active"}`),
		},
		{
			name: "expired offer", method: http.MethodPost, path: "/v1/student/applications", token: token,
			body: []byte(`{"offer_id":` + itoa(expired.ID) + `}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"offer_id":"the deadline of this offer has passed","error":"the deadline of this offer has passed"}`),
		},
		{name: "nothing applied", path: "/v1/student/applications", token: token, wantCode: http.StatusOK, wantData: []byte(`[]`)},
	})
}

func Test_applicationApi_reject(t *testing.T) {
	env.Reset()

	coord := testutil.CreateUser(t, env.UserRepo, "Coord", "coord@ubiobio.cl", "", user.RoleCoordination, true)
	student := testutil.CreateStudent(t, env.UserRepo, "Ana Pérez", "ana@alumnos.ubiobio.cl", "12345678-5", testutil.Password, true)
	o := testutil.CreateOffer(t, env.OfferRepo, "Backend Go", "ACME", true, time.Time{})
	app, err := env.ApplicationSvc.Apply(context.Background(), student.ID, application.NewApplication{OfferID: o.ID})
	require.NoError(t, err)
	token := getToken(t, coord)

	rec := serve(httpTest{method: http.MethodPost, path: "/v1/coord/applications/" + itoa(app.ID) + "/reject", token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rejected application.Application
	unmarshal(t, rec, &rejected)
	assert.Equal(t, application.StatusRejected, rejected.Status)

	checkCodeAndData(t, httpTest{wantCode: http.StatusConflict},
		serve(httpTest{method: http.MethodPost, path: "/v1/coord/applications/" + itoa(app.ID) + "/approve", token: token}))

	practices, err := env.PracticeRepo.QueryPractices(context.Background(), practice.QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, practices)
	assert.Equal(t, []string{core.EventApplicationRejected}, env.Events.Names())
}

func Test_applicationApi_listings(t *testing.T) {
	env.Reset()
	ctx := context.Background()

	coord := testutil.CreateUser(t, env.UserRepo, "Coord", "coord@ubiobio.cl", "", user.RoleCoordination, true)
	ana := testutil.CreateStudent(t, env.UserRepo, "Ana Pérez", "ana@alumnos.ubiobio.cl", "12345678-5", testutil.Password, true)
	luis := testutil.CreateStudent(t, env.UserRepo, "Luis Soto", "luis@alumnos.ubiobio.cl", "11111111-1", testutil.Password, true)
	o1 := testutil.CreateOffer(t, env.OfferRepo, "Backend Go", "ACME", true, time.Time{})
	o2 := testutil.CreateOffer(t, env.OfferRepo, "Frontend", "Globex", true, time.Time{})

	anaApp1, err := env.ApplicationSvc.Apply(ctx, ana.ID, application.NewApplication{OfferID: o1.ID})
	require.NoError(t, err)
	anaApp2, err := env.ApplicationSvc.Apply(ctx, ana.ID, application.NewApplication{OfferID: o2.ID})
	require.NoError(t, err)
	luisApp, err := env.ApplicationSvc.Apply(ctx, luis.ID, application.NewApplication{OfferID: o1.ID})
	require.NoError(t, err)
	_, err = env.ApplicationSvc.RejectApplication(ctx, anaApp2.ID, coord.ID)
	require.NoError(t, err)

	get := func(id int64) application.Application {
		app, err := env.ApplicationSvc.GetApplication(ctx, id)
		require.NoError(t, err)
		return app
	}
	coordToken := getToken(t, coord)

	runHTTPTests(t, []httpTest{
		{
			name: "student sees own applications", path: "/v1/student/applications", token: getToken(t, ana.User),
			wantCode: http.StatusOK, wantData: marchallList(t, get(anaApp2.ID), get(anaApp1.ID)),
		},
		{
			name: "coordination sees all", path: "/v1/coord/applications", token: coordToken,
			wantCode: http.StatusOK, wantData: marchallList(t, get(luisApp.ID), get(anaApp2.ID), get(anaApp1.ID)),
		},
		{
			name: "pending only", path: "/v1/coord/applications?status=pend_eval", token: coordToken,
			wantCode: http.StatusOK, wantData: marchallList(t, get(luisApp.ID), get(anaApp1.ID)),
		},
		{
			name: "by offer", path: "/v1/coord/applications?offer_id=" + itoa(o2.ID), token: coordToken,
			wantCode: http.StatusOK, wantData: marchallList(t, get(anaApp2.ID)),
		},
		{
			name: "bad status", path: "/v1/coord/applications?status=DONE", token: coordToken,
			wantCode: http.StatusBadRequest, wantData: []byte(`{"status":"invalid value"}`),
		},
	})
}

func Test_applicationApi_practiceRequests(t *testing.T) {
	env.Reset()

	coord := testutil.CreateUser(t, env.UserRepo, "Coord", "coord@ubiobio.cl", "", user.RoleCoordination, true)
	student := testutil.CreateStudent(t, env.UserRepo, "Ana Pérez", "ana@alumnos.ubiobio.cl", "12345678-5", testutil.Password, true)
	o := testutil.CreateOffer(t, env.OfferRepo, "Backend Go", "ACME", true, time.Time{})
	stToken, coordToken := getToken(t, student.User), getToken(t, coord)

	runHTTPTests(t, []httpTest{
		{
			name: "end before start", method: http.MethodPost, path: "/v1/student/practice-requests", token: stToken,
			body: []byte(`{"company_name":"Initech","tutor_name":"Bill","tutor_email":"bill@initech.com",` +
				`"start_date":"2030-03-01T00:00:00Z","end_date":"2030-02-01T00:00:00Z"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "tutor email required", method: http.MethodPost, path: "/v1/student/practice-requests", token: stToken,
			body: []byte(`{"company_name":"Initech","tutor_name":"Bill",` +
				`"start_date":"2030-03-01T00:00:00Z","end_date":"2030-06-01T00:00:00Z"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"tutor_email":"this field is required"}`),
		},
	})

	rec := serve(httpTest{
		method: http.MethodPost, path: "/v1/student/practice-requests", token: stToken,
		body: []byte(`{"company_name":"Initech","tutor_name":"Bill","tutor_email":"Bill@Initech.com",` +
			`"start_date":"2030-03-01T00:00:00Z","end_date":"2030-06-01T00:00:00Z","details":"Soporte"}`),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var req application.PracticeRequest
	unmarshal(t, rec, &req)
	assert.Equal(t, application.StatusPending, req.Status)
	assert.Equal(t, "bill@initech.com", req.TutorEmail)

	app, err := env.ApplicationSvc.Apply(context.Background(), student.ID, application.NewApplication{OfferID: o.ID})
	require.NoError(t, err)

	// "my requests" gathers both kinds
	rec = serve(httpTest{path: "/v1/student/requests", token: stToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var mine application.StudentRequests
	unmarshal(t, rec, &mine)
	require.Len(t, mine.Applications, 1)
	require.Len(t, mine.PracticeRequests, 1)
	assert.Equal(t, app.ID, mine.Applications[0].ID)
	require.NotNil(t, mine.Applications[0].Offer)
	assert.Equal(t, "Backend Go", mine.Applications[0].Offer.Title)
	assert.Equal(t, req.ID, mine.PracticeRequests[0].ID)

	rec = serve(httpTest{path: "/v1/student/practice-requests", token: stToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var own []application.PracticeRequest
	unmarshal(t, rec, &own)
	require.Len(t, own, 1)

	// approve: EXTERNAL practice bound to the tutor
	path := "/v1/coord/external-requests/" + itoa(req.ID) + "/approve"
	rec = serve(httpTest{method: http.MethodPost, path: path, token: coordToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var approval echoapi.RequestApproval
	unmarshal(t, rec, &approval)
	require.NotNil(t, approval.Request)
	assert.Equal(t, application.StatusApproved, approval.Request.Status)
	assert.Equal(t, practice.KindExternal, approval.Practice.Kind)
	assert.Equal(t, "Initech", approval.Practice.Company)
	assert.Equal(t, "bill@initech.com", approval.Practice.SupervisorEmail.String)
	assert.Equal(t, req.ID, approval.Practice.RequestID.Int64)

	runHTTPTests(t, []httpTest{
		{
			name: "re-approve", method: http.MethodPost, path: path, token: coordToken,
			wantCode: http.StatusConflict, wantData: []byte(`{"error":"practice request has already been processed"}`),
		},
		{
			name: "unknown request", method: http.MethodPost, path: "/v1/coord/external-requests/999/reject", token: coordToken,
			wantCode: http.StatusNotFound, wantData: []byte(`{"error":"practice request not found"}`),
		},
		{
			name: "approved only", path: "/v1/coord/external-requests?status=APPROVED", token: coordToken,
			wantCode: http.StatusOK, wantData: marchallList(t, *approval.Request),
		},
		{
			name: "new request blocked by open practice", method: http.MethodPost, path: "/v1/student/practice-requests", token: stToken,
			body: []byte(`{"company_name":"Hooli","tutor_name":"Gavin","tutor_email":"gavin@hooli.com",` +
				`"start_date":"2030-03-01T00:00:00Z","end_date":"2030-06-01T00:00:00Z"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"error":"you already have an open practice"}`),
		},
	})
}
