package emailsvc

import (
	"io"
	"log"
	"net/http"
	"net/mail"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practicas-ubb/practicas/core"
	logsvc "github.com/practicas-ubb/practicas/services/logger"
)

var ana = []mail.Address{{Name: "Ana Pérez", Address: "ana@alumnos.ubiobio.cl"}}

func TestConsoleServiceMock_templates(t *testing.T) {
	conf := core.NewTestConfig()
	token := map[string]interface{}{"Name": "Ana", "Email": "ana@alumnos.ubiobio.cl", "UID": "MQ", "Token": "abc-123"}
	decision := map[string]interface{}{"Name": "Ana", "Title": "Backend Go", "Company": "ACME", "Approved": true}

	tests := []struct {
		name     string
		data     interface{}
		wantText []string
	}{
		{name: "welcome", data: token, wantText: []string{"Hola Ana", conf.FrontendBaseURL + "/password-reset/MQ/abc-123"}},
		{name: "password_reset", data: token, wantText: []string{conf.FrontendBaseURL + "/password-reset/MQ/abc-123"}},
		{name: "application_decided", data: decision, wantText: []string{`"Backend Go"`, "APROBADA"}},
		{name: "request_decided", data: decision, wantText: []string{"ACME", "APROBADA"}},
		{
			name:     "practice_closed",
			data:     map[string]interface{}{"Name": "Ana", "Company": "ACME", "FinalGrade": 68.333},
			wantText: []string{"ACME", "68.33"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewConsoleServiceMock(conf)
			svc.SendMessages(&core.EmailMessage{To: ana, Subject: "test", TemplateName: tt.name, TemplateData: tt.data})

			msgs := svc.SentMessages()
			require.Len(t, msgs, 1)
			for _, want := range tt.wantText {
				assert.Contains(t, msgs[0].TextContent, want)
			}
			assert.Contains(t, msgs[0].TextContent, "Prácticas Profesionales")
			assert.NotEmpty(t, msgs[0].HTMLContent)
		})
	}
}

func TestConsoleServiceMock_skipsEmptyMessages(t *testing.T) {
	svc := NewConsoleServiceMock(core.NewTestConfig())
	svc.SendMessages(
		&core.EmailMessage{Subject: "no recipients", BodyStr: "hello"},
		&core.EmailMessage{To: ana, Subject: "unknown template", TemplateName: "nope"},
		&core.EmailMessage{To: ana, Subject: "plain", BodyStr: "hello"},
	)

	msgs := svc.SentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].TextContent)
	assert.Empty(t, msgs[0].HTMLContent)

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}

func TestSendgridService_send(t *testing.T) {
	conf := core.NewTestConfig()
	conf.SendgridApiKey = "SG.test"

	var (
		calls  int
		status int
		sent   rest.Request
	)
	origAPI := sendgridAPI
	sendgridAPI = func(req rest.Request) (*rest.Response, error) {
		calls++
		sent = req
		return &rest.Response{StatusCode: status, Body: "{}"}, nil
	}
	defer func() { sendgridAPI = origAPI }()

	svc := NewSendgridService(discardLogger(conf), conf).(*sendgridService)
	msg := core.EmailMessage{To: ana, Subject: "Hola", TextContent: "texto", HTMLContent: "<p>html</p>"}

	status = http.StatusAccepted
	require.NoError(t, svc.send(msg))
	assert.Equal(t, rest.Method(http.MethodPost), sent.Method)
	assert.Equal(t, "Bearer SG.test", sent.Headers["Authorization"])
	assert.Contains(t, string(sent.Body), `"subject":"[Practicas] Hola"`)
	assert.Contains(t, string(sent.Body), `"text/html"`)

	status = http.StatusBadRequest
	assert.Error(t, svc.send(msg))
	assert.Equal(t, gobreaker.StateClosed, svc.cb.State(), "client errors do not trip the breaker")

	status = http.StatusServiceUnavailable
	for i := 0; i < 3; i++ {
		assert.Error(t, svc.send(msg))
	}
	assert.Equal(t, gobreaker.StateOpen, svc.cb.State())

	calls = 0
	assert.Equal(t, gobreaker.ErrOpenState, svc.send(msg))
	assert.Zero(t, calls)
}

func discardLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	return logger
}
