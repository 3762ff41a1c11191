package user_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/user"
	"github.com/practicas-ubb/practicas/testutil"
)

// mailField reads a field of the template data of the last sent mail.
func mailField(t *testing.T, env *testutil.Env, name string) string {
	t.Helper()
	msgs := env.Mail.SentMessages()
	require.NotEmpty(t, msgs)
	return reflect.ValueOf(msgs[len(msgs)-1].TemplateData).FieldByName(name).String()
}

func TestService_Authenticate(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()

	st := testutil.CreateStudent(t, env.UserRepo, "Ana Pérez", "ana@alumnos.ubiobio.cl", "12345678-5", testutil.Password, true)
	pending := testutil.CreateStudent(t, env.UserRepo, "Luis Soto", "luis@alumnos.ubiobio.cl", "11111111-1", testutil.Password, false)
	eval := testutil.CreateUser(t, env.UserRepo, "Eva", "eva@ubiobio.cl", testutil.Password, user.RoleEvaluator, false)
	noPwd := testutil.CreateUser(t, env.UserRepo, "Zoe", "zoe@ubiobio.cl", "", user.RoleCoordination, true)

	tests := []struct {
		name    string
		email   string
		pwd     string
		wantErr error
	}{
		{name: "blank email", email: " ", pwd: testutil.Password, wantErr: user.ErrInvalidCredentials},
		{name: "unknown email", email: "nobody@ubiobio.cl", pwd: testutil.Password, wantErr: user.ErrInvalidCredentials},
		{name: "wrong password", email: st.User.Email, pwd: "nope", wantErr: user.ErrInvalidCredentials},
		{name: "no usable password", email: noPwd.Email, pwd: "", wantErr: user.ErrInvalidCredentials},
		{name: "pending activation", email: pending.User.Email, pwd: testutil.Password, wantErr: user.ErrAccountDisabled},
		{name: "student", email: "  ANA@alumnos.ubiobio.cl ", pwd: testutil.Password},
		{name: "staff ignores enabled", email: eval.Email, pwd: testutil.Password},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, err := env.UserSvc.Authenticate(ctx, tt.email, tt.pwd)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, usr.LastLogin.Valid)
		})
	}
}

func TestService_students(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()

	registered, err := env.UserSvc.RegisterStudent(ctx, user.RegisterStudent{
		Name: "Ana Pérez", Email: "ana@alumnos.ubiobio.cl", Rut: "12345678-5", Career: "Ingeniería Civil en Informática",
		Password: testutil.Password, PasswordConfirm: testutil.Password,
	})
	require.NoError(t, err)
	assert.False(t, registered.User.Enabled)
	assert.Equal(t, user.RoleStudent, registered.User.Role)
	assert.Empty(t, env.Mail.SentMessages())

	_, err = env.UserSvc.RegisterStudent(ctx, user.RegisterStudent{
		Name: "Ana Bis", Email: "ana@alumnos.ubiobio.cl", Rut: "11111111-1", Career: "ICI", Password: testutil.Password,
	})
	assert.Equal(t, user.ErrEmailExists, err)

	_, err = env.UserSvc.RegisterStudent(ctx, user.RegisterStudent{
		Name: "Ana Ter", Email: "ana.ter@alumnos.ubiobio.cl", Rut: "12345678-5", Career: "ICI", Password: testutil.Password,
	})
	assert.Equal(t, user.ErrRutExists, err)
	_, err = env.UserSvc.GetByEmail(ctx, "ana.ter@alumnos.ubiobio.cl")
	assert.Equal(t, user.ErrNotFound, err, "the user must be rolled back with the student")

	enabled, err := env.UserSvc.EnableStudent(ctx, registered.ID)
	require.NoError(t, err)
	assert.True(t, enabled.User.Enabled)
	_, err = env.UserSvc.EnableStudent(ctx, registered.ID)
	assert.NoError(t, err)
	_, err = env.UserSvc.EnableStudent(ctx, 999)
	assert.Equal(t, user.ErrStudentNotFound, err)

	// created by coordination without password: welcome mail with a set-password link
	created, err := env.UserSvc.CreateStudent(ctx, user.NewStudent{
		Name: "Luis Soto", Email: "luis@alumnos.ubiobio.cl", Rut: "11111111-1", Career: "ICI",
	})
	require.NoError(t, err)
	assert.True(t, created.User.Enabled)
	msgs := env.Mail.SentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "welcome", msgs[0].TemplateName)
	assert.Equal(t, user.EncodeUID(created.User), mailField(t, env, "UID"))

	_, err = env.UserSvc.Authenticate(ctx, created.User.Email, "")
	assert.Equal(t, user.ErrInvalidCredentials, err)

	byUser, err := env.UserSvc.GetStudentByUserID(ctx, created.UserID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byUser.ID)

	students, err := env.UserSvc.QueryStudents(ctx, user.QueryFilter{Search: " soto "})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, created.ID, students[0].ID)
}

func TestService_passwordReset(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()

	st := testutil.CreateStudent(t, env.UserRepo, "Ana Pérez", "ana@alumnos.ubiobio.cl", "12345678-5", testutil.Password, true)
	pending := testutil.CreateStudent(t, env.UserRepo, "Luis Soto", "luis@alumnos.ubiobio.cl", "11111111-1", testutil.Password, false)

	assert.Equal(t, user.ErrNotFound, env.UserSvc.RequestPasswordReset(ctx, "nobody@ubiobio.cl"))
	assert.Equal(t, user.ErrAccountDisabled, env.UserSvc.RequestPasswordReset(ctx, pending.User.Email))
	assert.Empty(t, env.Mail.SentMessages())

	require.NoError(t, env.UserSvc.RequestPasswordReset(ctx, st.User.Email))
	uid, token := mailField(t, env, "UID"), mailField(t, env, "Token")
	require.NotEmpty(t, token)

	invalid := func(err error) {
		t.Helper()
		verr, ok := err.(*core.ValidationError)
		if assert.True(t, ok, "want a *core.ValidationError, got %v", err) {
			assert.Equal(t, []core.FieldError{{Field: "token", Error: "invalid or expired link"}}, verr.Fields)
		}
	}
	invalid(env.UserSvc.ResetPassword(ctx, user.ResetUserPassword{UID: "!!", Token: token, Password: "n3w-Passw0rd"}))
	invalid(env.UserSvc.ResetPassword(ctx, user.ResetUserPassword{UID: user.EncodeUID(user.User{ID: 999}), Token: token, Password: "n3w-Passw0rd"}))
	invalid(env.UserSvc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: "bogus-token", Password: "n3w-Passw0rd"}))

	require.NoError(t, env.UserSvc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: token, Password: "n3w-Passw0rd"}))
	_, err := env.UserSvc.Authenticate(ctx, st.User.Email, "n3w-Passw0rd")
	assert.NoError(t, err)

	// one-time link
	invalid(env.UserSvc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: token, Password: "other-Passw0rd"}))
}
