package user

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/practicas-ubb/practicas/core"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("user")
	ErrStudentNotFound    = core.NewNotFoundError("student")
	ErrEmailExists        = core.NewConflictError("a user with this email already exists")
	ErrRutExists          = core.NewConflictError("a student with this RUT already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account deactivated")
)

type (
	Repository interface {
		// CreateUser returns ErrEmailExists when the email is taken.
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// CreateStudent returns ErrRutExists when the RUT is taken.
		CreateStudent(ctx context.Context, st Student, exec ...core.DBExecutor) (Student, error)
		GetStudent(ctx context.Context, filter StudentFilter, exec ...core.DBExecutor) (Student, error)
		// QueryStudents returns students ordered by name.
		QueryStudents(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Student, error)
	}

	Service interface {
		// Authenticate checks the credentials and stamps the last login.
		Authenticate(ctx context.Context, email, pwd string) (User, error)
		Create(ctx context.Context, nu NewUser) (User, error)
		RegisterStudent(ctx context.Context, rs RegisterStudent) (Student, error)
		CreateStudent(ctx context.Context, ns NewStudent) (Student, error)
		EnableStudent(ctx context.Context, id int64) (Student, error)
		GetByID(ctx context.Context, id int64) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetStudent(ctx context.Context, id int64) (Student, error)
		GetStudentByUserID(ctx context.Context, userID int64) (Student, error)
		QueryStudents(ctx context.Context, filter QueryFilter) ([]Student, error)
		SetPassword(ctx context.Context, usr User, pwd string) (User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
	}

	service struct {
		tx       core.Transactor
		repo     Repository
		mailSvc  core.EmailService
		tokenGen tokenGenerator
	}
)

var _ Service = (*service)(nil)

func NewService(tx core.Transactor, repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{
		tx:       tx,
		repo:     repo,
		mailSvc:  mailSvc,
		tokenGen: newTokenGenerator(conf),
	}
}

func (svc *service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.CanLogin() {
		return User{}, ErrAccountDisabled
	}

	usr.LastLogin = null.TimeFrom(core.Now())
	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "setting last login")
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := core.Now()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) createStudent(ctx context.Context, name, email, rut, career, pwd string, enabled bool) (Student, error) {
	now := core.Now()
	usr := User{
		Name:      name,
		Email:     email,
		Role:      RoleStudent,
		Enabled:   enabled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			return Student{}, err
		}
	}

	var st Student
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if usr, err = svc.repo.CreateUser(ctx, usr, exec); err != nil {
			return err
		}
		st, err = svc.repo.CreateStudent(ctx, Student{
			UserID:    usr.ID,
			Rut:       rut,
			Career:    career,
			CreatedAt: now,
		}, exec)
		return err
	})
	if err != nil {
		return Student{}, err
	}
	st.User = usr
	return st, nil
}

func (svc *service) RegisterStudent(ctx context.Context, rs RegisterStudent) (Student, error) {
	return svc.createStudent(ctx, rs.Name, rs.Email, rs.Rut, rs.Career, rs.Password, false /* enabled */)
}

func (svc *service) CreateStudent(ctx context.Context, ns NewStudent) (Student, error) {
	st, err := svc.createStudent(ctx, ns.Name, ns.Email, ns.Rut, ns.Career, ns.Password, true /* enabled */)
	if err != nil {
		return Student{}, err
	}
	if ns.Password == "" {
		if err = svc.sendTokenMail(st.User, "welcome", "Bienvenido(a) a Prácticas"); err != nil {
			return Student{}, errors.Wrap(err, "sending welcome mail")
		}
	}
	return st, nil
}

func (svc *service) EnableStudent(ctx context.Context, id int64) (Student, error) {
	st, err := svc.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if st.User.Enabled {
		return st, nil
	}
	st.User.Enabled = true
	st.User.UpdatedAt = core.Now()
	if st.User, err = svc.repo.UpdateUser(ctx, st.User); err != nil {
		return Student{}, errors.Wrap(err, "enabling student")
	}
	return st, nil
}

func (svc *service) GetByID(ctx context.Context, id int64) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	email = core.CleanString(email, true /* lower */)
	if email == "" {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{Email: email})
}

func (svc *service) GetStudent(ctx context.Context, id int64) (Student, error) {
	return svc.repo.GetStudent(ctx, StudentFilter{ID: id})
}

func (svc *service) GetStudentByUserID(ctx context.Context, userID int64) (Student, error) {
	return svc.repo.GetStudent(ctx, StudentFilter{UserID: userID})
}

func (svc *service) QueryStudents(ctx context.Context, filter QueryFilter) ([]Student, error) {
	filter.Clean()
	return svc.repo.QueryStudents(ctx, filter)
}

func (svc *service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, err
	}
	usr.UpdatedAt = core.Now()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.CanLogin() {
		return ErrAccountDisabled
	}
	return svc.sendTokenMail(usr, "password_reset", "Restablecer contraseña")
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	invalidLink := core.NewValidationError(errInvalidToken, core.FieldError{Field: "token", Error: "invalid or expired link"})

	id, err := decodeUID(data.UID)
	if err != nil {
		return invalidLink
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalidLink
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = svc.tokenGen.verifyToken(usr, data.Token); err != nil {
		if err == errInvalidToken || err == errTokenExpired {
			return invalidLink
		}
		return err
	}
	_, err = svc.SetPassword(ctx, usr, data.Password)
	return err
}

// sendTokenMail sends a mail holding a one-time link to (re)set the User's password.
func (svc *service) sendTokenMail(usr User, tmpl, subject string) error {
	token, err := svc.tokenGen.makeToken(usr)
	if err != nil {
		return errors.Wrap(err, "making token")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: tokenMailData{
			Name:  usr.Name,
			Email: usr.Email,
			UID:   EncodeUID(usr),
			Token: token,
		},
	})
	return nil
}

type tokenMailData struct {
	Name, Email, UID, Token string
}
