package echoapi

import (
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/user"
)

const (
	contextTokenKey   = "userToken"
	contextUserKey    = "user"
	contextStudentKey = "student"

	tokenAudience = "practicas"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt   int64     `json:"oriat,omitempty"`
	Name           string    `json:"name,omitempty"`
	Email          string    `json:"email,omitempty"`
	Role           user.Role `json:"role"`
	IsStudent      bool      `json:"is_student,omitempty"`      // -> STUDENT PORTAL
	IsCoordination bool      `json:"is_coordination,omitempty"` // -> COORDINATION PORTAL
	IsEvaluator    bool      `json:"is_evaluator,omitempty"`
	IsSupervisor   bool      `json:"is_supervisor,omitempty"`
}

// UserID returns the ID of the User the token was issued to.
func (c Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// Auth issues and verifies the session tokens.
type Auth struct {
	conf      *core.Config
	jwtConfig middleware.JWTConfig
}

func NewAuth(conf *core.Config) *Auth {
	return &Auth{
		conf: conf,
		jwtConfig: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(Claims),
		},
	}
}

// Middleware rejects requests without a valid bearer token.
func (a *Auth) Middleware() echo.MiddlewareFunc {
	return middleware.JWTWithConfig(a.jwtConfig)
}

// UserClaims returns the Claims of a new session for usr; origIat carries the first issue time over refreshes.
func (a *Auth) UserClaims(usr user.User, origIat ...int64) *Claims {
	now := core.NowFunc()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    a.conf.AppName,
			Subject:   strconv.FormatInt(usr.ID, 10),
			Audience:  tokenAudience,
			ExpiresAt: now.Add(a.conf.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt:   oriat,
		Name:           usr.Name,
		Email:          usr.Email,
		Role:           usr.Role,
		IsStudent:      usr.IsStudent(),
		IsCoordination: usr.IsCoordination(),
		IsEvaluator:    usr.IsEvaluator(),
		IsSupervisor:   usr.IsSupervisor(),
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func (a *Auth) GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(a.jwtConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(a.jwtConfig.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// refreshToken issues a new token for the context user, as long as the refresh window is still open.
func (a *Auth) refreshToken(ctx echo.Context, svc user.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	usr, err := getContextUser(ctx, svc)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}
	if !usr.CanLogin() {
		return "", errAccountDeactivated
	}

	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.conf.JWTRefreshExpirationDelta)
	if core.NowFunc().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := a.GenerateToken(a.UserClaims(usr, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextUser loads the User the token was issued to, once per request.
func getContextUser(ctx echo.Context, svc user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, errors.Wrap(err, "getting context claims")
	}
	id, err := claims.UserID()
	if err != nil {
		return user.User{}, errUnauthorized
	}

	usr, err := svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

// getContextStudent loads the Student profile of the context user.
func getContextStudent(ctx echo.Context, svc user.Service) (user.Student, error) {
	if st, ok := ctx.Get(contextStudentKey).(user.Student); ok {
		return st, nil
	}

	usr, err := getContextUser(ctx, svc)
	if err != nil {
		return user.Student{}, err
	}
	st, err := svc.GetStudentByUserID(ctx.Request().Context(), usr.ID)
	if err != nil {
		if core.IsNotFound(err) {
			return user.Student{}, errHttpForbidden
		}
		return user.Student{}, errors.Wrap(err, "finding student by user ID")
	}
	ctx.Set(contextStudentKey, st)
	ctx.Set(contextUserKey, st.User)
	return st, nil
}
