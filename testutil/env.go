package testutil

import (
	"io"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/application"
	"github.com/practicas-ubb/practicas/core/offer"
	"github.com/practicas-ubb/practicas/core/practice"
	"github.com/practicas-ubb/practicas/core/user"
	emailsvc "github.com/practicas-ubb/practicas/services/email"
	eventsvc "github.com/practicas-ubb/practicas/services/events"
	logsvc "github.com/practicas-ubb/practicas/services/logger"
	inmemdb "github.com/practicas-ubb/practicas/storage/database/inmem"
)

// Env wires the services on top of the in-memory repositories.
type Env struct {
	Conf   *core.Config
	Logger core.Logger
	DB     *inmemdb.DB
	Mail   *emailsvc.ConsoleServiceMock
	Events *eventsvc.LogPublisher

	UserRepo        user.Repository
	OfferRepo       offer.Repository
	ApplicationRepo application.Repository
	PracticeRepo    practice.Repository

	UserSvc        user.Service
	OfferSvc       offer.Service
	ApplicationSvc application.Service
	PracticeSvc    practice.Service
}

func NewEnv() *Env {
	conf := core.NewTestConfig()
	logger := NewLogger(conf)
	db := inmemdb.Open()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	events := eventsvc.NewLogPublisher(nil)

	env := &Env{
		Conf:            conf,
		Logger:          logger,
		DB:              db,
		Mail:            mailSvc,
		Events:          events,
		UserRepo:        inmemdb.NewUserRepository(db),
		OfferRepo:       inmemdb.NewOfferRepository(db),
		ApplicationRepo: inmemdb.NewApplicationRepository(db),
		PracticeRepo:    inmemdb.NewPracticeRepository(db),
	}
	env.UserSvc = user.NewService(db, env.UserRepo, mailSvc, conf)
	env.OfferSvc = offer.NewService(env.OfferRepo)
	env.ApplicationSvc = application.NewService(
		db, env.ApplicationRepo, env.OfferRepo, env.PracticeRepo, env.UserRepo, mailSvc, events, logger,
	)
	env.PracticeSvc = practice.NewService(db, env.PracticeRepo, env.UserRepo, mailSvc, events, logger)
	return env
}

// Reset empties the database and forgets sent mails & published events.
func (env *Env) Reset() {
	env.DB.Reset()
	env.Mail.Reset()
	env.Events.Reset()
}

// NewLogger returns a logger writing nowhere.
func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "TEST : ", log.LstdFlags), conf)
	logger.Enable(false)
	return logger
}

// NewValidator returns a validator with every custom validation registered.
func NewValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}
