package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/practicas-ubb/practicas/apps/api/echo"
	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/application"
	"github.com/practicas-ubb/practicas/core/offer"
	"github.com/practicas-ubb/practicas/core/practice"
	"github.com/practicas-ubb/practicas/core/user"
	emailsvc "github.com/practicas-ubb/practicas/services/email"
	eventsvc "github.com/practicas-ubb/practicas/services/events"
	logsvc "github.com/practicas-ubb/practicas/services/logger"
	"github.com/practicas-ubb/practicas/services/ratelimit"
	"github.com/practicas-ubb/practicas/storage/database"
	sqlxrepos "github.com/practicas-ubb/practicas/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(logger, conf)
	}
	return emailsvc.NewSendgridService(logger, conf)
}

// newEventPublisher publishes to RabbitMQ when a broker is configured, to the logs otherwise.
func newEventPublisher(conf *core.Config, logger core.Logger) core.EventPublisher {
	if conf.Broker.URL == "" {
		return eventsvc.NewLogPublisher(logger)
	}
	pub, err := eventsvc.NewRabbitMQPublisher(logger, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("connecting to broker: %v", err), err)
	}
	return pub
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

func newUserRepository(db *sqlx.DB) user.Repository { return sqlxrepos.NewUserRepository(db) }

func newOfferRepository(db *sqlx.DB) offer.Repository { return sqlxrepos.NewOfferRepository(db) }

func newApplicationRepository(db *sqlx.DB) application.Repository {
	return sqlxrepos.NewApplicationRepository(db)
}

func newPracticeRepository(db *sqlx.DB) practice.Repository {
	return sqlxrepos.NewPracticeRepository(db)
}

type depsParam struct {
	dig.In
	DB             *sqlx.DB
	Validate       *validator.Validate
	Translator     ut.Translator
	LoginLimiter   ratelimit.Limiter
	UserSvc        user.Service
	OfferSvc       offer.Service
	ApplicationSvc application.Service
	PracticeSvc    practice.Service
}

func newDeps(p depsParam) *echoapi.Deps {
	return &echoapi.Deps{
		Validate:       p.Validate,
		Translator:     p.Translator,
		DB:             p.DB,
		LoginLimiter:   p.LoginLimiter,
		UserSvc:        p.UserSvc,
		OfferSvc:       p.OfferSvc,
		ApplicationSvc: p.ApplicationSvc,
		PracticeSvc:    p.PracticeSvc,
	}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(database.NewTransactor))
	must(c.Provide(newEmailService))
	must(c.Provide(newEventPublisher))
	must(c.Provide(ratelimit.NewLoginLimiter))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))

	must(c.Provide(newUserRepository))
	must(c.Provide(newOfferRepository))
	must(c.Provide(newApplicationRepository))
	must(c.Provide(newPracticeRepository))

	must(c.Provide(user.NewService))
	must(c.Provide(offer.NewService))
	must(c.Provide(application.NewService))
	must(c.Provide(practice.NewService))

	must(c.Provide(newDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
