package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/application"
	"github.com/practicas-ubb/practicas/core/offer"
	"github.com/practicas-ubb/practicas/core/practice"
	"github.com/practicas-ubb/practicas/core/user"
	"github.com/practicas-ubb/practicas/storage/database"
	sqlxrepos "github.com/practicas-ubb/practicas/storage/database/sqlx"
)

var logger *log.Logger

type commandLine struct {
	db           *sql.DB // migrations only
	tx           core.Transactor
	usrRepo      user.Repository
	offerRepo    offer.Repository
	appRepo      application.Repository
	practiceRepo practice.Repository
}

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	errAndDie(db.Ping())

	// start CLI
	cli := commandLine{
		db:           db.DB,
		tx:           database.NewTransactor(db),
		usrRepo:      sqlxrepos.NewUserRepository(db),
		offerRepo:    sqlxrepos.NewOfferRepository(db),
		appRepo:      sqlxrepos.NewApplicationRepository(db),
		practiceRepo: sqlxrepos.NewPracticeRepository(db),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
