package main

import (
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	appfs "github.com/practicas-ubb/practicas/fs"
)

var gooseRunFunc = goose.Run // mockable

// migrate runs a goose command against the embedded migrations.
func (cli *commandLine) migrate(args []string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "setting goose dialect")
	}
	return gooseRunFunc(args[0], cli.db, appfs.MigrationsDir, args[1:]...)
}
