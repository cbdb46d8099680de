package main

import (
	"github.com/trezcool/universidad/storage/database"
)

var runMigrationsFunc = database.RunMigrations // mockable

// migrate runs args[0] as a goose command, with the remaining args as its arguments.
func (cli *commandLine) migrate(args []string) error {
	return runMigrationsFunc(cli.db, args[0], args[1:]...)
}
