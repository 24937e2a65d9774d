package main

import (
	"fmt"

	"github.com/trezcool/edusys/storage/database"
)

var migrateFunc = database.RunMigration // mockable

func (cli *commandLine) migrate(args []string) error {
	report, err := migrateFunc(cli.conf, args[0], args[1:]...)
	if err != nil {
		return err
	}
	if report != "" {
		fmt.Fprintln(cli.out, report)
	}
	return nil
}
