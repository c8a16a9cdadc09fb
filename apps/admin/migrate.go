package main

import "github.com/paridhisingla/unisync/storage/database"

var runMigrationsFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(command string, args ...string) error {
	return runMigrationsFunc(cli.db, cli.logger, command, args...)
}
