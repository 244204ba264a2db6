package main

import (
	"github.com/alecthomas/kong"
	"gorm.io/gorm"
)

type Context struct {
	Debug bool

	gorm.Config
	gorm.Dialector
}

var cli struct {
	Debug bool   `help:"Enable debug mode."`
	DSN   string `required:"" help:"data source name"`

	Serve          ServeCmd          `cmd:"" help:"Serve a local web server."`
	AutoMigrate    AutoMigrateCmd    `cmd:"" help:"Create or update the database schema."`
	CreateInstance CreateInstanceCmd `cmd:"" help:"Create a new instance."`
	CreateAccount  CreateAccountCmd  `cmd:"" help:"Create a new account."`
	Follow         FollowCmd         `cmd:"" help:"Follow a remote actor."`
	FetchActor     FetchActorCmd     `cmd:"" help:"Fetch an actor's document."`
	Housekeeping   HousekeepingCmd   `cmd:"" help:"Delete orphaned rows."`
}

func main() {
	ctx := kong.Parse(&cli)
	err := ctx.Run(&Context{
		Debug:     cli.Debug,
		Dialector: newDialector(cli.DSN),
	})
	ctx.FatalIfErrorf(err)
}
