package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"citycal/internal/cli"
	appLog "citycal/internal/log"
)

const version = "0.3.0"

var CLI struct {
	Version kong.VersionFlag
	Config  string `short:"c" help:"Config file path." type:"path" default:"/etc/citycal/config.yaml"`
	Debug   bool   `help:"Enable debug logging."`

	Serve        cli.ServeCmd        `cmd:"" help:"Run the refresher and HTTP API." default:"1"`
	Dump         cli.DumpCmd         `cmd:"" help:"Refresh once and print listings."`
	Capture      cli.CaptureCmd      `cmd:"" help:"Screenshot the weekend card to PNG."`
	Publish      cli.PublishCmd      `cmd:"" help:"Refresh once and upload calendar.ics and weekend.pdf to S3."`
	Import       cli.ImportCmd       `cmd:"" help:"Copy the YAML events file into the SQLite database."`
	Series       cli.SeriesCmd       `cmd:"" help:"Pause or resume a recurring series in the database."`
	HashPassword cli.HashPasswordCmd `cmd:"" help:"Print an Argon2id hash for basic_auth.password_hash."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("citycal"),
		kong.Description("Event listings, civic specials and holiday alerts for the city guide"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	appLog.Info("citycal starting", "version", version, "command", ctx.Command())

	appCtx := &cli.Context{
		ConfigPath: CLI.Config,
		Debug:      CLI.Debug,
	}
	if err := ctx.Run(appCtx); err != nil {
		appLog.Error("command failed", err, "command", ctx.Command())
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
