package main

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/params"

	thryx "github.com/lordbasilaiassistant-sudo/thryx-chain"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/api"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/common/cliapp"
	oplog "github.com/lordbasilaiassistant-sudo/thryx-chain/common/log"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/common/opio"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/config"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/database"
	flag2 "github.com/lordbasilaiassistant-sudo/thryx-chain/flag"
)

func runBridge(ctx *cli.Context, shutdown context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	log := oplog.NewLogger(oplog.AppOut(ctx), oplog.ReadCLIConfig(ctx)).New("role", "bridge")
	oplog.SetGlobalLogHandler(log.GetHandler())
	log.Info("running bridge...")

	cfg, err := config.LoadConfig(log, ctx)
	if err != nil {
		log.Error("failed to load config", "err", err)
		return nil, err
	}

	return thryx.NewThryx(ctx.Context, log, &cfg, shutdown)
}

func runApi(ctx *cli.Context, _ context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	log := oplog.NewLogger(oplog.AppOut(ctx), oplog.ReadCLIConfig(ctx)).New("role", "api")
	oplog.SetGlobalLogHandler(log.GetHandler())
	log.Info("running api...")
	cfg, err := config.LoadConfig(log, ctx)
	if err != nil {
		log.Error("failed to load config", "err", err)
		return nil, err
	}
	return api.NewApi(ctx.Context, log, &cfg)
}

func runMigrations(ctx *cli.Context) error {
	ctx.Context = opio.CancelOnInterrupt(ctx.Context)
	log := oplog.NewLogger(oplog.AppOut(ctx), oplog.ReadCLIConfig(ctx)).New("role", "migrations")
	oplog.SetGlobalLogHandler(log.GetHandler())
	log.Info("running migrations...")
	cfg, err := config.LoadConfig(log, ctx)
	if err != nil {
		log.Error("failed to load config", "err", err)
		return err
	}
	db, err := database.NewDB(ctx.Context, log, cfg.MasterDB)
	if err != nil {
		log.Error("failed to connect to database", "err", err)
		return err
	}
	defer db.Close()
	return db.ExecuteSQLMigration(cfg.Migrations)
}

func newCli(GitCommit string, GitDate string) *cli.App {
	flags := oplog.CLIFlags("THRYX_BRIDGE")
	flags = append(flags, flag2.Flags...)
	return &cli.App{
		Version:              params.VersionWithCommit(GitCommit, GitDate),
		Description:          "A value bridge between Base and the Thryx chain with a serving api layer",
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			{
				Name:        "api",
				Flags:       flags,
				Description: "Runs the api service",
				Action:      cliapp.LifecycleCmd(runApi),
			},
			{
				Name:        "bridge",
				Flags:       flags,
				Description: "Runs the bridge service",
				Action:      cliapp.LifecycleCmd(runBridge),
			},
			{
				Name:        "migrate",
				Flags:       flags,
				Description: "Runs the database migrations",
				Action:      runMigrations,
			},
			{
				Name:        "version",
				Description: "print version",
				Action: func(ctx *cli.Context) error {
					cli.ShowVersion(ctx)
					return nil
				},
			},
		},
	}
}
