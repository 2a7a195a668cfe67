package log

import (
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/log"
)

// AppOut returns an io.Writer to write app output to, like logs.
// This falls back to os.Stdout if the app does not specify a writer.
func AppOut(ctx *cli.Context) io.Writer {
	if ctx == nil || ctx.App == nil || ctx.App.Writer == nil {
		return os.Stdout
	}
	return ctx.App.Writer
}

// NewLogger creates a logger based on the supplied configuration,
// writing to the given writer.
func NewLogger(wr io.Writer, cfg CLIConfig) log.Logger {
	handler := log.StreamHandler(wr, cfg.Format.Formatter(cfg.Color))
	handler = log.SyncHandler(handler)
	handler = log.LvlFilterHandler(cfg.Level, handler)
	logger := log.New()
	logger.SetHandler(handler)
	return logger
}

// SetGlobalLogHandler sets the log handler of the global logger instance.
// Some components like go-ethereum's RPC server use the global logger,
// so it is important to set it up correctly.
func SetGlobalLogHandler(h log.Handler) {
	log.Root().SetHandler(h)
}
