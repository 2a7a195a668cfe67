package log

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/ethereum/go-ethereum/log"
)

const (
	LevelFlagName  = "log.level"
	FormatFlagName = "log.format"
	ColorFlagName  = "log.color"
)

// CLIFlags creates flag definitions for the logging utils.
// Warning: flags are not safe to reuse due to an upstream urfave default-value mutation bug.
func CLIFlags(envPrefix string) []cli.Flag {
	return []cli.Flag{
		&cli.GenericFlag{
			Name:    LevelFlagName,
			Usage:   "The lowest log level that will be output",
			Value:   NewLvlFlagValue(log.LvlInfo),
			EnvVars: prefixEnvVars(envPrefix, "LOG_LEVEL"),
		},
		&cli.GenericFlag{
			Name:    FormatFlagName,
			Usage:   "Format the log output. Supported formats: 'text', 'terminal', 'logfmt', 'json'",
			Value:   NewFormatFlagValue(FormatText),
			EnvVars: prefixEnvVars(envPrefix, "LOG_FORMAT"),
		},
		&cli.BoolFlag{
			Name:    ColorFlagName,
			Usage:   "Color the log output if in terminal mode",
			EnvVars: prefixEnvVars(envPrefix, "LOG_COLOR"),
		},
	}
}

func prefixEnvVars(prefix, name string) []string {
	return []string{prefix + "_" + name}
}

// LvlFlagValue is a value type for cli.GenericFlag to parse and validate log-level values.
type LvlFlagValue log.Lvl

func NewLvlFlagValue(lvl log.Lvl) *LvlFlagValue {
	return (*LvlFlagValue)(&lvl)
}

func (fv *LvlFlagValue) Set(value string) error {
	value = strings.ToLower(value) // ignore case
	lvl, err := log.LvlFromString(value)
	if err != nil {
		return err
	}
	*fv = LvlFlagValue(lvl)
	return nil
}

func (fv LvlFlagValue) String() string {
	return log.Lvl(fv).String()
}

func (fv LvlFlagValue) LogLvl() log.Lvl {
	return log.Lvl(fv)
}

var _ cli.Generic = (*LvlFlagValue)(nil)

// FormatType defines a type of log format.
type FormatType string

const (
	FormatText     FormatType = "text"
	FormatTerminal FormatType = "terminal"
	FormatLogFmt   FormatType = "logfmt"
	FormatJSON     FormatType = "json"
)

// Formatter turns a format type and color into a structured Format object
func (ft FormatType) Formatter(color bool) log.Format {
	switch ft {
	case FormatJSON:
		return log.JSONFormat()
	case FormatText, FormatTerminal:
		return log.TerminalFormat(color)
	case FormatLogFmt:
		return log.LogfmtFormat()
	default:
		panic(fmt.Errorf("failed to create `log.Format` for format-type=%q and color=%v", ft, color))
	}
}

// FormatFlagValue is a value type for cli.GenericFlag to parse and validate log-formatting-type values
type FormatFlagValue FormatType

func NewFormatFlagValue(fmtType FormatType) *FormatFlagValue {
	return (*FormatFlagValue)(&fmtType)
}

func (fv *FormatFlagValue) Set(value string) error {
	switch FormatType(value) {
	case FormatText, FormatTerminal, FormatLogFmt, FormatJSON:
		*fv = FormatFlagValue(value)
		return nil
	default:
		return fmt.Errorf("unrecognized log-format: %q", value)
	}
}

func (fv FormatFlagValue) String() string {
	return string(fv)
}

func (fv FormatFlagValue) FormatType() FormatType {
	return FormatType(fv)
}

var _ cli.Generic = (*FormatFlagValue)(nil)

type CLIConfig struct {
	Level  log.Lvl
	Color  bool
	Format FormatType
}

func DefaultCLIConfig() CLIConfig {
	return CLIConfig{
		Level:  log.LvlInfo,
		Format: FormatText,
	}
}

func ReadCLIConfig(ctx *cli.Context) CLIConfig {
	cfg := DefaultCLIConfig()
	cfg.Level = ctx.Generic(LevelFlagName).(*LvlFlagValue).LogLvl()
	cfg.Format = ctx.Generic(FormatFlagName).(*FormatFlagValue).FormatType()
	if ctx.IsSet(ColorFlagName) {
		cfg.Color = ctx.Bool(ColorFlagName)
	} else {
		cfg.Color = term.IsTerminal(int(os.Stdout.Fd()))
	}
	return cfg
}
