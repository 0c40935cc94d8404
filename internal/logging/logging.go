// Package logging builds the zerolog loggers used by the binaries.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Profile selects defaults for a logger.
type Profile int

const (
	// Runtime logs at info to a console writer with timestamps.
	Runtime Profile = iota
	// Test logs at debug without timestamps.
	Test
)

// Options override the profile defaults. Empty fields keep the default;
// DIAMOND_LOG_LEVEL and DIAMOND_LOG_FORMAT override Options.
type Options struct {
	Level  string
	Format string // console or json
	Out    io.Writer
}

// New returns a logger for app and installs it as the zerolog global.
func New(app string, p Profile, opts Options) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if p == Test {
		level = zerolog.DebugLevel
	}
	if v := firstNonEmpty(os.Getenv("DIAMOND_LOG_LEVEL"), opts.Level); v != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(v))
		if err != nil {
			return zerolog.Nop(), err
		}
		level = l
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	format := strings.ToLower(firstNonEmpty(os.Getenv("DIAMOND_LOG_FORMAT"), opts.Format, "console"))
	if format == "console" {
		cw := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		if p == Test {
			cw.PartsExclude = []string{zerolog.TimestampFieldName}
		}
		out = cw
	}

	ctx := zerolog.New(out).Level(level).With().Str("app", app)
	if p == Runtime {
		ctx = ctx.Timestamp()
	}
	logger := ctx.Logger()
	log.Logger = logger
	return logger, nil
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
