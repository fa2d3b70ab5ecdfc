// Package logger builds the zerolog loggers used across the auto-responder
// and bridges them into whatsmeow's logging interface.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// New returns a logger writing to w in the given format ("console" or
// "json") at the given level. Unknown levels fall back to info.
func New(w io.Writer, format, level, role string) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	l := zerolog.New(w).Level(lvl).With().Timestamp()
	if role != "" {
		l = l.Str("role", role)
	}
	return l.Logger()
}

// WhatsApp returns a whatsmeow logger for one of its modules ("Client",
// "Database"). whatsmeow is chatty, so its floor is warn unless the bot
// itself runs at debug.
func WhatsApp(log zerolog.Logger, module string) waLog.Logger {
	sub := log.With().Str("module", module).Logger()
	if log.GetLevel() > zerolog.DebugLevel && log.GetLevel() < zerolog.WarnLevel {
		sub = sub.Level(zerolog.WarnLevel)
	}
	return waLog.Zerolog(sub)
}
