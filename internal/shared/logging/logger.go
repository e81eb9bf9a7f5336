package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a component-tagged zerolog logger. Console output is used when
// ENV is "development", JSON otherwise.
func New(component string) zerolog.Logger {
	env := strings.ToLower(os.Getenv("ENV"))
	var l zerolog.Logger
	if env == "" || env == "development" || env == "dev" {
		writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		l = zerolog.New(writer)
	} else {
		l = zerolog.New(os.Stdout)
	}
	return l.With().Timestamp().Str("component", component).Logger()
}
