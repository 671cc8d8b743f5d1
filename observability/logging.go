package observability

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var ErrUnknownLogLevel = errors.New("observability: unknown log level")

func SetLoggingLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// ParseLevel maps a config string ("debug", "info", "disabled", ...) to a zerolog level.
func ParseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}

	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.NoLevel, errors.Wrapf(ErrUnknownLogLevel, "%q", s)
	}
	return level, nil
}
