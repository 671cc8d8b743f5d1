package test

import (
	"mvdb/observability"

	"github.com/rs/zerolog"
)

func DisableLogging() {
	observability.SetLoggingLevel(zerolog.Disabled)
}
