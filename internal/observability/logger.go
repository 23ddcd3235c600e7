package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pipewright/pipewright/internal/logging"
)

// InitLogger applies the runtime logging profile and tags the process
// logger with the application name. Env overrides (PIPEWRIGHT_LOG_*) are
// honored through the logging package.
func InitLogger(app string) zerolog.Logger {
	logging.ConfigureRuntime()
	logger := log.With().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
