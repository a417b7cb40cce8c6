package logging

import (
	"io"
	"net/http"

	"github.com/go-chi/httplog"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

func Setup(w io.Writer, level string) {
	zerolog.TimeFieldFormat = "2006-01-02T15:04:05.000"
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	log.Logger = zerolog.New(w).With().Timestamp().Caller().Logger()

	if err != nil {
		log.Warn().Msgf("Unknown log level %q, using info", level)
	}
}

// RequestLogger chi middleware logging one line per request.
// httplog reconfigures the zerolog globals when creating its logger, so Setup is applied again afterwards.
func RequestLogger(w io.Writer, serviceName string, level string) func(next http.Handler) http.Handler {
	logger := httplog.NewLogger(serviceName, httplog.Options{
		LogLevel: level,
		JSON:     true,
	})
	Setup(w, level)
	return httplog.RequestLogger(logger.Output(w))
}
