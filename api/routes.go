package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/GlintPay/gsni/certmap"
	"github.com/GlintPay/gsni/config"
	"github.com/emirpasic/gods/sets/treeset"
	"github.com/go-chi/chi/v5"
	"github.com/riandyrn/otelchi"
	"github.com/rs/zerolog/log"
)

const (
	applicationJSON = "application/json"
)

type Routing struct {
	ServerName   string
	ParentRouter chi.Router

	AppConfig config.ApplicationConfiguration
	Listeners []Listener
}

func (rtr *Routing) SetupFunctionalRoutes(r chi.Router) error {
	if e := rtr.enableOTelForRouter(r); e != nil {
		return e
	}

	r.Get("/certificates", rtr.hostnamesHandler())
	r.Get("/certificates/{hostname}", rtr.certificateHandler())

	return nil
}

func (rtr *Routing) hostnamesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		queries := r.URL.Query()
		acme := overrideBooleanDefault(queries.Get("acme"), false)

		hostnames := treeset.NewWithStringComparator()
		for _, l := range rtr.Listeners {
			lister, ok := rtr.mapFor(l, acme).(certmap.Lister)
			if !ok {
				continue
			}

			names, err := lister.Hostnames(r.Context())
			if err != nil {
				rtr.writeError(w, fmt.Errorf("%s: %w", l.Name, err))
				return
			}
			for _, name := range names {
				hostnames.Add(name)
			}
		}

		sorted := make([]string, 0, hostnames.Size())
		for _, each := range hostnames.Values() {
			sorted = append(sorted, each.(string))
		}

		bytes, err := marshalResponseJson(sorted, overrideBooleanDefault(queries.Get("pretty"), false))
		rtr.handleOutput(w, err, bytes)
	}
}

// certificateHandler describes what the first listener holding the hostname would serve
func (rtr *Routing) certificateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		queries := r.URL.Query()
		acme := overrideBooleanDefault(queries.Get("acme"), false)

		hostname, err := certmap.Normalize(chi.URLParam(r, "hostname"))
		if err != nil {
			rtr.writeError(w, err)
			return
		}

		for _, l := range rtr.Listeners {
			m := rtr.mapFor(l, acme)
			if m == nil {
				continue
			}

			cert, err := m.Certificate(r.Context(), hostname)
			if errors.Is(err, certmap.ErrNoCertificate) {
				continue
			} else if err != nil {
				rtr.writeError(w, fmt.Errorf("%s: %w", l.Name, err))
				return
			}

			desc, err := describe(l.Name, hostname, cert)
			if err != nil {
				rtr.writeError(w, err)
				return
			}

			bytes, err := marshalResponseJson(desc, overrideBooleanDefault(queries.Get("pretty"), false))
			rtr.handleOutput(w, err, bytes)
			return
		}

		rtr.writeError(w, fmt.Errorf("%s: %w", hostname, certmap.ErrNoCertificate))
	}
}

func (rtr *Routing) mapFor(l Listener, acme bool) certmap.Map {
	if acme {
		return l.Acme
	}
	return l.Mapping
}

func marshalResponseJson(val interface{}, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(val, "", "  ")
	}
	return json.Marshal(val)
}

func (rtr *Routing) handleOutput(w http.ResponseWriter, err error, bytes []byte) {
	if err != nil {
		rtr.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", applicationJSON)
	_, _ = w.Write(bytes)
}

func (rtr *Routing) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, certmap.ErrNoCertificate) || errors.Is(err, certmap.ErrInvalidHostname) {
		status = http.StatusNotFound
	}

	w.Header().Set("Content-Type", applicationJSON)
	w.WriteHeader(status)

	info := map[string]interface{}{"message": err.Error()}
	_ = json.NewEncoder(w).Encode(info)

	if status == http.StatusNotFound {
		log.Debug().Err(err).Msg("Not found")
	} else {
		log.Error().Err(err).Stack().Msg("Response error")
	}
}

func (rtr *Routing) enableOTelForRouter(r chi.Router) error {
	if !rtr.AppConfig.Tracing.Enabled {
		return nil
	}

	if rtr.ServerName == "" || rtr.ParentRouter == nil {
		return errors.New("OTel not configured")
	}

	r.Use(otelchi.Middleware(rtr.ServerName, otelchi.WithChiRoutes(rtr.ParentRouter)))

	log.Info().Msgf("OpenTelemetry trace is enabled")
	return nil
}

func overrideBooleanDefault(queryValue string, defaultVal bool) bool {
	reqVal := strings.ToLower(queryValue)
	if reqVal == "true" {
		return true
	} else if reqVal == "false" {
		return false
	}
	return defaultVal
}
