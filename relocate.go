package relocate

import (
	"net/http"

	"github.com/always-cache/relocate/history"
	guard "github.com/always-cache/relocate/pkg/response-guard"
	trackrules "github.com/always-cache/relocate/pkg/track-rules"
	"github.com/always-cache/relocate/session"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/always-cache/relocate"

type Config struct {
	// Site root that redirect paths are appended to, e.g. `https://example.com`.
	BaseURL string
	// Number of locations kept per session. Defaults to history.DefaultCapacity.
	Capacity int
	// Optional function returning the history store of a request.
	// The session attached by session.Manager is used if nil.
	Store func(*http.Request) (history.Store, error)
	// Optional function returning the location of the current request.
	// Defaults to the request URI (path and query).
	CurrentURL func(*http.Request) string
	// Rules deciding which requests Track records. Only GET requests are recorded if empty.
	Rules trackrules.Rules
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Registerer for Prometheus metrics. Metrics are not registered if nil.
	Registerer prometheus.Registerer
}

type Relocator struct {
	base       string
	capacity   int
	store      func(*http.Request) (history.Store, error)
	currentURL func(*http.Request) string
	rules      trackrules.Rules
	log        zerolog.Logger
	metrics    *metrics
	tracer     trace.Tracer
}

// New creates a Relocator from the given config.
func New(config Config) *Relocator {
	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}

	// create a child logger and add defaults
	logger = logger.With().
		Str("base", config.BaseURL).
		Logger()

	r := &Relocator{
		base:       config.BaseURL,
		capacity:   config.Capacity,
		store:      config.Store,
		currentURL: config.CurrentURL,
		rules:      config.Rules,
		log:        logger,
		metrics:    newMetrics(config.Registerer),
		tracer:     otel.Tracer(tracerName),
	}
	if r.capacity <= 0 {
		r.capacity = history.DefaultCapacity
	}
	if r.store == nil {
		r.store = sessionStore
	}
	if r.currentURL == nil {
		r.currentURL = requestURI
	}
	return r
}

func sessionStore(r *http.Request) (history.Store, error) {
	s, err := session.FromRequest(r)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func requestURI(r *http.Request) string {
	return r.URL.RequestURI()
}

// History returns the location history of the request's session.
func (rl *Relocator) History(r *http.Request) (*history.History, error) {
	store, err := rl.store(r)
	if err != nil {
		return nil, err
	}
	return history.New(store, rl.capacity), nil
}

// RecordCurrentLocation adds the location of the current request to the history.
func (rl *Relocator) RecordCurrentLocation(r *http.Request) error {
	logger := rl.logger(r)
	h, err := rl.History(r)
	if err != nil {
		logger.Error().Err(err).Msg("Could not get location history")
		return err
	}
	location := rl.currentURL(r)
	evicted, err := h.Append(location)
	if err != nil {
		logger.Error().Err(err).Str("location", location).Msg("Could not record location")
		return err
	}
	rl.metrics.recorded.Inc()
	rl.metrics.evicted.Add(float64(evicted))
	logger.Trace().Str("location", location).Int("evicted", evicted).Msg("Recorded location")
	return nil
}

// LastLocation returns a previously visited location, newest first, starting at offset.
// If skipCurrent is set, entries equal to the current request location are passed over.
// It returns an empty string if there is no such location.
func (rl *Relocator) LastLocation(r *http.Request, skipCurrent bool, offset int) string {
	logger := rl.logger(r)
	h, err := rl.History(r)
	if err != nil {
		logger.Error().Err(err).Msg("Could not get location history")
		return ""
	}
	last, err := h.Last(rl.currentURL(r), skipCurrent, offset)
	if err != nil {
		logger.Error().Err(err).Msg("Could not read location history")
		return ""
	}
	return last
}

// Track records the location of requests matched by the configured rules
// before passing them on. The response writer is guarded, so that nothing
// is written after a redirect was issued.
func (rl *Relocator) Track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.rules.Track(r) {
			// a failed recording must not fail the request, it is logged already
			_ = rl.RecordCurrentLocation(r)
		}
		next.ServeHTTP(rl.guardWriter(w, r), r)
	})
}

func (rl *Relocator) guardWriter(w http.ResponseWriter, r *http.Request) *guard.ResponseGuard {
	return guard.New(w, func(n int) {
		rl.metrics.discarded.Inc()
		rl.logger(r).Warn().
			Str("url", r.URL.String()).
			Int("bytes", n).
			Msg("Discarding write after redirect")
	})
}

// logger returns the logger from the request context.
// If no logger is found, it will return the instance logger.
func (rl *Relocator) logger(r *http.Request) *zerolog.Logger {
	logger := hlog.FromRequest(r)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &rl.log
	}
	return logger
}
