package relocate

import (
	"net/http"
	"strconv"

	querystring "github.com/always-cache/relocate/pkg/query-string"
	guard "github.com/always-cache/relocate/pkg/response-guard"

	"go.opentelemetry.io/otel/attribute"
)

// Options control how a redirect URL is composed and issued.
type Options struct {
	// Prefix for the redirect path. Defaults to Config.BaseURL.
	Base string
	// Fragment appended as `#anchor` if not empty.
	Anchor string
	// HTTP status of the redirect. Defaults to 302.
	Status int
	// Percent-encode parameter keys and values. Both default to true.
	EncodeKeys   bool
	EncodeValues bool
}

// Option overrides a single default of Options.
type Option func(*Options)

// WithBase sets the prefix for the redirect path.
func WithBase(base string) Option {
	return func(o *Options) {
		o.Base = base
	}
}

// WithAnchor sets the URL fragment.
func WithAnchor(anchor string) Option {
	return func(o *Options) {
		o.Anchor = anchor
	}
}

// WithStatus sets the redirect status.
// Codes that are not redirects (3xx) are ignored.
func WithStatus(status int) Option {
	return func(o *Options) {
		if status >= 300 && status <= 399 {
			o.Status = status
		}
	}
}

// WithKeyEncoding turns percent-encoding of parameter keys on or off.
func WithKeyEncoding(encode bool) Option {
	return func(o *Options) {
		o.EncodeKeys = encode
	}
}

// WithValueEncoding turns percent-encoding of parameter values on or off.
func WithValueEncoding(encode bool) Option {
	return func(o *Options) {
		o.EncodeValues = encode
	}
}

// Options returns the defaults of this Relocator with opts applied in order.
func (rl *Relocator) Options(opts ...Option) Options {
	o := Options{
		Base:         rl.base,
		Status:       http.StatusFound,
		EncodeKeys:   true,
		EncodeValues: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// ComposeURL builds `base + path + query string + #anchor`.
func ComposeURL(path string, params querystring.Params, opts Options) string {
	url := opts.Base + path
	url += querystring.Build(params, opts.EncodeValues, opts.EncodeKeys)
	if opts.Anchor != "" {
		url += "#" + opts.Anchor
	}
	return url
}

// Redirect is a redirect response.
// Once issued, nothing else may be written to the response.
type Redirect struct {
	Location string
	Status   int
}

// ServeHTTP writes the Location header and the status, without a body.
func (rd Redirect) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := rd.Status
	if status == 0 {
		status = http.StatusFound
	}
	w.Header().Set("Location", rd.Location)
	w.WriteHeader(status)
}

// Issue writes the redirect and halts the response.
// The handler must return right after; any further writes are discarded.
func (rl *Relocator) Issue(w http.ResponseWriter, r *http.Request, rd Redirect) Redirect {
	return rl.issue(w, r, rd, "custom")
}

func (rl *Relocator) issue(w http.ResponseWriter, r *http.Request, rd Redirect, kind string) Redirect {
	if rd.Status == 0 {
		rd.Status = http.StatusFound
	}
	_, span := rl.tracer.Start(r.Context(), "relocate."+kind)
	span.SetAttributes(
		attribute.String("relocate.location", rd.Location),
		attribute.Int("relocate.status", rd.Status),
	)
	defer span.End()

	rd.ServeHTTP(w, r)
	if !guard.Halt(w) {
		rl.logger(r).Trace().Msg("Response writer not guarded, relying on handler to return")
	}
	rl.metrics.redirect(kind, rd.Status)
	rl.logger(r).Debug().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Str("location", rd.Location).
		Str("status", strconv.Itoa(rd.Status)).
		Str("kind", kind).
		Msg("Redirecting client")
	return rd
}

// To redirects the client to the given path below the base.
func (rl *Relocator) To(w http.ResponseWriter, r *http.Request, path string, params querystring.Params, opts ...Option) Redirect {
	return rl.to(w, r, path, params, "to", opts)
}

func (rl *Relocator) to(w http.ResponseWriter, r *http.Request, path string, params querystring.Params, kind string, opts []Option) Redirect {
	o := rl.Options(opts...)
	return rl.issue(w, r, Redirect{
		Location: ComposeURL(path, params, o),
		Status:   o.Status,
	}, kind)
}

// Home redirects the client to the base itself.
func (rl *Relocator) Home(w http.ResponseWriter, r *http.Request, params querystring.Params, anchor string) Redirect {
	return rl.to(w, r, "", params, "home", []Option{WithAnchor(anchor)})
}

// Back redirects the client to the last location in the history that is not the current one.
// Without such a location, the client is sent to the base.
func (rl *Relocator) Back(w http.ResponseWriter, r *http.Request, params querystring.Params, opts ...Option) Redirect {
	return rl.to(w, r, rl.LastLocation(r, true, 0), params, "back", opts)
}
