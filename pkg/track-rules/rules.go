package trackrules

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// Rules decide which requests are recorded in the location history.
// The first matching rule wins.
type Rules []Rule

type Rule struct {
	Prefix string            `yaml:"prefix"`
	Path   string            `yaml:"path"`
	Method string            `yaml:"method"`
	Query  map[string]string `yaml:"query"`
	Header map[string]string `yaml:"header"`
	// Ignore matching requests instead of recording them.
	Ignore bool `yaml:"ignore"`
}

// Track reports whether the request should be recorded.
// Without a matching rule, only GET requests are recorded.
func (r Rules) Track(req *http.Request) bool {
	if rule := r.find(req); rule != nil {
		log.Trace().Str("path", req.URL.Path).Bool("ignore", rule.Ignore).Msg("Tracking rule matched")
		return !rule.Ignore
	}
	return req.Method == http.MethodGet
}

func (r Rules) find(req *http.Request) *Rule {
rulesLoop:
	for i := range r {
		rule := &r[i]
		if rule.Method == "" && req.Method != http.MethodGet {
			continue
		}
		if rule.Method != "" && !strings.EqualFold(rule.Method, req.Method) {
			continue
		}
		if rule.Path != "" && rule.Path != req.URL.Path {
			continue
		}
		if rule.Prefix != "" && !strings.HasPrefix(req.URL.Path, rule.Prefix) {
			continue
		}
		if len(rule.Query) > 0 {
			qry := req.URL.Query()
			for name, value := range rule.Query {
				if value == "" && !qry.Has(name) {
					continue rulesLoop
				} else if value != "" && qry.Get(name) != value {
					continue rulesLoop
				}
			}
		}
		for name, value := range rule.Header {
			if value == "" && req.Header.Get(name) == "" {
				continue rulesLoop
			} else if value != "" && req.Header.Get(name) != value {
				continue rulesLoop
			}
		}
		return rule
	}
	return nil
}
