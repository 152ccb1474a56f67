package trackrules

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestDefaultTracksGetOnly(t *testing.T) {
	var rules Rules
	if !rules.Track(httptest.NewRequest("GET", "/", nil)) {
		t.Fatal("GET not tracked")
	}
	if rules.Track(httptest.NewRequest("POST", "/", nil)) {
		t.Fatal("POST tracked")
	}
}

func TestRuleFinder(t *testing.T) {
	rules := Rules{
		Rule{Prefix: "/api/", Ignore: true},
		Rule{Query: map[string]string{"partial": ""}, Ignore: true},
		Rule{Header: map[string]string{"HX-Request": "true"}, Ignore: true},
		Rule{Method: "POST", Path: "/search"},
	}

	tests := []struct {
		method, target string
		header         http.Header
		want           bool
	}{
		{"GET", "/", nil, true},
		{"GET", "/api/items", nil, false},
		{"GET", "/list?partial", nil, false},
		{"GET", "/list?page=2", nil, true},
		{"GET", "/list", http.Header{"Hx-Request": []string{"true"}}, false},
		{"POST", "/search", nil, true},
		{"POST", "/other", nil, false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.target, nil)
		for k, v := range tt.header {
			req.Header[k] = v
		}
		if got := rules.Track(req); got != tt.want {
			t.Fatalf("%s %s tracked=%v, expected %v", tt.method, tt.target, got, tt.want)
		}
	}
}

func TestRulesFromYAML(t *testing.T) {
	doc := `
- prefix: /static/
  ignore: true
- method: post
  path: /form
`
	var rules Rules
	if err := yaml.Unmarshal([]byte(doc), &rules); err != nil {
		t.Fatal(err)
	}
	if rules.Track(httptest.NewRequest("GET", "/static/app.css", nil)) {
		t.Fatal("Static file tracked")
	}
	if !rules.Track(httptest.NewRequest("POST", "/form", nil)) {
		t.Fatal("Form POST not tracked")
	}
}
