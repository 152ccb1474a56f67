package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/always-cache/relocate/session"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func startTestServer(t *testing.T) *httptest.Server {
	config := Config{Base: "http://site", Capacity: 3, Rules: defaultRules}
	handler := newServer(config, session.NewMemProvider(), prometheus.NewRegistry(), zerolog.Nop())
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T) *http.Client {
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Client{
		Jar: jar,
		// do not follow redirects
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func get(t *testing.T, c *http.Client, url string) *http.Response {
	t.Helper()
	res, err := c.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestServerHistory(t *testing.T) {
	server := startTestServer(t)
	c := newTestClient(t)

	for _, path := range []string{"/a", "/b", "/c", "/d", "/history", "/back"} {
		get(t, c, server.URL+path)
	}

	res := get(t, c, server.URL+"/history")
	var entries []string
	if err := json.NewDecoder(res.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(entries, []string{"/b", "/c", "/d"}) {
		t.Fatalf("Entries are %v", entries)
	}
}

func TestServerBack(t *testing.T) {
	server := startTestServer(t)
	c := newTestClient(t)

	get(t, c, server.URL+"/a")
	get(t, c, server.URL+"/b")
	res := get(t, c, server.URL+"/back?msg=hello+world")

	if res.StatusCode != http.StatusFound {
		t.Fatalf("Status code is %d", res.StatusCode)
	}
	if l := res.Header.Get("Location"); l != "http://site/b?msg=hello%20world" {
		t.Fatalf("Location is %s", l)
	}
}

func TestServerHomeAndTo(t *testing.T) {
	server := startTestServer(t)
	c := newTestClient(t)

	if l := get(t, c, server.URL+"/home?anchor=top").Header.Get("Location"); l != "http://site#top" {
		t.Fatalf("Location is %s", l)
	}
	if l := get(t, c, server.URL+"/to/list/all?page=2").Header.Get("Location"); l != "http://site/list/all?page=2" {
		t.Fatalf("Location is %s", l)
	}
}

func TestServerMetrics(t *testing.T) {
	server := startTestServer(t)
	c := newTestClient(t)

	get(t, c, server.URL+"/a")
	get(t, c, server.URL+"/back")

	res := get(t, c, server.URL+"/metrics")
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, res.Body); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `relocate_redirects_total{kind="back",status="302"} 1`) {
		t.Fatalf("Metrics are %s", buf.String())
	}
}

func TestGetConfig(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
base: https://example.com
capacity: 10
session:
  cookie: sid
  provider: sqlite
  db: sessions.db
  maxAge: 24h
rules:
  - prefix: /assets/
    ignore: true
`
	if err := os.WriteFile(filename, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	config, err := getConfig(filename)
	if err != nil {
		t.Fatal(err)
	}
	if config.Base != "https://example.com" || config.Capacity != 10 {
		t.Fatalf("Config is %+v", config)
	}
	if config.Session.Cookie != "sid" || config.Session.Provider != "sqlite" || config.Session.MaxAge != 24*time.Hour {
		t.Fatalf("Session config is %+v", config.Session)
	}
	if len(config.Rules) != 1 || !config.Rules[0].Ignore {
		t.Fatalf("Rules are %+v", config.Rules)
	}
}
