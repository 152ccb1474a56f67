package main

import (
	"os"
	"time"

	trackrules "github.com/always-cache/relocate/pkg/track-rules"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Base     string           `yaml:"base"`
	Capacity int              `yaml:"capacity"`
	Session  ConfigSession    `yaml:"session"`
	Rules    trackrules.Rules `yaml:"rules"`
}

type ConfigSession struct {
	Cookie   string        `yaml:"cookie"`
	Provider string        `yaml:"provider"`
	DB       string        `yaml:"db"`
	MaxAge   time.Duration `yaml:"maxAge"`
	Secure   bool          `yaml:"secure"`
}

// defaultRules keep the demo endpoints out of the history.
var defaultRules = trackrules.Rules{
	{Prefix: "/to/", Ignore: true},
	{Path: "/back", Ignore: true},
	{Path: "/home", Ignore: true},
	{Path: "/history", Ignore: true},
	{Path: "/metrics", Ignore: true},
	{Path: "/favicon.ico", Ignore: true},
}

func getConfig(filename string) (Config, error) {
	var config Config
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}
