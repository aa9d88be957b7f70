package main

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
	"github.com/yaoguais/gantt"
)

type config struct {
	Backend     string
	Timeout     time.Duration
	Strategy    string
	Format      string
	LogLevel    string
	Profile     string
	ProfilePath string
}

// loadConfig merges defaults, the --config file, GANTT_* environment
// variables and command line flags, later ones winning.
func loadConfig(c *cli.Context) (config, error) {
	v := viper.New()
	v.SetDefault("backend", gantt.DefaultBackendName)
	v.SetDefault("timeout", time.Duration(0))
	v.SetDefault("strategy", string(gantt.StrategyLinear))
	v.SetDefault("format", "table")
	v.SetDefault("log-level", "")
	v.SetDefault("profile", "")
	v.SetDefault("profile-path", ".")

	v.SetEnvPrefix("GANTT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file := c.String("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return config{}, errors.Wrapf(err, "Read config %s", file)
		}
	}

	for _, name := range []string{"backend", "strategy", "format", "log-level", "profile"} {
		if c.IsSet(name) {
			v.Set(name, c.String(name))
		}
	}
	if c.IsSet("timeout") {
		v.Set("timeout", c.Duration("timeout"))
	}

	conf := config{
		Backend:     v.GetString("backend"),
		Timeout:     v.GetDuration("timeout"),
		Strategy:    v.GetString("strategy"),
		Format:      strings.ToLower(v.GetString("format")),
		LogLevel:    v.GetString("log-level"),
		Profile:     v.GetString("profile"),
		ProfilePath: v.GetString("profile-path"),
	}

	if conf.LogLevel != "" {
		level, err := logrus.ParseLevel(conf.LogLevel)
		if err != nil {
			return config{}, errors.Wrap(err, "Log level")
		}
		logrus.SetLevel(level)
	}
	return conf, nil
}
