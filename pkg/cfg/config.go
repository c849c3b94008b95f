package cfg

import (
	"flag"
	"fmt"
	"slices"

	"github.com/grafana/dskit/flagext"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/san11tools/memscope/pkg/catalog"
	"github.com/san11tools/memscope/pkg/description"
	"github.com/san11tools/memscope/pkg/objstore/client"
	"github.com/san11tools/memscope/pkg/server"
)

var (
	logFormats = []string{"logfmt", "json"}
	logLevels  = []string{"debug", "info", "warn", "error"}
)

type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

func (c *LogConfig) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&c.Format, "log.format", "logfmt", "Output log messages in the given format. Valid formats: [logfmt, json]")
	f.StringVar(&c.Level, "log.level", "info", "Only log messages with the given severity or above. Valid levels: [debug, info, warn, error]")
}

func (c *LogConfig) Validate() error {
	if !slices.Contains(logFormats, c.Format) {
		return fmt.Errorf("unknown log format %q", c.Format)
	}
	if !slices.Contains(logLevels, c.Level) {
		return fmt.Errorf("unknown log level %q", c.Level)
	}
	return nil
}

// Config is the root configuration of memscope.
type Config struct {
	Storage      client.Config      `yaml:"storage"`
	Catalog      catalog.Config     `yaml:"catalog"`
	Descriptions description.Config `yaml:"descriptions"`
	Server       server.Config      `yaml:"server"`
	Log          LogConfig          `yaml:"log"`

	// VersionNames declares versions with default settings when the
	// configuration file lists none.
	VersionNames flagext.StringSliceCSV `yaml:"-"`
}

func (c *Config) RegisterFlags(f *flag.FlagSet) {
	c.Storage.RegisterFlags(f)
	c.Catalog.RegisterFlags(f)
	c.Descriptions.RegisterFlags(f)
	c.Server.RegisterFlags(f)
	c.Log.RegisterFlags(f)
	f.Var(&c.VersionNames, "catalog.versions", "Comma-separated version names, each read from the workbook under the prefix of the same name. Ignored when the config file lists versions.")
}

// ApplyDefaults fills in values derived from other settings.
func (c *Config) ApplyDefaults() {
	if len(c.Catalog.Versions) == 0 {
		for _, name := range c.VersionNames {
			c.Catalog.Versions = append(c.Catalog.Versions, catalog.VersionConfig{Name: name})
		}
	}
}

func (c *Config) Validate() error {
	for _, v := range []interface{ Validate() error }{&c.Storage, &c.Catalog, &c.Descriptions, &c.Log} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateServer checks the settings only the server needs.
func (c *Config) ValidateServer() error {
	return c.Server.Validate()
}

// YAMLBytes is the effective configuration as YAML.
func (c *Config) YAMLBytes() ([]byte, error) {
	return yaml.Marshal(c)
}

// Load builds the configuration from flag defaults, file and args.
func Load(file string, expandEnv bool, args []string) (*Config, error) {
	c := &Config{}
	fs := flag.NewFlagSet("memscope", flag.ContinueOnError)
	if err := Unmarshal(c, Defaults(fs), YAML(file, expandEnv), Flags(args, fs)); err != nil {
		return nil, err
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return c, nil
}

// FlagSet returns a flag set describing every configuration flag, with
// defaults, for help output.
func FlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("memscope", flag.ContinueOnError)
	(&Config{}).RegisterFlags(fs)
	return fs
}
