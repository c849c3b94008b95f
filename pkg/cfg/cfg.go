// Package cfg layers the memscope configuration: flag defaults first, then
// an optional YAML file, then explicitly set flags.
package cfg

import (
	"bytes"
	"flag"
	"os"

	"github.com/drone/envsubst"
	"github.com/grafana/dskit/flagext"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Source is one layer of configuration applied to dst.
type Source func(dst flagext.Registerer) error

// Unmarshal applies the sources to dst in order.
func Unmarshal(dst flagext.Registerer, sources ...Source) error {
	for _, source := range sources {
		if err := source(dst); err != nil {
			return err
		}
	}
	return nil
}

// Defaults registers the flags of dst on fs, which sets every default.
func Defaults(fs *flag.FlagSet) Source {
	return func(dst flagext.Registerer) error {
		dst.RegisterFlags(fs)
		return nil
	}
}

// YAML decodes file into dst, rejecting unknown fields. With expandEnv,
// ${VAR} references are replaced by environment values first. An empty
// file name is a no-op.
func YAML(file string, expandEnv bool) Source {
	return func(dst flagext.Registerer) error {
		if file == "" {
			return nil
		}
		buf, err := os.ReadFile(file)
		if err != nil {
			return errors.Wrap(err, "reading config file")
		}
		return dYAML(buf, expandEnv)(dst)
	}
}

func dYAML(buf []byte, expandEnv bool) Source {
	return func(dst flagext.Registerer) error {
		if expandEnv {
			s, err := envsubst.EvalEnv(string(buf))
			if err != nil {
				return errors.Wrap(err, "expanding environment variables")
			}
			buf = []byte(s)
		}
		dec := yaml.NewDecoder(bytes.NewReader(buf))
		dec.KnownFields(true)
		if err := dec.Decode(dst); err != nil {
			return errors.Wrap(err, "parsing config file")
		}
		return nil
	}
}

// Flags parses args with fs, overriding earlier layers. fs must be the set
// passed to Defaults.
func Flags(args []string, fs *flag.FlagSet) Source {
	return func(flagext.Registerer) error {
		return fs.Parse(args)
	}
}
