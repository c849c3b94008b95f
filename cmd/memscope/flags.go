package main

import (
	"flag"
	"fmt"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/san11tools/memscope/pkg/cfg"
)

type configFlags struct {
	file      string
	expandEnv bool
	// args holds the explicitly set configuration flags, in the form the
	// configuration loader parses after the file.
	args []string
}

// recordedValue remembers an explicit flag instead of applying it, so the
// configuration file can be read first.
type recordedValue struct {
	name   string
	isBool bool
	value  string
	args   *[]string
}

func (v *recordedValue) Set(s string) error {
	v.value = s
	*v.args = append(*v.args, fmt.Sprintf("-%s=%s", v.name, s))
	return nil
}

func (v *recordedValue) String() string { return v.value }

func (v *recordedValue) IsBoolFlag() bool { return v.isBool }

// addConfigFlags exposes every flag of fs on app.
func addConfigFlags(app *kingpin.Application, fs *flag.FlagSet) *configFlags {
	c := &configFlags{}
	app.Flag("config.file", "Configuration file to load.").StringVar(&c.file)
	app.Flag("config.expand-env", "Expands ${var} in the configuration file with environment variables.").BoolVar(&c.expandEnv)
	fs.VisitAll(func(f *flag.Flag) {
		v := &recordedValue{name: f.Name, args: &c.args}
		if b, ok := f.Value.(interface{ IsBoolFlag() bool }); ok {
			v.isBool = b.IsBoolFlag()
		}
		help := f.Usage
		if f.DefValue != "" {
			help = fmt.Sprintf("%s (default %s)", help, f.DefValue)
		}
		app.Flag(f.Name, help).SetValue(v)
	})
	return c
}

func (c *configFlags) load() (*cfg.Config, error) {
	return cfg.Load(c.file, c.expandEnv, c.args)
}
