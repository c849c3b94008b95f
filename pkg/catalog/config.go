package catalog

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/san11tools/memscope/pkg/declaration"
	"github.com/san11tools/memscope/pkg/layout"
)

const (
	DefaultRootType = "Memory"
	DefaultRootSize = "0x10000000"
)

// RootConfig declares the struct spanning a version's whole address space.
// Size and Base accept the same number syntax as declaration cells.
type RootConfig struct {
	Type        string `yaml:"type"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Size        string `yaml:"size"`
	Base        string `yaml:"base"`
}

// Decl parses the root configuration.
func (cfg RootConfig) Decl() (layout.RootDecl, error) {
	d := layout.RootDecl{
		Type:        lo.CoalesceOrEmpty(cfg.Type, DefaultRootType),
		Description: cfg.Description,
	}
	d.Name = lo.CoalesceOrEmpty(cfg.Name, d.Type)

	size, err := layout.ParseNumber(lo.CoalesceOrEmpty(cfg.Size, DefaultRootSize), 10)
	if err != nil {
		return d, fmt.Errorf("root size: %w", err)
	}
	d.Size = size
	if cfg.Base != "" {
		if d.Base, err = layout.ParseAddress(cfg.Base); err != nil {
			return d, fmt.Errorf("root base: %w", err)
		}
	}
	return d, nil
}

// VersionConfig describes one schema version.
type VersionConfig struct {
	Name string `yaml:"name"`
	// Prefix is the object prefix of the workbook; defaults to Name.
	Prefix string `yaml:"prefix"`
	Format string `yaml:"format"`
	// AddressBase is the base of offset cells without 0x or h markers.
	AddressBase int        `yaml:"address_base"`
	Root        RootConfig `yaml:"root"`
}

func (v VersionConfig) WorkbookPrefix() string {
	return lo.CoalesceOrEmpty(v.Prefix, v.Name)
}

func (v VersionConfig) Validate() error {
	if v.Name == "" {
		return errors.New("version name is required")
	}
	if _, err := declaration.ParseFormat(v.Format); err != nil {
		return fmt.Errorf("version %s: %w", v.Name, err)
	}
	if v.AddressBase != 0 && v.AddressBase != 10 && v.AddressBase != 16 {
		return fmt.Errorf("version %s: address_base must be 10 or 16, got %d", v.Name, v.AddressBase)
	}
	if _, err := v.Root.Decl(); err != nil {
		return fmt.Errorf("version %s: %w", v.Name, err)
	}
	return nil
}

type Config struct {
	Versions       []VersionConfig `yaml:"versions"`
	DefaultVersion string          `yaml:"default_version"`
	Watch          bool            `yaml:"watch"`
	WatchDebounce  time.Duration   `yaml:"watch_debounce"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&cfg.DefaultVersion, "catalog.default-version", "", "Version used when a query names none. Defaults to the first configured version.")
	f.BoolVar(&cfg.Watch, "catalog.watch", false, "Reload the catalog when a filesystem workbook changes.")
	f.DurationVar(&cfg.WatchDebounce, "catalog.watch-debounce", 500*time.Millisecond, "Quiet period after a workbook change before reloading.")
}

func (cfg *Config) Validate() error {
	if len(cfg.Versions) == 0 {
		return errors.New("at least one version must be configured")
	}
	for _, v := range cfg.Versions {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	names := lo.Map(cfg.Versions, func(v VersionConfig, _ int) string { return v.Name })
	if dups := lo.FindDuplicates(names); len(dups) > 0 {
		return fmt.Errorf("duplicate versions: %v", dups)
	}
	if cfg.DefaultVersion != "" && !lo.Contains(names, cfg.DefaultVersion) {
		return fmt.Errorf("default version %q is not configured", cfg.DefaultVersion)
	}
	return nil
}

func (cfg *Config) defaultVersion() string {
	if cfg.DefaultVersion != "" {
		return cfg.DefaultVersion
	}
	return cfg.Versions[0].Name
}
