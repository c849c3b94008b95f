package client

import (
	"errors"
	"flag"
	"fmt"
	"slices"
	"strings"

	"github.com/san11tools/memscope/pkg/objstore/providers/filesystem"
)

const (
	// Filesystem is the value for the filesystem storage backend.
	Filesystem = "filesystem"

	// Memory is the value for the in-memory storage backend, used in tests
	// and for layouts uploaded at runtime.
	Memory = "memory"
)

var (
	SupportedBackends = []string{Filesystem, Memory}

	ErrUnsupportedStorageBackend        = errors.New("unsupported storage backend")
	ErrInvalidCharactersInStoragePrefix = errors.New("storage prefix contains invalid characters, it may only contain digits, English alphabet letters and dashes")
)

type StorageBackendConfig struct {
	Backend string `yaml:"backend"`

	Filesystem filesystem.Config `yaml:"filesystem"`
}

// RegisterFlagsWithPrefix registers the flags for storage with the provided prefix.
func (cfg *StorageBackendConfig) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	cfg.Filesystem.RegisterFlagsWithPrefix(prefix, f)
	f.StringVar(&cfg.Backend, prefix+"backend", Filesystem, fmt.Sprintf("Backend storage to use. Supported backends are: %s.", strings.Join(SupportedBackends, ", ")))
}

func (cfg *StorageBackendConfig) Validate() error {
	if !slices.Contains(SupportedBackends, cfg.Backend) {
		return ErrUnsupportedStorageBackend
	}
	return nil
}

// Config holds configuration for accessing long-term storage.
type Config struct {
	StorageBackendConfig `yaml:",inline"`

	StoragePrefix string `yaml:"prefix"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix("storage.", f)
}

// RegisterFlagsWithPrefix registers the flags for storage with the provided prefix.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	cfg.StorageBackendConfig.RegisterFlagsWithPrefix(prefix, f)
	f.StringVar(&cfg.StoragePrefix, prefix+"prefix", "", "Prefix for all objects stored in the backend storage. For simplicity, it may only contain digits and English alphabet letters.")
}

func (cfg *Config) Validate() error {
	for _, r := range cfg.StoragePrefix {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-') {
			return ErrInvalidCharactersInStoragePrefix
		}
	}
	return cfg.StorageBackendConfig.Validate()
}
