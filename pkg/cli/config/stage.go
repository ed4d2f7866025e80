package config

import (
	"os"
	"path/filepath"

	"github.com/dadosbr/stager/pkg/domain/model"
	"github.com/dadosbr/stager/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

// Stage holds the stage run configuration
type Stage struct {
	ConfigFile  string
	Destination string
	Dataset     string
	Layout      string
	Strict      bool
	CacheDir    string
}

// stageFile is the TOML form of Stage. Pointers distinguish unset keys.
type stageFile struct {
	Destination *string `toml:"destination"`
	Dataset     *string `toml:"dataset"`
	Layout      *string `toml:"layout"`
	Strict      *bool   `toml:"strict"`
	CacheDir    *string `toml:"cache_dir"`
}

// Flags returns CLI flags for stage configuration
func (c *Stage) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "TOML file with stage settings; explicit flags take precedence",
			Destination: &c.ConfigFile,
			Sources:     cli.EnvVars("STAGER_CONFIG"),
		},
		&cli.StringFlag{
			Name:        "dest",
			Aliases:     []string{"d"},
			Usage:       "Destination directory (default: \"dados\" next to the executable)",
			Destination: &c.Destination,
			Sources:     cli.EnvVars("STAGER_DEST"),
		},
		&cli.StringFlag{
			Name:        "dataset",
			Usage:       "Dataset ref: owner/slug[/versions/N], gs://, s3+http(s):// or file://",
			Value:       types.DefaultDataset,
			Destination: &c.Dataset,
			Sources:     cli.EnvVars("STAGER_DATASET"),
		},
		&cli.StringFlag{
			Name:        "layout",
			Usage:       "Destination layout: flat (base names only, last file wins) or tree",
			Value:       string(model.LayoutFlat),
			Destination: &c.Layout,
			Sources:     cli.EnvVars("STAGER_LAYOUT"),
		},
		&cli.BoolFlag{
			Name:        "strict",
			Usage:       "Exit with an error status when a file fails to copy",
			Destination: &c.Strict,
			Sources:     cli.EnvVars("STAGER_STRICT"),
		},
		&cli.StringFlag{
			Name:        "cache-dir",
			Usage:       "Download cache root (default: ~/.cache/kagglehub)",
			Destination: &c.CacheDir,
			Sources:     cli.EnvVars("STAGER_CACHE_DIR", "KAGGLEHUB_CACHE"),
		},
	}
}

// Merge fills every setting not set on the command line from ConfigFile.
// isSet reports whether a flag was given explicitly.
func (c *Stage) Merge(isSet func(name string) bool) error {
	if c.ConfigFile == "" {
		return nil
	}

	raw, err := os.ReadFile(c.ConfigFile)
	if err != nil {
		return goerr.Wrap(err, "failed to read config file", goerr.V("path", c.ConfigFile))
	}

	var file stageFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return goerr.Wrap(err, "failed to parse config file", goerr.V("path", c.ConfigFile), goerr.T(types.ErrTagInvalidArgument))
	}

	if file.Destination != nil && !isSet("dest") {
		c.Destination = *file.Destination
	}
	if file.Dataset != nil && !isSet("dataset") {
		c.Dataset = *file.Dataset
	}
	if file.Layout != nil && !isSet("layout") {
		c.Layout = *file.Layout
	}
	if file.Strict != nil && !isSet("strict") {
		c.Strict = *file.Strict
	}
	if file.CacheDir != nil && !isSet("cache-dir") {
		c.CacheDir = *file.CacheDir
	}

	return nil
}

// StageConfig builds the stager configuration, filling the default destination
func (c *Stage) StageConfig() (*model.StageConfig, error) {
	layout, err := model.ParseLayout(c.Layout)
	if err != nil {
		return nil, err
	}

	dest := c.Destination
	if dest == "" {
		dest, err = DefaultDestination()
		if err != nil {
			return nil, err
		}
	}

	cfg := &model.StageConfig{
		Destination: dest,
		Dataset:     c.Dataset,
		Layout:      layout,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolveCacheDir returns CacheDir or ~/.cache/kagglehub
func (c *Stage) ResolveCacheDir() (string, error) {
	if c.CacheDir != "" {
		return c.CacheDir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", goerr.Wrap(err, "failed to find home directory for cache")
	}
	return filepath.Join(home, ".cache", "kagglehub"), nil
}

// DefaultDestination returns the "dados" directory next to the running executable
func DefaultDestination() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", goerr.Wrap(err, "failed to locate executable")
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), types.DefaultDestinationDir), nil
}
