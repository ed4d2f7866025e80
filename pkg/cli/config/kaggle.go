package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/dadosbr/stager/pkg/infra/kaggle"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// Kaggle holds Kaggle API configuration
type Kaggle struct {
	Username string
	Key      string `masq:"secret"`
	Endpoint string
}

// Flags returns CLI flags for Kaggle configuration
func (c *Kaggle) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "kaggle-username",
			Usage:       "Kaggle API username (falls back to kaggle.json)",
			Destination: &c.Username,
			Sources:     cli.EnvVars("KAGGLE_USERNAME"),
		},
		&cli.StringFlag{
			Name:        "kaggle-key",
			Usage:       "Kaggle API key (falls back to kaggle.json)",
			Destination: &c.Key,
			Sources:     cli.EnvVars("KAGGLE_KEY"),
		},
		&cli.StringFlag{
			Name:        "kaggle-endpoint",
			Usage:       "Kaggle endpoint",
			Value:       kaggle.DefaultEndpoint,
			Destination: &c.Endpoint,
			Sources:     cli.EnvVars("KAGGLE_API_ENDPOINT"),
		},
	}
}

type kaggleJSON struct {
	Username string `json:"username"`
	Key      string `json:"key"`
}

// Credentials returns the username and key to authenticate with. Explicit
// values win; otherwise kaggle.json is read from $KAGGLE_CONFIG_DIR or
// ~/.kaggle. Empty strings without error mean anonymous access.
func (c *Kaggle) Credentials() (string, string, error) {
	if c.Username != "" && c.Key != "" {
		return c.Username, c.Key, nil
	}

	dir := os.Getenv("KAGGLE_CONFIG_DIR")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", nil
		}
		dir = filepath.Join(home, ".kaggle")
	}

	path := filepath.Join(dir, "kaggle.json")
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", "", nil
	}
	if err != nil {
		return "", "", goerr.Wrap(err, "failed to read kaggle.json", goerr.V("path", path))
	}

	var creds kaggleJSON
	if err := json.Unmarshal(raw, &creds); err != nil {
		return "", "", goerr.Wrap(err, "failed to parse kaggle.json", goerr.V("path", path))
	}

	return creds.Username, creds.Key, nil
}
