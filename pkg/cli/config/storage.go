package config

import "github.com/urfave/cli/v3"

// S3 holds credentials for s3+http(s):// dataset refs
type S3 struct {
	AccessKeyID     string
	SecretAccessKey string `masq:"secret"`
}

// Flags returns CLI flags for S3 configuration
func (c *S3) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "s3-access-key-id",
			Usage:       "Access key for S3 compatible storage",
			Destination: &c.AccessKeyID,
			Sources:     cli.EnvVars("AWS_ACCESS_KEY_ID"),
		},
		&cli.StringFlag{
			Name:        "s3-secret-access-key",
			Usage:       "Secret key for S3 compatible storage",
			Destination: &c.SecretAccessKey,
			Sources:     cli.EnvVars("AWS_SECRET_ACCESS_KEY"),
		},
	}
}
