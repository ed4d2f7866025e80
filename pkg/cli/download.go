package cli

import (
	"context"

	"github.com/dadosbr/stager/pkg/cli/config"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdDownload(stageCfg *config.Stage, kaggleCfg *config.Kaggle, s3Cfg *config.S3) *cli.Command {
	return &cli.Command{
		Name:  "download",
		Usage: "Fetch the dataset into the cache and print its local path without copying",
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := stageCfg.Merge(c.IsSet); err != nil {
				return err
			}
			if stageCfg.Dataset == "" {
				return goerr.New("dataset is required")
			}

			src, err := newSource(ctx, stageCfg, kaggleCfg, s3Cfg)
			if err != nil {
				return err
			}

			result, err := src.Download(ctx, stageCfg.Dataset)
			if err != nil {
				return goerr.Wrap(err, "failed to download dataset", goerr.V("dataset", stageCfg.Dataset))
			}

			rep := &reporter{w: c.Root().Writer}
			rep.sourcePath(result.Dir)
			return nil
		},
	}
}
