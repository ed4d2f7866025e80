package cli

import (
	"context"

	"github.com/dadosbr/stager/pkg/cli/config"
	"github.com/dadosbr/stager/pkg/usecase"
	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// stageAction downloads the dataset and copies it into the destination.
// A copy failure is reported on the console and only fails the command with --strict.
func stageAction(stageCfg *config.Stage, kaggleCfg *config.Kaggle, s3Cfg *config.S3) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		if err := stageCfg.Merge(c.IsSet); err != nil {
			return err
		}

		cfg, err := stageCfg.StageConfig()
		if err != nil {
			return err
		}

		logger := ctxlog.From(ctx).With("run_id", uuid.NewString())
		ctx = ctxlog.With(ctx, logger)

		src, err := newSource(ctx, stageCfg, kaggleCfg, s3Cfg)
		if err != nil {
			return err
		}

		logger.Info("Staging dataset",
			"dataset", cfg.Dataset,
			"destination", cfg.Destination,
			"layout", cfg.Layout,
		)

		rep := &reporter{w: c.Root().Writer}
		stager := usecase.NewStager(src, usecase.WithSourceReady(rep.sourcePath))

		result, err := stager.Stage(ctx, cfg)
		if err != nil {
			return goerr.Wrap(err, "failed to stage dataset")
		}

		rep.stageResult(result)

		if stageCfg.Strict {
			return result.Err()
		}
		return nil
	}
}
