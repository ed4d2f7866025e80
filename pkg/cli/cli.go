package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/dadosbr/stager/pkg/cli/config"
	"github.com/dadosbr/stager/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/urfave/cli/v3"
)

// Run runs the CLI application
func Run(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdout)
}

func run(ctx context.Context, args []string, w io.Writer) error {
	var (
		loggerCfg config.Logger
		stageCfg  config.Stage
		kaggleCfg config.Kaggle
		s3Cfg     config.S3
		logger    *slog.Logger
	)

	flags := loggerCfg.Flags()
	flags = append(flags, stageCfg.Flags()...)
	flags = append(flags, kaggleCfg.Flags()...)
	flags = append(flags, s3Cfg.Flags()...)

	app := &cli.Command{
		Name:    "stager",
		Usage:   "Download a dataset and copy its files into a local directory",
		Version: types.Version,
		Flags:   flags,
		Writer:  w,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			var err error
			logger, err = loggerCfg.Configure()
			if err != nil {
				return nil, err
			}

			slog.SetDefault(logger)
			ctx = ctxlog.With(ctx, logger)
			return ctx, nil
		},
		Action: stageAction(&stageCfg, &kaggleCfg, &s3Cfg),
		Commands: []*cli.Command{
			cmdDownload(&stageCfg, &kaggleCfg, &s3Cfg),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("CLI execution failed", slog.Any("error", err))
		return err
	}

	return nil
}
