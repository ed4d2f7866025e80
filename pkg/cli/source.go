package cli

import (
	"context"

	"github.com/dadosbr/stager/pkg/cli/config"
	"github.com/dadosbr/stager/pkg/domain/interfaces"
	"github.com/dadosbr/stager/pkg/infra/gcs"
	"github.com/dadosbr/stager/pkg/infra/kaggle"
	"github.com/dadosbr/stager/pkg/infra/localfs"
	"github.com/dadosbr/stager/pkg/infra/s3"
	"github.com/dadosbr/stager/pkg/infra/source"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// newSource wires every dataset backend behind one router
func newSource(ctx context.Context, stageCfg *config.Stage, kaggleCfg *config.Kaggle, s3Cfg *config.S3) (interfaces.DatasetSource, error) {
	cacheDir, err := stageCfg.ResolveCacheDir()
	if err != nil {
		return nil, err
	}

	username, key, err := kaggleCfg.Credentials()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load Kaggle credentials")
	}

	ctxlog.From(ctx).Debug("Configured dataset sources",
		"cache_dir", cacheDir,
		"kaggle", kaggleCfg,
		"kaggle_authenticated", username != "" && key != "",
		"s3", s3Cfg,
	)

	return source.NewRouter(
		source.WithSource(source.KindKaggle, kaggle.NewClient(cacheDir,
			kaggle.WithEndpoint(kaggleCfg.Endpoint),
			kaggle.WithCredentials(username, key),
		)),
		source.WithSource(source.KindGCS, gcs.NewClient(cacheDir)),
		source.WithSource(source.KindS3, s3.NewClient(cacheDir, s3Cfg.AccessKeyID, s3Cfg.SecretAccessKey)),
		source.WithSource(source.KindLocal, localfs.New()),
	), nil
}
