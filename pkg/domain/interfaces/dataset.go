package interfaces

import (
	"context"

	"github.com/dadosbr/stager/pkg/domain/model"
)

// DatasetSource makes a dataset available as a local directory
type DatasetSource interface {
	// Download resolves ref to a readable local directory. The directory is
	// owned by the source and may be a shared cache location.
	Download(ctx context.Context, ref string) (*model.DownloadResult, error)
}
