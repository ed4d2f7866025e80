package interfaces

import (
	"context"

	"github.com/dadosbr/stager/pkg/domain/model"
)

// StagerUseCase copies a dataset into a local destination directory
type StagerUseCase interface {
	// Stage creates the destination, fetches the dataset and copies its files.
	// A returned error means setup failed; copy failures are reported in the result.
	Stage(ctx context.Context, cfg *model.StageConfig) (*model.StageResult, error)
}
