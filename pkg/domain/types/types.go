package types

import "github.com/m-mizutani/goerr/v2"

// Version is overwritten at build time with -ldflags
var Version = "dev"

const (
	// DefaultDataset is the dataset staged when none is configured
	DefaultDataset = "adaoduque/campeonato-brasileiro-de-futebol"

	// DefaultDestinationDir is joined with the executable's directory
	DefaultDestinationDir = "dados"
)

var (
	ErrTagInvalidArgument   = goerr.NewTag("invalid_argument")
	ErrTagUnsupportedSource = goerr.NewTag("unsupported_source")
	ErrTagNotFound          = goerr.NewTag("not_found")
)
