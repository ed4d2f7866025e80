package source

import (
	"context"
	"strings"

	"github.com/dadosbr/stager/pkg/domain/interfaces"
	"github.com/dadosbr/stager/pkg/domain/model"
	"github.com/dadosbr/stager/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// Kind names the backend a dataset ref is served by
type Kind string

const (
	KindKaggle Kind = "kaggle"
	KindGCS    Kind = "gcs"
	KindS3     Kind = "s3"
	KindLocal  Kind = "local"
)

// KindOf classifies a dataset ref by its scheme. Refs without a scheme are
// Kaggle handles.
func KindOf(ref string) Kind {
	switch {
	case strings.HasPrefix(ref, "gs://"):
		return KindGCS
	case strings.HasPrefix(ref, "s3+http://"), strings.HasPrefix(ref, "s3+https://"):
		return KindS3
	case strings.HasPrefix(ref, "file://"):
		return KindLocal
	default:
		return KindKaggle
	}
}

// Option is a functional option for Router configuration
type Option func(*Router)

// WithSource registers the source serving refs of kind
func WithSource(kind Kind, src interfaces.DatasetSource) Option {
	return func(r *Router) {
		r.sources[kind] = src
	}
}

// Router dispatches a dataset ref to the source registered for its kind
type Router struct {
	sources map[Kind]interfaces.DatasetSource
}

// NewRouter creates a router with the given sources
func NewRouter(opts ...Option) *Router {
	r := &Router{sources: make(map[Kind]interfaces.DatasetSource)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Download implements interfaces.DatasetSource
func (r *Router) Download(ctx context.Context, ref string) (*model.DownloadResult, error) {
	kind := KindOf(ref)

	src, ok := r.sources[kind]
	if !ok {
		return nil, goerr.New("no source configured for dataset ref",
			goerr.V("ref", ref),
			goerr.V("kind", kind),
			goerr.T(types.ErrTagUnsupportedSource),
		)
	}

	ctxlog.From(ctx).Debug("Routing dataset ref", "ref", ref, "kind", kind)
	return src.Download(ctx, ref)
}
