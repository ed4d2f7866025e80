package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dadosbr/stager/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// DatasetHandle identifies a dataset on the Kaggle hub
type DatasetHandle struct {
	Owner   string
	Slug    string
	Version int // 0 means latest
}

// ParseDatasetHandle parses "owner/slug" or "owner/slug/versions/N"
func ParseDatasetHandle(s string) (*DatasetHandle, error) {
	parts := strings.Split(strings.Trim(s, "/"), "/")

	switch len(parts) {
	case 2:
	case 4:
		if parts[2] != "versions" {
			return nil, goerr.New("invalid dataset handle",
				goerr.V("handle", s), goerr.T(types.ErrTagInvalidArgument))
		}
	default:
		return nil, goerr.New("dataset handle must be owner/slug or owner/slug/versions/N",
			goerr.V("handle", s), goerr.T(types.ErrTagInvalidArgument))
	}

	if parts[0] == "" || parts[1] == "" {
		return nil, goerr.New("dataset handle has empty owner or slug",
			goerr.V("handle", s), goerr.T(types.ErrTagInvalidArgument))
	}

	// Owner and slug become cache path elements
	for _, name := range parts[:2] {
		if name == "." || name == ".." || strings.ContainsAny(name, `\:`) {
			return nil, goerr.New("dataset handle has invalid owner or slug",
				goerr.V("handle", s), goerr.V("name", name), goerr.T(types.ErrTagInvalidArgument))
		}
	}

	h := &DatasetHandle{Owner: parts[0], Slug: parts[1]}
	if len(parts) == 4 {
		v, err := strconv.Atoi(parts[3])
		if err != nil || v <= 0 {
			return nil, goerr.New("dataset version must be a positive integer",
				goerr.V("handle", s), goerr.T(types.ErrTagInvalidArgument))
		}
		h.Version = v
	}

	return h, nil
}

// String returns the handle in its canonical form
func (h DatasetHandle) String() string {
	if h.Version > 0 {
		return fmt.Sprintf("%s/%s/versions/%d", h.Owner, h.Slug, h.Version)
	}
	return h.Owner + "/" + h.Slug
}
