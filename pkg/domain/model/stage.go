package model

import (
	"fmt"

	"github.com/dadosbr/stager/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// Layout controls where staged files land inside the destination
type Layout string

const (
	// LayoutFlat copies every file directly under the destination. Files
	// sharing a base name overwrite each other, last visited wins.
	LayoutFlat Layout = "flat"
	// LayoutTree keeps the source's relative paths
	LayoutTree Layout = "tree"
)

// ParseLayout validates a layout name
func ParseLayout(s string) (Layout, error) {
	switch Layout(s) {
	case LayoutFlat, LayoutTree:
		return Layout(s), nil
	case "":
		return LayoutFlat, nil
	default:
		return "", goerr.New("unknown layout", goerr.V("layout", s), goerr.T(types.ErrTagInvalidArgument))
	}
}

// StageConfig is everything the stager needs for one run
type StageConfig struct {
	Destination string // Directory receiving the files
	Dataset     string // Reference passed to the dataset source
	Layout      Layout
}

// Validate checks the configuration before any side effect happens
func (c *StageConfig) Validate() error {
	if c.Destination == "" {
		return goerr.New("destination is required", goerr.T(types.ErrTagInvalidArgument))
	}
	if c.Dataset == "" {
		return goerr.New("dataset is required", goerr.T(types.ErrTagInvalidArgument))
	}
	if _, err := ParseLayout(string(c.Layout)); err != nil {
		return err
	}
	return nil
}

// StagedFile is one file copied into the destination
type StagedFile struct {
	Source      string
	Destination string
	Size        int64
}

// Collision records a flat copy that replaced a file staged earlier in the same run
type Collision struct {
	Name        string // Base name inside the destination
	Overwritten string // Source path copied first
	By          string // Source path that replaced it
}

// CopyFailure is the error that stopped the copy phase
type CopyFailure struct {
	Source      string
	Destination string
	Err         error
}

func (f *CopyFailure) Error() string {
	if f.Destination == "" {
		return fmt.Sprintf("%s: %v", f.Source, f.Err)
	}
	return fmt.Sprintf("%s -> %s: %v", f.Source, f.Destination, f.Err)
}

func (f *CopyFailure) Unwrap() error {
	return f.Err
}

// StageResult is the outcome of a stage run whose setup succeeded
type StageResult struct {
	Destination string
	SourceDir   string
	Files       []StagedFile // Every copy made, in visit order
	Collisions  []Collision
	Bytes       int64        // Size of the files left in the destination
	Failure     *CopyFailure // nil when every file was copied
}

// Succeeded reports whether the copy phase finished without failure
func (r *StageResult) Succeeded() bool {
	return r.Failure == nil
}

// Staged returns how many distinct destination files this run wrote
func (r *StageResult) Staged() int {
	return len(r.Files) - len(r.Collisions)
}

// Err returns the copy failure as an error, or nil
func (r *StageResult) Err() error {
	if r.Failure == nil {
		return nil
	}
	return goerr.Wrap(r.Failure, "failed to copy files",
		goerr.V("source", r.Failure.Source),
		goerr.V("copied", len(r.Files)),
	)
}
