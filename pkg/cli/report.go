package cli

import (
	"fmt"
	"io"

	"github.com/dadosbr/stager/pkg/domain/model"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// reporter prints the human readable status lines of a run
type reporter struct {
	w io.Writer
}

func (r *reporter) sourcePath(dir string) {
	fmt.Fprintf(r.w, "Path to dataset files: %s\n", dir)
}

func (r *reporter) stageResult(result *model.StageResult) {
	for _, c := range result.Collisions {
		color.New(color.FgYellow).Fprintf(r.w, "Overwritten: %s (%s replaced by %s)\n", c.Name, c.Overwritten, c.By)
	}

	if !result.Succeeded() {
		color.New(color.FgRed).Fprintf(r.w, "Error copying files: %v\n", result.Failure)
		return
	}

	color.New(color.FgGreen).Fprintf(r.w, "Files copied successfully to: %s (%d files, %s)\n",
		result.Destination, result.Staged(), humanize.Bytes(uint64(result.Bytes)))
}
