package audio

import (
	"context"

	"github.com/alnah/go-clipscribe/internal/proc"
)

// commandRunner executes external commands on the shared worker pool.
// *proc.Runner satisfies it.
type commandRunner interface {
	Run(ctx context.Context, cmd proc.Command) (proc.Result, error)
}

var _ commandRunner = (*proc.Runner)(nil)
