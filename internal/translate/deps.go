package translate

import (
	"context"
	"net/http"

	"github.com/alnah/go-clipscribe/internal/proc"
)

// commandRunner executes external commands. *proc.Runner implements it.
type commandRunner interface {
	Run(ctx context.Context, cmd proc.Command) (proc.Result, error)
}

// httpDoer abstracts HTTP client for testing.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

var (
	_ commandRunner = (*proc.Runner)(nil)
	_ httpDoer      = (*http.Client)(nil)
)
