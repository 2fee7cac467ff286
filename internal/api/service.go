package api

import (
	"context"

	"github.com/alnah/go-clipscribe/internal/audio"
	"github.com/alnah/go-clipscribe/internal/clip"
	"github.com/alnah/go-clipscribe/internal/storage"
	"github.com/alnah/go-clipscribe/internal/transcribe"
	"github.com/alnah/go-clipscribe/internal/translate"
)

// pipeline is the request-level API the handlers call. *clip.Service implements it.
type pipeline interface {
	Search(ctx context.Context, req clip.SearchRequest) (*clip.SearchResult, error)
	Download(ctx context.Context, req clip.DownloadRequest) (*clip.DownloadResult, error)
	Cut(ctx context.Context, req clip.CutRequest) (*clip.CutResult, error)
	Metadata(ctx context.Context, ref string) (*audio.MediaInfo, error)
	Transcribe(ctx context.Context, req clip.TranscribeRequest) (*transcribe.Transcript, error)
	Engines() clip.Engines
	Languages(engine string) (translate.Capabilities, error)
	Health() clip.Health
	Open(ref string) (storage.File, error)
	Delete(ref string) error
}

var _ pipeline = (*clip.Service)(nil)
