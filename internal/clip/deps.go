package clip

import (
	"context"

	"github.com/alnah/go-clipscribe/internal/acquire"
	"github.com/alnah/go-clipscribe/internal/audio"
	"github.com/alnah/go-clipscribe/internal/storage"
	"github.com/alnah/go-clipscribe/internal/transcribe"
	"github.com/alnah/go-clipscribe/internal/translate"
)

// acquirer finds and downloads sources into managed storage. *acquire.Service implements it.
type acquirer interface {
	Acquire(ctx context.Context, id string, format acquire.Format) (*acquire.Result, error)
	Search(ctx context.Context, query string, limit int) ([]acquire.Hit, error)
}

// mediaEditor inspects and transforms managed audio. *audio.Engine implements it.
type mediaEditor interface {
	Info(ctx context.Context, f storage.File) (*audio.MediaInfo, error)
	ValidateRange(ctx context.Context, f storage.File, start, end float64) audio.RangeCheck
	Cut(ctx context.Context, f storage.File, start, end float64) (storage.File, error)
	Normalize(ctx context.Context, f storage.File) (storage.File, error)
}

// recognizer turns speech into transcripts. *transcribe.Orchestrator implements it.
type recognizer interface {
	Transcribe(ctx context.Context, f storage.File, name transcribe.EngineName) (*transcribe.Transcript, error)
	MaxFileSize(name transcribe.EngineName) (int64, error)
	Describe() []transcribe.EngineInfo
}

// segmentTranslator enriches segments with translations. *translate.Pipeline implements it.
type segmentTranslator interface {
	TranslateSegments(ctx context.Context, segs []transcribe.Segment, target string, engine translate.EngineName) ([]transcribe.Segment, error)
	Engines() []translate.EngineName
	Capabilities(name translate.EngineName) (translate.Capabilities, error)
}

var (
	_ acquirer          = (*acquire.Service)(nil)
	_ mediaEditor       = (*audio.Engine)(nil)
	_ recognizer        = (*transcribe.Orchestrator)(nil)
	_ segmentTranslator = (*translate.Pipeline)(nil)
)
