package acquire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/alnah/go-clipscribe/internal/proc"
)

// defaultExtractTimeout bounds a whole download.
const defaultExtractTimeout = 10 * time.Minute

// ExtractRequest describes one extractor invocation.
type ExtractRequest struct {
	URL            string
	OutputTemplate string // path with a %(ext)s placeholder
	InsecureTLS    bool
}

// Extraction is what the extractor reports about a finished download.
// Path may be empty when the extractor did not say where it wrote.
type Extraction struct {
	Path     string
	Title    string
	Uploader string
	Ext      string
}

// Extractor downloads the best available audio for a source.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) (Extraction, error)
}

// commandRunner executes external commands on the shared worker pool.
type commandRunner interface {
	Run(ctx context.Context, cmd proc.Command) (proc.Result, error)
}

// Compile-time interface verification.
var (
	_ Extractor     = (*YTDLP)(nil)
	_ commandRunner = (*proc.Runner)(nil)
)

// YTDLP extracts audio with the yt-dlp command line tool.
type YTDLP struct {
	runner        commandRunner
	path          string
	timeout       time.Duration
	socketTimeout int
}

// YTDLPOption configures a YTDLP extractor.
type YTDLPOption func(*YTDLP)

// WithYTDLPPath sets the yt-dlp binary.
func WithYTDLPPath(path string) YTDLPOption {
	return func(y *YTDLP) { y.path = path }
}

// WithExtractTimeout bounds a whole download.
func WithExtractTimeout(d time.Duration) YTDLPOption {
	return func(y *YTDLP) { y.timeout = d }
}

// NewYTDLP creates a yt-dlp extractor.
func NewYTDLP(runner commandRunner, opts ...YTDLPOption) *YTDLP {
	y := &YTDLP{
		runner:        runner,
		path:          "yt-dlp",
		timeout:       defaultExtractTimeout,
		socketTimeout: 10,
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// ytdlpInfo mirrors the fields of yt-dlp's info JSON we read.
type ytdlpInfo struct {
	Title             string `json:"title"`
	Uploader          string `json:"uploader"`
	Ext               string `json:"ext"`
	Filename          string `json:"_filename"`
	RequestedDownload []struct {
		Filepath string `json:"filepath"`
	} `json:"requested_downloads"`
}

// Extract downloads req.URL. The returned error carries yt-dlp's stderr so
// the caller can classify it.
func (y *YTDLP) Extract(ctx context.Context, req ExtractRequest) (Extraction, error) {
	args := []string{
		"-f", "bestaudio/best",
		"--no-playlist",
		"--no-progress",
		"--no-warnings",
		"--socket-timeout", strconv.Itoa(y.socketTimeout),
		"--retries", "3",
		"--fragment-retries", "3",
		"--dump-json", "--no-simulate",
		"-o", req.OutputTemplate,
	}
	if req.InsecureTLS {
		args = append(args, "--no-check-certificates")
	}
	args = append(args, "--", req.URL)

	res, err := y.runner.Run(ctx, proc.Command{Path: y.path, Args: args, Timeout: y.timeout})
	if err != nil {
		return Extraction{}, err
	}

	var info ytdlpInfo
	line := bytes.TrimSpace(res.Stdout)
	if i := bytes.LastIndexByte(line, '\n'); i >= 0 {
		line = line[i+1:]
	}
	if err := json.Unmarshal(line, &info); err != nil {
		return Extraction{}, fmt.Errorf("parse yt-dlp output: %w", err)
	}

	out := Extraction{Title: info.Title, Uploader: info.Uploader, Ext: info.Ext, Path: info.Filename}
	if len(info.RequestedDownload) > 0 && info.RequestedDownload[0].Filepath != "" {
		out.Path = info.RequestedDownload[0].Filepath
	}
	return out, nil
}
