package acquire

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-clipscribe/internal/proc"
)

// Search result bounds.
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 50
)

// defaultSearchTimeout bounds one search query.
const defaultSearchTimeout = time.Minute

// Sentinel errors for search.
var (
	// ErrInvalidQuery indicates an empty query or a limit outside 1..MaxSearchLimit.
	ErrInvalidQuery = errors.New("invalid search query")

	// ErrSearchUnavailable indicates no searcher is configured.
	ErrSearchUnavailable = errors.New("search is not available")

	// ErrSearchFailed indicates the search backend failed.
	ErrSearchFailed = errors.New("search failed")
)

// Hit is one search result. VideoID feeds Acquire.
type Hit struct {
	VideoID   string   `json:"video_id" msgpack:"video_id"`
	Title     string   `json:"title" msgpack:"title"`
	Artist    string   `json:"artist" msgpack:"artist"`
	Duration  *float64 `json:"duration,omitempty" msgpack:"duration,omitempty"`
	Thumbnail string   `json:"thumbnail,omitempty" msgpack:"thumbnail,omitempty"`
}

// Searcher finds sources matching a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
}

var _ Searcher = (*YTDLP)(nil)

// ytdlpEntry mirrors the flat-playlist fields of one search entry.
type ytdlpEntry struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Artist     string   `json:"artist"`
	Uploader   string   `json:"uploader"`
	Channel    string   `json:"channel"`
	Duration   *float64 `json:"duration"`
	Thumbnail  string   `json:"thumbnail"`
	Thumbnails []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
}

// Search runs a ytsearch query without downloading anything. Entries
// without an identifier are skipped.
func (y *YTDLP) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	args := []string{
		"--flat-playlist",
		"--dump-json",
		"--no-warnings",
		"--socket-timeout", strconv.Itoa(y.socketTimeout),
		"--",
		fmt.Sprintf("ytsearch%d:%s", limit, query),
	}

	res, err := y.runner.Run(ctx, proc.Command{Path: y.path, Args: args, Timeout: defaultSearchTimeout})
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, limit)
	sc := bufio.NewScanner(bytes.NewReader(res.Stdout))
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var e ytdlpEntry
		if err := json.Unmarshal(line, &e); err != nil || e.ID == "" {
			continue
		}
		hits = append(hits, e.hit())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read yt-dlp output: %w", err)
	}
	return hits, nil
}

func (e ytdlpEntry) hit() Hit {
	h := Hit{VideoID: e.ID, Title: e.Title, Artist: UnknownArtist, Duration: e.Duration, Thumbnail: e.Thumbnail}
	if h.Title == "" {
		h.Title = UnknownTitle
	}
	for _, name := range []string{e.Artist, e.Uploader, e.Channel} {
		if name != "" {
			h.Artist = name
			break
		}
	}
	if n := len(e.Thumbnails); n > 0 && e.Thumbnails[n-1].URL != "" {
		h.Thumbnail = e.Thumbnails[n-1].URL
	}
	return h
}

// Search validates query and limit, then asks the searcher. A zero limit
// means DefaultSearchLimit.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", ErrInvalidQuery)
	}
	if limit == 0 {
		limit = DefaultSearchLimit
	}
	if limit < 1 || limit > MaxSearchLimit {
		return nil, fmt.Errorf("%w: limit %d outside 1..%d", ErrInvalidQuery, limit, MaxSearchLimit)
	}
	if s.searcher == nil {
		return nil, ErrSearchUnavailable
	}

	hits, err := s.searcher.Search(ctx, query, limit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	s.logger.Info("search complete", "query", query, "results", len(hits))
	return hits, nil
}
