package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/alnah/go-clipscribe/internal/proc"
	"github.com/alnah/go-clipscribe/internal/storage"
)

// MediaInfo describes an audio file. It is recomputed on every call.
type MediaInfo struct {
	Duration   float64 `json:"duration" msgpack:"duration"`
	Codec      string  `json:"codec" msgpack:"codec"`
	SampleRate int     `json:"sample_rate" msgpack:"sample_rate"`
	Channels   int     `json:"channels" msgpack:"channels"`
	Bitrate    int64   `json:"bitrate" msgpack:"bitrate"`
	Size       int64   `json:"size" msgpack:"size"`
	Format     string  `json:"format" msgpack:"format"`
}

// ffprobeOutput mirrors the subset of ffprobe's JSON we read.
// ffprobe reports most numbers as strings.
type ffprobeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
}

// Info reads the metadata of f with ffprobe. It returns nil and an error wrapping ErrMetadataFailed when
// ffprobe fails or its output cannot be parsed.
func (e *Engine) Info(ctx context.Context, f storage.File) (*MediaInfo, error) {
	res, err := e.runner.Run(ctx, proc.Command{
		Path:    e.ffprobe,
		Args:    []string{"-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", f.Path},
		Timeout: e.infoTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMetadataFailed, f.Name(), err)
	}

	info, err := parseFFprobe(res.Stdout)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMetadataFailed, f.Name(), err)
	}
	return info, nil
}

func parseFFprobe(data []byte) (*MediaInfo, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	duration, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return nil, fmt.Errorf("parse duration %q: %w", out.Format.Duration, err)
	}

	info := &MediaInfo{
		Duration: duration,
		Format:   out.Format.FormatName,
	}
	info.Size, _ = strconv.ParseInt(out.Format.Size, 10, 64)
	info.Bitrate, _ = strconv.ParseInt(out.Format.BitRate, 10, 64)

	for _, s := range out.Streams {
		if s.CodecType != "audio" {
			continue
		}
		info.Codec = s.CodecName
		info.SampleRate, _ = strconv.Atoi(s.SampleRate)
		info.Channels = s.Channels
		break
	}
	return info, nil
}
