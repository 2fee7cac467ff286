package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alnah/go-clipscribe/internal/clip"
	"github.com/alnah/go-clipscribe/internal/format"
	"github.com/alnah/go-clipscribe/internal/storage"
)

// FetchCmd creates the fetch command.
func FetchCmd(env *Env, g *globals) *cobra.Command {
	var (
		fmtName string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "fetch <video-id>",
		Short: "Download the audio track of a video",
		Long: `Download the audio track of a video by its 11-character identifier.

The file lands in the storage directory and is printed with its metadata.`,
		Example: `  clipscribe fetch dQw4w9WgXcQ
  clipscribe fetch dQw4w9WgXcQ --format wav --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.app(cmd, env)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Service.Download(cmd.Context(), clip.DownloadRequest{VideoID: args[0], Format: fmtName})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(env.Stdout, res)
			}
			duration := ""
			if res.Duration != nil {
				duration = format.Seconds(*res.Duration)
			}
			return printFields(env.Stdout,
				field{"path", res.Path},
				field{"title", res.Title},
				field{"artist", res.Artist},
				field{"duration", duration},
				field{"format", res.Format},
				field{"size", format.Size(res.FileSize)},
			)
		},
	}

	cmd.Flags().StringVarP(&fmtName, "format", "f", "mp3", "Output format: mp3, wav")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	return cmd
}

// SearchCmd creates the search command.
func SearchCmd(env *Env, g *globals) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search for music videos",
		Long: `Search the video source for a song and list the matches.

The video_id column is what fetch expects.`,
		Example: `  clipscribe search never gonna give you up
  clipscribe search "daft punk" --limit 5 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.app(cmd, env)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Service.Search(cmd.Context(), clip.SearchRequest{Query: strings.Join(args, " "), Limit: limit})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(env.Stdout, res)
			}
			return printHits(env.Stdout, res.Results)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Maximum results, 1 to 50 (default 20)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	return cmd
}

// InfoCmd creates the info command.
func InfoCmd(env *Env, g *globals) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "info <audio-file>",
		Short:   "Print media metadata",
		Example: `  clipscribe info song.mp3`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.app(cmd, env)
			if err != nil {
				return err
			}
			defer app.Close()

			f, err := importFile(app, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = app.Service.Delete(f.Path) }()

			info, err := app.Service.Metadata(cmd.Context(), f.Path)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(env.Stdout, info)
			}
			return printFields(env.Stdout,
				field{"duration", format.Seconds(info.Duration)},
				field{"codec", info.Codec},
				field{"format", info.Format},
				field{"sample_rate", strconv.Itoa(info.SampleRate) + " Hz"},
				field{"channels", strconv.Itoa(info.Channels)},
				field{"bitrate", strconv.FormatInt(info.Bitrate/1000, 10) + " kb/s"},
				field{"size", format.Size(info.Size)},
			)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	return cmd
}

// CutCmd creates the cut command.
func CutCmd(env *Env, g *globals) *cobra.Command {
	var (
		start, end float64
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "cut <audio-file>",
		Short: "Cut a clip out of an audio file",
		Long: `Cut [start, end) seconds out of an audio file with stream copy.

The input is imported into the storage directory first; the clip is written
there too and its path is printed.`,
		Example: `  clipscribe cut song.mp3 --start 30 --end 60`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("start") || !cmd.Flags().Changed("end") {
				return fmt.Errorf("%w: --start and --end are required", ErrInvalidRange)
			}

			app, err := g.app(cmd, env)
			if err != nil {
				return err
			}
			defer app.Close()

			f, err := importFile(app, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = app.Service.Delete(f.Path) }()

			res, err := app.Service.Cut(cmd.Context(), clip.CutRequest{Path: f.Path, Start: start, End: end})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(env.Stdout, res)
			}
			return printFields(env.Stdout,
				field{"path", res.Path},
				field{"original", format.Seconds(res.OriginalDuration)},
				field{"clip", format.Seconds(res.CutDuration)},
				field{"size", format.Size(res.FileSize)},
			)
		},
	}

	cmd.Flags().Float64Var(&start, "start", 0, "Start offset in seconds")
	cmd.Flags().Float64Var(&end, "end", 0, "End offset in seconds")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	return cmd
}

// NormalizeCmd creates the normalize command.
func NormalizeCmd(env *Env, g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "normalize <audio-file>",
		Short:   "Apply EBU R128 loudness normalization",
		Example: `  clipscribe normalize clip.mp3`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.app(cmd, env)
			if err != nil {
				return err
			}
			defer app.Close()

			f, err := importFile(app, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = app.Service.Delete(f.Path) }()

			res, err := app.Service.Normalize(cmd.Context(), f.Path)
			if err != nil {
				return err
			}
			return printFields(env.Stdout,
				field{"path", res.Path},
				field{"size", format.Size(res.FileSize)},
			)
		},
	}
}

// importFile copies an external file into managed storage.
func importFile(app *App, path string) (storage.File, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return storage.File{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return storage.File{}, fmt.Errorf("cannot access input file: %w", err)
	}
	return app.Service.Import(path)
}
