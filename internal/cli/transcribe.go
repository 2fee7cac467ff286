package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alnah/go-clipscribe/internal/clip"
	"github.com/alnah/go-clipscribe/internal/transcribe"
	"github.com/alnah/go-clipscribe/internal/translate"
)

// transcribeOptions holds the flags of the transcribe command.
type transcribeOptions struct {
	engine     string
	targetLang string
	translator string
	output     string
	asJSON     bool
}

// TranscribeCmd creates the transcribe command.
// The env parameter provides injectable dependencies for testing.
func TranscribeCmd(env *Env, g *globals) *cobra.Command {
	var opts transcribeOptions

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file",
		Long: `Transcribe an audio file with whisper.cpp (local) or the OpenAI API (remote).

When the local engine fails and OPENAI_API_KEY is set, the remote engine is
tried once. With --target-lang every segment is also translated; segments
that cannot be translated keep their original text.

Supported formats: ` + strings.Join(transcribe.SupportedFormats(), ", "),
		Example: `  clipscribe transcribe clip.mp3
  clipscribe transcribe clip.mp3 --engine remote --json
  clipscribe transcribe clip.mp3 --target-lang pt --translator dictionary -o clip.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscribe(cmd, env, g, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.engine, "engine", "e", string(transcribe.EngineLocal), "Recognition engine: local, remote")
	cmd.Flags().StringVarP(&opts.targetLang, "target-lang", "t", "", "Translate segments into this language (e.g. pt, de, zh)")
	cmd.Flags().StringVar(&opts.translator, "translator", string(translate.EnginePivot), "Translation engine: pivot, dictionary")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the result to a file instead of stdout")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the transcript as JSON")

	return cmd
}

// runTranscribe executes the transcription.
// Validation order: file exists -> wiring -> service (engine, size, format).
func runTranscribe(cmd *cobra.Command, env *Env, g *globals, inputPath string, opts transcribeOptions) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, inputPath)
		}
		return fmt.Errorf("cannot read input file: %w", err)
	}

	app, err := g.app(cmd, env)
	if err != nil {
		return err
	}
	defer app.Close()

	t, err := app.Service.Transcribe(cmd.Context(), clip.TranscribeRequest{
		Data:              data,
		Filename:          filepath.Base(inputPath),
		Engine:            opts.engine,
		TargetLang:        opts.targetLang,
		TranslationEngine: opts.translator,
	})
	if err != nil {
		return err
	}

	var out strings.Builder
	if opts.asJSON {
		if err := printJSON(&out, t); err != nil {
			return err
		}
	} else {
		out.WriteString(transcriptText(t))
	}

	if opts.output != "" {
		if err := writeFileAtomic(opts.output, out.String()); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(env.Stderr, "Transcript written to %s (%d segments, language %s)\n", opts.output, len(t.Segments), t.Language)
		return nil
	}
	_, err = fmt.Fprint(env.Stdout, out.String())
	return err
}
