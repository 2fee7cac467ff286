package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/alnah/go-clipscribe/internal/config"
)

// globals holds the persistent flags shared by every command.
type globals struct {
	configPath string
	verbose    bool
}

// RootCmd creates the clipscribe command tree.
// The env parameter provides injectable dependencies for testing.
func RootCmd(env *Env, version string) *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "clipscribe",
		Short: "Fetch, cut, transcribe and translate short audio clips",
		Long: `clipscribe acquires short audio clips, cuts and normalizes them with ffmpeg,
transcribes them with whisper.cpp or the OpenAI API and translates the
transcript segment by segment.

Run "clipscribe serve" for the HTTP API. The other commands run one
operation and print the result.`,
		Version: version,
		// Silence Cobra's default error/usage printing; main handles it.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file (default: $"+config.EnvConfigFile+" or ~/.config/clipscribe/config.yaml)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(ServeCmd(env, g))
	root.AddCommand(SearchCmd(env, g))
	root.AddCommand(FetchCmd(env, g))
	root.AddCommand(InfoCmd(env, g))
	root.AddCommand(CutCmd(env, g))
	root.AddCommand(NormalizeCmd(env, g))
	root.AddCommand(TranscribeCmd(env, g))
	root.AddCommand(EnginesCmd(env, g))
	root.AddCommand(LanguagesCmd(env, g))
	root.AddCommand(SweepCmd(env, g))
	root.AddCommand(ConfigCmd(env, g))

	return root
}

// load reads the configuration named by the --config flag.
func (g *globals) load(env *Env) (config.Config, error) {
	return env.ConfigLoader.Load(g.configPath)
}

// logger returns a text logger on stderr. Debug level with --verbose.
func (g *globals) logger(env *Env) *slog.Logger {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(env.Stderr, &slog.HandlerOptions{Level: level}))
}

// app loads the configuration and wires the pipeline.
// Callers must Close the returned App.
func (g *globals) app(cmd *cobra.Command, env *Env) (*App, error) {
	cfg, err := g.load(env)
	if err != nil {
		return nil, err
	}
	return env.AppFactory.NewApp(cmd.Context(), cfg, g.logger(env))
}
