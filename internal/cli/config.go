package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alnah/go-clipscribe/internal/config"
)

// ConfigCmd creates the config command with subcommands.
func ConfigCmd(env *Env, g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Print the effective configuration as YAML.

Values come from defaults, then the config file, then environment variables.
The OpenAI API key is redacted.

Environment overrides:
  OPENAI_API_KEY, CLIPSCRIBE_TEMP_DIR, CLIPSCRIBE_HOST, CLIPSCRIBE_PORT,
  CLIPSCRIBE_DEBUG, CLIPSCRIBE_WORKERS, CLIPSCRIBE_MAX_FILE_SIZE_MB,
  FFMPEG_PATH, FFPROBE_PATH, YTDLP_PATH, WHISPER_PATH, WHISPER_MODEL,
  WHISPER_MODEL_DIR, ARGOS_PATH, ARGOSPM_PATH`,
		Example: `  clipscribe config
  clipscribe config path`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(env, g)
		},
	}

	cmd.AddCommand(configPathCmd(env, g))

	return cmd
}

// configPathCmd creates the "config path" subcommand.
func configPathCmd(env *Env, g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := g.configPath
			if p == "" {
				var err error
				if p, err = config.Path(); err != nil {
					return err
				}
			}
			_, err := fmt.Fprintln(env.Stdout, p)
			return err
		},
	}
}

func runConfigShow(env *Env, g *globals) error {
	cfg, err := g.load(env)
	if err != nil {
		return err
	}
	out, err := cfg.YAML()
	if err != nil {
		return err
	}
	_, err = env.Stdout.Write(out)
	return err
}
