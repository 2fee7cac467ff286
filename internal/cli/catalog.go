package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alnah/go-clipscribe/internal/format"
	"github.com/alnah/go-clipscribe/internal/translate"
)

// EnginesCmd creates the engines command.
func EnginesCmd(env *Env, g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List recognition and translation engines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.app(cmd, env)
			if err != nil {
				return err
			}
			defer app.Close()

			engines := app.Service.Engines()
			tw := tabwriter.NewWriter(env.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "Recognition:")
			for _, e := range engines.Transcription {
				marker := ""
				if e.Name == engines.Default {
					marker = " (default)"
				}
				_, _ = fmt.Fprintf(tw, "  %s%s\t%s\tmax %s\n", e.Name, marker, e.Description, format.Size(e.MaxFileSize))
			}
			_, _ = fmt.Fprintln(tw, "Translation:")
			for _, name := range engines.Translation {
				_, _ = fmt.Fprintf(tw, "  %s\n", name)
			}
			return tw.Flush()
		},
	}
}

// LanguagesCmd creates the languages command.
func LanguagesCmd(env *Env, g *globals) *cobra.Command {
	var translator string

	cmd := &cobra.Command{
		Use:   "languages",
		Short: "List the target languages of a translation engine",
		Example: `  clipscribe languages
  clipscribe languages --translator dictionary`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.app(cmd, env)
			if err != nil {
				return err
			}
			defer app.Close()

			caps, err := app.Service.Languages(translator)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(env.Stdout, 0, 0, 2, ' ', 0)
			for _, code := range caps.Languages {
				_, _ = fmt.Fprintf(tw, "%s\t%s\n", code, caps.Names[code])
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&translator, "translator", string(translate.EnginePivot), "Translation engine: pivot, dictionary")

	return cmd
}
