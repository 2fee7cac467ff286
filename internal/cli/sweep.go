package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alnah/go-clipscribe/internal/format"
	"github.com/alnah/go-clipscribe/internal/storage"
)

// SweepCmd creates the sweep command. It only touches the storage directory,
// so it works without any external tool installed.
func SweepCmd(env *Env, g *globals) *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete stale files from the storage directory",
		Example: `  clipscribe sweep
  clipscribe sweep --max-age 10m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load(env)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("max-age") {
				maxAge = cfg.Storage.SweepMaxAge.Std()
			}
			if maxAge <= 0 {
				return fmt.Errorf("%w: --max-age must be positive", ErrInvalidDuration)
			}

			store, err := storage.NewManager(cfg.Storage.TempDir, storage.WithLogger(g.logger(env)))
			if err != nil {
				return fmt.Errorf("storage: %w", err)
			}
			defer store.Close()

			removed, err := store.Sweep(maxAge)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(env.Stdout, "Removed %d file(s) older than %s from %s\n", removed, format.DurationHuman(maxAge), store.Root())
			return err
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", time.Hour, "Remove files older than this")

	return cmd
}
