package cli

import (
	"fmt"

	"storyline-server/internal/sweeper"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete idle sessions once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.repo.Close()

		n, err := sweeper.New(st.repo, nil, cfg.CleanupThreshold(), cfg.CleanupThreshold(), log).SweepOnce(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d idle sessions\n", n)
		return err
	},
}
