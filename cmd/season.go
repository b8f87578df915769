package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/grasdvirus/double-words-sub000/internal/database"
	"github.com/grasdvirus/double-words-sub000/internal/leaderboard"
)

var seasonCmd = &cobra.Command{
	Use:   "season",
	Short: "Manage leaderboard seasons",
}

var seasonID string

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Archive the current leaderboard into the palmares and clear it",
	Long: `Archive ranks the current leaderboard, awards trophies to the
podium, stores every standing under the season id and empties the board.
A season can only be archived once.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		season := leaderboard.Season{ID: seasonID, End: a.cfg.Season.End}
		if season.ID == "" {
			season.ID = a.cfg.Season.ID
		}
		if season.ID == "" {
			return fmt.Errorf("season id is required: pass --id or set SEASON_ID")
		}
		rep, err := a.board.Archive(ctx, season, database.NewTrophies(a.db), time.Now())
		if err != nil {
			return err
		}
		for _, s := range rep.Standings {
			fmt.Fprintf(cmd.OutOrStdout(), "%3d. %s (%d)\n", s.Rank, s.DisplayName, s.Score)
		}
		a.reportSeason(ctx, rep)
		return nil
	},
}

func init() {
	archiveCmd.Flags().StringVar(&seasonID, "id", "", "season id (defaults to SEASON_ID)")
	seasonCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(seasonCmd)
}
