package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/berrus-helper/internal/bus"
	"github.com/aatumaykin/berrus-helper/internal/game"
	"github.com/aatumaykin/berrus-helper/internal/logger"
	"github.com/aatumaykin/berrus-helper/internal/relay"
)

var hiscoresCategory string

// hiscoresCmd represents the hiscores command
var hiscoresCmd = &cobra.Command{
	Use:   "hiscores <player>",
	Short: "Look a player up on the hiscores through the daemon",
	Long: `Look a player up on the hiscores. The daemon caches the last lookup for
a few minutes, so repeating a query does not hit the game site.`,
	Args: cobra.ExactArgs(1),
	RunE: hiscoresHandler,
}

func hiscoresHandler(cmd *cobra.Command, args []string) error {
	if !game.ValidHiscoreCategory(hiscoresCategory) {
		return fmt.Errorf("unknown category %q (expected one of: %s)",
			hiscoresCategory, strings.Join(game.HiscoreCategories(), ", "))
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	client := relay.NewClient(cfg.Relay.URL, cfg.Relay.Timeout(), logger.NewNop())
	res, err := bus.QueryHiscores(cmd.Context(), client, args[0], hiscoresCategory)
	if err != nil {
		return fmt.Errorf("daemon at %s: %w", cfg.Relay.URL, err)
	}
	writeHiscores(cmd.OutOrStdout(), res)
	return nil
}

func writeHiscores(w io.Writer, res game.HiscoreSearchResult) {
	if len(res.Entries) == 0 {
		fmt.Fprintf(w, "No %s hiscores for %q\n", res.Category, res.Query)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "RANK\tPLAYER\tLEVEL\tXP\t")
	for _, e := range res.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t\n", e.Rank, e.PlayerName, e.Level, e.XP)
	}
	tw.Flush()
}

func init() {
	hiscoresCmd.Flags().StringVar(&hiscoresCategory, "category", "total", "Hiscore category (total, combat or a skill)")
}
