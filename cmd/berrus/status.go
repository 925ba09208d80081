package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/berrus-helper/internal/game"
	"github.com/aatumaykin/berrus-helper/internal/logger"
	"github.com/aatumaykin/berrus-helper/internal/relay"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show active jobs and the current session of a running daemon",
	Args:  cobra.NoArgs,
	RunE:  statusHandler,
}

func statusHandler(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	client := relay.NewClient(cfg.Relay.URL, cfg.Relay.Timeout(), logger.NewNop())
	if err := printState(cmd.Context(), cmd.OutOrStdout(), client, time.Now()); err != nil {
		return fmt.Errorf("daemon at %s: %w", cfg.Relay.URL, err)
	}
	return nil
}

func writeTimers(w io.Writer, timers game.JobTimerState, now time.Time) {
	if len(timers.ActiveJobs) == 0 {
		fmt.Fprintln(w, "No active jobs")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tSKILL\tREMAINING\tENDS")
	for _, j := range timers.ActiveJobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			j.Name, j.Skill,
			j.Remaining(now).Truncate(time.Second),
			time.UnixMilli(j.EndsAt).Local().Format(time.TimeOnly))
	}
	tw.Flush()
}

func writeSession(w io.Writer, s *game.SessionStats) {
	if s == nil {
		fmt.Fprintln(w, "No session")
		return
	}

	fmt.Fprintf(w, "\nSession: %s, %d XP, %d items, %d jobs completed\n",
		(time.Duration(s.DurationMs) * time.Millisecond).Truncate(time.Second),
		s.TotalXPGained, s.ItemsCollected, s.JobsCompleted)
	if s.PesetasEarned != 0 || s.PesetasSpent != 0 {
		fmt.Fprintf(w, "Pesetas: +%d / -%d\n", s.PesetasEarned, s.PesetasSpent)
	}
	if s.CombatKills != 0 || s.CombatDeaths != 0 {
		fmt.Fprintf(w, "Combat: %d kills, %d deaths\n", s.CombatKills, s.CombatDeaths)
	}
	if len(s.SkillGains) == 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SKILL\tXP\tLEVELS")
	for _, g := range s.SkillGains {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", g.Skill, g.XPGained, g.LevelsGained)
	}
	tw.Flush()
}

