package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/maastricht-university/moodcam/emotion"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved mood records, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, _, err := a.authed()
			if err != nil {
				return err
			}
			recs, err := api.MoodRecords(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tWHEN\tEMOTION\tCONFIDENCE")
			for _, r := range recs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d%%\n", r.ID, r.Timestamp, label(r.Emotion), emotion.Percent(r.Confidence))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum records to list")
	return cmd
}

func newRecordCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "record <id>",
		Short: "Show one mood record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("record id: %w", err)
			}
			api, _, err := a.authed()
			if err != nil {
				return err
			}
			r, err := api.MoodRecord(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "#%d %s %s %d%%\n", r.ID, r.Timestamp, label(r.Emotion), emotion.Percent(r.Confidence))
			return nil
		},
	}
}

func newDeleteRecordCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-record <id>",
		Short: "Delete one mood record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("record id: %w", err)
			}
			api, _, err := a.authed()
			if err != nil {
				return err
			}
			if err := api.DeleteMoodRecord(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Record %d deleted\n", id)
			return nil
		},
	}
}

func newSessionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List tracking sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, _, err := a.authed()
			if err != nil {
				return err
			}
			ss, err := api.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tENDED\tSAVED")
			for _, s := range ss {
				end := "running"
				if s.EndTime != nil {
					end = *s.EndTime
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", s.ID, s.StartTime, end, s.EmotionsDetected)
			}
			return tw.Flush()
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Per-emotion counts and average confidence",
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, _, err := a.authed()
			if err != nil {
				return err
			}
			stats, err := api.EmotionStats(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EMOTION\tCOUNT\tAVG CONFIDENCE")
			for _, s := range stats {
				fmt.Fprintf(tw, "%s\t%d\t%d%%\n", label(s.Emotion), s.Count, emotion.Percent(s.AvgConfidence))
			}
			return tw.Flush()
		},
	}
}

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is up",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := a.api.Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", h.Status, h.Message)
			return nil
		},
	}
}

// label renders a stored emotion with its icon when it is a known label.
func label(s string) string {
	l, err := emotion.ParseLabel(s)
	if err != nil {
		return s
	}
	m := emotion.Info(l)
	return m.Icon + " " + m.Name
}
