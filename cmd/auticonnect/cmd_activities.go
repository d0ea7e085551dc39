package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/auticonnect/internal/state"
	"github.com/user/auticonnect/internal/types"
)

func init() {
	rootCmd.AddCommand(activitiesCmd)
	activitiesCmd.AddCommand(activitiesListCmd, activitiesAddCmd)
	activitiesAddCmd.Flags().String("type", string(types.ActivityDiscussao),
		"activity type (discussao, projeto, jogo, compartilhamento)")
	activitiesAddCmd.Flags().String("at", "", "start time (RFC 3339)")
	activitiesAddCmd.Flags().Duration("duration", time.Hour, "activity duration")
	activitiesAddCmd.Flags().String("creator", "", "participant ID of the creating AT")
	activitiesAddCmd.Flags().String("description", "", "activity description")
}

var activitiesCmd = &cobra.Command{
	Use:   "activities",
	Short: "Manage group activities",
}

var activitiesListCmd = &cobra.Command{
	Use:   "list <group-id>",
	Short: "List a group's activities",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := state.NewActivityStore(cfg.DataDir)

		activities, err := store.ListByGroup(context.Background(), types.GroupID(args[0]))
		if err != nil {
			return fmt.Errorf("list activities: %w", err)
		}
		if len(activities) == 0 {
			fmt.Fprintln(os.Stdout, "No activities.")
			return nil
		}
		for _, a := range activities {
			fmt.Fprintf(os.Stdout, "%s  %-10s  %-15s  %s  %s\n",
				a.ScheduledAt.Format("2006-01-02 15:04"), a.Status, a.Type, a.Title, a.ID)
		}
		return nil
	},
}

var activitiesAddCmd = &cobra.Command{
	Use:   "add <group-id> <title>",
	Short: "Schedule an activity in a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := state.NewActivityStore(cfg.DataDir)

		typeStr, _ := cmd.Flags().GetString("type")
		activityType := types.ActivityType(typeStr)
		if !activityType.Valid() {
			return fmt.Errorf("unknown activity type %q (use discussao, projeto, jogo or compartilhamento)", typeStr)
		}
		atStr, _ := cmd.Flags().GetString("at")
		duration, _ := cmd.Flags().GetDuration("duration")
		creator, _ := cmd.Flags().GetString("creator")
		description, _ := cmd.Flags().GetString("description")

		scheduledAt := time.Now()
		if atStr != "" {
			t, err := time.Parse(time.RFC3339, atStr)
			if err != nil {
				return fmt.Errorf("parse --at: %w", err)
			}
			scheduledAt = t
		}

		a := &types.Activity{
			ID:          types.NewActivityID(),
			GroupID:     types.GroupID(args[0]),
			Type:        activityType,
			Title:       args[1],
			Description: description,
			CreatedBy:   types.ParticipantID(creator),
			ScheduledAt: scheduledAt,
			Duration:    duration,
			Status:      types.ActivityScheduled,
		}
		if err := store.Put(context.Background(), a); err != nil {
			return fmt.Errorf("add activity: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Scheduled %q at %s (%s).\n",
			a.Title, a.ScheduledAt.Format("2006-01-02 15:04"), a.ID)
		return nil
	},
}
