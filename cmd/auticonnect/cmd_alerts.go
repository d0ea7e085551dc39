package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/user/auticonnect/internal/escalation"
	"github.com/user/auticonnect/internal/notify"
	"github.com/user/auticonnect/internal/state"
	"github.com/user/auticonnect/internal/types"
)

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsListCmd, alertsAckCmd)
	alertsAckCmd.Flags().String("by", "", "participant ID of the acknowledging AT")
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Inspect and acknowledge escalation alerts",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := state.NewAlertStore(cfg.DataDir)

		alerts, err := store.List(context.Background())
		if err != nil {
			return fmt.Errorf("list alerts: %w", err)
		}
		sort.Slice(alerts, func(i, j int) bool {
			return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
		})

		if len(alerts) == 0 {
			fmt.Fprintln(os.Stdout, "No alerts.")
			return nil
		}
		for _, a := range alerts {
			fmt.Fprintf(os.Stdout, "%s  %-12s  group=%s participant=%s score=%.0f  %s\n",
				a.CreatedAt.Format("2006-01-02 15:04"), a.Status, a.GroupID, a.ParticipantID, a.Score, a.ID)
		}
		return nil
	},
}

var alertsAckCmd = &cobra.Command{
	Use:   "ack <alert-id>",
	Short: "Acknowledge an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := state.NewAlertStore(cfg.DataDir)
		pipeline := escalation.New(store, notify.NewRegistry(), cfg.EscalationCooldown())

		by, _ := cmd.Flags().GetString("by")
		id := types.AlertID(args[0])
		if err := pipeline.HandleStatus(context.Background(), id, types.AlertAcknowledged, types.ParticipantID(by)); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Alert %s acknowledged.\n", id)
		return nil
	},
}
