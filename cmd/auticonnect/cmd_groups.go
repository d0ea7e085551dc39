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
	rootCmd.AddCommand(groupsCmd)
	groupsCmd.AddCommand(groupsListCmd, groupsCreateCmd)
	groupsCreateCmd.Flags().String("theme", "", "group theme")
	groupsCreateCmd.Flags().String("description", "", "group description")
	groupsCreateCmd.Flags().String("creator", "", "participant ID of the creating AT")
	groupsCreateCmd.Flags().Int("max-members", 15, "member limit")
	groupsCreateCmd.Flags().Bool("mediator", true, "enable the AI mediator")
}

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Manage themed groups",
}

var groupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List groups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := state.NewGroupStore(cfg.DataDir)

		groups, err := store.List(context.Background())
		if err != nil {
			return fmt.Errorf("list groups: %w", err)
		}
		if len(groups) == 0 {
			fmt.Fprintln(os.Stdout, "No groups.")
			return nil
		}
		for _, g := range groups {
			mediator := "mediator on"
			if !g.MediatorEnabled {
				mediator = "mediator off"
			}
			fmt.Fprintf(os.Stdout, "%s  %-20s  %-20s  %d/%d members  %s\n",
				g.ID, g.Name, g.Theme, len(g.Members), g.MaxMembers, mediator)
		}
		return nil
	},
}

var groupsCreateCmd = &cobra.Command{
	Use:   "create <telegram-chat-id> <name>",
	Short: "Register a Telegram group chat as a themed group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := state.NewGroupStore(cfg.DataDir)

		theme, _ := cmd.Flags().GetString("theme")
		description, _ := cmd.Flags().GetString("description")
		creator, _ := cmd.Flags().GetString("creator")
		maxMembers, _ := cmd.Flags().GetInt("max-members")
		mediator, _ := cmd.Flags().GetBool("mediator")

		g := &types.Group{
			ID:              types.GroupID(args[0]),
			Name:            args[1],
			Theme:           theme,
			Description:     description,
			CreatedBy:       types.ParticipantID(creator),
			Members:         []types.ParticipantID{},
			MaxMembers:      maxMembers,
			MediatorEnabled: mediator,
			CreatedAt:       time.Now(),
		}
		if err := store.Put(context.Background(), g); err != nil {
			return fmt.Errorf("create group: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Created group %s (%s).\n", g.Name, g.ID)
		return nil
	},
}
