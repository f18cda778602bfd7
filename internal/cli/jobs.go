package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"codequest/internal/models"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run mission maintenance once",
}

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Expire every open mission past its expiry",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer teardown(a)

		count, err := a.Services.Missions.ExpireMissions(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Expired %d missions\n", count)
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the current daily or weekly missions",
	RunE: func(cmd *cobra.Command, args []string) error {
		typeFlag, _ := cmd.Flags().GetString("type")
		userID, _ := cmd.Flags().GetString("user")
		typ, err := models.ParseMissionType(typeFlag)
		if err != nil {
			return err
		}

		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer teardown(a)

		if userID != "" {
			missions, err := a.Services.Missions.Generate(cmd.Context(), userID, typ)
			if err != nil {
				return err
			}
			for _, m := range missions {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-16s %d/%d  %s\n", m.ID, m.Objective, m.Progress, m.Target, m.Status)
			}
			return nil
		}

		stats, err := a.Scheduler().GenerateAll(cmd.Context(), typ)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Generated %s missions for %d users (%d failed)\n", typ, stats.Users, stats.Failed)
		return nil
	},
}

func init() {
	generateCmd.Flags().String("type", "daily", "Mission type: daily or weekly")
	generateCmd.Flags().String("user", "", "Only generate for this user id")

	jobsCmd.AddCommand(expireCmd)
	jobsCmd.AddCommand(generateCmd)
}
