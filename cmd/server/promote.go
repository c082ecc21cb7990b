package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"blog/internal/models"
)

var demote bool

var promoteCmd = &cobra.Command{
	Use:   "promote <email>",
	Short: "Grant a user the admin role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		store, err := openStore(cfg, log)
		if err != nil {
			return err
		}
		defer store.Close()

		user, err := store.GetUserByEmail(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("user %s: %w", args[0], err)
		}
		role := models.RoleAdmin
		if demote {
			role = models.RoleUser
		}
		if err := store.SetUserRole(cmd.Context(), user.ID, role); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", user.Email, role)
		return nil
	},
}

func init() {
	promoteCmd.Flags().BoolVar(&demote, "demote", false, "revoke the admin role instead")
	rootCmd.AddCommand(promoteCmd)
}
