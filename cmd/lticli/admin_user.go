package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-lti/ltiprovider/storage/model"
)

var adminUserCmd = &cobra.Command{
	Use:   "admin-user",
	Short: "Manage the users of the admin api",
}

var (
	adminUserDisplayName string
	adminUserConsumer    string
)

var adminUserAddCmd = &cobra.Command{
	Use:   "add USERNAME PASSWORD",
	Short: "Add an admin api user",
	Long:  "Add an admin api user; once a user exists the admin api requires authentication",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if backends.AdminUsers == nil {
			return errors.New("the storage backend does not support admin users")
		}
		u, err := backends.AdminUsers.Create(
			model.AdminUser{
				Username:    args[0],
				DisplayName: adminUserDisplayName,
				ConsumerKey: adminUserConsumer,
			}, args[1],
		)
		if err != nil {
			return err
		}
		return renderRow(cmd.OutOrStdout(), u)
	},
}

var adminUserListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the admin api users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if backends.AdminUsers == nil {
			return errors.New("the storage backend does not support admin users")
		}
		users, err := backends.AdminUsers.List()
		if err != nil {
			return err
		}
		for _, u := range users {
			scope := u.ConsumerKey
			if scope == "" {
				scope = "*"
			}
			if _, err = fmt.Fprintf(
				cmd.OutOrStdout(), "%s\t%s\tconsumer=%s\tdisabled=%t\n", u.Username, u.DisplayName, scope, u.Disabled,
			); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	adminUserAddCmd.Flags().StringVar(&adminUserDisplayName, "display-name", "", "the display name of the user")
	adminUserAddCmd.Flags().StringVar(
		&adminUserConsumer, "consumer", "", "restrict the user to the admin api routes of this consumer",
	)
	adminUserCmd.AddCommand(adminUserAddCmd, adminUserListCmd)
}
