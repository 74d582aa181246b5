package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-lti/ltiprovider/internal/utils"
	"github.com/go-lti/ltiprovider/storage/model"
)

const consumerSecretLength = 32

var consumerCmd = &cobra.Command{
	Use:   "consumer",
	Short: "Manage tool consumers",
}

var consumerAddFlags struct {
	name         string
	secret       string
	protected    bool
	disabled     bool
	idScope      string
	defaultEmail string
}

var consumerAddCmd = &cobra.Command{
	Use:   "add KEY",
	Short: "Add a tool consumer",
	Long:  "Add a tool consumer; a secret is generated if none is passed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		existing, err := backends.Consumers.Get(args[0])
		if err != nil {
			return err
		}
		if existing != nil {
			return errors.Errorf("consumer '%s' already exists", args[0])
		}
		scope, err := model.ParseIDScope(consumerAddFlags.idScope)
		if err != nil {
			return err
		}
		secret := consumerAddFlags.secret
		if secret == "" {
			if secret, err = utils.RandomString(consumerSecretLength); err != nil {
				return errors.WithStack(err)
			}
		}
		row := &model.Consumer{
			Key:          args[0],
			Name:         utils.FirstNonEmpty(consumerAddFlags.name, args[0]),
			Secret:       secret,
			Protected:    consumerAddFlags.protected,
			Enabled:      !consumerAddFlags.disabled,
			IDScope:      scope,
			DefaultEmail: consumerAddFlags.defaultEmail,
		}
		if err = backends.Consumers.Save(row); err != nil {
			return err
		}
		if err = renderRow(cmd.OutOrStdout(), row); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "secret\t%s\n", secret)
		return err
	},
}

var consumerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tool consumers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rows, err := backends.Consumers.List()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tNAME\tENABLED\tLAST ACCESS")
		for _, row := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", row.Key, row.Name, row.Enabled, formatValue(row.LastAccess))
		}
		return tw.Flush()
	},
}

var consumerShowCmd = &cobra.Command{
	Use:   "show KEY",
	Short: "Show a tool consumer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		row, err := getConsumer(args[0])
		if err != nil {
			return err
		}
		return renderRow(cmd.OutOrStdout(), row)
	},
}

func setConsumerEnabledCmd(use, short string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " KEY",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			row, err := getConsumer(args[0])
			if err != nil {
				return err
			}
			row.Enabled = enabled
			if err = backends.Consumers.Save(row); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "consumer '%s' enabled: %t\n", row.Key, row.Enabled)
			return err
		},
	}
}

var consumerDeleteCmd = &cobra.Command{
	Use:   "delete KEY",
	Short: "Delete a tool consumer with its resource links, users and share keys",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := getConsumer(args[0]); err != nil {
			return err
		}
		if err := backends.Consumers.Delete(args[0]); err != nil {
			return err
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "consumer '%s' deleted\n", args[0])
		return err
	},
}

func getConsumer(key string) (*model.Consumer, error) {
	row, err := backends.Consumers.Get(key)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.Errorf("consumer '%s' not found", key)
	}
	return row, nil
}

func init() {
	f := consumerAddCmd.Flags()
	f.StringVar(&consumerAddFlags.name, "name", "", "the display name of the consumer")
	f.StringVar(&consumerAddFlags.secret, "secret", "", "the shared secret; generated if empty")
	f.BoolVar(&consumerAddFlags.protected, "protected", false, "only accept launches with a matching consumer guid")
	f.BoolVar(&consumerAddFlags.disabled, "disabled", false, "add the consumer disabled")
	f.StringVar(
		&consumerAddFlags.idScope, "id-scope", model.IDScopeIDOnly.String(),
		"how user ids are scoped: id_only, global, context or resource",
	)
	f.StringVar(&consumerAddFlags.defaultEmail, "default-email", "", "email used for users without one")

	consumerCmd.AddCommand(
		consumerAddCmd,
		consumerListCmd,
		consumerShowCmd,
		setConsumerEnabledCmd("enable", "Enable a tool consumer", true),
		setConsumerEnabledCmd("disable", "Disable a tool consumer", false),
		consumerDeleteCmd,
	)
}
