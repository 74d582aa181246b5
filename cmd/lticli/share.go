package main

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-lti/ltiprovider/lti"
	"github.com/go-lti/ltiprovider/storage/model"
)

var shareKeyFlags struct {
	autoApprove bool
	life        int
	length      int
}

var shareKeyCmd = &cobra.Command{
	Use:   "share-key",
	Short: "Manage share keys",
}

var shareKeyCreateCmd = &cobra.Command{
	Use:   "create CONSUMER_KEY RESOURCE_LINK_ID",
	Short: "Create a share key for a primary resource link",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		link, err := loadLink(args[0], args[1])
		if err != nil {
			return err
		}
		key := lti.NewShareKey(link)
		key.AutoApprove = shareKeyFlags.autoApprove
		key.Life = shareKeyFlags.life
		key.Length = shareKeyFlags.length
		if err = key.Save(backends.ShareKeys, time.Now()); err != nil {
			return err
		}
		return renderRow(cmd.OutOrStdout(), key)
	},
}

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Manage the resource links sharing a primary resource link",
}

var shareListCmd = &cobra.Command{
	Use:   "list CONSUMER_KEY RESOURCE_LINK_ID",
	Short: "List the resource links sharing a primary resource link",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		link, err := loadLink(args[0], args[1])
		if err != nil {
			return err
		}
		shares, err := link.Shares()
		if err != nil {
			return err
		}
		for _, s := range shares {
			if _, err = fmt.Fprintf(
				cmd.OutOrStdout(), "%s/%s\t%s\n", s.ConsumerKey, s.ResourceLinkID, s.ShareStatus,
			); err != nil {
				return err
			}
		}
		return nil
	},
}

func setShareStatusCmd(use, short string, status model.ShareStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " CONSUMER_KEY RESOURCE_LINK_ID SHARE_CONSUMER_KEY SHARE_RESOURCE_LINK_ID",
		Short: short,
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			link, err := loadLink(args[0], args[1])
			if err != nil {
				return err
			}
			if err = link.SetShareStatus(args[2], args[3], status); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "share %s/%s %s\n", args[2], args[3], status)
			return err
		},
	}
}

func loadLink(consumerKey, id string) (*lti.ResourceLink, error) {
	consumer, err := lti.LoadToolConsumer(*backends, consumerKey)
	if err != nil {
		return nil, err
	}
	if !consumer.Exists() {
		return nil, errors.Errorf("consumer '%s' not found", consumerKey)
	}
	link, err := lti.LoadResourceLink(consumer, id, "")
	if err != nil {
		return nil, err
	}
	if !link.Exists() {
		return nil, errors.Errorf("resource link '%s/%s' not found", consumerKey, id)
	}
	return link, nil
}

func init() {
	f := shareKeyCreateCmd.Flags()
	f.BoolVar(&shareKeyFlags.autoApprove, "auto-approve", false, "approve shares created with the key")
	f.IntVar(
		&shareKeyFlags.life, "life", lti.DefaultShareKeyLife,
		fmt.Sprintf("hours the key is valid, at most %d", lti.MaxShareKeyLife),
	)
	f.IntVar(
		&shareKeyFlags.length, "length", lti.MaxShareKeyLength,
		fmt.Sprintf("length of the key, between %d and %d", lti.MinShareKeyLength, lti.MaxShareKeyLength),
	)
	shareKeyCmd.AddCommand(shareKeyCreateCmd)
	shareCmd.AddCommand(
		shareListCmd,
		setShareStatusCmd("approve", "Approve a share", model.ShareStatusApproved),
		setShareStatusCmd("reject", "Reject a share", model.ShareStatusRejected),
	)
}
