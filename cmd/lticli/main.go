package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/go-lti/ltiprovider/cmd/ltiprovider/config"
	"github.com/go-lti/ltiprovider/storage/model"
)

var rootCmd = &cobra.Command{
	Use:               "lticli",
	Short:             "lticli can help you manage your LTI tool provider",
	Long:              "lticli can help you manage the consumers, shares and admin users of your LTI tool provider",
	PersistentPreRunE: loadBackends,
	SilenceUsage:      true,
}

var configFile string
var backends *model.Backends

func loadBackends(*cobra.Command, []string) error {
	if backends != nil {
		return nil
	}
	config.Load(configFile)
	log.Debug("Loaded Config")
	backs, err := config.LoadStorageBackends(config.Get())
	if err != nil {
		return err
	}
	backends = &backs
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "the config file to use")
	rootCmd.AddCommand(consumerCmd, shareKeyCmd, shareCmd, adminUserCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
