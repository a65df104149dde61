package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellar/go/support/config"
	"github.com/stellar/go/support/log"

	"github.com/certiform/credential-gateway/cmd/utils"
	"github.com/certiform/credential-gateway/internal/serve"
)

type serveCmd struct{}

func (c *serveCmd) Command() *cobra.Command {
	cfg := serve.Configs{}

	var sentryDSN string
	var environment string
	var pollIntervalSeconds int
	cfgOpts := config.ConfigOptions{
		utils.LogLevelOption(&cfg.LogLevel),
		utils.GatewayBaseURLOption(&cfg.GatewayBaseURL),
		utils.GatewayAPIKeyOption(&cfg.GatewayAPIKey),
		utils.WalletSignerURLOption(&cfg.WalletSignerURL),
		utils.SentryDSNOption(&sentryDSN),
		utils.EnvironmentOption(&environment),
		utils.PortOption(&cfg.Port),
		utils.PollIntervalOption(&pollIntervalSeconds),
		utils.MaxPollsOption(&cfg.MaxPolls),
		utils.StallThresholdOption(&cfg.StallThreshold),
		utils.ErrorThresholdOption(&cfg.ErrorThreshold),
		utils.MaxWatchersOption(&cfg.MaxWatchers),
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run Credential Gateway server",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := utils.DefaultPersistentPreRunE(cfgOpts)(cmd, args); err != nil {
				return err
			}

			log.DefaultLogger.SetLevel(cfg.LogLevel)
			cfg.PollInterval = time.Duration(pollIntervalSeconds) * time.Second

			appTracker, err := utils.AppTrackerResolver(sentryDSN, environment)
			if err != nil {
				return fmt.Errorf("initializing app tracker: %w", err)
			}
			cfg.AppTracker = appTracker

			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.Run(cfg)
		},
	}

	if err := cfgOpts.Init(cmd); err != nil {
		log.Fatalf("Error initializing a config option: %s", err.Error())
	}

	return cmd
}

func (c *serveCmd) Run(cfg serve.Configs) error {
	err := serve.Serve(cfg)
	if err != nil {
		return fmt.Errorf("running serve: %w", err)
	}
	return nil
}
