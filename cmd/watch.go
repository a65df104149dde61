package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stellar/go/support/config"
	"github.com/stellar/go/support/log"

	"github.com/certiform/credential-gateway/cmd/utils"
	"github.com/certiform/credential-gateway/internal/entities"
	"github.com/certiform/credential-gateway/internal/gateway"
	"github.com/certiform/credential-gateway/internal/tracker"
)

type watchCmd struct {
	gatewayBaseURL      string
	gatewayAPIKey       string
	logLevel            logrus.Level
	pollIntervalSeconds int
	maxPolls            int
	stallThreshold      int
	errorThreshold      int
}

// Command returns a command that follows one transaction hash to its
// terminal confirmation state, printing every status transition.
func (c *watchCmd) Command() *cobra.Command {
	cfgOpts := config.ConfigOptions{
		utils.LogLevelOption(&c.logLevel),
		utils.GatewayBaseURLOption(&c.gatewayBaseURL),
		utils.GatewayAPIKeyOption(&c.gatewayAPIKey),
		utils.PollIntervalOption(&c.pollIntervalSeconds),
		utils.MaxPollsOption(&c.maxPolls),
		utils.StallThresholdOption(&c.stallThreshold),
		utils.ErrorThresholdOption(&c.errorThreshold),
	}

	cmd := &cobra.Command{
		Use:   "watch <tx-hash>",
		Short: "Track a submitted transaction until it reaches a terminal state",
		Args:  cobra.ExactArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := utils.DefaultPersistentPreRunE(cfgOpts)(cmd, args); err != nil {
				return err
			}
			log.DefaultLogger.SetLevel(c.logLevel)
			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			return c.Run(args[0])
		},
	}

	if err := cfgOpts.Init(cmd); err != nil {
		log.Fatalf("Error initializing a config option: %s", err.Error())
	}

	return cmd
}

func (c *watchCmd) Run(hash string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gatewayClient, err := gateway.NewClient(gateway.ClientOptions{
		BaseURL: c.gatewayBaseURL,
		APIKey:  c.gatewayAPIKey,
	})
	if err != nil {
		return fmt.Errorf("instantiating gateway client: %w", err)
	}

	var final *entities.TransactionStatus
	confirmationTracker, err := tracker.NewConfirmationTracker(tracker.ConfirmationTrackerOptions{
		TransactionHash: hash,
		OpenStream:      gatewayClient.OpenConfirmationStream,
		FetchStatus:     gatewayClient.GetTransactionStatus,
		Poller: tracker.PollerConfig{
			Interval:       time.Duration(c.pollIntervalSeconds) * time.Second,
			MaxPolls:       c.maxPolls,
			StallThreshold: c.stallThreshold,
			ErrorThreshold: c.errorThreshold,
		},
		OnStatus: func(status entities.TransactionStatus) {
			log.Ctx(ctx).Infof("transaction %s: state=%s retries=%d", status.TransactionHash, status.State, status.RetryCount)
		},
		OnComplete: func(status entities.TransactionStatus) {
			final = &status
		},
	})
	if err != nil {
		return fmt.Errorf("instantiating confirmation tracker: %w", err)
	}

	confirmationTracker.Track(ctx)
	if final == nil {
		log.Ctx(ctx).Warn("tracking aborted before a terminal state was observed")
		return nil
	}

	if final.State != entities.UpdatedState {
		return fmt.Errorf("transaction %s ended in state %s: %s", hash, final.State, final.LastError)
	}
	log.Ctx(ctx).Infof("transaction %s fully confirmed", hash)
	return nil
}
