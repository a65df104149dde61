package utils

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stellar/go/support/config"

	"github.com/certiform/credential-gateway/internal/apptracker"
	"github.com/certiform/credential-gateway/internal/apptracker/dryrun"
	"github.com/certiform/credential-gateway/internal/apptracker/sentry"
)

func DefaultPersistentPreRunE(cfgOpts config.ConfigOptions) func(_ *cobra.Command, _ []string) error {
	return func(_ *cobra.Command, _ []string) error {
		if err := cfgOpts.RequireE(); err != nil {
			return fmt.Errorf("requiring values of config options: %w", err)
		}
		if err := cfgOpts.SetValues(); err != nil {
			return fmt.Errorf("setting values of config options: %w", err)
		}
		return nil
	}
}

// AppTrackerResolver returns a Sentry-backed tracker when a DSN is
// configured and a log-only tracker otherwise.
func AppTrackerResolver(sentryDSN, environment string) (apptracker.AppTracker, error) {
	if sentryDSN == "" {
		return &dryrun.DryRunTracker{}, nil
	}

	tracker, err := sentry.NewSentryTracker(sentryDSN, environment, 5)
	if err != nil {
		return nil, fmt.Errorf("initializing sentry tracker: %w", err)
	}
	return tracker, nil
}
