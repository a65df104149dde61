package utils

import (
	"go/types"

	"github.com/sirupsen/logrus"
	"github.com/stellar/go/support/config"
)

func LogLevelOption(configKey *logrus.Level) *config.ConfigOption {
	return &config.ConfigOption{
		Name:           "log-level",
		Usage:          `The log level used in this project. Options: "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL", or "PANIC".`,
		OptType:        types.String,
		FlagDefault:    "INFO",
		ConfigKey:      configKey,
		CustomSetValue: SetConfigOptionLogLevel,
		Required:       false,
	}
}

func GatewayBaseURLOption(configKey *string) *config.ConfigOption {
	return &config.ConfigOption{
		Name:        "gateway-base-url",
		Usage:       "The base URL of the remote credentialing gateway.",
		OptType:     types.String,
		ConfigKey:   configKey,
		FlagDefault: "http://localhost:8000",
		Required:    true,
	}
}

func GatewayAPIKeyOption(configKey *string) *config.ConfigOption {
	return &config.ConfigOption{
		Name:      "gateway-api-key",
		Usage:     "The API key identifying this application to the gateway.",
		OptType:   types.String,
		ConfigKey: configKey,
		Required:  true,
	}
}

func WalletSignerURLOption(configKey *string) *config.ConfigOption {
	return &config.ConfigOption{
		Name:        "wallet-signer-url",
		Usage:       "The URL of the wallet signer service used to sign and submit transactions.",
		OptType:     types.String,
		ConfigKey:   configKey,
		FlagDefault: "http://localhost:7100",
		Required:    true,
	}
}

func SentryDSNOption(configKey *string) *config.ConfigOption {
	return &config.ConfigOption{
		Name:      "tracker-dsn",
		Usage:     "The Sentry DSN. When empty, errors are only logged.",
		OptType:   types.String,
		ConfigKey: configKey,
		Required:  false,
	}
}

func EnvironmentOption(configKey *string) *config.ConfigOption {
	return &config.ConfigOption{
		Name:        "environment",
		Usage:       "The deployment environment reported to the error tracker.",
		OptType:     types.String,
		ConfigKey:   configKey,
		FlagDefault: "development",
		Required:    false,
	}
}

func PortOption(configKey *int) *config.ConfigOption {
	return &config.ConfigOption{
		Name:        "port",
		Usage:       "Port to listen and serve on.",
		OptType:     types.Int,
		ConfigKey:   configKey,
		FlagDefault: 8001,
		Required:    false,
	}
}

func PollIntervalOption(configKey *int) *config.ConfigOption {
	return &config.ConfigOption{
		Name:        "confirmation-poll-interval-seconds",
		Usage:       "Seconds between confirmation status polls when the event stream is unavailable.",
		OptType:     types.Int,
		ConfigKey:   configKey,
		FlagDefault: 6,
		Required:    false,
	}
}

func MaxPollsOption(configKey *int) *config.ConfigOption {
	return &config.ConfigOption{
		Name:        "confirmation-max-polls",
		Usage:       "Maximum number of status polls before confirmation tracking gives up.",
		OptType:     types.Int,
		ConfigKey:   configKey,
		FlagDefault: 150,
		Required:    false,
	}
}

func StallThresholdOption(configKey *int) *config.ConfigOption {
	return &config.ConfigOption{
		Name:        "confirmation-stall-threshold",
		Usage:       "Consecutive confirmed-with-error polls tolerated before the upstream update is presumed stuck.",
		OptType:     types.Int,
		ConfigKey:   configKey,
		FlagDefault: 5,
		Required:    false,
	}
}

func ErrorThresholdOption(configKey *int) *config.ConfigOption {
	return &config.ConfigOption{
		Name:        "confirmation-error-threshold",
		Usage:       "Consecutive failed status fetches tolerated before the tracking service is presumed unreachable.",
		OptType:     types.Int,
		ConfigKey:   configKey,
		FlagDefault: 10,
		Required:    false,
	}
}

func MaxWatchersOption(configKey *int) *config.ConfigOption {
	return &config.ConfigOption{
		Name:        "max-concurrent-watchers",
		Usage:       "Maximum number of transactions watched concurrently.",
		OptType:     types.Int,
		ConfigKey:   configKey,
		FlagDefault: 32,
		Required:    false,
	}
}
