package serve

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	supporthttp "github.com/stellar/go/support/http"
	"github.com/stellar/go/support/log"
	"github.com/stellar/go/support/render/health"

	"github.com/certiform/credential-gateway/internal/apptracker"
	"github.com/certiform/credential-gateway/internal/gateway"
	"github.com/certiform/credential-gateway/internal/metrics"
	"github.com/certiform/credential-gateway/internal/serve/httperror"
	"github.com/certiform/credential-gateway/internal/serve/httphandler"
	"github.com/certiform/credential-gateway/internal/serve/middleware"
	"github.com/certiform/credential-gateway/internal/tracker"
	"github.com/certiform/credential-gateway/internal/transactions"
	"github.com/certiform/credential-gateway/internal/validators"
	"github.com/certiform/credential-gateway/internal/wallet"
	"github.com/certiform/credential-gateway/internal/watcher"
)

type Configs struct {
	Port            int
	GatewayBaseURL  string
	GatewayAPIKey   string
	WalletSignerURL string
	LogLevel        logrus.Level
	AppTracker      apptracker.AppTracker

	// Confirmation polling heuristics. Zero values fall back to the
	// defaults in the tracker package.
	PollInterval   time.Duration
	MaxPolls       int
	StallThreshold int
	ErrorThreshold int
	MaxWatchers    int
}

type handlerDeps struct {
	GatewayClient  *gateway.Client
	Executor       *transactions.Executor
	Registry       *watcher.Registry
	Validator      *validators.BuildParamsValidator
	MetricsService metrics.MetricsService
	AppTracker     apptracker.AppTracker
}

func Serve(cfg Configs) error {
	deps, err := initHandlerDeps(cfg)
	if err != nil {
		return fmt.Errorf("setting up handler dependencies: %w", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	supporthttp.Run(supporthttp.Config{
		ListenAddr: addr,
		Handler:    handler(deps),
		OnStarting: func() {
			log.Infof("Starting Credential Gateway server on port %d", cfg.Port)
		},
		OnStopping: func() {
			log.Info("Stopping Credential Gateway server")
			deps.Registry.Stop()
		},
	})

	return nil
}

func initHandlerDeps(cfg Configs) (handlerDeps, error) {
	metricsService := metrics.NewMetricsService()

	gatewayClient, err := gateway.NewClient(gateway.ClientOptions{
		BaseURL:           cfg.GatewayBaseURL,
		APIKey:            cfg.GatewayAPIKey,
		UserTokenProvider: middleware.UserTokenFromContext,
		MetricsService:    metricsService,
	})
	if err != nil {
		return handlerDeps{}, fmt.Errorf("instantiating gateway client: %w", err)
	}

	signerWallet, err := wallet.NewRemoteWallet(wallet.RemoteWalletOptions{
		BaseURL: cfg.WalletSignerURL,
	})
	if err != nil {
		return handlerDeps{}, fmt.Errorf("instantiating remote wallet: %w", err)
	}

	validator := validators.NewBuildParamsValidator()
	executor, err := transactions.NewExecutor(transactions.ExecutorOptions{
		Builder:   gatewayClient,
		Wallet:    signerWallet,
		Validator: validator,
	})
	if err != nil {
		return handlerDeps{}, fmt.Errorf("instantiating transaction executor: %w", err)
	}

	registry, err := watcher.NewRegistry(watcher.RegistryOptions{
		OpenStream:  gatewayClient.OpenConfirmationStream,
		FetchStatus: gatewayClient.GetTransactionStatus,
		Poller: tracker.PollerConfig{
			Interval:       cfg.PollInterval,
			MaxPolls:       cfg.MaxPolls,
			StallThreshold: cfg.StallThreshold,
			ErrorThreshold: cfg.ErrorThreshold,
		},
		MetricsService:        metricsService,
		MaxConcurrentWatchers: cfg.MaxWatchers,
	})
	if err != nil {
		return handlerDeps{}, fmt.Errorf("instantiating watcher registry: %w", err)
	}

	return handlerDeps{
		GatewayClient:  gatewayClient,
		Executor:       executor,
		Registry:       registry,
		Validator:      validator,
		MetricsService: metricsService,
		AppTracker:     cfg.AppTracker,
	}, nil
}

func handler(deps handlerDeps) http.Handler {
	mux := supporthttp.NewAPIMux(log.DefaultLogger)
	mux.NotFound(httperror.ErrorHandler{Error: httperror.NotFound}.ServeHTTP)
	mux.MethodNotAllowed(httperror.ErrorHandler{Error: httperror.MethodNotAllowed}.ServeHTTP)
	mux.Use(middleware.MetricsMiddleware(deps.MetricsService))
	mux.Use(middleware.RecoverHandler(deps.AppTracker))

	mux.Get("/health", health.PassHandler{}.ServeHTTP)
	mux.Get("/metrics", promhttp.HandlerFor(
		deps.MetricsService.GetRegistry(),
		promhttp.HandlerOpts{},
	).ServeHTTP)

	mux.Group(func(r chi.Router) {
		r.Use(middleware.BearerTokenMiddleware())

		r.Route("/transactions", func(r chi.Router) {
			handler := &httphandler.TransactionsHandler{
				Executor:      deps.Executor,
				Registry:      deps.Registry,
				GatewayClient: deps.GatewayClient,
				Validator:     deps.Validator,
				AppTracker:    deps.AppTracker,
			}

			r.Post("/", handler.CreateTransaction)
			r.Get("/{hash}", handler.GetTransaction)
		})

		proxy := &httphandler.GatewayProxyHandler{GatewayClient: deps.GatewayClient}
		r.Handle("/api/*", proxy)
	})

	return mux
}
