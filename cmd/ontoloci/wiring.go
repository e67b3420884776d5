package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/waabox/ontoloci/internal/auth"
	"github.com/waabox/ontoloci/internal/config"
	"github.com/waabox/ontoloci/internal/domain"
	"github.com/waabox/ontoloci/internal/executor"
	"github.com/waabox/ontoloci/internal/metrics"
	"github.com/waabox/ontoloci/internal/provider"
	githubprovider "github.com/waabox/ontoloci/internal/provider/github"
	"github.com/waabox/ontoloci/internal/retry"
	"github.com/waabox/ontoloci/internal/validation"
)

// retryPolicy builds the policy shared by every remote call and logs each retry.
func retryPolicy(cfg config.Config, log *zap.Logger) retry.Policy {
	return retry.Policy{
		MaxRetries:      cfg.MaxRetriesOrDefault(),
		InitialInterval: cfg.InitialBackoffOrDefault(),
		MaxInterval:     cfg.MaxBackoffOrDefault(),
		OnRetry: func(err error, wait time.Duration) {
			log.Warn("retrying remote call", zap.Error(err), zap.Duration("wait", wait))
		},
	}
}

// newProviders registers the GitHub App backed provider for github.com.
func newProviders(cfg config.Config, log *zap.Logger) (*provider.Registry, error) {
	if cfg.GitHub.AppID == 0 {
		return nil, fmt.Errorf("github.app_id is not set in %s", configPath)
	}
	pem, err := cfg.PrivateKeyPEM()
	if err != nil {
		return nil, err
	}
	signer, err := auth.NewAppSigner(cfg.GitHub.AppID, pem)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: cfg.HTTPTimeoutOrDefault()}
	policy := retryPolicy(cfg, log)
	tokens := auth.NewInstallationTokens(signer, cfg.GitHub.APIURL,
		auth.WithHTTPClient(client),
		auth.WithRetryPolicy(policy),
		auth.WithLogger(log.Named("auth")))
	adapter := githubprovider.NewAdapter(tokens,
		githubprovider.WithAPIURL(cfg.GitHub.APIURL),
		githubprovider.WithRawURL(cfg.GitHub.RawURL),
		githubprovider.WithCheckName(cfg.CheckNameOrDefault()),
		githubprovider.WithHTTPClient(client),
		githubprovider.WithRetryPolicy(policy),
		githubprovider.WithLogger(log.Named("github")))

	registry := provider.NewRegistry()
	registry.Register("github.com", provider.NewRefreshingProvider(adapter, "github", tokens.Invalidate))
	return registry, nil
}

// newExecutor wires the provider for remoteURL, the validator and the store
// into an executor. reg may be nil.
func newExecutor(cfg config.Config, remoteURL string, store domain.BuildResultStore, reg prometheus.Registerer, workers int, log *zap.Logger) (*executor.Executor, error) {
	if cfg.Validator.URL == "" {
		return nil, fmt.Errorf("validator.url is not set in %s", configPath)
	}
	registry, err := newProviders(cfg, log)
	if err != nil {
		return nil, err
	}
	p, err := registry.Detect(remoteURL)
	if err != nil {
		return nil, err
	}

	validator := validation.NewClient(cfg.Validator.URL, cfg.ValidatorTimeoutOrDefault(),
		validation.WithRetryPolicy(retryPolicy(cfg, log)),
		validation.WithLogger(log.Named("validator")))

	opts := []executor.Option{
		executor.WithStrategy(executor.StrategyFor(workers)),
		executor.WithStore(store),
		executor.WithLogger(log.Named("executor")),
	}
	if reg != nil {
		opts = append(opts, executor.WithRecorder(metrics.NewRecorder(reg)))
	}
	return executor.New(p, validator, opts...), nil
}
