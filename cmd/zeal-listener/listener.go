package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/zeal/pkg/client"
	"github.com/platinummonkey/zeal/pkg/config"
	"github.com/platinummonkey/zeal/pkg/events"
	"github.com/platinummonkey/zeal/pkg/observability"
	"github.com/platinummonkey/zeal/pkg/subscription"
)

// listener owns the current client and subscription manager so a config
// reload can swap both
type listener struct {
	log     *logrus.Logger
	logger  *observability.Logger
	metrics *observability.Metrics
	redis   *redis.Client

	mu      sync.Mutex
	api     *client.Client
	manager *subscription.Manager
}

func newListener(log *logrus.Logger, logger *observability.Logger, metrics *observability.Metrics, redisClient *redis.Client) *listener {
	return &listener{
		log:     log,
		logger:  logger,
		metrics: metrics,
		redis:   redisClient,
	}
}

func (l *listener) start(ctx context.Context, cfg *config.Config) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.startLocked(ctx, cfg)
}

func (l *listener) startLocked(ctx context.Context, cfg *config.Config) error {
	api, err := client.New(cfg.Client)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	api.SetLogger(l.logger).SetMetrics(l.metrics)

	manager := api.NewSubscription(cfg.Subscription)
	if l.redis != nil && cfg.Subscription.DedupeWindow > 0 {
		manager.SetDedupeStore(subscription.NewRedisDedupe(l.redis, cfg.Redis.Prefix, cfg.Subscription.DedupeWindow))
	}
	l.attach(manager)

	if err := manager.Start(ctx); err != nil {
		return err
	}

	l.api = api
	l.manager = manager
	l.log.WithFields(logrus.Fields{
		"url":        manager.URL(),
		"webhook_id": manager.WebhookID(),
	}).Info("Subscription started")
	return nil
}

// attach logs deliveries and events. Errors are already logged by the manager.
func (l *listener) attach(manager *subscription.Manager) {
	manager.OnDelivery(func(d *subscription.Delivery) error {
		l.log.WithFields(logrus.Fields{
			"delivery_id": d.Metadata.DeliveryID,
			"namespace":   d.Metadata.Namespace,
			"events":      len(d.Events),
		}).Debug("Delivery received")
		return nil
	})
	manager.OnEvent(func(e events.Event) error {
		l.log.WithFields(logrus.Fields{
			"id":          e.Common().ID,
			"type":        e.EventType(),
			"workflow_id": e.Common().WorkflowID,
		}).Info("Event received")
		return nil
	})
}

// reload stops the current manager and starts one from cfg. When the new
// config fails to start, the previous config is started again.
func (l *listener) reload(ctx context.Context, cfg *config.Config) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	previous := l.manager
	var previousOpts subscription.Options
	var previousClient client.Config
	if previous != nil {
		previousOpts = previous.Options()
		previousClient = l.api.Config()
		if err := previous.Stop(ctx); err != nil {
			l.log.WithError(err).Warn("Previous subscription did not stop cleanly")
		}
	}

	err := l.startLocked(ctx, cfg)
	if err == nil || previous == nil {
		return err
	}

	restore := config.Default()
	restore.Client = previousClient
	restore.Subscription = previousOpts
	if restoreErr := l.startLocked(ctx, restore); restoreErr != nil {
		return errors.Join(err, fmt.Errorf("failed to restore previous subscription: %w", restoreErr))
	}
	return err
}

func (l *listener) stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.manager == nil {
		return nil
	}
	return l.manager.Stop(ctx)
}

func (l *listener) running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.manager != nil && l.manager.IsRunning()
}

func (l *listener) client() *client.Client {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.api
}
