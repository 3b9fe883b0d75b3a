package main

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"hotdog/internal/broker"
	"hotdog/internal/config"
	"hotdog/internal/dispatch"
	"hotdog/internal/listen"
	"hotdog/internal/logger"
	"hotdog/internal/rule"
	"hotdog/internal/status"
	"hotdog/pkg/health"
	"hotdog/pkg/metrics"
)

const shutdownTimeout = 30 * time.Second

type App struct {
	cfg    *config.Config
	logger logger.Logger

	producer   *broker.KafkaProducer
	dispatcher *dispatch.Dispatcher
	rules      *rule.RuleSet
	listener   *listen.Listener
	status     *status.Server
	statsd     *metrics.Statsd

	deliveryCancel context.CancelFunc
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{cfg: cfg, logger: log}
}

func (a *App) Initialize() error {
	metrics.Register()

	statsd, err := metrics.NewStatsd(a.cfg.Global.Metrics.Statsd, "hotdog")
	if err != nil {
		return fmt.Errorf("failed to initialize statsd: %w", err)
	}
	a.statsd = statsd

	specs, err := a.cfg.RuleSpecs()
	if err != nil {
		return err
	}
	rules, err := rule.Compile(specs, a.cfg.Global.Kafka.Topic, rule.NewExpander(version), a.logger)
	if err != nil {
		return fmt.Errorf("failed to compile rules: %w", err)
	}
	a.rules = rules
	a.logger.Infow("Rules compiled", "count", rules.Len(), "default_topic", rules.DefaultTopic())

	producer, err := broker.NewKafkaProducer(a.cfg.Global.Kafka.Conf, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}
	a.producer = producer

	a.dispatcher = dispatch.New(producer, a.cfg.Global.Kafka.Buffer, a.logger)
	a.listener = listen.New(a.cfg.Global.Listen, a.rules, a.dispatcher, a.statsd, a.logger)

	registry := health.NewCheckerRegistry()
	registry.Register(health.NewFuncChecker("dispatcher", func(ctx context.Context) error {
		if a.dispatcher.Closed() {
			return fmt.Errorf("dispatcher is closed")
		}
		return nil
	}))
	registry.Register(health.NewFuncChecker("sink", func(ctx context.Context) error {
		if a.producer.BreakerOpen() {
			return fmt.Errorf("sink circuit breaker is open")
		}
		return nil
	}))
	a.status = status.NewServer(a.cfg.Global.Status, registry, a.logger)

	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	// Delivery outlives gCtx so buffered envelopes still drain to the sink
	// after the shutdown signal; shutdown cancels it once the drain is done.
	deliveryCtx, deliveryCancel := context.WithCancel(context.Background())
	a.deliveryCancel = deliveryCancel
	a.dispatcher.Start(deliveryCtx)

	g.Go(func() error {
		return a.status.Run()
	})

	g.Go(func() error {
		// Serve returns only after every connection worker has drained its
		// in-flight records, so the dispatcher is still accepting while they
		// finish.
		err := a.listener.Serve(gCtx)
		a.shutdown()
		return err
	})

	g.Go(func() error {
		<-gCtx.Done()
		return gCtx.Err()
	})

	return g.Wait()
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.dispatcher.Close(ctx); err != nil {
		a.logger.Errorw("Dispatcher shutdown error", "error", err)
	}
	a.deliveryCancel()
	if err := a.status.Shutdown(ctx); err != nil {
		a.logger.Errorw("Status server shutdown error", "error", err)
	}
	if err := a.statsd.Close(); err != nil {
		a.logger.Errorw("Statsd shutdown error", "error", err)
	}
}
