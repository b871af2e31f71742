package subscription

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/zeal/pkg/async"
	"github.com/platinummonkey/zeal/pkg/events"
	"github.com/platinummonkey/zeal/pkg/observable"
	"github.com/platinummonkey/zeal/pkg/observability"
)

const tracerName = "github.com/platinummonkey/zeal/pkg/subscription"

type state int

const (
	stateStopped state = iota
	stateRunning
	stateStopping
)

func (s state) String() string {
	return []string{"stopped", "running", "stopping"}[s]
}

// Manager owns a webhook receiver: its HTTP listener, its remote registration,
// and the fan-out of decoded events to callbacks and the Observable.
type Manager struct {
	opts      Options
	registrar Registrar
	logger    *observability.Logger
	metrics   *observability.Metrics
	tracer    trace.Tracer
	dedupe    DedupeStore
	inflight  *async.Tracker

	eventCallbacks    callbackList[EventCallback]
	deliveryCallbacks callbackList[DeliveryCallback]
	errorCallbacks    callbackList[ErrorCallback]

	mu        sync.Mutex
	state     state
	obs       *observable.Observable
	listener  net.Listener
	server    *http.Server
	scheduler *cron.Cron
	webhookID string
	// runCtx lives from Start until Stop and bounds every registrar call
	runCtx    context.Context
	cancelRun context.CancelFunc
	// stopped is closed when the current run has fully stopped
	stopped chan struct{}

	// registrarSem serializes registrar calls. It is a channel so waiters
	// can give up when their context ends.
	registrarSem chan struct{}
}

// New creates a stopped Manager. registrar may be nil when AutoRegister is off
// and Register is never called.
func New(registrar Registrar, opts Options) *Manager {
	m := &Manager{
		opts:      opts,
		registrar: registrar,
		logger:    observability.NewLogger(observability.InfoLevel, os.Stderr),
		tracer:    otel.Tracer(tracerName),
		obs:       observable.New(opts.BufferSize),

		registrarSem: make(chan struct{}, 1),
	}
	if opts.DedupeWindow > 0 {
		m.dedupe = NewMemoryDedupe(opts.DedupeSize, opts.DedupeWindow)
	}
	m.inflight = async.NewTracker(m.logger)
	return m
}

// SetLogger replaces the logger. Call before Start.
func (m *Manager) SetLogger(logger *observability.Logger) *Manager {
	m.logger = logger.WithField("component", "subscription").WithField("namespace", m.opts.Namespace)
	m.inflight = async.NewTracker(m.logger)
	return m
}

// SetMetrics enables Prometheus instrumentation. Call before Start.
func (m *Manager) SetMetrics(metrics *observability.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// SetDedupeStore replaces the delivery id store. Call before Start.
func (m *Manager) SetDedupeStore(store DedupeStore) *Manager {
	m.dedupe = store
	return m
}

// Options returns the options the manager was created with
func (m *Manager) Options() Options {
	return m.opts
}

// Start binds the listener, begins serving, and registers with the remote
// service when AutoRegister is set. A registration failure is reported on the
// error channel and does not fail Start. Start returns ErrNotRunning when a
// concurrent Stop ends the run before Start finishes.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.opts.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.state != stateStopped {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}

	ln, err := m.listen()
	if err != nil {
		m.mu.Unlock()
		return err
	}

	runCtx, cancelRun := context.WithCancel(context.WithoutCancel(ctx))

	var scheduler *cron.Cron
	if m.opts.ReregisterInterval > 0 {
		scheduler, err = m.newReregistration(runCtx)
		if err != nil {
			m.mu.Unlock()
			cancelRun()
			ln.Close()
			return err
		}
	}

	srv := &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if m.obs.Completed() {
		m.obs = observable.New(m.opts.BufferSize)
	}
	m.listener = ln
	m.server = srv
	m.scheduler = scheduler
	m.runCtx = runCtx
	m.cancelRun = cancelRun
	m.stopped = make(chan struct{})
	m.state = stateRunning
	// Started under mu so a concurrent Stop always sees and stops it
	if scheduler != nil {
		scheduler.Start()
	}
	m.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.WithError(err).Error("webhook server stopped unexpectedly")
		}
	}()

	m.logger.WithField("addr", ln.Addr().String()).
		WithField("path", m.opts.Path).
		Info("webhook receiver listening")

	if m.opts.AutoRegister {
		// Other failures are already on the error channel
		if err := m.Register(ctx); errors.Is(err, ErrNotRunning) {
			return fmt.Errorf("%w: stopped while starting", ErrNotRunning)
		}
	}

	return nil
}

func (m *Manager) listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", m.opts.listenAddr())
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", m.opts.listenAddr(), err)
	}

	cfg, err := m.tlsConfig()
	if err != nil {
		ln.Close()
		return nil, err
	}
	if cfg != nil {
		ln = tls.NewListener(ln, cfg)
	}
	return ln, nil
}

func (m *Manager) tlsConfig() (*tls.Config, error) {
	if m.opts.TLSConfig != nil {
		return m.opts.TLSConfig, nil
	}
	if m.opts.CertFile == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(m.opts.CertFile, m.opts.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load TLS key pair: %v", ErrConfiguration, err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// newReregistration builds the cron job that retries registration while
// none is held. The caller starts it.
func (m *Manager) newReregistration(runCtx context.Context) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger)))
	spec := fmt.Sprintf("@every %s", m.opts.ReregisterInterval)
	if _, err := c.AddFunc(spec, func() {
		if runCtx.Err() != nil || !m.IsRunning() || m.WebhookID() != "" {
			return
		}
		m.logger.Info("retrying webhook registration")
		_ = m.Register(runCtx)
	}); err != nil {
		return nil, fmt.Errorf("%w: failed to schedule re-registration: %v", ErrConfiguration, err)
	}
	return c, nil
}

func (m *Manager) lockRegistrar(ctx context.Context) error {
	select {
	case m.registrarSem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) unlockRegistrar() {
	<-m.registrarSem
}

func (m *Manager) shutdownTimeout() time.Duration {
	if m.opts.ShutdownTimeout <= 0 {
		return 5 * time.Second
	}
	return m.opts.ShutdownTimeout
}

// Register creates the remote webhook registration pointing at this receiver.
// It is a no-op while a registration is already held. Failures are reported on
// the error channel and returned. Stop abandons a registration in flight and
// Register then returns ErrNotRunning.
func (m *Manager) Register(ctx context.Context) error {
	m.mu.Lock()
	running := m.state == stateRunning
	runCtx := m.runCtx
	m.mu.Unlock()

	if !running {
		return ErrNotRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(runCtx, cancel)
	defer stop()

	if err := m.lockRegistrar(ctx); err != nil {
		if runCtx.Err() != nil {
			return ErrNotRunning
		}
		return err
	}
	defer m.unlockRegistrar()

	if runCtx.Err() != nil {
		return ErrNotRunning
	}
	if m.WebhookID() != "" {
		return nil
	}

	url := m.URL()
	ctx, span := m.tracer.Start(ctx, "subscription.register",
		trace.WithAttributes(attribute.String("webhook.url", url)))
	defer span.End()

	if m.registrar == nil {
		err := fmt.Errorf("%w: no registrar configured", ErrRegistrationFailure)
		span.SetStatus(codes.Error, err.Error())
		m.emitError(err)
		return err
	}

	id, err := m.registrar.CreateWebhook(ctx, Registration{
		URL:     url,
		Events:  m.opts.Events,
		Headers: m.opts.Headers,
	})
	m.metrics.RecordRegistration("create", err)
	if err != nil {
		if runCtx.Err() != nil {
			return ErrNotRunning
		}
		err = fmt.Errorf("%w: %w", ErrRegistrationFailure, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.emitError(err)
		return err
	}

	// Stop cancels runCtx under mu, so either unregister sees this id or
	// the registration is discarded here
	m.mu.Lock()
	if runCtx.Err() != nil {
		m.mu.Unlock()
		m.discardRegistration(id)
		return ErrNotRunning
	}
	m.webhookID = id
	m.mu.Unlock()
	m.metrics.SetRegistered(true)

	span.SetAttributes(attribute.String("webhook.id", id))
	m.logger.WithField("webhook_id", id).WithField("url", url).Info("webhook registered")
	return nil
}

// discardRegistration deletes a registration that completed after Stop began
func (m *Manager) discardRegistration(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.shutdownTimeout())
	defer cancel()

	err := m.registrar.DeleteWebhook(ctx, id)
	m.metrics.RecordRegistration("delete", err)
	if err != nil {
		m.logger.WithError(err).WithField("webhook_id", id).
			Warn("failed to delete registration created during shutdown")
		return
	}
	m.logger.WithField("webhook_id", id).Info("discarded registration created during shutdown")
}

// unregister deletes the held registration, best effort
func (m *Manager) unregister(ctx context.Context) {
	if err := m.lockRegistrar(ctx); err != nil {
		// The in-flight Register sees the cancelled run and cleans up after itself
		m.logger.WithError(err).Warn("registration still in flight at shutdown")
		return
	}
	defer m.unlockRegistrar()

	m.mu.Lock()
	id := m.webhookID
	m.webhookID = ""
	m.mu.Unlock()

	if id == "" || m.registrar == nil {
		return
	}
	m.metrics.SetRegistered(false)

	ctx, span := m.tracer.Start(ctx, "subscription.unregister",
		trace.WithAttributes(attribute.String("webhook.id", id)))
	defer span.End()

	err := m.registrar.DeleteWebhook(ctx, id)
	m.metrics.RecordRegistration("delete", err)
	if err != nil {
		err = fmt.Errorf("%w: failed to delete webhook %s: %w", ErrRegistrationFailure, id, err)
		span.SetStatus(codes.Error, err.Error())
		m.emitError(err)
		return
	}
	m.logger.WithField("webhook_id", id).Info("webhook unregistered")
}

// Stop unregisters, releases the listener, waits for in-flight deliveries up
// to ShutdownTimeout, and completes the Observable. Stopping a stopped
// manager is a no-op. Concurrent callers wait for the first to finish.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case stateStopped:
		m.mu.Unlock()
		return nil
	case stateStopping:
		stopped := m.stopped
		m.mu.Unlock()
		select {
		case <-stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.state = stateStopping
	m.cancelRun()
	srv := m.server
	scheduler := m.scheduler
	stopped := m.stopped
	m.scheduler = nil
	m.mu.Unlock()

	stopCtx, cancel := context.WithTimeout(ctx, m.shutdownTimeout())
	defer cancel()

	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-stopCtx.Done():
		}
	}

	g, gctx := errgroup.WithContext(stopCtx)
	g.Go(func() error {
		m.unregister(gctx)
		return nil
	})
	g.Go(func() error {
		if err := srv.Shutdown(gctx); err != nil {
			srv.Close()
			return fmt.Errorf("failed to shut down webhook server: %w", err)
		}
		return nil
	})
	shutdownErr := g.Wait()

	if err := m.inflight.Wait(stopCtx); err != nil {
		m.logger.WithField("active", m.inflight.Active()).
			Warn("abandoning in-flight delivery processing")
	}

	m.mu.Lock()
	obs := m.obs
	m.mu.Unlock()
	obs.Complete()

	m.mu.Lock()
	m.listener = nil
	m.server = nil
	m.webhookID = ""
	m.state = stateStopped
	m.mu.Unlock()
	close(stopped)

	m.logger.Info("webhook receiver stopped")
	return shutdownErr
}

// IsRunning reports whether the receiver is serving
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == stateRunning
}

// WebhookID returns the held registration id, or "" when none is held
func (m *Manager) WebhookID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.webhookID
}

// Addr returns the bound listener address, or nil when not running
func (m *Manager) Addr() net.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listener == nil {
		return nil
	}
	return m.listener.Addr()
}

// URL returns the URL registered with the remote service. When the receiver
// is running on port 0 the bound port is used.
func (m *Manager) URL() string {
	port := m.opts.Port
	if addr, ok := m.Addr().(*net.TCPAddr); ok && addr != nil {
		port = addr.Port
	}
	return m.opts.registrationURL(port)
}

// AsObservable returns the Observable for the current run
func (m *Manager) AsObservable() *observable.Observable {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.obs
}

// FilterEvents returns a child Observable receiving only events matching predicate
func (m *Manager) FilterEvents(predicate func(events.Event) bool) *observable.Observable {
	return m.AsObservable().Filter(predicate)
}
