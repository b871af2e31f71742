package subscription

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/zeal/pkg/events"
	"github.com/platinummonkey/zeal/pkg/httputil"
	"github.com/platinummonkey/zeal/pkg/observability"
	"github.com/platinummonkey/zeal/pkg/signature"
)

// Handler returns the receiver's HTTP handler: POST on the configured path,
// 405 for other methods on that path, 404 elsewhere.
func (m *Manager) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc(m.opts.Path, m.handleDelivery).Methods(http.MethodPost)

	h := httputil.Chain(
		observability.HTTPMetricsMiddleware(m.metrics),
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(m.logger),
	)(r)
	return otelhttp.NewHandler(h, "webhook.receive")
}

func (m *Manager) handleDelivery(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.ReadBody(w, r, m.opts.MaxBodyBytes)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			m.metrics.RecordDelivery("too_large")
			m.emitError(&DeliveryError{Kind: ErrMalformedDelivery, EventIndex: -1, Err: err})
			httputil.WritePayloadTooLarge(w, "Request body too large")
			return
		}
		m.metrics.RecordDelivery("malformed")
		m.emitError(&DeliveryError{Kind: ErrMalformedDelivery, EventIndex: -1, Err: err})
		httputil.WriteInternalError(w, errors.New("failed to read request body"))
		return
	}

	if m.opts.VerifySignature {
		header := r.Header.Get(signature.Header)
		if !signature.Verify(body, header, []byte(m.opts.SecretKey)) {
			m.metrics.RecordDelivery("invalid_signature")
			m.emitError(&DeliveryError{Kind: ErrInvalidSignature, EventIndex: -1})
			httputil.WriteUnauthorized(w, "Invalid signature")
			return
		}
	}

	delivery, err := ParseDelivery(body)
	if err != nil {
		m.metrics.RecordDelivery("malformed")
		m.emitError(&DeliveryError{Kind: ErrMalformedDelivery, EventIndex: -1, Err: err})
		httputil.WriteInternalError(w, errors.New("invalid delivery"))
		return
	}

	if m.isDuplicate(r.Context(), delivery) {
		// Duplicates are acknowledged without reaching the error channel
		m.metrics.RecordDelivery("duplicate")
		observability.FromContext(r.Context(), m.logger).
			WithField("delivery_id", delivery.Metadata.DeliveryID).
			Info("duplicate delivery acknowledged")
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "duplicate": true})
		return
	}

	m.metrics.RecordDelivery("accepted")
	m.metrics.DeliveryStarted()

	// Processing outlives the request; keep its trace but drop its cancellation
	ctx := context.WithoutCancel(r.Context())
	m.inflight.Go(ctx, "process delivery", func(ctx context.Context) error {
		m.processDelivery(ctx, delivery)
		return nil
	})

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// isDuplicate consults the dedupe store. Store errors fail open.
func (m *Manager) isDuplicate(ctx context.Context, d *Delivery) bool {
	if m.dedupe == nil || d.Metadata.DeliveryID == "" {
		return false
	}
	duplicate, err := m.dedupe.MarkSeen(ctx, d.Metadata.DeliveryID)
	if err != nil {
		observability.FromContext(ctx, m.logger).WithError(err).
			WithField("delivery_id", d.Metadata.DeliveryID).
			Warn("dedupe store unavailable, accepting delivery")
		return false
	}
	return duplicate
}

// processDelivery runs delivery callbacks, then decodes and dispatches each
// event in array order
func (m *Manager) processDelivery(ctx context.Context, d *Delivery) {
	start := time.Now()
	defer func() { m.metrics.DeliveryFinished(time.Since(start)) }()

	ctx, span := m.tracer.Start(ctx, "subscription.process_delivery",
		trace.WithAttributes(
			attribute.String("webhook.delivery_id", d.Metadata.DeliveryID),
			attribute.String("webhook.id", d.WebhookID),
			attribute.Int("webhook.event_count", len(d.Events)),
		))
	defer span.End()

	deliveryID := d.Metadata.DeliveryID
	observability.UpdateLoggerWithTraceContext(ctx, m.logger).
		WithField("delivery_id", deliveryID).
		WithField("events", len(d.Events)).
		Debug("processing delivery")

	for _, cb := range m.deliveryCallbacks.snapshot() {
		cb := cb
		if err := invoke(func() error { return cb(d) }); err != nil {
			m.emitError(&DeliveryError{Kind: ErrCallbackFailure, DeliveryID: deliveryID, EventIndex: -1, Err: err})
		}
	}

	obs := m.AsObservable()
	for i, raw := range d.Events {
		event, err := events.Decode(raw)
		if err != nil {
			kind := events.ErrMalformedEvent
			if errors.Is(err, events.ErrUnknownEventType) {
				kind = events.ErrUnknownEventType
			}
			m.emitError(&DeliveryError{
				Kind:       kind,
				DeliveryID: deliveryID,
				EventIndex: i,
				EventType:  peekType(raw),
				Err:        err,
			})
			continue
		}

		m.metrics.RecordEvent(string(event.EventType()))
		obs.Emit(event)

		for _, cb := range m.eventCallbacks.snapshot() {
			cb := cb
			if err := invoke(func() error { return cb(event) }); err != nil {
				m.emitError(&DeliveryError{
					Kind:       ErrCallbackFailure,
					DeliveryID: deliveryID,
					EventIndex: i,
					EventType:  string(event.EventType()),
					Err:        err,
				})
			}
		}
	}
}

// emitError is the single error channel: error callbacks first, then the
// Observable. Panics in error callbacks are dropped.
func (m *Manager) emitError(err error) {
	kind := kindLabel(err)
	m.metrics.RecordError(kind)

	logger := m.logger.WithError(err).WithField("kind", kind)
	var de *DeliveryError
	if errors.As(err, &de) {
		if de.DeliveryID != "" {
			logger = logger.WithField("delivery_id", de.DeliveryID)
		}
		if de.EventType != "" {
			logger = logger.WithField("event_type", de.EventType)
		}
	}
	logger.Warn("webhook subscription error")

	for _, cb := range m.errorCallbacks.snapshot() {
		func() {
			defer func() { _ = recover() }()
			cb(err)
		}()
	}

	m.AsObservable().Error(err)
}

// invoke runs a user callback, converting a panic into an error
func invoke(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = observability.MustRecover(r)
		}
	}()
	return fn()
}
