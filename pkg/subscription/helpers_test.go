package subscription

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/zeal/pkg/observability"
)

// fakeRegistrar records registrar calls
type fakeRegistrar struct {
	mu        sync.Mutex
	nextID    string
	createErr error
	deleteErr error
	creates   []Registration
	deletes   []string
}

func (f *fakeRegistrar) CreateWebhook(_ context.Context, reg Registration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, reg)
	if f.createErr != nil {
		return "", f.createErr
	}
	if f.nextID == "" {
		return fmt.Sprintf("wh_%d", len(f.creates)), nil
	}
	return f.nextID, nil
}

func (f *fakeRegistrar) DeleteWebhook(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	return f.deleteErr
}

func (f *fakeRegistrar) setCreateErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErr = err
}

func (f *fakeRegistrar) createCalls() []Registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Registration(nil), f.creates...)
}

func (f *fakeRegistrar) deleteCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletes...)
}

// syncBuffer is a bytes.Buffer safe for concurrent log writes
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// errorLog collects error channel reports
type errorLog struct {
	mu   sync.Mutex
	errs []error
}

func (l *errorLog) add(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

func (l *errorLog) all() []error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]error(nil), l.errs...)
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Host = "127.0.0.1"
	opts.Port = 0
	opts.AutoRegister = false
	opts.ShutdownTimeout = 2 * time.Second
	return opts
}

func newTestManager(t *testing.T, registrar Registrar, opts Options) (*Manager, *syncBuffer) {
	t.Helper()
	logs := &syncBuffer{}
	m := New(registrar, opts).SetLogger(observability.NewLogger(observability.DebugLevel, logs))
	return m, logs
}

func post(m *Manager, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, m.opts.Path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)
	return rec
}

func waitIdle(t *testing.T, m *Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.inflight.Wait(ctx))
}

func nodeAddedJSON(id, nodeID string) string {
	return fmt.Sprintf(`{"id":%q,"timestamp":"2024-01-01T00:00:00Z","type":"node.added","workflowId":"wf_1","nodeId":%q,"data":{}}`, id, nodeID)
}

func executionStartedJSON(id, workflowID string) string {
	return fmt.Sprintf(`{"id":%q,"timestamp":"2024-01-01T00:00:00Z","type":"execution.started","workflowId":%q,"sessionId":"s1","workflowName":"demo"}`, id, workflowID)
}

func deliveryJSON(deliveryID string, eventPayloads ...string) string {
	return fmt.Sprintf(`{"webhookId":"wh_1","events":[%s],"metadata":{"namespace":"default","deliveryId":%q,"timestamp":"2024-01-01T00:00:00Z"}}`,
		strings.Join(eventPayloads, ","), deliveryID)
}

// blockingRegistrar holds CreateWebhook until its context ends
type blockingRegistrar struct {
	fakeRegistrar
	started chan struct{}
	once    sync.Once
}

func newBlockingRegistrar() *blockingRegistrar {
	return &blockingRegistrar{started: make(chan struct{})}
}

func (b *blockingRegistrar) CreateWebhook(ctx context.Context, _ Registration) (string, error) {
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return "", ctx.Err()
}

// slowRegistrar ignores cancellation and answers CreateWebhook after delay
type slowRegistrar struct {
	*fakeRegistrar
	delay   time.Duration
	started chan struct{}
	once    sync.Once
}

func newSlowRegistrar(inner *fakeRegistrar, delay time.Duration) *slowRegistrar {
	return &slowRegistrar{fakeRegistrar: inner, delay: delay, started: make(chan struct{})}
}

func (s *slowRegistrar) CreateWebhook(_ context.Context, reg Registration) (string, error) {
	s.once.Do(func() { close(s.started) })
	time.Sleep(s.delay)
	return s.fakeRegistrar.CreateWebhook(context.Background(), reg)
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func waitErr(t *testing.T, ch <-chan error, what string) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(3 * time.Second):
		t.Fatalf("%s did not return", what)
		return nil
	}
}
