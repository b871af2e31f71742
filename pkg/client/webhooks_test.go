package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/zeal/pkg/observability"
	"github.com/platinummonkey/zeal/pkg/subscription"
)

// fakeZeal is an in-memory stand-in for the remote webhooks endpoints
type fakeZeal struct {
	mu       sync.Mutex
	nextID   int
	hooks    map[string]WebhookSubscription
	requests []string
}

func newFakeZeal() *fakeZeal {
	return &fakeZeal{hooks: make(map[string]WebhookSubscription)}
}

func (f *fakeZeal) router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/zip/webhooks", f.create).Methods(http.MethodPost)
	r.HandleFunc("/api/zip/webhooks", f.list).Methods(http.MethodGet)
	r.HandleFunc("/api/zip/webhooks/{id}", f.update).Methods(http.MethodPatch)
	r.HandleFunc("/api/zip/webhooks/{id}", f.delete).Methods(http.MethodDelete)
	r.HandleFunc("/api/zip/webhooks/{id}/test", f.test).Methods(http.MethodPost)
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, req.Method+" "+req.URL.Path)
		f.mu.Unlock()
		r.ServeHTTP(w, req)
	})
}

func (f *fakeZeal) create(w http.ResponseWriter, r *http.Request) {
	var req CreateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.nextID++
	hook := WebhookSubscription{
		ID:        "wh_" + strconv.Itoa(f.nextID),
		URL:       req.URL,
		Events:    req.Events,
		Headers:   req.Headers,
		IsActive:  true,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.hooks[hook.ID] = hook
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, CreateWebhookResponse{Success: true, Subscription: hook})
}

func (f *fakeZeal) list(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp := ListWebhooksResponse{}
	for _, hook := range f.hooks {
		resp.Subscriptions = append(resp.Subscriptions, hook)
	}
	resp.Total = len(resp.Subscriptions)
	writeJSON(w, http.StatusOK, resp)
}

func (f *fakeZeal) update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req UpdateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	hook, ok := f.hooks[id]
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if req.URL != nil {
		hook.URL = *req.URL
	}
	if req.Events != nil {
		hook.Events = req.Events
	}
	if req.IsActive != nil {
		hook.IsActive = *req.IsActive
	}
	f.hooks[id] = hook
	writeJSON(w, http.StatusOK, UpdateWebhookResponse{Success: true, Subscription: hook})
}

func (f *fakeZeal) delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.hooks[id]; !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	delete(f.hooks, id)
	writeJSON(w, http.StatusOK, DeleteWebhookResponse{Success: true, Message: "deleted"})
}

func (f *fakeZeal) test(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TestWebhookResponse{Success: true, StatusCode: 200, ResponseTimeMs: 12})
}

func (f *fakeZeal) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.hooks)
}

func (f *fakeZeal) requestLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestWebhooksAPI_CRUD(t *testing.T) {
	fake := newFakeZeal()
	server := httptest.NewServer(fake.router())
	defer server.Close()

	api := newTestClient(t, server.URL, 0).Webhooks()
	ctx := context.Background()

	created, err := api.Create(ctx, CreateWebhookRequest{
		URL:     "http://localhost:3001/webhooks",
		Events:  []string{"node.*"},
		Headers: map[string]string{"X-Team": "core"},
	})
	require.NoError(t, err)
	assert.True(t, created.Success)
	assert.Equal(t, "wh_1", created.Subscription.ID)
	assert.Equal(t, map[string]string{"X-Team": "core"}, created.Subscription.Headers)
	assert.True(t, created.Subscription.IsActive)

	listed, err := api.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, listed.Total)
	require.Len(t, listed.Subscriptions, 1)
	assert.Equal(t, "http://localhost:3001/webhooks", listed.Subscriptions[0].URL)

	newURL := "http://localhost:4000/hooks"
	inactive := false
	updated, err := api.Update(ctx, "wh_1", UpdateWebhookRequest{URL: &newURL, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, newURL, updated.Subscription.URL)
	assert.False(t, updated.Subscription.IsActive)
	assert.Equal(t, []string{"node.*"}, updated.Subscription.Events)

	tested, err := api.Test(ctx, "wh_1")
	require.NoError(t, err)
	assert.True(t, tested.Success)
	assert.Equal(t, int64(12), tested.ResponseTimeMs)

	deleted, err := api.Delete(ctx, "wh_1")
	require.NoError(t, err)
	assert.True(t, deleted.Success)
	assert.Equal(t, 0, fake.count())

	_, err = api.Delete(ctx, "wh_1")
	assert.True(t, IsNotFound(err))

	assert.Equal(t, []string{
		"POST /api/zip/webhooks",
		"GET /api/zip/webhooks",
		"PATCH /api/zip/webhooks/wh_1",
		"POST /api/zip/webhooks/wh_1/test",
		"DELETE /api/zip/webhooks/wh_1",
		"DELETE /api/zip/webhooks/wh_1",
	}, fake.requestLog())
}

func TestUpdateWebhookRequest_OmitsUnset(t *testing.T) {
	events := []string{"execution.*"}
	data, err := json.Marshal(UpdateWebhookRequest{Events: events})
	require.NoError(t, err)
	assert.JSONEq(t, `{"events":["execution.*"]}`, string(data))
}

func TestWebhookPath_EscapesID(t *testing.T) {
	assert.Equal(t, "/api/zip/webhooks/wh_1", webhookPath("wh_1"))
	assert.Equal(t, "/api/zip/webhooks/a%2Fb", webhookPath("a/b"))
}

func TestRegistrar(t *testing.T) {
	fake := newFakeZeal()
	server := httptest.NewServer(fake.router())
	defer server.Close()

	registrar := newTestClient(t, server.URL, 0).Registrar()
	ctx := context.Background()

	id, err := registrar.CreateWebhook(ctx, subscription.Registration{
		URL:    "http://localhost:3001/webhooks",
		Events: []string{"*"},
	})
	require.NoError(t, err)
	assert.Equal(t, "wh_1", id)

	require.NoError(t, registrar.DeleteWebhook(ctx, id))
	// already gone counts as deleted
	require.NoError(t, registrar.DeleteWebhook(ctx, id))
}

func TestRegistrar_MissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"subscription":{}}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL, 0).Registrar().CreateWebhook(context.Background(), subscription.Registration{})
	assert.ErrorContains(t, err, "no subscription id")
}

func TestRegistrar_DeleteServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := newTestClient(t, server.URL, 0).Registrar().DeleteWebhook(context.Background(), "wh_1")
	assert.ErrorContains(t, err, "failed to delete webhook")
}

func TestNewSubscription_RegistersAgainstRemote(t *testing.T) {
	fake := newFakeZeal()
	server := httptest.NewServer(fake.router())
	defer server.Close()

	c := newTestClient(t, server.URL, 0)
	c.SetLogger(observability.NewLogger(observability.ErrorLevel, io.Discard))

	opts := subscription.DefaultOptions()
	opts.Host = "127.0.0.1"
	opts.Port = 0
	opts.Events = []string{"execution.*"}

	sub := c.NewSubscription(opts)
	require.NoError(t, sub.Start(context.Background()))

	assert.Equal(t, "wh_1", sub.WebhookID())
	listed, err := c.Webhooks().List(context.Background())
	require.NoError(t, err)
	require.Len(t, listed.Subscriptions, 1)
	assert.Equal(t, sub.URL(), listed.Subscriptions[0].URL)
	assert.True(t, strings.HasPrefix(listed.Subscriptions[0].URL, "http://127.0.0.1:"))
	assert.Equal(t, []string{"execution.*"}, listed.Subscriptions[0].Events)

	require.NoError(t, sub.Stop(context.Background()))
	assert.Equal(t, 0, fake.count())
}
