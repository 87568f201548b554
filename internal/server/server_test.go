// internal/server/server_test.go
package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screening-engine/internal/common/config"
	"screening-engine/internal/common/logger"
	"screening-engine/internal/orchestrator"
	"screening-engine/internal/worker"
)

// ==========================
// Test Helper Functions
// ==========================

type recordingProcessor struct {
	mu     sync.Mutex
	events []orchestrator.Inbound
}

func (p *recordingProcessor) Process(_ context.Context, in orchestrator.Inbound) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, in)
	return nil
}

func (p *recordingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// inlinePool runs tasks synchronously so tests never race the queue.
type inlinePool struct {
	accept bool
}

func (p *inlinePool) TrySubmit(task worker.Task) bool {
	if !p.accept {
		return false
	}
	task(context.Background())
	return true
}

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(_ context.Context) error { return s.err }

func newTestServer(t *testing.T, processor Processor, pool Submitter, pg, rd Pinger) *Server {
	t.Helper()
	return New(Config{
		Server:    config.ServerConfig{Port: 8080, ReadTimeout: 10000, WriteTimeout: 10000},
		Processor: processor,
		Pool:      pool,
		Postgres:  pg,
		Redis:     rd,
		Logger:    logger.NewTestLogger(t),
	})
}

func postWebhook(t *testing.T, handler http.Handler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// ==========================
// Webhook Tests
// ==========================

func TestWebhook_AcknowledgesAndEnqueues(t *testing.T) {
	processor := &recordingProcessor{}
	srv := newTestServer(t, processor, &inlinePool{accept: true}, &stubPinger{}, &stubPinger{})

	rec := postWebhook(t, srv.Handler(), url.Values{
		"From":       {"whatsapp:+33612345678"},
		"Body":       {"CODE-ABC234"},
		"MessageSid": {"SM001"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Message reçu", rec.Body.String())

	require.Equal(t, 1, processor.count())
	in := processor.events[0]
	assert.Equal(t, "whatsapp:+33612345678", in.From)
	assert.Equal(t, "CODE-ABC234", in.Body)
	assert.Equal(t, "SM001", in.MessageSID)
}

func TestWebhook_ParsesMediaFields(t *testing.T) {
	processor := &recordingProcessor{}
	srv := newTestServer(t, processor, &inlinePool{accept: true}, &stubPinger{}, &stubPinger{})

	postWebhook(t, srv.Handler(), url.Values{
		"From":              {"whatsapp:+33612345678"},
		"MediaUrl0":         {"https://api.twilio.com/media/ME123"},
		"MediaContentType0": {"application/pdf"},
		"MessageSid":        {"SM002"},
	})

	require.Equal(t, 1, processor.count())
	assert.Equal(t, "https://api.twilio.com/media/ME123", processor.events[0].MediaURL)
	assert.Equal(t, "application/pdf", processor.events[0].MediaContentType)
}

func TestWebhook_AcknowledgesWhenQueueFull(t *testing.T) {
	processor := &recordingProcessor{}
	srv := newTestServer(t, processor, &inlinePool{accept: false}, &stubPinger{}, &stubPinger{})

	rec := postWebhook(t, srv.Handler(), url.Values{
		"From":       {"whatsapp:+33612345678"},
		"Body":       {"bonjour"},
		"MessageSid": {"SM003"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, processor.count())
}

func TestWebhook_AcknowledgesMissingSender(t *testing.T) {
	processor := &recordingProcessor{}
	srv := newTestServer(t, processor, &inlinePool{accept: true}, &stubPinger{}, &stubPinger{})

	rec := postWebhook(t, srv.Handler(), url.Values{
		"Body":       {"bonjour"},
		"MessageSid": {"SM004"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, processor.count())
}

func TestWebhook_RejectsGet(t *testing.T) {
	srv := newTestServer(t, &recordingProcessor{}, &inlinePool{accept: true}, &stubPinger{}, &stubPinger{})

	req := httptest.NewRequest(http.MethodGet, "/api/webhooks/whatsapp", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// ==========================
// Health Endpoint Tests
// ==========================

func TestHealth_AllDependenciesUp(t *testing.T) {
	srv := newTestServer(t, &recordingProcessor{}, &inlinePool{accept: true}, &stubPinger{}, &stubPinger{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestHealth_PostgresDown(t *testing.T) {
	srv := newTestServer(t, &recordingProcessor{}, &inlinePool{accept: true},
		&stubPinger{err: errors.New("connection refused")}, &stubPinger{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth_RedisDown(t *testing.T) {
	srv := newTestServer(t, &recordingProcessor{}, &inlinePool{accept: true},
		&stubPinger{}, &stubPinger{err: errors.New("connection refused")})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// ==========================
// Worker Pool Integration
// ==========================

func TestWebhook_RealPoolProcessesAsync(t *testing.T) {
	processor := &recordingProcessor{}
	pool := worker.NewPool(2, 8, logger.NewTestLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Shutdown(context.Background())

	srv := newTestServer(t, processor, pool, &stubPinger{}, &stubPinger{})

	rec := postWebhook(t, srv.Handler(), url.Values{
		"From":       {"whatsapp:+33612345678"},
		"Body":       {"bonjour"},
		"MessageSid": {"SM005"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool {
		return processor.count() == 1
	}, 2*time.Second, 10*time.Millisecond)
}
