package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowproc/bpmnengine/bus"
)

func newTestServer() (*Server, *bus.Bus) {
	b := bus.New()
	return NewServer(b, zerolog.Nop()), b
}

func TestHandleMessagePublishesOnBus(t *testing.T) {
	srv, b := newTestServer()

	body := strings.NewReader(`{"messageRef":"approval","correlationKey":"inst-1","payload":{"decision":"approved"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/message", body)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	msgs := b.ListQueuedMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "approval", msgs[0].MessageRef)
	assert.Equal(t, "inst-1", msgs[0].CorrelationKey)
}

func TestHandleKeyedPublishAcceptsFormBody(t *testing.T) {
	srv, b := newTestServer()

	form := url.Values{"foo": {"bar"}}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/myRef/myKey", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	msgs := b.ListQueuedMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "myRef", msgs[0].MessageRef)
	assert.Equal(t, "myKey", msgs[0].CorrelationKey)
	payload := msgs[0].Payload.(map[string]any)
	assert.Equal(t, "bar", payload["foo"])
}

func TestApprovalGetReturnsConfirmationPage(t *testing.T) {
	srv, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/webhooks/approve/po-approval/order-42", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Confirm approved")
	assert.Contains(t, w.Body.String(), `action="/webhooks/approve/po-approval/order-42"`)
}

func TestApprovalPostPublishesApprovedDecision(t *testing.T) {
	srv, b := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/approve/po-approval/order-42", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	msgs := b.ListQueuedMessages()
	require.Len(t, msgs, 1)
	payload := msgs[0].Payload.(map[string]any)
	assert.Equal(t, "approved", payload["decision"])
	assert.Equal(t, "email", payload["method"])
}

func TestDenyPostPublishesRejectedDecision(t *testing.T) {
	srv, b := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/deny/po-approval/order-42", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	msgs := b.ListQueuedMessages()
	require.Len(t, msgs, 1)
	payload := msgs[0].Payload.(map[string]any)
	assert.Equal(t, "rejected", payload["decision"])
}

func TestDirectApprovalUsesFixedMessageRef(t *testing.T) {
	srv, b := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/webhook/approval/instance-7?decision=approved", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	msgs := b.ListQueuedMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "diagnosticApproval", msgs[0].MessageRef)
	assert.Equal(t, "instance-7", msgs[0].CorrelationKey)
}

func TestDirectApprovalRejectsInvalidDecision(t *testing.T) {
	srv, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/webhook/approval/instance-7?decision=maybe", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueueStatsReportsAggregateCounts(t *testing.T) {
	srv, b := newTestServer()
	b.Publish("ref", "key1", "one")
	b.Publish("ref", "key2", "two")

	req := httptest.NewRequest(http.MethodGet, "/webhooks/queue/stats", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var stats bus.Stats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Equal(t, 2, stats.QueuedMessages)
}

func TestQueueByKeyListsAndDeletes(t *testing.T) {
	srv, b := newTestServer()
	b.Publish("ref", "order-1", "payload")

	listReq := httptest.NewRequest(http.MethodGet, "/webhooks/queue/order-1", nil)
	listW := httptest.NewRecorder()
	srv.Handler().ServeHTTP(listW, listReq)
	require.Equal(t, http.StatusOK, listW.Code)

	var listed struct {
		Queued []bus.QueuedMessage `json:"queued"`
	}
	require.NoError(t, json.NewDecoder(listW.Body).Decode(&listed))
	require.Len(t, listed.Queued, 1)

	delReq := httptest.NewRequest(http.MethodDelete, "/webhooks/queue/order-1", nil)
	delW := httptest.NewRecorder()
	srv.Handler().ServeHTTP(delW, delReq)
	require.Equal(t, http.StatusOK, delW.Code)

	assert.Empty(t, b.ListQueuedMessages())
}
