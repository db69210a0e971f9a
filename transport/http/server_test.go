package http

import (
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowproc/bpmnengine/events"
	"github.com/flowproc/bpmnengine/workflow"
)

const simpleWorkflowYAML = `
process:
  id: proc1
  name: simple
  elements:
    - {id: start, type: startEvent}
    - {id: task1, type: scriptTask}
    - {id: end, type: endEvent}
  connections:
    - {from: start, to: task1}
    - {from: task1, to: end}
`

// stubEngine lets tests observe and control Run without a real
// executors.Registry, mirroring the engine_test.go recordingRunner
// approach one layer up.
type stubEngine struct {
	mu      sync.Mutex
	started chan struct{}
	block   chan struct{}
	runErr  error
}

func newStubEngine() *stubEngine {
	return &stubEngine{started: make(chan struct{}, 1), block: make(chan struct{})}
}

func (e *stubEngine) Run(ctx context.Context, inst *workflow.Instance) error {
	select {
	case e.started <- struct{}{}:
	default:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.block:
		return e.runErr
	}
}

func newTestServer(t *testing.T, eng *stubEngine) *Server {
	t.Helper()
	broadcaster := events.NewBroadcaster()
	return NewServer(func(g *workflow.Graph) Engine { return eng }, broadcaster, zerolog.Nop(), "")
}

func TestExecuteStartsInstanceAndReportsStatus(t *testing.T) {
	eng := newStubEngine()
	srv := newTestServer(t, eng)

	body := strings.NewReader(`{"yaml":` + jsonString(simpleWorkflowYAML) + `}`)
	req := httptest.NewRequest(http.MethodPost, "/workflows/execute", body)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp executeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "started", resp.Status)
	assert.NotEmpty(t, resp.InstanceID)

	select {
	case <-eng.started:
	case <-time.After(time.Second):
		t.Fatal("engine.Run was never invoked")
	}

	statusReq := httptest.NewRequest(http.MethodGet, "/workflows/"+resp.InstanceID+"/status", nil)
	statusW := httptest.NewRecorder()
	srv.Handler().ServeHTTP(statusW, statusReq)

	var status StatusResponse
	require.NoError(t, json.NewDecoder(statusW.Body).Decode(&status))
	assert.Equal(t, "running", status.Status)
	assert.Equal(t, "simple", status.WorkflowName)

	close(eng.block)
}

func TestExecuteRejectsInvalidYAML(t *testing.T) {
	srv := newTestServer(t, newStubEngine())

	body := strings.NewReader(`{"yaml":"not: [valid"}`)
	req := httptest.NewRequest(http.MethodPost, "/workflows/execute", body)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExecuteFileAcceptsMultipartUpload(t *testing.T) {
	eng := newStubEngine()
	defer close(eng.block)
	srv := newTestServer(t, eng)

	var buf strings.Builder
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("workflow", "wf.yaml")
	require.NoError(t, err)
	_, err = part.Write([]byte(simpleWorkflowYAML))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/workflows/execute-file", strings.NewReader(buf.String()))
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestStatusReportsNotFoundForUnknownInstance(t *testing.T) {
	srv := newTestServer(t, newStubEngine())

	req := httptest.NewRequest(http.MethodGet, "/workflows/does-not-exist/status", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	var status StatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "not_found", status.Status)
}

func TestCancelStopsRunningInstanceAndBroadcastsEvent(t *testing.T) {
	eng := newStubEngine()
	eng.runErr = context.Canceled
	srv := newTestServer(t, eng)

	var seen []events.Event
	var mu sync.Mutex
	srv.broadcaster.Register(observerFunc(func(e events.Event) error {
		mu.Lock()
		seen = append(seen, e)
		mu.Unlock()
		return nil
	}))

	execReq := httptest.NewRequest(http.MethodPost, "/workflows/execute", strings.NewReader(`{"yaml":`+jsonString(simpleWorkflowYAML)+`}`))
	execW := httptest.NewRecorder()
	srv.Handler().ServeHTTP(execW, execReq)

	var resp executeResponse
	require.NoError(t, json.NewDecoder(execW.Body).Decode(&resp))

	select {
	case <-eng.started:
	case <-time.After(time.Second):
		t.Fatal("engine.Run was never invoked")
	}

	cancelReq := httptest.NewRequest(http.MethodPost, "/workflows/"+resp.InstanceID+"/cancel", nil)
	cancelW := httptest.NewRecorder()
	srv.Handler().ServeHTTP(cancelW, cancelReq)
	assert.Equal(t, http.StatusOK, cancelW.Code)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.Equal(t, "workflow.cancelled", seen[0].Type)
}

func TestCancelUnknownInstanceReturnsNotFound(t *testing.T) {
	srv := newTestServer(t, newStubEngine())

	req := httptest.NewRequest(http.MethodPost, "/workflows/does-not-exist/cancel", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestActiveListsRunningInstances(t *testing.T) {
	eng := newStubEngine()
	defer close(eng.block)
	srv := newTestServer(t, eng)

	execReq := httptest.NewRequest(http.MethodPost, "/workflows/execute", strings.NewReader(`{"yaml":`+jsonString(simpleWorkflowYAML)+`}`))
	execW := httptest.NewRecorder()
	srv.Handler().ServeHTTP(execW, execReq)

	select {
	case <-eng.started:
	case <-time.After(time.Second):
		t.Fatal("engine.Run was never invoked")
	}

	activeReq := httptest.NewRequest(http.MethodGet, "/workflows/active", nil)
	activeW := httptest.NewRecorder()
	srv.Handler().ServeHTTP(activeW, activeReq)

	var active []ActiveInstance
	require.NoError(t, json.NewDecoder(activeW.Body).Decode(&active))
	require.Len(t, active, 1)
	assert.Equal(t, "simple", active[0].WorkflowName)
}

type observerFunc func(events.Event) error

func (f observerFunc) Send(e events.Event) error { return f(e) }

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
