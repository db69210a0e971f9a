package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/flowproc/bpmnengine/events"
	"github.com/flowproc/bpmnengine/workflow"
	"github.com/flowproc/bpmnengine/yamldef"
)

// Engine is the narrow slice of workflow.Engine the HTTP surface drives,
// kept as an interface so Server's handler tests can use a stub.
type Engine interface {
	Run(ctx context.Context, inst *workflow.Instance) error
}

// EngineFactory builds a fresh Engine bound to one parsed Graph, letting
// Server stay agnostic of executors.Registry construction (which needs
// the process's Deps bundle, assembled once in cmd/flowengine).
type EngineFactory func(g *workflow.Graph) Engine

// Server implements the §6 execution HTTP surface: submit a workflow
// definition for execution, then introspect or cancel the resulting
// instance. Grounded on the teacher's pkg/api.HealthServer (a thin
// http.ServeMux wrapper with one handler method per route).
type Server struct {
	mux          *http.ServeMux
	manager      *InstanceManager
	newEngine    EngineFactory
	broadcaster  *events.Broadcaster
	logger       zerolog.Logger
	workflowsDir string
}

// NewServer wires the execution HTTP surface. newEngine is called once
// per execute/execute-file request to build an Engine bound to that
// request's parsed Graph. workflowsDir roots the "workflowFile" field
// of POST /workflows/execute so a client can only name a file already
// deployed alongside the engine, never an arbitrary server path.
func NewServer(newEngine EngineFactory, broadcaster *events.Broadcaster, logger zerolog.Logger, workflowsDir string) *Server {
	s := &Server{
		mux:          http.NewServeMux(),
		manager:      NewInstanceManager(),
		newEngine:    newEngine,
		broadcaster:  broadcaster,
		logger:       logger,
		workflowsDir: workflowsDir,
	}

	s.mux.HandleFunc("/workflows/execute", s.handleExecute)
	s.mux.HandleFunc("/workflows/execute-file", s.handleExecuteFile)
	s.mux.HandleFunc("/workflows/active", s.handleActive)
	s.mux.HandleFunc("/workflows/", s.handleInstanceRoutes)

	return s
}

// Handler returns the server's http.Handler, for embedding in a parent
// mux (e.g. alongside the websocket and webhook surfaces) or for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe starts the HTTP server on addr, in the teacher's own
// HealthServer.Start style (explicit timeouts, no implicit defaults).
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return srv.ListenAndServe()
}

type executeRequest struct {
	YAML         string         `json:"yaml"`
	WorkflowFile string         `json:"workflowFile"`
	Context      map[string]any `json:"context"`
}

type executeResponse struct {
	Status     string `json:"status"`
	InstanceID string `json:"instance_id"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	raw := []byte(req.YAML)
	if req.WorkflowFile != "" {
		data, err := s.readWorkflowFile(req.WorkflowFile)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("read workflowFile: %w", err))
			return
		}
		raw = data
	}

	s.start(w, raw, req.Context)
}

func (s *Server) handleExecuteFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse multipart form: %w", err))
		return
	}

	file, _, err := r.FormFile("workflow")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing \"workflow\" file part: %w", err))
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read uploaded workflow: %w", err))
		return
	}

	var initial map[string]any
	if ctxField := r.FormValue("context"); ctxField != "" {
		if err := json.Unmarshal([]byte(ctxField), &initial); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode context: %w", err))
			return
		}
	}

	s.start(w, raw, initial)
}

// start parses raw into a Graph, begins execution in a background
// goroutine, and replies with the new instance's ID. Execution runs
// detached from the request context — the instance outlives the HTTP
// call that started it, and is only stopped via POST .../cancel.
func (s *Server) start(w http.ResponseWriter, raw []byte, initial map[string]any) {
	graph, err := yamldef.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	instanceID := uuid.NewString()
	inst := workflow.NewInstance(instanceID, workflow.Scope(initial))
	engine := s.newEngine(graph)

	runCtx, cancel := context.WithCancel(context.Background())
	s.manager.track(inst, graph.ProcessName, cancel)

	go func() {
		defer cancel()
		defer s.manager.release(instanceID)
		if err := engine.Run(runCtx, inst); err != nil {
			s.logger.Error().Err(err).Str("instance_id", instanceID).Msg("workflow instance failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, executeResponse{Status: "started", InstanceID: instanceID})
}

func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.manager.Active())
}

// handleInstanceRoutes dispatches /workflows/{instance_id}/status and
// /workflows/{instance_id}/cancel, the two per-instance routes sharing
// the /workflows/ prefix with handleExecute et al.
func (s *Server) handleInstanceRoutes(w http.ResponseWriter, r *http.Request) {
	instanceID, action, ok := splitInstancePath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch action {
	case "status":
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, s.manager.Status(instanceID))

	case "cancel":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := s.manager.Cancel(instanceID); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		s.broadcaster.Broadcast(events.New("workflow.cancelled", "", map[string]any{"instanceId": instanceID}))
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})

	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// readWorkflowFile resolves name against s.workflowsDir, rejecting any
// attempt to escape it (no absolute paths, no "..").
func (s *Server) readWorkflowFile(name string) ([]byte, error) {
	if s.workflowsDir == "" {
		return nil, fmt.Errorf("workflowFile lookup is disabled (no workflows directory configured)")
	}
	if filepath.IsAbs(name) || strings.Contains(name, "..") {
		return nil, fmt.Errorf("invalid workflowFile name %q", name)
	}
	path := filepath.Join(s.workflowsDir, name)
	return os.ReadFile(path)
}

// splitInstancePath parses "/workflows/{instance_id}/{action}" into its
// two path segments.
func splitInstancePath(path string) (instanceID, action string, ok bool) {
	trimmed := strings.TrimPrefix(path, "/workflows/")
	if trimmed == path {
		return "", "", false
	}
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
