// Package http implements the execution HTTP surface (§6): submitting a
// workflow definition for execution, and introspecting/cancelling live
// instances.
package http

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flowproc/bpmnengine/workflow"
)

// trackedInstance is one instance currently known to the manager.
type trackedInstance struct {
	instance     *workflow.Instance
	workflowName string
	startTime    time.Time
	cancel       context.CancelFunc
}

// InstanceManager tracks every workflow instance the HTTP surface has
// started, for the status/active/cancel endpoints (§6). An instance is
// removed once its Engine.Run call returns — the external status surface
// only distinguishes {running, not_found}, per the wire contract.
type InstanceManager struct {
	mu        sync.Mutex
	instances map[string]*trackedInstance
}

// NewInstanceManager returns an empty manager.
func NewInstanceManager() *InstanceManager {
	return &InstanceManager{instances: make(map[string]*trackedInstance)}
}

// track registers a newly-started instance.
func (m *InstanceManager) track(inst *workflow.Instance, workflowName string, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[inst.ID] = &trackedInstance{
		instance:     inst,
		workflowName: workflowName,
		startTime:    inst.StartedAt,
		cancel:       cancel,
	}
}

// release removes instanceID once its run has completed.
func (m *InstanceManager) release(instanceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.instances, instanceID)
}

// StatusResponse is the wire shape of GET /workflows/{instance_id}/status.
type StatusResponse struct {
	Status       string   `json:"status"`
	WorkflowName string   `json:"workflow_name,omitempty"`
	StartTime    string   `json:"start_time,omitempty"`
	ContextKeys  []string `json:"context_keys,omitempty"`
}

// Status reports whether instanceID is currently running.
func (m *InstanceManager) Status(instanceID string) StatusResponse {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.instances[instanceID]
	if !ok {
		return StatusResponse{Status: "not_found"}
	}
	return StatusResponse{
		Status:       "running",
		WorkflowName: t.workflowName,
		StartTime:    t.startTime.Format(time.RFC3339),
		ContextKeys:  variableKeys(t.instance.Variables),
	}
}

// ActiveInstance describes one live instance for GET /workflows/active.
type ActiveInstance struct {
	InstanceID   string `json:"instance_id"`
	WorkflowName string `json:"workflow_name"`
	StartTime    string `json:"start_time"`
}

// Active lists every currently-running instance.
func (m *InstanceManager) Active() []ActiveInstance {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ActiveInstance, 0, len(m.instances))
	for id, t := range m.instances {
		out = append(out, ActiveInstance{
			InstanceID:   id,
			WorkflowName: t.workflowName,
			StartTime:    t.startTime.Format(time.RFC3339),
		})
	}
	return out
}

// Cancel forces cancellation of instanceID's run, if it is still active.
func (m *InstanceManager) Cancel(instanceID string) error {
	m.mu.Lock()
	t, ok := m.instances[instanceID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("instance %q not found", instanceID)
	}
	t.cancel()
	return nil
}

func variableKeys(scope workflow.Scope) []string {
	keys := make([]string, 0, len(scope))
	for k := range scope {
		keys = append(keys, k)
	}
	return keys
}
