package workflow

import (
	"sync"
	"time"
)

// ActiveTask is the cooperative handle for a node currently executing:
// from node start until the executor returns or is cancelled, an entry
// exists in Instance.activeTasks (§3 invariant).
type ActiveTask struct {
	NodeID string
	Cancel func()
	Done   <-chan struct{}
}

// CompensationHandler is a registered compensation boundary event,
// recorded in LIFO insertion order against the activity it completed
// for (§4.6 Compensation).
type CompensationHandler struct {
	ActivityNodeID string
	BoundaryNodeID string
}

// mergeState tracks gateway-join arrivals, guarded by its own lock so
// concurrent arriving paths serialize only against each other, not
// against the rest of the instance (§3).
type mergeState struct {
	mu        sync.Mutex
	arrivals  map[string]bool // path identity -> arrived
	completed bool
	scope     Scope // accumulated merge of every arriving branch's scope
}

// Instance is one live execution of a Graph (§3).
type Instance struct {
	ID        string
	StartedAt time.Time
	Variables Scope

	mu                     sync.Mutex
	activeTasks            map[string]*ActiveTask
	mergeStates            map[string]*mergeState
	compensationHandlers   []CompensationHandler
	eventSubprocessCancels []func()

	forkMu       sync.Mutex
	forkBranches map[string][]*branch
}

// NewInstance seeds a fresh Instance with the caller's initial variables
// plus the synthetic workflowInstanceId key (§3).
func NewInstance(id string, initial Scope) *Instance {
	vars := initial.Clone()
	if vars == nil {
		vars = Scope{}
	}
	vars["workflowInstanceId"] = id

	return &Instance{
		ID:          id,
		StartedAt:   time.Now().UTC(),
		Variables:   vars,
		activeTasks: make(map[string]*ActiveTask),
		mergeStates: make(map[string]*mergeState),
	}
}

// RegisterActiveTask records that nodeID is now running.
func (i *Instance) RegisterActiveTask(t *ActiveTask) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.activeTasks[t.NodeID] = t
}

// ClearActiveTask removes nodeID from the active set, on completion,
// failure, or cancellation.
func (i *Instance) ClearActiveTask(nodeID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.activeTasks, nodeID)
}

// ActiveTask returns the handle for nodeID, if it is currently running.
func (i *Instance) ActiveTask(nodeID string) (*ActiveTask, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	t, ok := i.activeTasks[nodeID]
	return t, ok
}

// ActiveTaskIDs returns a snapshot of every currently-running node ID.
func (i *Instance) ActiveTaskIDs() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]string, 0, len(i.activeTasks))
	for id := range i.activeTasks {
		out = append(out, id)
	}
	return out
}

// mergeStateFor returns (creating if absent) the arrival tracker for a
// join gateway node.
func (i *Instance) mergeStateFor(nodeID string) *mergeState {
	i.mu.Lock()
	defer i.mu.Unlock()
	ms, ok := i.mergeStates[nodeID]
	if !ok {
		ms = &mergeState{arrivals: make(map[string]bool), scope: i.Variables.Clone()}
		i.mergeStates[nodeID] = ms
	}
	return ms
}

// SetGlobalVariable writes key into the instance-wide variable board,
// guarded by mu. Event sub-process monitors for message/signal/escalation
// triggers poll this board for convention-named flags (§4.6 "Event
// sub-processes"); ordinary task execution instead uses the per-path
// Scope threaded by the Engine.
func (i *Instance) SetGlobalVariable(key string, value any) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Variables[key] = value
}

// GlobalVariable reads key from the instance-wide variable board.
func (i *Instance) GlobalVariable(key string) (any, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	v, ok := i.Variables[key]
	return v, ok
}

// RegisterCompensation appends a compensation handler for an activity
// that completed successfully (never for failed/cancelled activities,
// per the §3 invariant).
func (i *Instance) RegisterCompensation(activityNodeID, boundaryNodeID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.compensationHandlers = append(i.compensationHandlers, CompensationHandler{
		ActivityNodeID: activityNodeID, BoundaryNodeID: boundaryNodeID,
	})
}

// CompensationHandlersLIFO returns registered compensation handlers in
// most-recently-completed-first order, for the compensation sweep.
func (i *Instance) CompensationHandlersLIFO() []CompensationHandler {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]CompensationHandler, len(i.compensationHandlers))
	for idx, h := range i.compensationHandlers {
		out[len(out)-1-idx] = h
	}
	return out
}

// RegisterEventSubprocessMonitor tracks a cancel func for a background
// event subprocess monitor so it can be torn down when the instance
// ends.
func (i *Instance) RegisterEventSubprocessMonitor(cancel func()) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.eventSubprocessCancels = append(i.eventSubprocessCancels, cancel)
}

// registerForkBranches records the concurrently-spawned branches forked
// from forkID, so a join later reached from one of them can find and
// cancel its still-running siblings (§4.6 Competing-path cancellation).
func (i *Instance) registerForkBranches(forkID string, branches []*branch) {
	i.forkMu.Lock()
	defer i.forkMu.Unlock()
	if i.forkBranches == nil {
		i.forkBranches = make(map[string][]*branch)
	}
	i.forkBranches[forkID] = branches
}

// forkBranchesFor returns the branches registered under forkID, if any.
func (i *Instance) forkBranchesFor(forkID string) []*branch {
	i.forkMu.Lock()
	defer i.forkMu.Unlock()
	return i.forkBranches[forkID]
}

// clearForkBranches drops the bookkeeping for forkID once every spawned
// branch has been awaited.
func (i *Instance) clearForkBranches(forkID string) {
	i.forkMu.Lock()
	defer i.forkMu.Unlock()
	delete(i.forkBranches, forkID)
}

// StopEventSubprocessMonitors cancels every registered monitor.
func (i *Instance) StopEventSubprocessMonitors() {
	i.mu.Lock()
	cancels := i.eventSubprocessCancels
	i.eventSubprocessCancels = nil
	i.mu.Unlock()

	for _, c := range cancels {
		c()
	}
}
