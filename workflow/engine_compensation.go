package workflow

import (
	"context"

	"github.com/flowproc/bpmnengine/events"
)

// runCompensationSweep implements §4.6 Compensation: a
// compensationIntermediateThrowEvent walks every registered compensation
// handler most-recently-completed-first, emitting each boundary's
// activated/completed pair and traversing its outgoing flow to
// completion before moving to the next handler.
func (e *Engine) runCompensationSweep(ctx context.Context, inst *Instance, scope Scope, br *branch) {
	for _, h := range inst.CompensationHandlersLIFO() {
		boundary, ok := e.Graph.Node(h.BoundaryNodeID)
		if !ok {
			continue
		}
		e.emit(events.New("element.activated", boundary.ID, map[string]any{
			"kind": string(boundary.Kind), "name": boundary.DisplayName,
		}))
		e.emit(events.New("element.completed", boundary.ID, map[string]any{"durationMs": int64(0)}))

		for _, f := range e.Graph.Outgoing(boundary.ID) {
			next, ok := e.Graph.Node(f.To)
			if !ok {
				continue
			}
			_ = e.traverse(ctx, inst, next, f.ID, scope.Clone(), br)
		}
	}
}
