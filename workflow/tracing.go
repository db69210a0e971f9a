package workflow

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer emits one span per node traversal, nested under the enclosing
// workflow run's span, grounded on goa-ai's convention of an
// otel.Tracer obtained once at package scope and used through the
// standard trace.Tracer API (no custom telemetry abstraction, since the
// engine core has nothing else that needs swapping out for tests the
// way goa-ai's pluggable Logger/Tracer/Metrics interfaces do).
var tracer = otel.Tracer("github.com/flowproc/bpmnengine/workflow")

// recordErr marks span as failed and records err, the same
// RecordError+SetStatus pairing goa-ai's runtime uses around every
// traced operation.
func recordErr(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
