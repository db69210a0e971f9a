package yamldef

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/flowproc/bpmnengine/workflow"
)

// nodeKinds is the closed set of element types the schema accepts,
// mirroring workflow.Kind (§6: "type (the node-kind set)").
var nodeKinds = map[string]bool{
	string(workflow.KindStartEvent):     true,
	string(workflow.KindEndEvent):       true,
	string(workflow.KindIntermediate):   true,
	string(workflow.KindTimerCatch):     true,
	string(workflow.KindErrorBoundary):  true,
	string(workflow.KindTimerBoundary):  true,
	string(workflow.KindCompBoundary):   true,
	string(workflow.KindCompThrow):      true,
	string(workflow.KindErrorStart):     true,
	string(workflow.KindTimerStart):     true,
	string(workflow.KindMessageStart):   true,
	string(workflow.KindSignalStart):    true,
	string(workflow.KindEscalStart):     true,
	string(workflow.KindCompStart):      true,
	string(workflow.KindTask):           true,
	string(workflow.KindUserTask):       true,
	string(workflow.KindServiceTask):    true,
	string(workflow.KindScriptTask):     true,
	string(workflow.KindSendTask):       true,
	string(workflow.KindReceiveTask):    true,
	string(workflow.KindManualTask):     true,
	string(workflow.KindBusinessRule):   true,
	string(workflow.KindAgenticTask):    true,
	string(workflow.KindSubProcess):     true,
	string(workflow.KindEventSubProc):   true,
	string(workflow.KindCallActivity):   true,
	string(workflow.KindExclusiveGw):    true,
	string(workflow.KindParallelGw):     true,
	string(workflow.KindInclusiveGw):    true,
}

var (
	validateOnce sync.Once
	v            *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v = validator.New()
		_ = v.RegisterValidation("nodekind", func(fl validator.FieldLevel) bool {
			return nodeKinds[fl.Field().String()]
		})
	})
	return v
}

// Validate runs structural validation on a parsed Document: required
// fields and the closed node-kind enum. It does not check flow
// connectivity (every flow endpoint existing) — that is caught by
// workflow.NewGraph when the Document is converted.
func Validate(doc *Document) error {
	if err := getValidator().Struct(doc); err != nil {
		return fmt.Errorf("workflow definition validation failed: %w", err)
	}
	return nil
}
