package executors

import (
	"context"
	"fmt"

	"github.com/flowproc/bpmnengine/workflow"
)

// executeScriptTask evaluates the node's "script" expression against the
// sandboxed variable scope and writes the result into "resultVariable"
// (§4.3). The sandbox is the same go/parser+go/ast evaluator the gateway
// condition expressions use (workflow.EvaluateCondition covers the
// boolean case; scriptTask additionally needs an arbitrary-value result,
// so it uses the lower-level expression evaluator directly).
func executeScriptTask(ctx context.Context, req Request) (Result, error) {
	script := stringProp(req.Node.Properties, "script")
	resultVar := stringProp(req.Node.Properties, "resultVariable")
	if resultVar == "" {
		resultVar = req.Node.ID + "_result"
	}

	value, err := workflow.EvaluateExpressionValue(script, req.Scope)
	if err != nil {
		return Result{}, fmt.Errorf("scriptTask %s: %w", req.Node.ID, err)
	}

	req.Scope[resultVar] = value
	return Result{}, nil
}
