package workflow

import (
	"context"
	"sync"
)

// runMultiInstance implements §4.6 "Multi-instance and loop" for a task
// flagged isMultiInstance: it iterates inputCollection, sequentially or
// concurrently per isSequential, each iteration getting a private scope
// clone carrying inputElement/loopCounter; outputElement from each
// iteration is collected into outputCollection on the shared scope.
func (e *Engine) runMultiInstance(ctx context.Context, inst *Instance, node *Node, scope Scope) (stepOutcome, []Flow, error) {
	collectionName := stringProp(node.Properties, "inputCollection")
	items, _ := scope[collectionName].([]any)
	sequential := boolProp(node.Properties, "isSequential")
	outputCollectionName := stringProp(node.Properties, "outputCollection")

	outputs := make([]any, len(items))
	runOne := func(index int, item any) error {
		iterScope := scope.Clone()
		iterScope["inputElement"] = item
		iterScope["loopCounter"] = index
		outcome, _, err := e.runTaskWithBoundaries(ctx, inst, node, iterScope, nil)
		if err != nil || outcome != outcomeNormal {
			return err
		}
		if outputCollectionName != "" {
			outputs[index] = iterScope["outputElement"]
		}
		return nil
	}

	if sequential {
		for i, item := range items {
			if err := runOne(i, item); err != nil {
				return outcomeEnded, nil, err
			}
		}
	} else {
		var wg sync.WaitGroup
		errs := make([]error, len(items))
		for i, item := range items {
			wg.Add(1)
			go func(i int, item any) {
				defer wg.Done()
				errs[i] = runOne(i, item)
			}(i, item)
		}
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				return outcomeEnded, nil, err
			}
		}
	}

	if outputCollectionName != "" {
		scope[outputCollectionName] = outputs
	}
	return outcomeNormal, e.Graph.Outgoing(node.ID), nil
}

// runLoopingTask implements the loopCondition form of §4.6 "Multi-instance
// and loop": repeat the task until its loopCondition evaluates falsy,
// bounded by loopMaximum (defaulting to a single run).
func (e *Engine) runLoopingTask(ctx context.Context, inst *Instance, node *Node, scope Scope, br *branch) (stepOutcome, []Flow, error) {
	max := intProp(node.Properties, "loopMaximum")
	if max <= 0 {
		max = 1
	}
	cond := stringProp(node.Properties, "loopCondition")

	var outcome stepOutcome
	var nexts []Flow
	var err error
	for i := 0; i < max; i++ {
		outcome, nexts, err = e.runTaskWithBoundaries(ctx, inst, node, scope, br)
		if err != nil || outcome != outcomeNormal {
			return outcome, nexts, err
		}
		if !EvaluateCondition(cond, scope) {
			break
		}
	}
	return outcome, nexts, err
}
