package executors

import (
	"context"
	"fmt"

	"github.com/flowproc/bpmnengine/events"
	"github.com/flowproc/bpmnengine/workflow"
)

// EmailSender is the external adapter a sendTask delegates to. Defined
// here (rather than importing package email directly) so the executors
// package depends only on the narrow interface the spec calls for (§1:
// "email delivery... pluggable and not part of the core").
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// executeSendTask resolves subject/body/recipient from templated
// strings, optionally appends an approval hyperlink embedding
// (messageRef, correlationKey), and delegates to the external email
// adapter (§4.3).
func executeSendTask(ctx context.Context, req Request) (Result, error) {
	to := workflow.ResolveVariables(stringProp(req.Node.Properties, "to"), req.Scope)
	subject := workflow.ResolveVariables(stringProp(req.Node.Properties, "subject"), req.Scope)
	body := workflow.ResolveVariables(stringProp(req.Node.Properties, "body"), req.Scope)

	if messageRef := stringProp(req.Node.Properties, "messageRef"); messageRef != "" {
		correlationKey := workflow.ResolveVariables(stringProp(req.Node.Properties, "correlationKey"), req.Scope)
		if base := stringProp(req.Node.Properties, "approvalBaseURL"); base != "" {
			body += fmt.Sprintf("\n\nApprove: %s/webhooks/approve/%s/%s\nDeny: %s/webhooks/deny/%s/%s",
				base, messageRef, correlationKey, base, messageRef, correlationKey)
		}
	}

	if req.Deps.Email == nil {
		req.Deps.Broadcaster.Broadcast(events.New("task.progress", req.Node.ID, map[string]any{
			"status": "skipped", "reason": "no email adapter configured",
		}))
		return Result{}, nil
	}

	if err := req.Deps.Email.Send(ctx, to, subject, body); err != nil {
		return Result{}, fmt.Errorf("sendTask %s: %w", req.Node.ID, err)
	}
	return Result{}, nil
}
