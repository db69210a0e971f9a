package tool

import "context"

// Tool defines the interface for executable tools an agenticTask node can
// invoke (§4.3.1). A workflow declares which tools a node may call by name
// in the node's "tools" property; Registry resolves each name against
// Deps.Tools before dispatch.
//
// Tools let an agentic task reach outside the engine:
//   - Web/API requests (HTTPTool)
//   - Record lookups against an external system
//   - Notification side effects
//   - Calculations the model shouldn't be trusted to do itself
//
// Implementations should:
//   - Validate input parameters
//   - Respect context cancellation and timeouts
//   - Return structured output as map[string]interface{}
//   - Handle errors gracefully with clear error messages
//   - Be idempotent when possible, since a retried agentic task may call
//     the same tool again
//
// Example implementation:
//
//	type AccountLookupTool struct{ client *http.Client }
//
//	func (a *AccountLookupTool) Name() string {
//	    return "account_lookup"
//	}
//
//	func (a *AccountLookupTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
//	    accountID, ok := input["accountId"].(string)
//	    if !ok {
//	        return nil, errors.New("accountId parameter required")
//	    }
//
//	    // Look up the account...
//
//	    return map[string]interface{}{
//	        "status":  "active",
//	        "balance": 1024.50,
//	    }, nil
//	}
//
// Example as declared on an agenticTask node in a workflow definition:
//
//	- id: lookupNode
//	  type: agenticTask
//	  properties:
//	    tools: ["account_lookup"]
//	    toolArgs:
//	      account_lookup: {accountId: "${customerAccountId}"}
//	    toolSchemas:
//	      account_lookup:
//	        type: object
//	        required: [accountId]
//	        properties: {accountId: {type: string}}
type Tool interface {
	// Name returns the unique identifier for this tool.
	//
	// The name must match an entry in the agenticTask node's "tools"
	// property and the key used to register it in Deps.Tools. Names
	// should be lowercase with underscores, following function naming
	// conventions.
	//
	// Examples: "http_request", "account_lookup", "send_notification"
	Name() string

	// Call executes the tool with the provided input and returns the result.
	//
	// Parameters:
	//   - ctx: Context for cancellation, timeout, and metadata propagation
	//   - input: Tool parameters as key-value pairs (may be nil for parameterless tools)
	//
	// Returns:
	//   - map[string]interface{}: Tool execution result
	//   - error: Execution errors, validation errors, or context cancellation
	//
	// When the node declares a toolSchemas entry for this tool, input has
	// already been validated against that JSON Schema before Call runs
	// (executors.runTools). The output can be any structured data the
	// agentic task's model call can process.
	//
	// Implementations should:
	//   - Check ctx.Err() before expensive operations
	//   - Validate required input parameters
	//   - Return descriptive errors for invalid inputs
	//   - Include relevant metadata in the output
	Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
}
