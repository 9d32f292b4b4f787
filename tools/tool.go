package tools

import (
	"context"
	"encoding/json"
	"errors"
)

// Tool describes a callable capability exposed to the agent.
// Parameters returns the JSON Schema of the tool's argument object;
// Call receives the raw JSON arguments produced by the LLM.
type Tool interface {
	// Name returns the unique tool name used for dispatch.
	Name() string

	// Description explains to the LLM when this tool should be used.
	Description() string

	// Parameters returns the JSON Schema for the tool arguments.
	Parameters() json.RawMessage

	// Call executes the tool. Implementations should convert internal
	// failures into a descriptive result string where possible, so the
	// agent always receives a usable tool output.
	Call(ctx context.Context, args string) (string, error)

	// Terminal reports whether the tool's result is the final,
	// user-facing payload of the turn. The agent ends the turn after a
	// terminal tool without another LLM call.
	Terminal() bool
}

// ErrUnknownTool indicates the requested tool name is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// ErrDuplicateTool indicates a tool name was registered twice.
var ErrDuplicateTool = errors.New("duplicate tool name")
