package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvocationKeyCanonicalizesArgs(t *testing.T) {
	a := &ToolInvocation{Tool: "sql_db_tool", Input: `{"question":"ноутбук","top_k":5}`}
	b := &ToolInvocation{Tool: "sql_db_tool", Input: `{ "top_k": 5, "question": "ноутбук" }`}
	c := &ToolInvocation{Tool: "sql_db_tool", Input: `{"question":"телефон","top_k":5}`}
	d := &ToolInvocation{Tool: "shop_info_tool", Input: `{"question":"ноутбук","top_k":5}`}

	assert.Equal(t, a.key(), b.key())
	assert.NotEqual(t, a.key(), c.key())
	assert.NotEqual(t, a.key(), d.key())
}

func TestInvocationKeyMalformedArgs(t *testing.T) {
	a := &ToolInvocation{Tool: "sql_db_tool", Input: "  not json  "}
	b := &ToolInvocation{Tool: "sql_db_tool", Input: "not json"}
	assert.Equal(t, a.key(), b.key())
}

func TestScratchpadSeenResolved(t *testing.T) {
	pad := &scratchpad{}
	inv := &ToolInvocation{Tool: "sql_db_tool", Input: `{"question":"а"}`}
	pad.append(inv)

	// Pending entries do not count as repeats.
	assert.False(t, pad.seenResolved(inv.key()))

	inv.Output = "result"
	inv.Resolved = true
	assert.True(t, pad.seenResolved(inv.key()))
	assert.False(t, pad.seenResolved((&ToolInvocation{Tool: "sql_db_tool", Input: `{"question":"б"}`}).key()))
}

func TestScratchpadSnapshotMasksPending(t *testing.T) {
	pad := &scratchpad{}
	resolved := &ToolInvocation{Tool: "shop_info_tool", Input: "{}", Output: "адреса", Resolved: true}
	pending := &ToolInvocation{Tool: "sql_db_tool", Input: `{"question":"а"}`}
	pad.append(resolved)
	pad.append(pending)

	snap := pad.snapshot()
	assert.Equal(t, "адреса", snap[0].Output)
	assert.Equal(t, PendingOutput, snap[1].Output)

	// The snapshot is detached from the live entries.
	snap[0].Output = "підмінено"
	assert.Equal(t, "адреса", resolved.Output)
}
