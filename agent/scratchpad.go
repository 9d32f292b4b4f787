package agent

import (
	"encoding/json"
	"strings"
)

// PendingOutput 是工具结果尚未产生时的占位值。
// 循环保证带占位值的条目不会出现在下一次 LLM 调用的上下文里。
const PendingOutput = "(pending)"

// ToolInvocation 记录一次工具选择及其结果。
// 由 LLM 选择工具时创建；工具执行后一次性从 pending 转为已解析，之后不可变。
type ToolInvocation struct {
	Tool     string `json:"tool"`
	Input    string `json:"input"` // LLM 给出的原始 JSON 参数
	Output   string `json:"output"`
	Resolved bool   `json:"resolved"`
}

// key 返回用于重复调用判定的比较键：工具名加规范化参数。
func (inv *ToolInvocation) key() string {
	return inv.Tool + "\x00" + canonicalArgs(inv.Input)
}

// canonicalArgs 将 JSON 参数规范化，使键序不同但内容相同的参数视为同一调用。
// 非法 JSON 退化为去空白的原文比较。
func canonicalArgs(args string) string {
	var v any
	if err := json.Unmarshal([]byte(args), &v); err != nil {
		return strings.TrimSpace(args)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return strings.TrimSpace(args)
	}
	return string(out)
}

// scratchpad 是单轮内工具调用的有序日志。
// 条目只追加，唯一的原地变更是 pending -> 已解析。
type scratchpad struct {
	steps []*ToolInvocation
}

// append 追加一个待执行的调用。
func (s *scratchpad) append(inv *ToolInvocation) {
	s.steps = append(s.steps, inv)
}

// seenResolved 判断相同的 (工具, 参数) 是否已有已解析的结果。
func (s *scratchpad) seenResolved(key string) bool {
	for _, step := range s.steps {
		if step.Resolved && step.key() == key {
			return true
		}
	}
	return false
}

// snapshot 导出条目副本用于观测；pending 条目输出占位值。
func (s *scratchpad) snapshot() []ToolInvocation {
	out := make([]ToolInvocation, 0, len(s.steps))
	for _, step := range s.steps {
		copied := *step
		if !copied.Resolved {
			copied.Output = PendingOutput
		}
		out = append(out, copied)
	}
	return out
}
