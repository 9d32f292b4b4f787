// Package agent 实现助手的核心控制循环：
// 反复让 LLM 决策下一个工具（decide），执行该工具（dispatch），
// 把结果喂回 LLM，直到产生最终回答或触达终结条件。
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/AuroraRetail/AssistantCore/tools"
)

// FallbackAnswer 是兜底回复：循环异常终止时用户看到的唯一文案。
// 内部错误与 scratchpad 内容永远不直接暴露给用户。
const FallbackAnswer = "Вибачте, я не зміг обробити ваш запит. Спробуйте, будь ласка, переформулювати питання."

// Config 控制循环行为。
type Config struct {
	MaxSteps    int           // 单轮 decide/dispatch 循环的硬上限
	Temperature float64       // 决策调用的采样温度
	StepTimeout time.Duration // 每次外部调用（LLM 或工具）的超时
}

// Loop 驱动一轮对话内 LLM 与工具注册表之间的有界交互。
type Loop struct {
	llm      llms.Model
	registry *tools.Registry
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewLoop 创建控制循环。
func NewLoop(llm llms.Model, registry *tools.Registry, cfg Config, logger *slog.Logger) *Loop {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 8
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{llm: llm, registry: registry, cfg: cfg, logger: logger, now: time.Now}
}

// TurnResult 是一轮对话的产出：最终回答与完整的 scratchpad（用于观测）。
// Structured 为 true 表示回答来自终结工具的结构化载荷，而非 LLM 自由文本。
type TurnResult struct {
	Answer     string
	Structured bool
	Steps      []ToolInvocation
}

// Run 处理一条用户输入并返回最终回答。
//
// 状态机：decide -> dispatch(tool) -> decide -> ... -> terminal。
// 终结条件：
//  1. LLM 未请求任何工具（自由文本即最终回答）
//  2. 执行了终结工具（其结果直接作为用户可见载荷）
//  3. LLM 重复了本轮内已有结果的同一 (工具, 参数) 调用 -> 强制兜底终止
//  4. 循环次数触达上限 -> 强制兜底终止
//
// 除 context 取消外不返回错误：LLM 或工具失败被降级为兜底回答，
// 调用方总能得到可给用户看的 TurnResult。
func (l *Loop) Run(ctx context.Context, history []llms.ChatMessage, input string) (*TurnResult, error) {
	turnID := uuid.NewString()[:8]
	defs := l.registry.Definitions()

	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, SystemPrompt(l.now())))
	for _, msg := range history {
		messages = append(messages, llms.TextParts(msg.GetType(), msg.GetContent()))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, input))

	// 工具可通过 context 读取本轮会话文本（如 SQL 工具的查询生成提示词）
	toolCtx := tools.WithConversation(ctx, renderConversation(history, input))

	pad := &scratchpad{}

	for step := 0; step < l.cfg.MaxSteps; step++ {
		choice, err := l.decide(ctx, messages, defs)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			l.logger.Error("llm decide step failed", "turn", turnID, "step", step, "error", err)
			return &TurnResult{Answer: FallbackAnswer, Steps: pad.snapshot()}, nil
		}

		// 无工具调用 -> 自由文本即最终回答
		if len(choice.ToolCalls) == 0 {
			answer := choice.Content
			if answer == "" {
				answer = FallbackAnswer
			}
			return &TurnResult{Answer: answer, Steps: pad.snapshot()}, nil
		}

		// 约定每步至多一个工具调用；返回多个时取第一个
		if len(choice.ToolCalls) > 1 {
			l.logger.Warn("llm returned multiple tool calls, taking the first",
				"turn", turnID, "count", len(choice.ToolCalls))
		}
		tc := choice.ToolCalls[0]
		inv := &ToolInvocation{Tool: tc.FunctionCall.Name, Input: tc.FunctionCall.Arguments}

		// 结构化去重：提示词要求模型不重复调用，这里强制执行。
		// 违反时不再分发，带着兜底回答终止本轮。
		if pad.seenResolved(inv.key()) {
			l.logger.Warn("llm repeated an identical tool call, forcing termination",
				"turn", turnID, "tool", inv.Tool, "args", inv.Input)
			answer := choice.Content
			if answer == "" {
				answer = FallbackAnswer
			}
			return &TurnResult{Answer: answer, Steps: pad.snapshot()}, nil
		}
		pad.append(inv)

		tool, ok := l.registry.Get(inv.Tool)
		if !ok {
			// 工具集是封闭声明的，正常情况下不该出现；出现即放弃本轮
			l.logger.Error("dispatch failed", "turn", turnID, "tool", inv.Tool,
				"error", tools.ErrUnknownTool)
			inv.Output = fmt.Sprintf("Error: %v: %s", tools.ErrUnknownTool, inv.Tool)
			inv.Resolved = true
			return &TurnResult{Answer: FallbackAnswer, Steps: pad.snapshot()}, nil
		}

		l.logger.Info("executing tool", "turn", turnID, "step", step,
			"tool", inv.Tool, "args", inv.Input)
		result := l.dispatch(toolCtx, tool, inv.Input)
		inv.Output = result
		inv.Resolved = true
		l.logger.Info("tool executed", "turn", turnID, "tool", inv.Tool,
			"output_len", len(result))

		// 终结工具：结果即用户可见载荷，不再让 LLM 复述
		if tool.Terminal() {
			return &TurnResult{Answer: result, Structured: true, Steps: pad.snapshot()}, nil
		}

		// 将调用意图与结果追加进消息流，下一次 decide 可见。
		// 结果先于下一次 LLM 调用落位，pending 条目不会被模型看到。
		assistantMsg := llms.MessageContent{
			Role:  llms.ChatMessageTypeAI,
			Parts: []llms.ContentPart{llms.TextPart(choice.Content)},
		}
		assistantMsg.Parts = append(assistantMsg.Parts, llms.ToolCall{
			ID:   tc.ID,
			Type: tc.Type,
			FunctionCall: &llms.FunctionCall{
				Name:      tc.FunctionCall.Name,
				Arguments: tc.FunctionCall.Arguments,
			},
		})
		messages = append(messages, assistantMsg)
		messages = append(messages, llms.MessageContent{
			Role: llms.ChatMessageTypeTool,
			Parts: []llms.ContentPart{
				llms.ToolCallResponse{
					ToolCallID: tc.ID,
					Name:       inv.Tool,
					Content:    result,
				},
			},
		})
	}

	l.logger.Warn("step budget exhausted, forcing termination", "turn", turnID,
		"max_steps", l.cfg.MaxSteps)
	return &TurnResult{Answer: FallbackAnswer, Steps: pad.snapshot()}, nil
}

// decide 执行一次 LLM 决策调用。
func (l *Loop) decide(ctx context.Context, messages []llms.MessageContent, defs []llms.Tool) (*llms.ContentChoice, error) {
	callCtx, cancel := context.WithTimeout(ctx, l.cfg.StepTimeout)
	defer cancel()

	resp, err := l.llm.GenerateContent(callCtx, messages,
		llms.WithTools(defs),
		llms.WithTemperature(l.cfg.Temperature),
	)
	if err != nil {
		return nil, fmt.Errorf("llm generate error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from llm")
	}
	return resp.Choices[0], nil
}

// dispatch 执行工具并把异常转换为结果文本。
// 工具错误不是本轮的硬失败：LLM 拿到错误描述后可以重试、道歉或换工具。
func (l *Loop) dispatch(ctx context.Context, tool tools.Tool, args string) string {
	callCtx, cancel := context.WithTimeout(ctx, l.cfg.StepTimeout)
	defer cancel()

	result, err := tool.Call(callCtx, args)
	if err != nil {
		l.logger.Warn("tool returned error", "tool", tool.Name(), "error", err)
		return fmt.Sprintf("Error: %v", err)
	}
	return result
}
