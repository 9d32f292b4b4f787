package ai

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/AuroraRetail/AssistantCore/agent"
)

// TurnRunner 抽象单轮对话的执行器（即 Agent 控制循环）。
type TurnRunner interface {
	Run(ctx context.Context, history []llms.ChatMessage, input string) (*agent.TurnResult, error)
}

// Chat 串联会话存储与 Agent 循环，处理完整的一轮对话。
//
// 流程：
//
//	User Input
//	    |
//	    v
//	+-------------------+
//	| SessionStore      |  1. 加载该用户历史
//	+---------+---------+
//	          |
//	          v
//	+-------------------+
//	| Agent Loop        |  2. decide/dispatch 循环产出最终回答
//	+---------+---------+
//	          |
//	          v
//	+-------------------+
//	| SessionStore      |  3. 追加 user + assistant 消息
//	|                   |  4. 裁剪到短期记忆窗口
//	+-------------------+
type Chat struct {
	store    SessionStore
	runner   TurnRunner
	maxTurns int
	logger   *slog.Logger

	// 同一用户的并发请求整轮串行化，避免历史追加与裁剪交错
	turnLocks sync.Map // userID -> *sync.Mutex
}

// NewChat 创建对话编排器。maxTurns 为短期记忆的对话组数。
func NewChat(store SessionStore, runner TurnRunner, maxTurns int, logger *slog.Logger) *Chat {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chat{store: store, runner: runner, maxTurns: maxTurns, logger: logger}
}

// userLock 返回指定用户的轮次锁。
func (c *Chat) userLock(userID string) *sync.Mutex {
	actual, _ := c.turnLocks.LoadOrStore(userID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// ProcessMessage 处理一条用户消息并返回助手回答。
func (c *Chat) ProcessMessage(ctx context.Context, userID, input string) (string, error) {
	lock := c.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	history, err := c.store.GetHistory(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get history: %w", err)
	}

	result, err := c.runner.Run(ctx, history, input)
	if err != nil {
		return "", fmt.Errorf("agent turn failed: %w", err)
	}
	c.logger.Info("turn completed", "user", userID, "tool_steps", len(result.Steps),
		"structured", result.Structured)

	if err := c.store.AddUserMessage(ctx, userID, input); err != nil {
		return "", fmt.Errorf("failed to add user message: %w", err)
	}
	if err := c.store.AddAIMessage(ctx, userID, result.Answer); err != nil {
		return "", fmt.Errorf("failed to add assistant message: %w", err)
	}
	if err := c.store.TrimHistory(ctx, userID, c.maxTurns); err != nil {
		// 回答已经产生，裁剪失败只记录
		c.logger.Warn("failed to trim history", "user", userID, "error", err)
	}

	return result.Answer, nil
}

// ClearHistory 清空指定用户的聊天历史。
func (c *Chat) ClearHistory(ctx context.Context, userID string) error {
	lock := c.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return c.store.ClearHistory(ctx, userID)
}
