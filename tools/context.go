package tools

import "context"

// keyConversation 是 context.Context 中存储会话上下文的键。
type keyConversation struct{}

// WithConversation 将当前轮次的近期对话文本注入 context，
// 供需要会话上下文的工具（如 SQL 查询工具）在 Call 内读取。
func WithConversation(ctx context.Context, rendered string) context.Context {
	return context.WithValue(ctx, keyConversation{}, rendered)
}

// ConversationFromContext 提取注入的对话文本；未注入时返回空串。
func ConversationFromContext(ctx context.Context) string {
	val := ctx.Value(keyConversation{})
	if val == nil {
		return ""
	}
	s, _ := val.(string)
	return s
}
