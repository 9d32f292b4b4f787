package ai

import (
	"context"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// memorySession 是单个用户的会话条目。
type memorySession struct {
	mu           sync.Mutex
	history      []llms.ChatMessage
	lastActivity time.Time
}

// MemoryStore 实现进程内的 SessionStore。
// 外层锁只保护会话表；每个会话自带锁，同一用户的并发变更被串行化，
// 不同用户互不阻塞。
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
}

// NewMemoryStore 创建内存会话存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memorySession)}
}

// session 返回指定用户的会话，不存在则创建。
func (s *MemoryStore) session(userID string) *memorySession {
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[userID]; ok {
		return sess
	}
	sess = &memorySession{}
	s.sessions[userID] = sess
	return sess
}

// GetHistory 返回历史副本，避免调用方与存储共享底层切片。
func (s *MemoryStore) GetHistory(ctx context.Context, userID string) ([]llms.ChatMessage, error) {
	sess := s.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := make([]llms.ChatMessage, len(sess.history))
	copy(out, sess.history)
	return out, nil
}

// AddUserMessage 追加用户消息。
func (s *MemoryStore) AddUserMessage(ctx context.Context, userID, text string) error {
	return s.append(userID, llms.HumanChatMessage{Content: text})
}

// AddAIMessage 追加助手消息。
func (s *MemoryStore) AddAIMessage(ctx context.Context, userID, text string) error {
	return s.append(userID, llms.AIChatMessage{Content: text})
}

// append 串行化地追加一条消息并刷新活跃时间。
func (s *MemoryStore) append(userID string, msg llms.ChatMessage) error {
	sess := s.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.history = append(sess.history, msg)
	sess.lastActivity = time.Now().UTC()
	return nil
}

// ClearHistory 清空历史，会话条目本身保留。
func (s *MemoryStore) ClearHistory(ctx context.Context, userID string) error {
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.history = nil
	return nil
}

// TrimHistory 只保留最近 maxTurns 组用户+助手消息（2*maxTurns 条）。
func (s *MemoryStore) TrimHistory(ctx context.Context, userID string, maxTurns int) error {
	if maxTurns <= 0 {
		return nil
	}
	sess := s.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	limit := maxTurns * 2
	if len(sess.history) > limit {
		trimmed := make([]llms.ChatMessage, limit)
		copy(trimmed, sess.history[len(sess.history)-limit:])
		sess.history = trimmed
	}
	return nil
}

// LastActivity 返回用户最近一次消息的时间；无会话返回零值。
func (s *MemoryStore) LastActivity(userID string) time.Time {
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.lastActivity
}
