package ai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// storedTurn 是 JSONL 序列化的中间结构。
type storedTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FileStore 实现基于文件系统的 SessionStore（JSONL 格式）。
// 每个用户的历史存储在单独文件中，每行一个 JSON 对象，进程重启后保留。
type FileStore struct {
	baseDir string
	logger  *slog.Logger
	mu      sync.RWMutex // 全局锁，保护文件系统操作并发安全
}

// NewFileStore 创建文件会话存储。baseDir 为历史文件目录。
func NewFileStore(baseDir string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{baseDir: baseDir, logger: logger}, nil
}

// filePath 返回指定用户的历史文件路径。
// 对用户 ID 做基础名清理以防路径遍历。
func (s *FileStore) filePath(userID string) string {
	safeID := filepath.Base(userID)
	return filepath.Join(s.baseDir, safeID+".jsonl")
}

// appendToFile 追加一行 JSON 记录。
func (s *FileStore) appendToFile(path string, msg llms.ChatMessage) error {
	role := "user"
	if msg.GetType() == llms.ChatMessageTypeAI {
		role = "assistant"
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	// json.Encoder 自带行尾换行，符合 JSONL 规范；不转义非 ASCII 内容
	encoder := json.NewEncoder(f)
	encoder.SetEscapeHTML(false)
	return encoder.Encode(storedTurn{Role: role, Content: msg.GetContent()})
}

// GetHistory 逐行读取历史文件。
func (s *FileStore) GetHistory(ctx context.Context, userID string) ([]llms.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readHistory(userID)
}

// readHistory 在持锁状态下读取并解析历史文件。
func (s *FileStore) readHistory(userID string) ([]llms.ChatMessage, error) {
	path := s.filePath(userID)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return []llms.ChatMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var messages []llms.ChatMessage
	scanner := bufio.NewScanner(f)

	// 放大单行上限，长回答可能超过默认的 64KB
	scanner.Buffer(make([]byte, 0, 64*1024), 5*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var turn storedTurn
		if err := json.Unmarshal(line, &turn); err != nil {
			// 坏行跳过，保证历史尽量可用
			s.logger.Warn("skipping malformed history line", "file", path, "line", lineNum, "error", err)
			continue
		}

		if turn.Role == "assistant" {
			messages = append(messages, llms.AIChatMessage{Content: turn.Content})
		} else {
			messages = append(messages, llms.HumanChatMessage{Content: turn.Content})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning history file: %w", err)
	}
	return messages, nil
}

// AddUserMessage 追加用户消息。
func (s *FileStore) AddUserMessage(ctx context.Context, userID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendToFile(s.filePath(userID), llms.HumanChatMessage{Content: text})
}

// AddAIMessage 追加助手消息。
func (s *FileStore) AddAIMessage(ctx context.Context, userID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendToFile(s.filePath(userID), llms.AIChatMessage{Content: text})
}

// ClearHistory 清空会话历史（删除文件）。
func (s *FileStore) ClearHistory(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.filePath(userID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// TrimHistory 截断到最近 maxTurns 组对话并重写文件。
func (s *FileStore) TrimHistory(ctx context.Context, userID string, maxTurns int) error {
	if maxTurns <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	messages, err := s.readHistory(userID)
	if err != nil {
		return err
	}
	limit := maxTurns * 2
	if len(messages) <= limit {
		return nil
	}
	messages = messages[len(messages)-limit:]

	// 写入临时文件后原子替换，避免截断过程中丢失历史
	path := s.filePath(userID)
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(f)
	encoder.SetEscapeHTML(false)
	for _, msg := range messages {
		role := "user"
		if msg.GetType() == llms.ChatMessageTypeAI {
			role = "assistant"
		}
		if err := encoder.Encode(storedTurn{Role: role, Content: msg.GetContent()}); err != nil {
			f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
