package ai

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Service 管理 LLM 模型实例：按配置名解析、构建并缓存。
// Agent 循环与 SQL 工具都通过它获取各自配置的模型。
type Service struct {
	config *Config

	mu         sync.Mutex
	modelCache map[string]llms.Model
}

// NewService 创建 AI 服务实例。
func NewService(config *Config) *Service {
	return &Service{
		config:     config,
		modelCache: make(map[string]llms.Model),
	}
}

// resolveAPIKey 解析 API 密钥。
// 如果密钥以 "env:" 开头，则从环境变量中获取实际值。
func resolveAPIKey(key string) string {
	if strings.HasPrefix(key, "env:") {
		return os.Getenv(strings.TrimPrefix(key, "env:"))
	}
	return key
}

// Model 按配置名获取模型实例，缓存命中则直接返回。
func (s *Service) Model(modelName string) (llms.Model, error) {
	if modelName == "" {
		modelName = s.config.DefaultModel
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if model, ok := s.modelCache[modelName]; ok {
		return model, nil
	}

	cfg := s.modelConfig(modelName)
	if cfg == nil {
		return nil, fmt.Errorf("model '%s' not found in configuration", modelName)
	}

	llm, err := s.newClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create model provider: %w", err)
	}

	s.modelCache[modelName] = llm
	return llm, nil
}

// ModelTemperature 返回指定模型配置的采样温度。
func (s *Service) ModelTemperature(modelName string) float64 {
	if cfg := s.modelConfig(modelName); cfg != nil {
		return cfg.Temperature
	}
	return 0
}

// Embedder 构建嵌入器，使用默认模型的凭据与配置的嵌入模型名。
func (s *Service) Embedder() (embeddings.Embedder, error) {
	cfg := s.modelConfig(s.config.DefaultModel)
	if cfg == nil {
		return nil, fmt.Errorf("model '%s' not found in configuration", s.config.DefaultModel)
	}
	if cfg.Provider != "openai" {
		return nil, fmt.Errorf("embeddings require an openai provider, got %q", cfg.Provider)
	}

	opts := []openai.Option{
		openai.WithToken(resolveAPIKey(cfg.APIKey)),
		openai.WithEmbeddingModel(s.config.EmbeddingModel),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	return embeddings.NewEmbedder(client)
}

// modelConfig 在配置中查找模型条目。
func (s *Service) modelConfig(name string) *ModelConfig {
	for i := range s.config.Models {
		if s.config.Models[i].Name == name {
			return &s.config.Models[i]
		}
	}
	return nil
}

// newClient 按 provider 构建模型客户端。目前商品助手只接入 openai。
func (s *Service) newClient(cfg *ModelConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{
			openai.WithToken(resolveAPIKey(cfg.APIKey)),
			openai.WithModel(cfg.ModelName),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
