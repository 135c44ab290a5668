// Package llm 提供 LLM 提供商客户端的创建与缓存
package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"z-writer-api/internal/config"
)

// 提供商协议类型
const (
	ProviderTypeOpenAI = "openai"
	ProviderTypeGemini = "gemini"
)

// EinoFactory 管理多个 Eino ChatModel 客户端实例
type EinoFactory struct {
	config *config.LLMConfig
	models map[string]model.BaseChatModel
	mu     sync.RWMutex
}

// NewEinoFactory 创建 Eino LLM 工厂
func NewEinoFactory(cfg *config.Config) *EinoFactory {
	return &EinoFactory{
		config: &cfg.LLM,
		models: make(map[string]model.BaseChatModel),
	}
}

// Resolve 返回实际使用的提供商名称
func (f *EinoFactory) Resolve(name string) string {
	if name == "" {
		return f.config.DefaultProvider
	}
	return name
}

// Get 获取指定名称的 ChatModel，如果未指定则返回默认客户端
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	name = f.Resolve(name)

	f.mu.RLock()
	m, ok := f.models[name]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	// 惰性加载
	f.mu.Lock()
	defer f.mu.Unlock()

	// 再次检查防止竞态
	if m, ok = f.models[name]; ok {
		return m, nil
	}

	providerCfg, ok := f.config.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", name)
	}

	chatModel, err := newChatModel(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model for %s: %w", name, err)
	}

	f.models[name] = chatModel
	return chatModel, nil
}

// Default 返回默认 ChatModel
func (f *EinoFactory) Default(ctx context.Context) (model.BaseChatModel, error) {
	return f.Get(ctx, "")
}

func newChatModel(ctx context.Context, cfg config.ProviderConfig) (model.BaseChatModel, error) {
	switch cfg.Type {
	case ProviderTypeOpenAI, "":
		// OpenAI 及兼容接口（DeepSeek、通义等）
		openaiCfg := &openai.ChatModelConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}
		if cfg.MaxTokens > 0 {
			openaiCfg.MaxTokens = &cfg.MaxTokens
		}
		if cfg.Temperature > 0 {
			openaiCfg.Temperature = ptrFloat32(float32(cfg.Temperature))
		}
		return openai.NewChatModel(ctx, openaiCfg)
	case ProviderTypeGemini:
		return NewGeminiChatModel(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported provider type %q", cfg.Type)
	}
}

func ptrFloat32(f float32) *float32 {
	return &f
}
