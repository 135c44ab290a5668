package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"z-writer-api/internal/config"
)

const geminiType = "Gemini"

// GeminiChatModel 基于 google.golang.org/genai 的 ChatModel 适配器。
// 实例不保存会话，系统提示、历史与本轮输入均由调用方在 messages 中提供。
type GeminiChatModel struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature *float32
}

var _ model.BaseChatModel = (*GeminiChatModel)(nil)

// NewGeminiChatModel 创建 Gemini ChatModel
func NewGeminiChatModel(ctx context.Context, cfg config.ProviderConfig) (*GeminiChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPOptions.Timeout = &cfg.Timeout
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	m := &GeminiChatModel{
		client:    client,
		model:     cfg.Model,
		maxTokens: int32(cfg.MaxTokens),
	}
	if cfg.Temperature > 0 {
		m.temperature = ptrFloat32(float32(cfg.Temperature))
	}
	return m, nil
}

// GetType 返回组件类型
func (m *GeminiChatModel) GetType() string { return geminiType }

// IsCallbacksEnabled 回调由适配器自行触发
func (m *GeminiChatModel) IsCallbacksEnabled() bool { return true }

// Generate 非流式生成
func (m *GeminiChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (out *schema.Message, err error) {
	modelName, genCfg, contents, err := m.prepare(input, opts...)
	if err != nil {
		return nil, err
	}

	ctx = callbacks.OnStart(ctx, &model.CallbackInput{
		Messages: input,
		Config:   &model.Config{Model: modelName},
	})
	defer func() {
		if err != nil {
			callbacks.OnError(ctx, err)
		}
	}()

	resp, err := m.client.Models.GenerateContent(ctx, modelName, contents, genCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	out = schema.AssistantMessage(resp.Text(), nil)
	usage := tokenUsage(resp)
	if usage != nil {
		out.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
		}}
	}
	callbacks.OnEnd(ctx, &model.CallbackOutput{
		Message:    out,
		Config:     &model.Config{Model: modelName},
		TokenUsage: usage,
	})
	return out, nil
}

// Stream 流式生成，片段按模型产出顺序送入返回的 StreamReader。
// 调用方关闭 StreamReader 后生产 goroutine 在下一次发送时退出。
func (m *GeminiChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	modelName, genCfg, contents, err := m.prepare(input, opts...)
	if err != nil {
		return nil, err
	}

	ctx = callbacks.OnStart(ctx, &model.CallbackInput{
		Messages: input,
		Config:   &model.Config{Model: modelName},
	})

	sr, sw := schema.Pipe[*model.CallbackOutput](1)
	go func() {
		defer sw.Close()
		for resp, err := range m.client.Models.GenerateContentStream(ctx, modelName, contents, genCfg) {
			if err != nil {
				sw.Send(nil, fmt.Errorf("gemini stream: %w", err))
				return
			}
			chunk := &model.CallbackOutput{
				Message:    schema.AssistantMessage(resp.Text(), nil),
				Config:     &model.Config{Model: modelName},
				TokenUsage: tokenUsage(resp),
			}
			if closed := sw.Send(chunk, nil); closed {
				return
			}
		}
	}()

	_, sr = callbacks.OnEndWithStreamOutput(ctx, sr)
	return schema.StreamReaderWithConvert(sr, func(o *model.CallbackOutput) (*schema.Message, error) {
		if o == nil || o.Message == nil {
			return nil, schema.ErrNoValue
		}
		return o.Message, nil
	}), nil
}

// prepare 合并调用选项并转换消息
func (m *GeminiChatModel) prepare(input []*schema.Message, opts ...model.Option) (string, *genai.GenerateContentConfig, []*genai.Content, error) {
	options := model.GetCommonOptions(&model.Options{
		Model:       &m.model,
		Temperature: m.temperature,
	}, opts...)

	genCfg := &genai.GenerateContentConfig{Temperature: options.Temperature}
	if options.MaxTokens != nil && *options.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(*options.MaxTokens)
	} else if m.maxTokens > 0 {
		genCfg.MaxOutputTokens = m.maxTokens
	}

	system, contents, err := toGeminiContents(input)
	if err != nil {
		return "", nil, nil, err
	}
	genCfg.SystemInstruction = system

	modelName := m.model
	if options.Model != nil && *options.Model != "" {
		modelName = *options.Model
	}
	return modelName, genCfg, contents, nil
}

// toGeminiContents 将 Eino 消息转换为 Gemini 内容；system 消息合并为 SystemInstruction
func toGeminiContents(input []*schema.Message) (*genai.Content, []*genai.Content, error) {
	var systemParts []*genai.Part
	contents := make([]*genai.Content, 0, len(input))

	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			systemParts = append(systemParts, genai.NewPartFromText(msg.Content))
		case schema.User, schema.Assistant:
			parts, err := toGeminiParts(msg)
			if err != nil {
				return nil, nil, err
			}
			role := genai.Role(genai.RoleUser)
			if msg.Role == schema.Assistant {
				role = genai.RoleModel
			}
			contents = append(contents, genai.NewContentFromParts(parts, role))
		default:
			return nil, nil, fmt.Errorf("unsupported message role %q", msg.Role)
		}
	}

	var system *genai.Content
	if len(systemParts) > 0 {
		system = genai.NewContentFromParts(systemParts, genai.RoleUser)
	}
	return system, contents, nil
}

func toGeminiParts(msg *schema.Message) ([]*genai.Part, error) {
	if len(msg.MultiContent) == 0 {
		return []*genai.Part{genai.NewPartFromText(msg.Content)}, nil
	}

	parts := make([]*genai.Part, 0, len(msg.MultiContent))
	for _, p := range msg.MultiContent {
		switch p.Type {
		case schema.ChatMessagePartTypeText:
			parts = append(parts, genai.NewPartFromText(p.Text))
		case schema.ChatMessagePartTypeImageURL:
			if p.ImageURL == nil {
				continue
			}
			mimeType, data, err := decodeDataURI(p.ImageURL.URL)
			if err != nil {
				return nil, err
			}
			parts = append(parts, genai.NewPartFromBytes(data, mimeType))
		default:
			return nil, fmt.Errorf("unsupported message part %q", p.Type)
		}
	}
	return parts, nil
}

// decodeDataURI 解析 data:<mime>;base64,<payload> 形式的内联图片
func decodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, fmt.Errorf("gemini adapter only accepts inline data URIs")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data URI")
	}
	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("data URI must be base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URI: %w", err)
	}
	return mimeType, data, nil
}

func tokenUsage(resp *genai.GenerateContentResponse) *model.TokenUsage {
	if resp == nil || resp.UsageMetadata == nil {
		return nil
	}
	return &model.TokenUsage{
		PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
		CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
	}
}
