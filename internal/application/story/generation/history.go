package generation

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"z-writer-api/internal/domain/entity"
)

// BuildHistory 将最近的对话轮次转换为模型历史。
// 模型接口要求历史以用户消息开头，开头的助手轮次会被丢弃；空内容的轮次跳过。
func BuildHistory(turns []*entity.ConversationTurn) []*schema.Message {
	start := 0
	for start < len(turns) && turns[start].Role != entity.RoleUser {
		start++
	}

	history := make([]*schema.Message, 0, len(turns)-start)
	for _, t := range turns[start:] {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		switch t.Role {
		case entity.RoleUser:
			history = append(history, schema.UserMessage(t.Content))
		case entity.RoleAssistant:
			history = append(history, schema.AssistantMessage(t.Content, nil))
		}
	}
	return history
}

// composeUserMessage 系统提示与用户输入拼接为一条消息，图片作为独立的多模态片段
func composeUserMessage(systemPrompt, input string, images []entity.TurnImage) *schema.Message {
	text := input
	if systemPrompt != "" {
		text = systemPrompt + "\n\n" + input
	}
	if len(images) == 0 {
		return schema.UserMessage(text)
	}

	parts := make([]schema.ChatMessagePart, 0, len(images)+1)
	parts = append(parts, schema.ChatMessagePart{Type: schema.ChatMessagePartTypeText, Text: text})
	for _, img := range images {
		parts = append(parts, schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeImageURL,
			ImageURL: &schema.ChatMessageImageURL{
				URL:      dataURI(img),
				MIMEType: img.MIMEType,
			},
		})
	}
	return &schema.Message{Role: schema.User, MultiContent: parts}
}

func dataURI(img entity.TurnImage) string {
	return fmt.Sprintf("data:%s;base64,%s", img.MIMEType, img.Data)
}

func validImage(img entity.TurnImage) error {
	if !strings.HasPrefix(img.MIMEType, "image/") {
		return fmt.Errorf("unsupported mime type %q", img.MIMEType)
	}
	if img.Data == "" {
		return fmt.Errorf("empty image data")
	}
	if _, err := base64.StdEncoding.DecodeString(img.Data); err != nil {
		return fmt.Errorf("image data is not base64: %w", err)
	}
	return nil
}
