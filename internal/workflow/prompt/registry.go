// Package prompt 管理内嵌的提示词模板
package prompt

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	apperrors "z-writer-api/pkg/errors"
)

//go:embed templates/*.txt
var templatesFS embed.FS

type PromptID string

const (
	PromptStructuredDocumentV1 PromptID = "structured_document_v1"
	PromptNovelV1              PromptID = "novel_v1"
	PromptGeneralAssistantV1   PromptID = "general_assistant_v1"
	PromptContinuationV1       PromptID = "continuation_v1"
)

// 模板变量名
const (
	VarProjectTitle       = "project_title"
	VarProjectDescription = "project_description"
	VarProjectContext     = "project_context"
	VarChapterTitle       = "chapter_title"
	VarChapterOrder       = "chapter_order"
	VarChapterBody        = "chapter_body"
)

type Registry struct {
	mu    sync.RWMutex
	cache map[PromptID]einoprompt.ChatTemplate
}

func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[PromptID]einoprompt.ChatTemplate),
	}
}

// ChatTemplate 返回模板，首次访问时从内嵌文件加载
func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if tpl, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	path, err := resolvePromptFile(id)
	if err != nil {
		return nil, err
	}
	text, err := readEmbeddedText(path)
	if err != nil {
		return nil, err
	}

	tpl := einoprompt.FromMessages(schema.FString, schema.SystemMessage(text))
	r.cache[id] = tpl
	return tpl, nil
}

// Render 渲染模板为纯文本
func (r *Registry) Render(ctx context.Context, id PromptID, vars map[string]any) (string, error) {
	tpl, err := r.ChatTemplate(id)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodePromptRender, "failed to load prompt template")
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodePromptRender, fmt.Sprintf("failed to render prompt %s", id))
	}
	if len(msgs) == 0 {
		return "", apperrors.New(apperrors.CodePromptRender, fmt.Sprintf("prompt %s rendered no messages", id))
	}
	return msgs[0].Content, nil
}

func resolvePromptFile(id PromptID) (string, error) {
	switch id {
	case PromptStructuredDocumentV1, PromptNovelV1, PromptGeneralAssistantV1, PromptContinuationV1:
		return "templates/" + string(id) + ".txt", nil
	default:
		return "", fmt.Errorf("unknown prompt id: %s", id)
	}
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
