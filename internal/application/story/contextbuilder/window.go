package contextbuilder

import (
	"fmt"
	"strings"

	"z-writer-api/internal/application/story/storyutil"
	"z-writer-api/internal/domain/entity"
)

// NotWrittenMarker 空章节的占位
const NotWrittenMarker = "(not yet written)"

// FactLine 一条事实
type FactLine struct {
	ContextType string `json:"context_type"`
	Key         string `json:"key"`
	Value       string `json:"value"`
}

// ChapterPreview 章节预览，正文超过上限时截断
type ChapterPreview struct {
	ChapterID  string `json:"chapter_id"`
	OrderIndex int    `json:"order_index"`
	Title      string `json:"title"`
	Preview    string `json:"preview"`
	Truncated  bool   `json:"truncated"`
	Empty      bool   `json:"empty"`
}

// TurnPreview 对话轮次单行预览
type TurnPreview struct {
	Role    entity.Role `json:"role"`
	Preview string      `json:"preview"`
}

// Window 组装好的上下文窗口
type Window struct {
	Facts    []FactLine       `json:"facts"`
	Chapters []ChapterPreview `json:"chapters"`
	Turns    []TurnPreview    `json:"turns"`
	Text     string           `json:"text"`
}

func factLines(facts []*entity.ContextFact) []FactLine {
	out := make([]FactLine, 0, len(facts))
	for _, f := range facts {
		value := storyutil.OneLine(f.Value)
		if f.Key == "" || value == "" {
			continue
		}
		out = append(out, FactLine{ContextType: f.ContextType, Key: f.Key, Value: value})
	}
	return out
}

func chapterPreviews(chapters []*entity.Chapter, maxRunes int) []ChapterPreview {
	out := make([]ChapterPreview, 0, len(chapters))
	for _, ch := range chapters {
		p := ChapterPreview{
			ChapterID:  ch.ID,
			OrderIndex: ch.OrderIndex,
			Title:      ch.Title,
		}
		if ch.IsEmpty() {
			p.Empty = true
			p.Preview = NotWrittenMarker
		} else {
			p.Preview, p.Truncated = storyutil.Preview(ch.ContentText, maxRunes)
		}
		out = append(out, p)
	}
	return out
}

func turnPreviews(turns []*entity.ConversationTurn, maxRunes int) []TurnPreview {
	out := make([]TurnPreview, 0, len(turns))
	for _, t := range turns {
		preview, _ := storyutil.Preview(storyutil.OneLine(t.Content), maxRunes)
		if n := len(t.Images); n > 0 {
			preview = strings.TrimSpace(fmt.Sprintf("%s [%d image(s)]", preview, n))
		}
		out = append(out, TurnPreview{Role: t.Role, Preview: preview})
	}
	return out
}

// render 生成文本形式，空的段落整体省略
func (w *Window) render() string {
	var b strings.Builder

	if len(w.Facts) > 0 {
		b.WriteString("Known facts:\n")
		for _, f := range w.Facts {
			fmt.Fprintf(&b, "%s: %s\n", f.Key, f.Value)
		}
	}

	if len(w.Chapters) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Chapters:\n")
		for _, ch := range w.Chapters {
			title := ch.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Fprintf(&b, "%d. %s\n%s\n", ch.OrderIndex, title, ch.Preview)
		}
	}

	if len(w.Turns) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Recent conversation:\n")
		for _, t := range w.Turns {
			fmt.Fprintf(&b, "[%s] %s\n", t.Role, t.Preview)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
