package entity

import "fmt"

// ProjectKind 项目类型，决定系统提示词与可用能力
type ProjectKind string

const (
	// ProjectKindStructuredDocument 论文、报告等结构化文档
	ProjectKindStructuredDocument ProjectKind = "structured-document"
	// ProjectKindNovel 小说等长篇叙事
	ProjectKindNovel ProjectKind = "novel"
	// ProjectKindGeneralAssistant 通用写作助手
	ProjectKindGeneralAssistant ProjectKind = "general-assistant"
)

// Capabilities 项目类型允许的能力
type Capabilities struct {
	// ChapterWriting 允许生成结果写入章节、允许续写
	ChapterWriting bool
	// ImageInput 允许在请求中附带图片
	ImageInput bool
}

// KindProfile 项目类型映射表中的一行
type KindProfile struct {
	Kind ProjectKind
	// PromptID 系统提示词模板标识
	PromptID string
	// ContextType 事实抽取写入的命名空间
	ContextType  string
	Capabilities Capabilities
}

// AllProjectKinds 返回全部项目类型
func AllProjectKinds() []ProjectKind {
	return []ProjectKind{
		ProjectKindStructuredDocument,
		ProjectKindNovel,
		ProjectKindGeneralAssistant,
	}
}

// ProfileOf 查询项目类型映射表，未知类型返回 false
func ProfileOf(kind ProjectKind) (KindProfile, bool) {
	switch kind {
	case ProjectKindStructuredDocument:
		return KindProfile{
			Kind:         kind,
			PromptID:     "structured_document_v1",
			ContextType:  "document",
			Capabilities: Capabilities{ChapterWriting: true, ImageInput: true},
		}, true
	case ProjectKindNovel:
		return KindProfile{
			Kind:         kind,
			PromptID:     "novel_v1",
			ContextType:  "story",
			Capabilities: Capabilities{ChapterWriting: true, ImageInput: false},
		}, true
	case ProjectKindGeneralAssistant:
		return KindProfile{
			Kind:         kind,
			PromptID:     "general_assistant_v1",
			ContextType:  "conversation",
			Capabilities: Capabilities{ChapterWriting: false, ImageInput: true},
		}, true
	}
	return KindProfile{}, false
}

// ParseProjectKind 解析项目类型，空串使用默认类型
func ParseProjectKind(s string) (ProjectKind, error) {
	if s == "" {
		return ProjectKindStructuredDocument, nil
	}
	kind := ProjectKind(s)
	if _, ok := ProfileOf(kind); !ok {
		return "", fmt.Errorf("unknown project kind %q", s)
	}
	return kind, nil
}

// Valid 是否为已知项目类型
func (k ProjectKind) Valid() bool {
	_, ok := ProfileOf(k)
	return ok
}
