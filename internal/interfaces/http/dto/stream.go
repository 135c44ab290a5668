package dto

// SSE 事件名
const (
	EventContent = "content"
	EventDone    = "done"
	EventError   = "error"
)

// ContentEvent 单个片段
type ContentEvent struct {
	Chunk string `json:"chunk"`
	Index int    `json:"index"`
}

// DoneEvent 正常结束
type DoneEvent struct {
	UserTurnID      string `json:"user_turn_id"`
	AssistantTurnID string `json:"assistant_turn_id"`
	ChapterID       string `json:"chapter_id,omitempty"`
	ResponseLength  int    `json:"response_length"`
	Fragments       int    `json:"fragments"`
}

// ErrorEvent 流内错误，PartialLength 为已送达的字符数
type ErrorEvent struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	PartialLength int    `json:"partial_length"`
}
