package storytest

import (
	"context"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ScriptedModel 按脚本逐片段输出的 ChatModel
type ScriptedModel struct {
	// Fragments 依次发送的片段
	Fragments []string
	// Err 非空时在全部片段之后以流错误结束
	Err error
	// StreamErr 非空时 Stream 调用直接失败
	StreamErr error
	// Gate 非空时发送 GateAfter 个片段后等待 Gate 关闭或 ctx 取消
	Gate      chan struct{}
	GateAfter int

	mu    sync.Mutex
	calls [][]*schema.Message
}

var _ model.BaseChatModel = (*ScriptedModel)(nil)

// Calls 返回每次调用收到的消息
func (m *ScriptedModel) Calls() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]*schema.Message(nil), m.calls...)
}

func (m *ScriptedModel) record(input []*schema.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, append([]*schema.Message(nil), input...))
}

func (m *ScriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.record(input)
	if m.StreamErr != nil {
		return nil, m.StreamErr
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return schema.AssistantMessage(strings.Join(m.Fragments, ""), nil), nil
}

func (m *ScriptedModel) Stream(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.record(input)
	if m.StreamErr != nil {
		return nil, m.StreamErr
	}

	sr, sw := schema.Pipe[*schema.Message](0)
	go func() {
		defer sw.Close()
		wait := func() bool {
			select {
			case <-m.Gate:
				return true
			case <-ctx.Done():
				sw.Send(nil, ctx.Err())
				return false
			}
		}
		for i, f := range m.Fragments {
			if m.Gate != nil && i == m.GateAfter && !wait() {
				return
			}
			if closed := sw.Send(schema.AssistantMessage(f, nil), nil); closed {
				return
			}
		}
		if m.Gate != nil && m.GateAfter >= len(m.Fragments) && !wait() {
			return
		}
		if m.Err != nil {
			sw.Send(nil, m.Err)
		}
	}()
	return sr, nil
}

// ModelFactory 固定返回同一个模型
type ModelFactory struct {
	Model model.BaseChatModel
	Err   error
}

func (f *ModelFactory) Get(_ context.Context, _ string) (model.BaseChatModel, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Model, nil
}

func (f *ModelFactory) Resolve(name string) string {
	if name == "" {
		return "scripted"
	}
	return name
}
