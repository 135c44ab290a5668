package generation

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"

	"z-writer-api/internal/domain/entity"
)

// Result 正常结束后的生成结果
type Result struct {
	UserTurnID      string          `json:"user_turn_id"`
	AssistantTurnID string          `json:"assistant_turn_id"`
	ChapterID       string          `json:"chapter_id,omitempty"`
	Response        string          `json:"response"`
	Fragments       int             `json:"fragments"`
	Chapter         *entity.Chapter `json:"chapter,omitempty"`
}

// finishFunc 模型流结束后的收尾。aborted 为 true 时只记录取消，不落库
type finishFunc func(aborted bool) (*Result, error)

// Stream 拉取式片段流，由唯一的消费者读取。
//
// Recv 按模型产出顺序返回片段，正常结束返回 io.EOF，失败返回一次终止错误。
// 助手轮次与章节追加只在消费者读完全部片段、Recv 遇到流尾时写入，
// 因此已落库的文本恰好等于消费者收到的片段。
// Close 可在任意时刻调用：取消模型调用并等待生产者退出，未读完即关闭时不会落库。
type Stream struct {
	// UserTurnID 调用模型前已落库的用户轮次
	UserTurnID string

	// caller 调用方上下文，已取消时流尾不落库
	caller context.Context
	reader *schema.StreamReader[string]
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu        sync.Mutex
	partial   strings.Builder
	fragments int
	closed    bool
	finish    finishFunc
	settled   bool
	settleErr error
	result    *Result
}

func newStream(caller context.Context, userTurnID string, reader *schema.StreamReader[string], cancel context.CancelFunc) *Stream {
	return &Stream{
		UserTurnID: userTurnID,
		caller:     caller,
		reader:     reader,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Recv 读取下一个片段
func (s *Stream) Recv() (string, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return "", io.EOF
	}

	fragment, err := s.reader.Recv()
	if errors.Is(err, io.EOF) {
		if err := s.settle(true); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.partial.WriteString(fragment)
	s.fragments++
	s.mu.Unlock()
	return fragment, nil
}

// Close 取消生成并等待后台生产者退出，可重复调用
func (s *Stream) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.cancel()
		s.reader.Close()
	})
	<-s.done
	_ = s.settle(false)
}

// Partial 返回消费者已收到的文本与片段数
func (s *Stream) Partial() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.partial.String(), s.fragments
}

// Result 返回完成结果，仅在 Recv 返回 io.EOF 之后非空
func (s *Stream) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// setFinish 由生产者在模型流自然结束后、关闭管道前调用
func (s *Stream) setFinish(f finishFunc) {
	s.mu.Lock()
	s.finish = f
	s.mu.Unlock()
}

// settle 只执行一次收尾。drained 表示消费者已读到流尾
func (s *Stream) settle(drained bool) error {
	s.mu.Lock()
	if s.settled {
		err := s.settleErr
		s.mu.Unlock()
		return err
	}
	s.settled = true
	finish := s.finish
	aborted := !drained || s.closed
	s.mu.Unlock()

	if finish == nil {
		return nil
	}
	if s.caller.Err() != nil {
		aborted = true
	}
	result, err := finish(aborted)

	s.mu.Lock()
	s.result = result
	s.settleErr = err
	s.mu.Unlock()
	return err
}
