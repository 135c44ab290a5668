package facts

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"z-writer-api/internal/domain/entity"
	"z-writer-api/internal/infrastructure/messaging"
	"z-writer-api/pkg/logger"
	"z-writer-api/pkg/metrics"
)

// Sink 接收完成的问答。实现不得阻塞生成流程，失败只记录不上抛。
type Sink interface {
	Submit(ctx context.Context, ex Exchange)
	// Close 等待已提交的任务结束
	Close()
}

// NopSink 关闭事实抽取
type NopSink struct{}

func (NopSink) Submit(context.Context, Exchange) {}
func (NopSink) Close()                           {}

// InlineSink 在进程内异步抽取，并发受信号量限制
type InlineSink struct {
	extractor *Extractor
	sem       *semaphore.Weighted
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewInlineSink 创建进程内抽取器
func NewInlineSink(extractor *Extractor, maxConcurrency int64, timeout time.Duration) *InlineSink {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &InlineSink{
		extractor: extractor,
		sem:       semaphore.NewWeighted(maxConcurrency),
		timeout:   timeout,
	}
}

// Submit 启动后台抽取，脱离调用方的取消信号但受超时约束
func (s *InlineSink) Submit(ctx context.Context, ex Exchange) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		if err := s.sem.Acquire(ctx, 1); err != nil {
			metrics.FactExtractionFailures.WithLabelValues("inline").Inc()
			logger.Warn(ctx, "fact extraction dropped", "project_id", ex.ProjectID, "error", err.Error())
			return
		}
		defer s.sem.Release(1)

		if _, err := s.extractor.Extract(ctx, ex); err != nil {
			metrics.FactExtractionFailures.WithLabelValues("inline").Inc()
			logger.Error(ctx, "fact extraction failed", err, "project_id", ex.ProjectID)
		}
	}()
}

// Close 等待进行中的抽取完成
func (s *InlineSink) Close() {
	s.wg.Wait()
}

// QueueSink 投递到 Redis Stream，由 job-worker 消费
type QueueSink struct {
	producer *messaging.Producer
}

func NewQueueSink(producer *messaging.Producer) *QueueSink {
	return &QueueSink{producer: producer}
}

func (s *QueueSink) Submit(ctx context.Context, ex Exchange) {
	_, err := s.producer.PublishFactExtraction(ctx, &messaging.FactExtractionMessage{
		ProjectID:       ex.ProjectID,
		ProjectKind:     string(ex.Kind),
		ChapterID:       ex.ChapterID,
		AssistantTurnID: ex.AssistantTurnID,
		UserInput:       ex.UserInput,
		Response:        ex.Response,
	})
	if err != nil {
		metrics.FactExtractionFailures.WithLabelValues("queue").Inc()
		logger.Error(ctx, "failed to enqueue fact extraction", err, "project_id", ex.ProjectID)
	}
}

func (s *QueueSink) Close() {}

// NewMessageHandler 返回 job-worker 使用的消息处理函数
func NewMessageHandler(extractor *Extractor) messaging.MessageHandler {
	return func(ctx context.Context, msg *messaging.Message) error {
		var job messaging.FactExtractionMessage
		if err := msg.UnmarshalPayload(&job); err != nil {
			// 载荷损坏无法重试，直接确认
			logger.Error(ctx, "invalid fact extraction payload", err, "message_id", msg.ID)
			return nil
		}
		kind := entity.ProjectKind(job.ProjectKind)
		if !kind.Valid() {
			logger.Warn(ctx, "fact extraction for unknown project kind", "kind", job.ProjectKind)
			return nil
		}
		_, err := extractor.Extract(ctx, Exchange{
			ProjectID:       job.ProjectID,
			Kind:            kind,
			ChapterID:       job.ChapterID,
			AssistantTurnID: job.AssistantTurnID,
			UserInput:       job.UserInput,
			Response:        job.Response,
		})
		return err
	}
}
