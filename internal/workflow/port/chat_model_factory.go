// Package port 定义应用层对外部能力的最小依赖
package port

import (
	"context"

	"github.com/cloudwego/eino/components/model"
)

// ChatModelFactory 按提供商名称返回无状态的 ChatModel，空名称表示默认提供商。
// 返回的模型不持有会话状态，每次调用都需携带完整消息列表。
type ChatModelFactory interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
	// Resolve 返回实际使用的提供商名称
	Resolve(name string) string
}
