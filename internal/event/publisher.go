package event

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hitoshi/tweetstream/internal/model"
)

// Publisher はドメインイベントをチャネルに送る。
// 戻り値を持たない。送信失敗は呼び出し元の書き込み結果に影響しない。
type Publisher interface {
	Publish(ctx context.Context, channel string, env Envelope)
}

// Transport はシリアライズ済みのメッセージをブローカーに渡す。
type Transport interface {
	Publish(channel string, data []byte) error
}

// PublishRecorder は送信結果を記録する。
type PublishRecorder interface {
	RecordEventPublished(channel string)
	RecordEventPublishFailure(channel string)
}

// BrokerPublisher はTransport経由でイベントを送るPublisher。
// 失敗はログとメトリクスに記録し、再送もバッファリングもしない。
type BrokerPublisher struct {
	transport Transport
	recorder  PublishRecorder
	logger    *slog.Logger
}

// NewBrokerPublisher はBrokerPublisherを生成する。recorderはnilでもよい。
func NewBrokerPublisher(transport Transport, recorder PublishRecorder, logger *slog.Logger) *BrokerPublisher {
	return &BrokerPublisher{transport: transport, recorder: recorder, logger: logger}
}

// Publish はエンベロープをJSONにしてブローカーに渡す。
func (p *BrokerPublisher) Publish(ctx context.Context, channel string, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		p.fail(ctx, channel, env, "marshal", err)
		return
	}

	if err := p.transport.Publish(channel, data); err != nil {
		p.fail(ctx, channel, env, "publish", err)
		return
	}

	if p.recorder != nil {
		p.recorder.RecordEventPublished(channel)
	}
	p.logger.DebugContext(ctx, "event published",
		slog.String("channel", channel),
		slog.String("type", env.Type),
		slog.String("event_id", env.ID),
	)
}

func (p *BrokerPublisher) fail(ctx context.Context, channel string, env Envelope, stage string, err error) {
	if p.recorder != nil {
		p.recorder.RecordEventPublishFailure(channel)
	}
	p.logger.WarnContext(ctx, "failed to publish event",
		slog.String("channel", channel),
		slog.String("type", env.Type),
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)
}

// PublishNotification は作成された通知をnotification_createdとして送る。nがnilなら何もしない。
func PublishNotification(ctx context.Context, p Publisher, n *model.Notification) {
	if n == nil {
		return
	}
	p.Publish(ctx, ChannelNotifications, New(TypeNotificationCreated, NotificationCreated{
		UserID:       n.UserID,
		Notification: n,
	}))
}

// NopPublisher はイベントを破棄するPublisher。ブローカーを使わないコマンドで使う。
type NopPublisher struct{}

// Publish は何もしない。
func (NopPublisher) Publish(context.Context, string, Envelope) {}

// compile-time interface check
var (
	_ Publisher = (*BrokerPublisher)(nil)
	_ Publisher = NopPublisher{}
)
