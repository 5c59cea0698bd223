package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// State はリレーの接続状態。
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
)

// String は状態名を返す。
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Message はブローカーから受信した1件のメッセージ。
type Message struct {
	Channel string
	Data    []byte
}

// Source はチャネルを購読し、受信メッセージを返す。
// 返したチャネルはctxの終了または接続の終了でcloseされる。
type Source interface {
	Subscribe(ctx context.Context, channels []string) (<-chan Message, error)
}

// Broadcaster はWebSocket接続にイベントを配信する。
type Broadcaster interface {
	BroadcastAll(event string, data any)
	EmitToUser(userID int64, event string, data any)
}

// RelayRecorder はリレーの処理結果を記録する。
type RelayRecorder interface {
	RecordRelayMessage(channel string)
	RecordRelayFailure(channel string, reason string)
}

// ErrSourceClosed は購読中にSourceが終了したことを表す。
var ErrSourceClosed = errors.New("event source closed")

// Relay はブローカーの各チャネルを購読し、受信したメッセージをWebSocketへ全体配信する。
// notification_createdは宛先ユーザーのルームにも届ける。
// 1件の処理失敗は記録して読み捨て、購読ループは継続する。
type Relay struct {
	source      Source
	broadcaster Broadcaster
	recorder    RelayRecorder
	logger      *slog.Logger
	state       atomic.Int32
}

// NewRelay はRelayを生成する。recorderはnilでもよい。
func NewRelay(source Source, broadcaster Broadcaster, recorder RelayRecorder, logger *slog.Logger) *Relay {
	return &Relay{
		source:      source,
		broadcaster: broadcaster,
		recorder:    recorder,
		logger:      logger,
	}
}

// State は現在の状態を返す。
func (r *Relay) State() State {
	return State(r.state.Load())
}

func (r *Relay) setState(s State) {
	prev := State(r.state.Swap(int32(s)))
	if prev != s {
		r.logger.Info("relay state changed",
			slog.String("from", prev.String()),
			slog.String("to", s.String()),
		)
	}
}

// Run は購読を開始し、ctxがキャンセルされるまでメッセージを中継する。
// ctxのキャンセルではnil、購読失敗やSourceの終了ではエラーを返す。
func (r *Relay) Run(ctx context.Context) error {
	r.setState(StateConnecting)
	defer r.setState(StateDisconnected)

	msgs, err := r.source.Subscribe(ctx, Channels)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	r.setState(StateSubscribed)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrSourceClosed
			}
			r.handle(msg)
		}
	}
}

// handle は1件のメッセージを中継する。panicもここで止める。
func (r *Relay) handle(msg Message) {
	defer func() {
		if rec := recover(); rec != nil {
			r.failed(msg, "panic", fmt.Errorf("%v", rec))
		}
	}()

	name, ok := BroadcastEventName(msg.Channel)
	if !ok {
		r.failed(msg, "unknown_channel", fmt.Errorf("no broadcast event for channel %q", msg.Channel))
		return
	}

	var payload json.RawMessage
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		r.failed(msg, "invalid_json", err)
		return
	}

	r.broadcaster.BroadcastAll(name, payload)

	if msg.Channel == ChannelNotifications {
		if userID, ok := notificationRecipient(payload); ok {
			r.broadcaster.EmitToUser(userID, TypeNotificationCreated, payload)
		}
	}

	if r.recorder != nil {
		r.recorder.RecordRelayMessage(msg.Channel)
	}
}

// notificationRecipient はnotification_createdの宛先ユーザーIDを取り出す。
func notificationRecipient(payload json.RawMessage) (int64, bool) {
	var head struct {
		Type   string `json:"type"`
		UserID int64  `json:"userId"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return 0, false
	}
	if head.Type != TypeNotificationCreated || head.UserID <= 0 {
		return 0, false
	}
	return head.UserID, true
}

func (r *Relay) failed(msg Message, reason string, err error) {
	if r.recorder != nil {
		r.recorder.RecordRelayFailure(msg.Channel, reason)
	}
	r.logger.Error("failed to relay message",
		slog.String("channel", msg.Channel),
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	)
}
