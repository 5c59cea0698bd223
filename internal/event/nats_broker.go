package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// subscribeBuffer はNATSから受け取るメッセージのバッファ長。
const subscribeBuffer = 256

// BrokerConfig はNATS接続の設定。
type BrokerConfig struct {
	URL           string
	SubjectPrefix string // チャネル名の前に付けるサブジェクトの接頭辞
	ClientName    string
	DrainTimeout  time.Duration
}

// NATSBroker はNATSを使ったTransportとSourceの実装。
type NATSBroker struct {
	conn      *nats.Conn
	prefix    string
	closed    chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

// ConnectNATS はNATSに接続する。切断時は自動で再接続する。
func ConnectNATS(cfg BrokerConfig, logger *slog.Logger) (*NATSBroker, error) {
	b := &NATSBroker{
		prefix: cfg.SubjectPrefix,
		closed: make(chan struct{}),
		logger: logger,
	}

	drainTimeout := cfg.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = 10 * time.Second
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.ClientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DrainTimeout(drainTimeout),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("nats async error", slog.String("subject", subject), slog.String("error", err.Error()))
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			b.closeOnce.Do(func() { close(b.closed) })
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	b.conn = conn

	return b, nil
}

// Subject はチャネル名に対応するNATSサブジェクトを返す。
func (b *NATSBroker) Subject(channel string) string {
	return b.prefix + channel
}

// Publish はチャネルにメッセージを送る。NATSのバッファに書き込むだけでブロックしない。
func (b *NATSBroker) Publish(channel string, data []byte) error {
	return b.conn.Publish(b.Subject(channel), data)
}

// Subscribe は指定チャネルを購読する。
func (b *NATSBroker) Subscribe(ctx context.Context, channels []string) (<-chan Message, error) {
	in := make(chan *nats.Msg, subscribeBuffer)
	subs := make([]*nats.Subscription, 0, len(channels))
	unsubscribe := func() {
		for _, sub := range subs {
			if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
				b.logger.Warn("failed to unsubscribe", slog.String("subject", sub.Subject), slog.String("error", err.Error()))
			}
		}
	}

	for _, ch := range channels {
		sub, err := b.conn.ChanSubscribe(b.Subject(ch), in)
		if err != nil {
			unsubscribe()
			return nil, fmt.Errorf("failed to subscribe %s: %w", ch, err)
		}
		subs = append(subs, sub)
	}

	out := make(chan Message)
	go func() {
		defer close(out)
		defer unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case <-b.closed:
				return
			case m := <-in:
				msg := Message{Channel: strings.TrimPrefix(m.Subject, b.prefix), Data: m.Data}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Ping はサーバーとの往復を確認する。ctxには期限が必要。
func (b *NATSBroker) Ping(ctx context.Context) error {
	if !b.conn.IsConnected() {
		return fmt.Errorf("nats not connected: %s", b.conn.Status())
	}
	return b.conn.FlushWithContext(ctx)
}

// Close は送信待ちのメッセージを流し切ってから接続を閉じる。
// 2回目以降の呼び出しは何もしない。
func (b *NATSBroker) Close() error {
	if b.conn.IsClosed() {
		return nil
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return fmt.Errorf("failed to drain nats connection: %w", err)
	}
	return nil
}

// compile-time interface check
var (
	_ Transport = (*NATSBroker)(nil)
	_ Source    = (*NATSBroker)(nil)
)
