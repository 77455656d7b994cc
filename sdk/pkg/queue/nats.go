package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/ChenBigdata421/jxt-railflow/sdk/config"
)

// 同一队列的所有实例共用一个 durable consumer，work-queue 流上由 JetStream 分配消息
const natsDurableSuffix = "_workers"

// natsClient NATS JetStream 队列客户端
// 每个队列对应一个 work-queue Stream（Stream 名与 subject 均为队列名）
type natsClient struct {
	config *config.NATSConfig
	logger *zap.Logger

	mu       sync.Mutex
	conn     *nats.Conn
	js       nats.JetStreamContext
	subs     map[string]*nats.Subscription
	inflight map[string]*nats.Msg
	closed   bool
}

// NewNATSClient 创建 NATS JetStream 客户端，需调用 Connect 后使用
func NewNATSClient(cfg *config.NATSConfig, logger *zap.Logger) (Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nats config cannot be nil")
	}
	if len(cfg.URLs) == 0 {
		return nil, fmt.Errorf("nats URLs cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &natsClient{
		config:   cfg,
		logger:   logger.Named("nats"),
		subs:     make(map[string]*nats.Subscription),
		inflight: make(map[string]*nats.Msg),
	}, nil
}

func (n *natsClient) Connect(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrClosed
	}
	if n.conn != nil {
		return nil
	}

	nc, err := nats.Connect(strings.Join(n.config.URLs, ","), buildNATSOptions(n.config, n.logger)...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	n.conn = nc
	n.js = js
	n.logger.Info("NATS connected", zap.String("url", nc.ConnectedUrl()))
	return nil
}

func (n *natsClient) Reconnect(ctx context.Context) error {
	n.mu.Lock()
	n.disconnectLocked()
	n.mu.Unlock()
	return n.Connect(ctx)
}

// disconnectLocked 释放未确认消息后断开，调用方持有 n.mu
func (n *natsClient) disconnectLocked() {
	for id, msg := range n.inflight {
		if err := msg.Nak(); err != nil {
			// 连接已断时由 AckWait 到期后重投
			n.logger.Debug("nak on disconnect failed", zap.String("id", id), zap.Error(err))
		}
		delete(n.inflight, id)
	}
	for queue, sub := range n.subs {
		// 通过 Bind 订阅，退订不会删除 durable consumer
		_ = sub.Unsubscribe()
		delete(n.subs, queue)
	}
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
		n.js = nil
	}
}

func (n *natsClient) jetStream() (nats.JetStreamContext, error) {
	if n.closed {
		return nil, ErrClosed
	}
	if n.js == nil {
		return nil, ErrNotConnected
	}
	return n.js, nil
}

// Declare 确保 Stream 和共享的 durable consumer 存在
func (n *natsClient) Declare(ctx context.Context, queues ...string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	js, err := n.jetStream()
	if err != nil {
		return err
	}
	for _, queue := range queues {
		if err := n.ensureStream(js, queue); err != nil {
			return err
		}
		if err := n.ensureConsumer(js, queue); err != nil {
			return err
		}
	}
	return nil
}

func (n *natsClient) ensureStream(js nats.JetStreamContext, queue string) error {
	storage := parseStorageType(n.config.JetStream.Storage)
	info, err := js.StreamInfo(queue)
	if err == nil {
		if info.Config.Storage != storage {
			// 已存在 Stream 的存储类型不可修改，沿用现有 Stream
			n.logger.Warn("Stream storage type mismatch",
				zap.String("stream", queue),
				zap.String("expected", storage.String()),
				zap.String("actual", info.Config.Storage.String()))
		}
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %s: %w", queue, err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:      queue,
		Subjects:  []string{queue},
		Retention: nats.WorkQueuePolicy,
		Storage:   storage,
		Replicas:  n.config.JetStream.Replicas,
		MaxAge:    n.config.JetStream.MaxAge,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("failed to create stream %s: %w", queue, err)
	}
	n.logger.Info("Created JetStream stream", zap.String("stream", queue), zap.String("storage", storage.String()))
	return nil
}

func (n *natsClient) ensureConsumer(js nats.JetStreamContext, queue string) error {
	durable := queue + natsDurableSuffix
	if _, err := js.ConsumerInfo(queue, durable); err == nil {
		return nil
	} else if !errors.Is(err, nats.ErrConsumerNotFound) {
		return fmt.Errorf("consumer info %s: %w", durable, err)
	}

	_, err := js.AddConsumer(queue, &nats.ConsumerConfig{
		Durable:       durable,
		AckPolicy:     nats.AckExplicitPolicy,
		AckWait:       n.config.JetStream.AckWait,
		MaxDeliver:    n.config.JetStream.MaxDeliver,
		DeliverPolicy: nats.DeliverAllPolicy,
	})
	if err != nil && !errors.Is(err, nats.ErrConsumerNameAlreadyInUse) {
		return fmt.Errorf("failed to create consumer %s: %w", durable, err)
	}
	return nil
}

// subscription 懒加载 pull 订阅，调用方持有 n.mu
func (n *natsClient) subscription(js nats.JetStreamContext, queue string) (*nats.Subscription, error) {
	if sub, ok := n.subs[queue]; ok {
		return sub, nil
	}
	sub, err := js.PullSubscribe(queue, queue+natsDurableSuffix, nats.Bind(queue, queue+natsDurableSuffix))
	if err != nil {
		if errors.Is(err, nats.ErrStreamNotFound) || errors.Is(err, nats.ErrConsumerNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrQueueNotDeclared, queue)
		}
		return nil, fmt.Errorf("pull subscribe %s: %w", queue, err)
	}
	n.subs[queue] = sub
	return sub, nil
}

// TryTake 最多等待 FetchWait 拉取一条消息
func (n *natsClient) TryTake(ctx context.Context, queue string) (*Delivery, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	js, err := n.jetStream()
	if err != nil {
		return nil, err
	}
	sub, err := n.subscription(js, queue)
	if err != nil {
		return nil, err
	}

	msgs, err := sub.Fetch(1, nats.MaxWait(n.config.JetStream.FetchWait))
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch %s: %w", queue, err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	msg := msgs[0]
	d := &Delivery{Queue: queue, Body: msg.Data, handle: msg}
	if meta, err := msg.Metadata(); err == nil {
		d.ID = fmt.Sprintf("%s:%d", queue, meta.Sequence.Stream)
		d.Redelivered = meta.NumDelivered > 1
	} else {
		d.ID = fmt.Sprintf("%s:%p", queue, msg)
	}
	n.inflight[d.ID] = msg
	return d, nil
}

func (n *natsClient) Publish(ctx context.Context, queue string, body []byte) error {
	n.mu.Lock()
	js, err := n.jetStream()
	n.mu.Unlock()
	if err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, n.config.JetStream.PublishTimeout)
	defer cancel()
	if _, err := js.Publish(queue, body, nats.Context(pubCtx)); err != nil {
		if errors.Is(err, nats.ErrNoStreamResponse) {
			return fmt.Errorf("%w: %s", ErrQueueNotDeclared, queue)
		}
		return fmt.Errorf("publish %s: %w", queue, err)
	}
	return nil
}

func (n *natsClient) take(d *Delivery) (*nats.Msg, error) {
	if _, err := n.jetStream(); err != nil {
		return nil, err
	}
	msg, ok := n.inflight[d.ID]
	if !ok || msg != d.handle {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDelivery, d.ID)
	}
	delete(n.inflight, d.ID)
	return msg, nil
}

// Ack 同步确认，确认结果返回后消息才算移除
func (n *natsClient) Ack(ctx context.Context, d *Delivery) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	msg, err := n.take(d)
	if err != nil {
		return err
	}
	if err := msg.AckSync(nats.AckWait(n.config.JetStream.PublishTimeout)); err != nil {
		return fmt.Errorf("ack %s: %w", d.ID, err)
	}
	return nil
}

func (n *natsClient) Nak(ctx context.Context, d *Delivery) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	msg, err := n.take(d)
	if err != nil {
		return err
	}
	if err := msg.Nak(); err != nil {
		return fmt.Errorf("nak %s: %w", d.ID, err)
	}
	return nil
}

func (n *natsClient) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.disconnectLocked()
	n.closed = true
	return nil
}

// buildNATSOptions 构建NATS连接选项
func buildNATSOptions(cfg *config.NATSConfig, logger *zap.Logger) []nats.Option {
	var opts []nats.Option

	if cfg.ClientID != "" {
		opts = append(opts, nats.Name(cfg.ClientID))
	}
	if cfg.MaxReconnects != 0 {
		opts = append(opts, nats.MaxReconnects(cfg.MaxReconnects))
	}
	if cfg.ReconnectWait > 0 {
		opts = append(opts, nats.ReconnectWait(cfg.ReconnectWait))
	}
	if cfg.ConnectionTimeout > 0 {
		opts = append(opts, nats.Timeout(cfg.ConnectionTimeout))
	}
	opts = append(opts, nats.PingInterval(20*time.Second))

	// 认证：用户名密码优先，其次 token
	if cfg.Username != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	} else if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	opts = append(opts,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	return opts
}

// parseStorageType 解析存储类型
func parseStorageType(storage string) nats.StorageType {
	switch storage {
	case "memory":
		return nats.MemoryStorage
	default:
		return nats.FileStorage
	}
}
