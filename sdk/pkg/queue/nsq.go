package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nsqio/go-nsq"
	"go.uber.org/zap"

	"github.com/ChenBigdata421/jxt-railflow/sdk/config"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/logger"
)

// nsqClient NSQ 队列客户端
// 队列对应 topic，同一队列的实例共用一个 channel；消息关闭自动应答，由 Ack/Nak 显式 FIN/REQ
type nsqClient struct {
	config *config.NSQConfig
	logger *zap.Logger

	mu        sync.Mutex
	producer  *nsq.Producer
	consumers map[string]*nsqConsumer
	inflight  map[string]*nsq.Message
	declared  map[string]bool
	closed    bool
}

type nsqConsumer struct {
	consumer *nsq.Consumer
	messages chan *nsq.Message
	stop     chan struct{}
}

// HandleMessage 把消息交给 TryTake，不自动 FIN
func (c *nsqConsumer) HandleMessage(m *nsq.Message) error {
	m.DisableAutoResponse()
	select {
	case c.messages <- m:
	case <-c.stop:
		m.Requeue(0)
	}
	return nil
}

// NewNSQClient 创建 NSQ 客户端，需调用 Connect 后使用
func NewNSQClient(cfg *config.NSQConfig, zl *zap.Logger) (Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nsq config cannot be nil")
	}
	if cfg.NSQDAddr == "" {
		return nil, fmt.Errorf("nsqd addr cannot be empty")
	}
	if zl == nil {
		zl = zap.NewNop()
	}
	return &nsqClient{
		config:    cfg,
		logger:    zl.Named("nsq"),
		consumers: make(map[string]*nsqConsumer),
		inflight:  make(map[string]*nsq.Message),
		declared:  make(map[string]bool),
	}, nil
}

func (n *nsqClient) nsqConfig() *nsq.Config {
	cfg := nsq.NewConfig()
	cfg.MaxInFlight = n.config.MaxInFlight
	if n.config.MsgTimeout > 0 {
		cfg.MsgTimeout = n.config.MsgTimeout
	}
	if n.config.DialTimeout > 0 {
		cfg.DialTimeout = n.config.DialTimeout
	}
	if n.config.AuthSecret != "" {
		cfg.AuthSecret = n.config.AuthSecret
	}
	return cfg
}

func (n *nsqClient) Connect(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrClosed
	}
	if n.producer != nil {
		return nil
	}

	producer, err := nsq.NewProducer(n.config.NSQDAddr, n.nsqConfig())
	if err != nil {
		return fmt.Errorf("failed to create nsq producer: %w", err)
	}
	producer.SetLogger(logger.NewNSQLogger(n.logger), nsq.LogLevelWarning)
	if err := producer.Ping(); err != nil {
		producer.Stop()
		return fmt.Errorf("failed to connect to nsqd %s: %w", n.config.NSQDAddr, err)
	}
	n.producer = producer
	n.logger.Info("NSQ connected", zap.String("nsqd", n.config.NSQDAddr))
	return nil
}

func (n *nsqClient) Reconnect(ctx context.Context) error {
	n.mu.Lock()
	n.disconnectLocked()
	n.mu.Unlock()
	return n.Connect(ctx)
}

// disconnectLocked 重投未确认消息并停止所有连接，调用方持有 n.mu
func (n *nsqClient) disconnectLocked() {
	for id, m := range n.inflight {
		m.Requeue(0)
		delete(n.inflight, id)
	}
	for queue, c := range n.consumers {
		close(c.stop)
		c.consumer.Stop()
		drainMessages(c.messages, requeue)
		<-c.consumer.StopChan
		// handler 在 stop 关闭后仍可能写入缓冲区，停止后再清一次
		drainMessages(c.messages, requeue)
		delete(n.consumers, queue)
	}
	if n.producer != nil {
		n.producer.Stop()
		n.producer = nil
	}
}

func requeue(m *nsq.Message) {
	m.Requeue(0)
}

// drainMessages 非阻塞取空缓冲区，返回处理的消息数
func drainMessages(ch <-chan *nsq.Message, fn func(*nsq.Message)) int {
	n := 0
	for {
		select {
		case m := <-ch:
			fn(m)
			n++
		default:
			return n
		}
	}
}

func (n *nsqClient) check() error {
	if n.closed {
		return ErrClosed
	}
	if n.producer == nil {
		return ErrNotConnected
	}
	return nil
}

// Declare nsqd 在首次发布或订阅时创建 topic，这里只登记并确认 nsqd 可达
func (n *nsqClient) Declare(ctx context.Context, queues ...string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.check(); err != nil {
		return err
	}
	if err := n.producer.Ping(); err != nil {
		return fmt.Errorf("nsqd ping: %w", err)
	}
	for _, queue := range queues {
		if !nsq.IsValidTopicName(queue) {
			return fmt.Errorf("invalid nsq topic name: %s", queue)
		}
		n.declared[queue] = true
	}
	return nil
}

// consumer 懒加载消费者，调用方持有 n.mu
func (n *nsqClient) consumer(queue string) (*nsqConsumer, error) {
	if c, ok := n.consumers[queue]; ok {
		return c, nil
	}
	if !n.declared[queue] {
		return nil, fmt.Errorf("%w: %s", ErrQueueNotDeclared, queue)
	}

	consumer, err := nsq.NewConsumer(queue, n.config.Channel, n.nsqConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create nsq consumer %s: %w", queue, err)
	}
	consumer.SetLogger(logger.NewNSQLogger(n.logger), nsq.LogLevelWarning)

	c := &nsqConsumer{
		consumer: consumer,
		messages: make(chan *nsq.Message, n.config.MaxInFlight),
		stop:     make(chan struct{}),
	}
	consumer.AddHandler(c)

	if len(n.config.LookupdAddrs) > 0 {
		err = consumer.ConnectToNSQLookupds(n.config.LookupdAddrs)
	} else {
		err = consumer.ConnectToNSQD(n.config.NSQDAddr)
	}
	if err != nil {
		consumer.Stop()
		return nil, fmt.Errorf("nsq consumer connect %s: %w", queue, err)
	}
	n.consumers[queue] = c
	return c, nil
}

// TryTake 最多等待 FetchWait 取一条已到达的消息
func (n *nsqClient) TryTake(ctx context.Context, queue string) (*Delivery, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.check(); err != nil {
		return nil, err
	}
	c, err := n.consumer(queue)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(n.config.FetchWait)
	defer timer.Stop()

	var m *nsq.Message
	select {
	case m = <-c.messages:
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	d := &Delivery{
		Queue:       queue,
		ID:          fmt.Sprintf("%s:%s", queue, string(m.ID[:])),
		Body:        m.Body,
		Redelivered: m.Attempts > 1,
		handle:      m,
	}
	n.inflight[d.ID] = m
	return d, nil
}

func (n *nsqClient) Publish(ctx context.Context, queue string, body []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.check(); err != nil {
		return err
	}
	if err := n.producer.Publish(queue, body); err != nil {
		return fmt.Errorf("publish %s: %w", queue, err)
	}
	return nil
}

func (n *nsqClient) take(d *Delivery) (*nsq.Message, error) {
	if err := n.check(); err != nil {
		return nil, err
	}
	m, ok := n.inflight[d.ID]
	if !ok || m != d.handle {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDelivery, d.ID)
	}
	delete(n.inflight, d.ID)
	return m, nil
}

func (n *nsqClient) Ack(ctx context.Context, d *Delivery) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	m, err := n.take(d)
	if err != nil {
		return err
	}
	m.Finish()
	return nil
}

func (n *nsqClient) Nak(ctx context.Context, d *Delivery) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	m, err := n.take(d)
	if err != nil {
		return err
	}
	m.Requeue(0)
	return nil
}

func (n *nsqClient) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.disconnectLocked()
	n.closed = true
	return nil
}
