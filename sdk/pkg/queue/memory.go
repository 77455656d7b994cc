package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// MemoryBroker 进程内 broker，多个客户端共享同一实例时表现为竞争消费
type MemoryBroker struct {
	mu          sync.Mutex
	queues      map[string]*memoryQueue
	unavailable bool
	owners      atomic.Uint64
}

type memoryQueue struct {
	ready    []*memoryItem
	inflight map[string]*memoryItem
}

type memoryItem struct {
	id          string
	body        []byte
	redelivered bool
	owner       uint64
}

// NewMemoryBroker 创建内存 broker
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{queues: make(map[string]*memoryQueue)}
}

// SetUnavailable 模拟 broker 不可达，所有客户端操作返回 ErrUnavailable
func (b *MemoryBroker) SetUnavailable(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unavailable = down
}

// Len 待投递的消息数
func (b *MemoryBroker) Len(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[queue]; ok {
		return len(q.ready)
	}
	return 0
}

// InFlight 已取出但未确认的消息数
func (b *MemoryBroker) InFlight(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[queue]; ok {
		return len(q.inflight)
	}
	return 0
}

// Bodies 按投递顺序返回待投递消息的副本
func (b *MemoryBroker) Bodies(queue string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[queue]
	if !ok {
		return nil
	}
	out := make([][]byte, 0, len(q.ready))
	for _, item := range q.ready {
		out = append(out, append([]byte(nil), item.body...))
	}
	return out
}

func (b *MemoryBroker) declare(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unavailable {
		return ErrUnavailable
	}
	if _, ok := b.queues[name]; !ok {
		b.queues[name] = &memoryQueue{inflight: make(map[string]*memoryItem)}
	}
	return nil
}

func (b *MemoryBroker) publish(name string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unavailable {
		return ErrUnavailable
	}
	q, ok := b.queues[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrQueueNotDeclared, name)
	}
	q.ready = append(q.ready, &memoryItem{
		id:   uuid.NewString(),
		body: append([]byte(nil), body...),
	})
	return nil
}

func (b *MemoryBroker) take(name string, owner uint64) (*Delivery, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unavailable {
		return nil, ErrUnavailable
	}
	q, ok := b.queues[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrQueueNotDeclared, name)
	}
	if len(q.ready) == 0 {
		return nil, nil
	}
	item := q.ready[0]
	q.ready = q.ready[1:]
	item.owner = owner
	q.inflight[item.id] = item

	return &Delivery{
		Queue:       name,
		ID:          item.id,
		Body:        append([]byte(nil), item.body...),
		Redelivered: item.redelivered,
		handle:      owner,
	}, nil
}

// settle ack=true 时删除消息，否则放回队首等待重投
func (b *MemoryBroker) settle(d *Delivery, owner uint64, ack bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unavailable {
		return ErrUnavailable
	}
	q, ok := b.queues[d.Queue]
	if !ok {
		return fmt.Errorf("%w: %s", ErrQueueNotDeclared, d.Queue)
	}
	item, ok := q.inflight[d.ID]
	if !ok || item.owner != owner {
		return fmt.Errorf("%w: %s/%s", ErrUnknownDelivery, d.Queue, d.ID)
	}
	delete(q.inflight, d.ID)
	if !ack {
		q.requeue(item)
	}
	return nil
}

// releaseOwner 断开连接时把该客户端所有未确认的消息放回队首
func (b *MemoryBroker) releaseOwner(owner uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, q := range b.queues {
		for id, item := range q.inflight {
			if item.owner == owner {
				delete(q.inflight, id)
				q.requeue(item)
			}
		}
	}
}

func (q *memoryQueue) requeue(item *memoryItem) {
	item.owner = 0
	item.redelivered = true
	q.ready = append([]*memoryItem{item}, q.ready...)
}

// memoryClient 内存队列客户端
type memoryClient struct {
	broker    *MemoryBroker
	mu        sync.Mutex
	owner     uint64
	connected bool
	closed    bool
}

// NewMemoryClient 创建连接到 broker 的内存客户端
func NewMemoryClient(broker *MemoryBroker) Client {
	return &memoryClient{broker: broker}
}

func (c *memoryClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.broker.mu.Lock()
	down := c.broker.unavailable
	c.broker.mu.Unlock()
	if down {
		return ErrUnavailable
	}
	// 每次连接使用新的 owner，旧连接上的消息无法再被确认
	c.owner = c.broker.owners.Add(1)
	c.connected = true
	return nil
}

func (c *memoryClient) Reconnect(ctx context.Context) error {
	c.disconnect()
	return c.Connect(ctx)
}

func (c *memoryClient) disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		c.broker.releaseOwner(c.owner)
		c.connected = false
	}
}

func (c *memoryClient) session() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}
	if !c.connected {
		return 0, ErrNotConnected
	}
	return c.owner, nil
}

func (c *memoryClient) Declare(ctx context.Context, queues ...string) error {
	if _, err := c.session(); err != nil {
		return err
	}
	for _, name := range queues {
		if err := c.broker.declare(name); err != nil {
			return fmt.Errorf("declare %s: %w", name, err)
		}
	}
	return nil
}

func (c *memoryClient) TryTake(ctx context.Context, queue string) (*Delivery, error) {
	owner, err := c.session()
	if err != nil {
		return nil, err
	}
	return c.broker.take(queue, owner)
}

func (c *memoryClient) Publish(ctx context.Context, queue string, body []byte) error {
	if _, err := c.session(); err != nil {
		return err
	}
	return c.broker.publish(queue, body)
}

func (c *memoryClient) Ack(ctx context.Context, d *Delivery) error {
	owner, err := c.session()
	if err != nil {
		return err
	}
	return c.broker.settle(d, owner, true)
}

func (c *memoryClient) Nak(ctx context.Context, d *Delivery) error {
	owner, err := c.session()
	if err != nil {
		return err
	}
	return c.broker.settle(d, owner, false)
}

func (c *memoryClient) Close() error {
	c.disconnect()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
