package cache

import (
	"context"
	"sync"
)

// Memory 进程内缓存，单进程演示和测试使用
type Memory struct {
	mutex  sync.RWMutex
	items  map[string][]byte
	writes int
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string][]byte)}
}

func (*Memory) String() string {
	return "memory"
}

func (m *Memory) SetLastValue(_ context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.items[key] = v
	m.writes++
	return nil
}

// Get 读取最近一次写入的值
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	v, ok := m.items[key]
	return v, ok
}

// Writes 累计写入次数
func (m *Memory) Writes() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.writes
}

func (m *Memory) Close() error {
	return nil
}
