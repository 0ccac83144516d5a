package storage

import (
	"context"
	"sync"
)

// MemoryKV はメモリ上に値を保持するKV実装。
// テストおよび永続化なしで起動する場合に使用する。
type MemoryKV struct {
	mu    sync.RWMutex
	slots map[string]string
}

// NewMemoryKV はMemoryKVを生成する。
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{slots: make(map[string]string)}
}

// Get は指定キーの値を取得する。キーが存在しない場合はok=falseを返す。
func (m *MemoryKV) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.slots[key]
	return v, ok, nil
}

// Set は指定キーに値を書き込む。
func (m *MemoryKV) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[key] = value
	return nil
}

// Remove は指定キーを削除する。
func (m *MemoryKV) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, key)
	return nil
}

// compile-time interface check
var _ KV = (*MemoryKV)(nil)
