package blob

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory keeps objects in process. Tests only.
type Memory struct {
	mu   sync.RWMutex
	objs map[string]memObj
}

type memObj struct {
	data []byte
	info Info
}

func NewMemory() *Memory {
	return &Memory{objs: make(map[string]memObj)}
}

func (m *Memory) Driver() Driver { return DriverMemory }

func (m *Memory) Put(_ context.Context, key string, data []byte, contentType string) (Info, error) {
	if _, err := sanitizeKey(key); err != nil {
		return Info{}, err
	}
	cp := append([]byte(nil), data...)
	info := Info{Key: key, Size: int64(len(cp)), ContentType: contentType, LastModified: time.Now().UTC()}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objs[key] = memObj{data: cp, info: info}
	return info, nil
}

func (m *Memory) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(o.data)), nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Info
	for k, o := range m.objs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, o.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
