// =============================================================================
// 📡 调用生命周期事件总线
// =============================================================================
// Runner 在每次调用的起止发布事件，WebSocket 端点与嵌入方可订阅。
// 发布永不阻塞调用路径：订阅者缓冲打满时事件被丢弃并计数。
// =============================================================================
package skill

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/skillflow/types"
)

// EventType 事件类型。
type EventType string

const (
	EventStarted   EventType = "invocation.started"
	EventSucceeded EventType = "invocation.succeeded"
	EventFailed    EventType = "invocation.failed"
)

// Event 一条调用生命周期事件。
type Event struct {
	Type         EventType       `json:"type"`
	Skill        string          `json:"skill"`
	Action       string          `json:"action"`
	InvocationID string          `json:"invocation_id"`
	Code         types.ErrorCode `json:"code,omitempty"`
	DurationMS   int64           `json:"duration_ms,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Bus 进程内事件总线。
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	nextID  int
	dropped atomic.Uint64
	closed  bool
	logger  *zap.Logger
}

// NewBus 创建事件总线。
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		subs:   make(map[int]chan Event),
		logger: logger.With(zap.String("component", "event_bus")),
	}
}

// Subscribe 注册订阅者，返回事件通道与取消函数。buffer <=0 时取 16。
// 取消函数幂等，调用后通道关闭。
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Publish 向所有订阅者广播事件，不阻塞。慢订阅者的事件被丢弃。
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
			b.logger.Debug("event dropped for slow subscriber",
				zap.String("skill", e.Skill),
				zap.String("type", string(e.Type)))
		}
	}
}

// Dropped 返回因订阅者缓冲打满而被丢弃的事件总数。
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close 关闭总线并断开所有订阅者。
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
