// =============================================================================
// 📝 调用审计记录器
// =============================================================================
// Recorder 实现 skill.AuditSink：入队永不阻塞调用路径。缓冲打满时
// 丢弃最旧的记录并计数，后台 worker 把记录写入全部已注册的 Sink。
// Close 会排空缓冲后返回。
// =============================================================================
package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/skillflow/skill"
)

const (
	defaultBufferSize = 1024

	// 单条记录写入单个 Sink 的时间上限。
	storeTimeout = 5 * time.Second
)

// Sink 持久化一条审计记录。实现不需要保证幂等，Recorder 不重试。
type Sink interface {
	Store(ctx context.Context, e skill.AuditEntry) error
}

// Recorder 缓冲异步审计管道。
type Recorder struct {
	sinks    []Sink
	ch       chan skill.AuditEntry
	dropped  atomic.Uint64
	dropHook func()
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// Option 配置 Recorder。
type Option func(*Recorder)

// WithBufferSize 覆盖缓冲大小，非正值回落到默认值。
func WithBufferSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.ch = make(chan skill.AuditEntry, n)
		}
	}
}

// WithDropHook 注册丢弃回调，每丢一条调用一次。用于接指标计数。
func WithDropHook(fn func()) Option {
	return func(r *Recorder) { r.dropHook = fn }
}

// NewRecorder 创建记录器并启动后台 worker。sinks 为空时记录器
// 仍可入队，但记录只被消费后丢弃。
func NewRecorder(logger *zap.Logger, sinks []Sink, opts ...Option) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		sinks:  sinks,
		ch:     make(chan skill.AuditEntry, defaultBufferSize),
		logger: logger.With(zap.String("component", "audit_recorder")),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.drain()
	return r
}

// Record 入队一条审计记录，永不阻塞。缓冲打满时先丢最旧的一条
// 腾位，仍然塞不进（并发竞争）则丢弃当前记录。关闭后为 no-op。
func (r *Recorder) Record(e skill.AuditEntry) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return
	}

	select {
	case r.ch <- e:
		return
	default:
	}

	// 缓冲已满：挤掉最旧的一条
	select {
	case <-r.ch:
		r.markDropped(1)
	default:
	}

	select {
	case r.ch <- e:
	default:
		r.markDropped(1)
	}
}

// Dropped 返回因缓冲打满而被丢弃的记录总数。
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Close 停止接收新记录，排空缓冲并等待 worker 退出。幂等。
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.ch)
	r.mu.Unlock()

	<-r.done
}

func (r *Recorder) markDropped(n uint64) {
	r.dropped.Add(n)
	if r.dropHook != nil {
		for i := uint64(0); i < n; i++ {
			r.dropHook()
		}
	}
}

func (r *Recorder) drain() {
	defer close(r.done)

	for e := range r.ch {
		for _, s := range r.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			if err := s.Store(ctx, e); err != nil {
				r.logger.Warn("audit sink store failed",
					zap.String("invocation_id", e.InvocationID),
					zap.String("skill", e.Skill),
					zap.Error(err))
			}
			cancel()
		}
	}
}
