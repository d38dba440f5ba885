// =============================================================================
// 👀 配置文件监听器
// =============================================================================
// 轮询式文件变更监听，用于凭据轮换：配置或密钥文件被重写后触发去抖的
// 重载回调。纯 mtime 轮询，不依赖平台 fsnotify 支持。
// =============================================================================
package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FileOp 文件变更类型
type FileOp int

const (
	// FileOpCreate 文件新建
	FileOpCreate FileOp = iota
	// FileOpWrite 文件被修改
	FileOpWrite
	// FileOpRemove 文件被删除
	FileOpRemove
)

// String 返回变更类型的可读名
func (op FileOp) String() string {
	switch op {
	case FileOpCreate:
		return "CREATE"
	case FileOpWrite:
		return "WRITE"
	case FileOpRemove:
		return "REMOVE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent 一次文件变更事件
type FileEvent struct {
	// Path 变更的文件路径
	Path string `json:"path"`
	// Op 变更类型
	Op FileOp `json:"op"`
	// Timestamp 事件检测时间
	Timestamp time.Time `json:"timestamp"`
}

// FileWatcher 轮询监听一组配置文件
type FileWatcher struct {
	mu sync.RWMutex

	// 配置
	paths         []string
	pollInterval  time.Duration
	debounceDelay time.Duration

	// 状态
	running      bool
	stopChan     chan struct{}
	eventChan    chan FileEvent
	lastModTimes map[string]time.Time

	// 回调
	callbacks []func(event FileEvent)

	logger *zap.Logger
}

// WatcherOption 配置 FileWatcher
type WatcherOption func(*FileWatcher)

// WithPollInterval 设置轮询间隔
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *FileWatcher) { w.pollInterval = d }
}

// WithDebounceDelay 设置回调去抖延迟
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *FileWatcher) { w.debounceDelay = d }
}

// WithWatcherLogger 设置日志器
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *FileWatcher) { w.logger = logger }
}

// NewFileWatcher 创建文件监听器
func NewFileWatcher(paths []string, opts ...WatcherOption) (*FileWatcher, error) {
	w := &FileWatcher{
		paths:         paths,
		pollInterval:  time.Second,
		debounceDelay: 100 * time.Millisecond,
		stopChan:      make(chan struct{}),
		eventChan:     make(chan FileEvent, 100),
		lastModTimes:  make(map[string]time.Time),
		logger:        zap.NewNop(),
	}

	for _, opt := range opts {
		opt(w)
	}

	// 路径允许尚不存在：凭据文件可能稍后才挂载
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				w.logger.Warn("watched file does not exist yet",
					zap.String("path", path))
			} else {
				return nil, fmt.Errorf("stat %s: %w", path, err)
			}
		}
	}

	return w, nil
}

// OnChange 注册文件变更回调
func (w *FileWatcher) OnChange(callback func(FileEvent)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start 启动轮询与事件分发
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true

	for _, path := range w.paths {
		if info, err := os.Stat(path); err == nil {
			w.lastModTimes[path] = info.ModTime()
		}
	}
	w.mu.Unlock()

	go w.pollLoop(ctx)
	go w.dispatchLoop(ctx)

	w.logger.Info("file watcher started",
		zap.Strings("paths", w.paths),
		zap.Duration("poll_interval", w.pollInterval),
		zap.Duration("debounce_delay", w.debounceDelay))

	return nil
}

// Stop 停止监听，可重复调用
func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	close(w.stopChan)
	w.running = false

	w.logger.Info("file watcher stopped")
	return nil
}

// IsRunning 返回监听器是否在运行
func (w *FileWatcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Paths 返回监听的路径副本
func (w *FileWatcher) Paths() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	paths := make([]string, len(w.paths))
	copy(paths, w.paths)
	return paths
}

func (w *FileWatcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.checkFiles()
		}
	}
}

// checkFiles 对比 mtime 产出变更事件
func (w *FileWatcher) checkFiles() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, path := range w.paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				if _, existed := w.lastModTimes[path]; existed {
					delete(w.lastModTimes, path)
					w.emit(FileEvent{Path: path, Op: FileOpRemove, Timestamp: time.Now()})
				}
			}
			continue
		}

		lastMod, existed := w.lastModTimes[path]
		switch {
		case !existed:
			w.lastModTimes[path] = info.ModTime()
			w.emit(FileEvent{Path: path, Op: FileOpCreate, Timestamp: time.Now()})
		case info.ModTime().After(lastMod):
			w.lastModTimes[path] = info.ModTime()
			w.emit(FileEvent{Path: path, Op: FileOpWrite, Timestamp: time.Now()})
		}
	}
}

// emit 非阻塞投递，事件通道满则丢弃（下一轮轮询仍会追平）
func (w *FileWatcher) emit(evt FileEvent) {
	select {
	case w.eventChan <- evt:
	default:
		w.logger.Warn("watcher event dropped", zap.String("path", evt.Path))
	}
}

// dispatchLoop 去抖后把事件分发给回调
func (w *FileWatcher) dispatchLoop(ctx context.Context) {
	pendingEvents := make(map[string]FileEvent)
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event := <-w.eventChan:
			// 同一路径只保留最后一次事件
			pendingEvents[event.Path] = event

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			events := pendingEvents
			debounceTimer = time.AfterFunc(w.debounceDelay, func() {
				w.mu.RLock()
				callbacks := make([]func(FileEvent), len(w.callbacks))
				copy(callbacks, w.callbacks)
				w.mu.RUnlock()

				for path, evt := range events {
					w.logger.Debug("dispatching file event",
						zap.String("path", path),
						zap.String("op", evt.Op.String()))
					for _, cb := range callbacks {
						cb(evt)
					}
				}
			})
			pendingEvents = make(map[string]FileEvent)
		}
	}
}
