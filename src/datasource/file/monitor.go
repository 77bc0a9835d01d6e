// monitor.go
package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileMonitor 监听输入文件，文件被写入或替换后回调
type FileMonitor struct {
	watcher *fsnotify.Watcher
	targets map[string]struct{} // 关注的文件，绝对路径
	lastMod map[string]time.Time
	mu      sync.Mutex
}

// NewFileMonitor 监听给定文件所在的目录；只有这些文件的变化才会触发回调
func NewFileMonitor(files ...string) (*FileMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	m := &FileMonitor{
		watcher: watcher,
		targets: make(map[string]struct{}, len(files)),
		lastMod: make(map[string]time.Time, len(files)),
	}

	dirs := make(map[string]struct{})
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			watcher.Close()
			return nil, err
		}
		m.targets[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, err
		}
	}
	return m, nil
}

// Watch 阻塞直到 ctx 结束或 watcher 出错；handler 在调用方 goroutine 中串行执行
func (m *FileMonitor) Watch(ctx context.Context, handler func(string)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || !m.changed(name) {
				continue
			}
			handler(name)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// changed 同一修改时间只触发一次
func (m *FileMonitor) changed(name string) bool {
	if _, ok := m.targets[name]; !ok {
		return false
	}
	info, err := os.Stat(name)
	if err != nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !info.ModTime().After(m.lastMod[name]) {
		return false
	}
	m.lastMod[name] = info.ModTime()
	return true
}

// Close 停止监听
func (m *FileMonitor) Close() error {
	return m.watcher.Close()
}
