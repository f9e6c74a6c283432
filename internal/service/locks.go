package service

import "sync"

// AppLocks 按应用名串行化生命周期操作：
// 同一应用的 Start/Stop/Restart/Deploy/Redeploy/Rollback 全序执行，
// 不同应用互不影响。
type AppLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func NewAppLocks() *AppLocks {
	return &AppLocks{m: make(map[string]*sync.Mutex)}
}

// lock 获取应用锁，返回解锁函数。
func (l *AppLocks) lock(name string) func() {
	l.mu.Lock()
	am, ok := l.m[name]
	if !ok {
		am = &sync.Mutex{}
		l.m[name] = am
	}
	l.mu.Unlock()

	am.Lock()
	return am.Unlock
}
