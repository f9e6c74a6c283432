package probe

import (
	"context"
	"sync"
	"time"

	"github.com/chiwei-platform/host-engine/internal/domain"
	"github.com/chiwei-platform/host-engine/internal/port"
	"github.com/chiwei-platform/host-engine/internal/topic"
	"github.com/shirou/gopsutil/v3/process"
)

const samplesKey = "resources"

// Sampler 每 2 秒对所有存活子进程采一次 CPU 和 RSS。
// 进程句柄按 pid 缓存，CPUPercent 才能给出区间增量而不是自启动以来的均值。
type Sampler struct {
	runtime  port.Runtime
	interval time.Duration
	events   *topic.Topic[map[string]domain.ResourceSample]

	mu      sync.RWMutex
	latest  map[string]domain.ResourceSample
	handles map[int32]*process.Process
}

func NewSampler(rt port.Runtime) *Sampler {
	return &Sampler{
		runtime:  rt,
		interval: 2 * time.Second,
		events:   topic.New[map[string]domain.ResourceSample](),
		latest:   make(map[string]domain.ResourceSample),
		handles:  make(map[int32]*process.Process),
	}
}

// Events 暴露采样快照主题。订阅 key 固定为 "resources"。
func (s *Sampler) Events() *topic.Topic[map[string]domain.ResourceSample] { return s.events }

func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

func (s *Sampler) sample() {
	procs := s.runtime.Processes()

	next := make(map[string]domain.ResourceSample, len(procs))
	livePids := make(map[int32]bool, len(procs))

	for name, pid := range procs {
		p := int32(pid)
		livePids[p] = true

		s.mu.Lock()
		h, ok := s.handles[p]
		if !ok {
			var err error
			h, err = process.NewProcess(p)
			if err != nil {
				// 子进程刚好死了，下一轮自然消失
				s.mu.Unlock()
				continue
			}
			s.handles[p] = h
		}
		s.mu.Unlock()

		cpu, err := h.CPUPercent()
		if err != nil {
			continue
		}
		mem, err := h.MemoryInfo()
		if err != nil {
			continue
		}
		next[name] = domain.ResourceSample{
			CPUPercent: cpu,
			MemoryMB:   float64(mem.RSS) / (1 << 20),
		}
	}

	s.mu.Lock()
	for pid := range s.handles {
		if !livePids[pid] {
			delete(s.handles, pid)
		}
	}
	s.latest = next
	s.mu.Unlock()

	s.events.Publish(samplesKey, next)
}

// Snapshot 返回最近一轮采样的副本。
func (s *Sampler) Snapshot() map[string]domain.ResourceSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.ResourceSample, len(s.latest))
	for k, v := range s.latest {
		out[k] = v
	}
	return out
}
