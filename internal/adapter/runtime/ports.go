package runtime

import (
	"fmt"
	"net"
	"sync"

	"github.com/chiwei-platform/host-engine/internal/domain"
	"github.com/chiwei-platform/host-engine/internal/port"
)

var _ port.PortAllocator = (*Allocator)(nil)

const portCeiling = 65000

// Allocator 从配置下限向上找第一个空闲 TCP 端口。
// bind 探测是最终权威，传入的已用集合只是提示；
// 分配全程串行，两个应用不可能拿到同一个端口。
type Allocator struct {
	floor int
	mu    sync.Mutex
}

func NewAllocator(floor int) *Allocator {
	return &Allocator{floor: floor}
}

func (a *Allocator) Allocate(used map[int]bool) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for p := a.floor; p < portCeiling; p++ {
		if used[p] {
			continue
		}
		ln, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", p))
		if err != nil {
			continue
		}
		ln.Close()
		return p, nil
	}
	return 0, domain.ErrNoFreePort
}
