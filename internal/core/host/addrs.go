package host

import (
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// 观测地址参数
const (
	// DefaultObservedAddrThreshold 启用观测地址所需的不同观测者数量
	DefaultObservedAddrThreshold = 2

	// DefaultObservedAddrTTL 观测记录有效期
	DefaultObservedAddrTTL = 30 * time.Minute
)

// listenSource 监听地址来源
type listenSource interface {
	ListenAddrs() []types.Multiaddr
}

// AddrsOption 地址管理选项
type AddrsOption func(*addrsManager)

// WithClock 设置时钟（用于测试）
func WithClock(clk clock.Clock) AddrsOption {
	return func(m *addrsManager) { m.clock = clk }
}

// WithObservedAddrThreshold 设置观测地址启用门限
func WithObservedAddrThreshold(n int) AddrsOption {
	return func(m *addrsManager) {
		if n > 0 {
			m.threshold = n
		}
	}
}

// WithInterfaceAddrs 设置网卡地址来源（用于测试）
func WithInterfaceAddrs(f func() ([]net.Addr, error)) AddrsOption {
	return func(m *addrsManager) { m.ifaceAddrs = f }
}

// addrsManager 地址管理器
// 负责管理 Host 的监听地址、外部地址与观测地址
type addrsManager struct {
	source     listenSource
	clock      clock.Clock
	threshold  int
	ttl        time.Duration
	ifaceAddrs func() ([]net.Addr, error)

	mu       sync.RWMutex
	external []types.Multiaddr
	// observed 观测地址 -> 观测者 -> 最后观测时间
	observed map[types.Multiaddr]map[types.PeerID]time.Time
}

func newAddrsManager(source listenSource, opts ...AddrsOption) *addrsManager {
	m := &addrsManager{
		source:     source,
		clock:      clock.New(),
		threshold:  DefaultObservedAddrThreshold,
		ttl:        DefaultObservedAddrTTL,
		ifaceAddrs: net.InterfaceAddrs,
		observed:   make(map[types.Multiaddr]map[types.PeerID]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ListenAddrs 返回监听地址，通配地址展开为同族的网卡地址
func (m *addrsManager) ListenAddrs() []types.Multiaddr {
	raw := m.source.ListenAddrs()

	var ifaces []net.IP
	var out []types.Multiaddr
	for _, addr := range raw {
		if !addr.IsUnspecified() {
			out = append(out, addr)
			continue
		}
		if ifaces == nil {
			ifaces = m.interfaceIPs()
		}
		expanded := expandUnspecified(addr, ifaces)
		if len(expanded) == 0 {
			out = append(out, addr)
			continue
		}
		out = append(out, expanded...)
	}
	return dedupe(out)
}

// interfaceIPs 返回本机网卡 IP
func (m *addrsManager) interfaceIPs() []net.IP {
	addrs, err := m.ifaceAddrs()
	if err != nil {
		log.Debug("获取网卡地址失败", "error", err)
		return []net.IP{}
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok {
			ips = append(ips, ipnet.IP)
		}
	}
	return ips
}

// expandUnspecified 将 /ip4/0.0.0.0/... 替换为每个同族网卡地址
func expandUnspecified(addr types.Multiaddr, ips []net.IP) []types.Multiaddr {
	comps := addr.Components()
	if len(comps) == 0 {
		return nil
	}
	family := comps[0].Protocol
	rest := types.Multiaddr(addr.String()[len(fmt.Sprintf("/%s/%s", family, comps[0].Value)):])

	var out []types.Multiaddr
	for _, ip := range ips {
		isV4 := ip.To4() != nil
		if (family == types.ProtoIP4) != isV4 {
			continue
		}
		if ip.IsLinkLocalUnicast() {
			continue
		}
		var head string
		if isV4 {
			head = "/ip4/" + ip.To4().String()
		} else {
			head = "/ip6/" + ip.String()
		}
		out = append(out, types.Multiaddr(head)+rest)
	}
	return out
}

// Addrs 返回对外通告的地址：监听地址、外部地址与已启用的观测地址
func (m *addrsManager) Addrs() []types.Multiaddr {
	out := m.ListenAddrs()

	m.mu.RLock()
	out = append(out, m.external...)
	m.mu.RUnlock()

	out = append(out, m.ObservedAddrs()...)
	return dedupe(out)
}

// AddExternal 登记外部地址，返回是否为新地址
func (m *addrsManager) AddExternal(addr types.Multiaddr) bool {
	addr = addr.WithoutPeerID()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.external {
		if a == addr {
			return false
		}
	}
	m.external = append(m.external, addr)
	return true
}

// RecordObserved 记录观测地址
func (m *addrsManager) RecordObserved(observed types.Multiaddr, observer types.PeerID) {
	if observed.IsEmpty() || observer.IsEmpty() || observed.IsRelay() {
		return
	}
	observed = observed.WithoutPeerID()

	m.mu.Lock()
	defer m.mu.Unlock()

	obs, ok := m.observed[observed]
	if !ok {
		obs = make(map[types.PeerID]time.Time)
		m.observed[observed] = obs
	}
	obs[observer] = m.clock.Now()
}

// ObservedAddrs 返回被足够多不同节点观测到的地址
//
// 过期的观测记录在此处清理。
func (m *addrsManager) ObservedAddrs() []types.Multiaddr {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	var out []types.Multiaddr
	for addr, obs := range m.observed {
		for p, seen := range obs {
			if now.Sub(seen) > m.ttl {
				delete(obs, p)
			}
		}
		if len(obs) == 0 {
			delete(m.observed, addr)
			continue
		}
		if len(obs) >= m.threshold {
			out = append(out, addr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// dedupe 保序去重
func dedupe(addrs []types.Multiaddr) []types.Multiaddr {
	seen := make(map[types.Multiaddr]struct{}, len(addrs))
	out := addrs[:0]
	for _, a := range addrs {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
