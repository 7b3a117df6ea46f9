package types

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ============================================================================
//                              Multiaddr - 统一地址类型
// ============================================================================

// Multiaddr 统一地址类型（值对象）
//
// 内部唯一的地址表示形式，String() 始终返回 canonical multiaddr（以 "/" 开头）。
//
// 格式示例：
//   - /ip4/0.0.0.0/tcp/4011
//   - /ip4/0.0.0.0/udp/4011/quic-v1
//   - /dnsaddr/bootstrap.libp2p.io
//   - /ip4/1.2.3.4/tcp/4001/p2p/QmNodeID
//   - /ip4/1.2.3.4/udp/4001/quic-v1/p2p/QmRelay/p2p-circuit/p2p/QmDest
type Multiaddr string

// 协议名常量
const (
	ProtoIP4        = "ip4"
	ProtoIP6        = "ip6"
	ProtoDNS        = "dns"
	ProtoDNS4       = "dns4"
	ProtoDNS6       = "dns6"
	ProtoDNSAddr    = "dnsaddr"
	ProtoTCP        = "tcp"
	ProtoUDP        = "udp"
	ProtoQUICV1     = "quic-v1"
	ProtoP2P        = "p2p"
	ProtoP2PCircuit = "p2p-circuit"
)

// valueless 不带值的协议组件
var valueless = map[string]bool{
	ProtoQUICV1:     true,
	ProtoP2PCircuit: true,
}

// known 已知的协议组件
var known = map[string]bool{
	ProtoIP4: true, ProtoIP6: true,
	ProtoDNS: true, ProtoDNS4: true, ProtoDNS6: true, ProtoDNSAddr: true,
	ProtoTCP: true, ProtoUDP: true,
	ProtoQUICV1: true,
	ProtoP2P:    true, ProtoP2PCircuit: true,
}

// Component multiaddr 组件
type Component struct {
	Protocol string
	Value    string
}

// ============================================================================
//                              解析/构建
// ============================================================================

// ParseMultiaddr 解析并校验 multiaddr
//
// 示例：
//   - "/ip4/1.2.3.4/udp/4001/quic-v1" → Multiaddr
//   - "/dnsaddr/bootstrap.libp2p.io" → Multiaddr
//   - "1.2.3.4:4001" → error（不是 multiaddr 格式）
func ParseMultiaddr(s string) (Multiaddr, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyMultiaddr
	}
	if !strings.HasPrefix(s, "/") {
		return "", ErrNotMultiaddrFormat
	}

	m := Multiaddr(strings.TrimRight(s, "/"))
	if _, err := m.components(); err != nil {
		return "", err
	}
	return m, nil
}

// MustParseMultiaddr 解析 multiaddr，失败时 panic
//
// 仅用于常量初始化或测试代码，生产代码应使用 ParseMultiaddr。
func MustParseMultiaddr(s string) Multiaddr {
	ma, err := ParseMultiaddr(s)
	if err != nil {
		panic(fmt.Sprintf("MustParseMultiaddr(%q): %v", s, err))
	}
	return ma
}

// FromTCPAddr 从 net.TCPAddr 构建 multiaddr
func FromTCPAddr(addr *net.TCPAddr) Multiaddr {
	return Multiaddr(fmt.Sprintf("/%s/%s/tcp/%d", ipProto(addr.IP), addr.IP.String(), addr.Port))
}

// FromUDPAddr 从 net.UDPAddr 构建 QUIC multiaddr
func FromUDPAddr(addr *net.UDPAddr) Multiaddr {
	return Multiaddr(fmt.Sprintf("/%s/%s/udp/%d/quic-v1", ipProto(addr.IP), addr.IP.String(), addr.Port))
}

// FromNetAddr 从 net.Addr 构建 multiaddr
func FromNetAddr(addr net.Addr) (Multiaddr, error) {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return FromTCPAddr(a), nil
	case *net.UDPAddr:
		return FromUDPAddr(a), nil
	default:
		return "", fmt.Errorf("%w: unsupported net.Addr %T", ErrInvalidMultiaddr, addr)
	}
}

func ipProto(ip net.IP) string {
	if ip.To4() != nil {
		return ProtoIP4
	}
	return ProtoIP6
}

// ============================================================================
//                              访问方法
// ============================================================================

// String 返回 canonical multiaddr 字符串
func (m Multiaddr) String() string {
	return string(m)
}

// IsEmpty 是否为空
func (m Multiaddr) IsEmpty() bool {
	return m == ""
}

// Components 返回地址的全部组件
//
// 非法地址返回 nil。
func (m Multiaddr) Components() []Component {
	cs, err := m.components()
	if err != nil {
		return nil
	}
	return cs
}

// Protocols 返回协议名序列
func (m Multiaddr) Protocols() []string {
	cs := m.Components()
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Protocol
	}
	return out
}

// ValueForProtocol 返回第一个匹配协议的值
func (m Multiaddr) ValueForProtocol(proto string) (string, bool) {
	for _, c := range m.Components() {
		if c.Protocol == proto {
			return c.Value, true
		}
	}
	return "", false
}

// PeerID 返回最后一个 /p2p/<id> 组件（如果有）
func (m Multiaddr) PeerID() (PeerID, bool) {
	cs := m.Components()
	for i := len(cs) - 1; i >= 0; i-- {
		if cs[i].Protocol == ProtoP2P {
			return PeerID(cs[i].Value), true
		}
	}
	return EmptyPeerID, false
}

// WithPeerID 追加 /p2p/<id>（已存在则替换）
func (m Multiaddr) WithPeerID(id PeerID) Multiaddr {
	return Multiaddr(string(m.WithoutPeerID()) + "/p2p/" + id.String())
}

// WithoutPeerID 去掉末尾的 /p2p/<id> 组件
func (m Multiaddr) WithoutPeerID() Multiaddr {
	s := string(m)
	idx := strings.LastIndex(s, "/p2p/")
	if idx < 0 {
		return m
	}
	// 仅当 /p2p/<id> 是最后一个组件时去除
	if strings.Contains(s[idx+len("/p2p/"):], "/") {
		return m
	}
	return Multiaddr(s[:idx])
}

// IsRelay 是否是中继地址
func (m Multiaddr) IsRelay() bool {
	return strings.Contains(string(m), "/"+ProtoP2PCircuit)
}

// IsDNSAddr 是否是 /dnsaddr/ 地址
func (m Multiaddr) IsDNSAddr() bool {
	return strings.HasPrefix(string(m), "/"+ProtoDNSAddr+"/")
}

// IsQUIC 是否是 QUIC 地址
func (m Multiaddr) IsQUIC() bool {
	for _, p := range m.Protocols() {
		if p == ProtoQUICV1 {
			return true
		}
	}
	return false
}

// IP 返回 IP 地址（如果可用）
func (m Multiaddr) IP() net.IP {
	if v, ok := m.ValueForProtocol(ProtoIP4); ok {
		return net.ParseIP(v)
	}
	if v, ok := m.ValueForProtocol(ProtoIP6); ok {
		return net.ParseIP(v)
	}
	return nil
}

// IsPublic 是否是公网地址
func (m Multiaddr) IsPublic() bool {
	ip := m.IP()
	if ip == nil {
		return false
	}
	return !ip.IsLoopback() &&
		!ip.IsPrivate() &&
		!ip.IsUnspecified() &&
		!ip.IsLinkLocalUnicast() &&
		!ip.IsLinkLocalMulticast()
}

// IsUnspecified 是否是通配地址（0.0.0.0 / ::）
func (m Multiaddr) IsUnspecified() bool {
	ip := m.IP()
	return ip != nil && ip.IsUnspecified()
}

// HostPort 返回拨号用的 host:port 与网络类型（"tcp" 或 "udp"）
//
// 仅支持 ip4/ip6/dns/dns4/dns6 + tcp/udp 的地址，dnsaddr 需先解析。
func (m Multiaddr) HostPort() (network, hostport string, err error) {
	cs, err := m.components()
	if err != nil {
		return "", "", err
	}
	if len(cs) < 2 {
		return "", "", fmt.Errorf("%w: %s", ErrNotDialable, m)
	}

	host := cs[0]
	switch host.Protocol {
	case ProtoIP4, ProtoIP6, ProtoDNS, ProtoDNS4, ProtoDNS6:
	default:
		return "", "", fmt.Errorf("%w: %s", ErrNotDialable, m)
	}

	port := cs[1]
	switch port.Protocol {
	case ProtoTCP:
		network = "tcp"
	case ProtoUDP:
		if len(cs) < 3 || cs[2].Protocol != ProtoQUICV1 {
			return "", "", fmt.Errorf("%w: udp without quic-v1: %s", ErrNotDialable, m)
		}
		network = "udp"
	default:
		return "", "", fmt.Errorf("%w: %s", ErrNotDialable, m)
	}

	if host.Protocol == ProtoIP6 || host.Protocol == ProtoDNS6 {
		switch network {
		case "tcp":
			network = "tcp6"
		case "udp":
			network = "udp6"
		}
	} else if host.Protocol == ProtoIP4 || host.Protocol == ProtoDNS4 {
		network += "4"
	}

	return network, net.JoinHostPort(host.Value, port.Value), nil
}

// Equal 比较两个 Multiaddr 是否相等
func (m Multiaddr) Equal(other Multiaddr) bool {
	return m == other
}

// ============================================================================
//                              内部解析
// ============================================================================

func (m Multiaddr) components() ([]Component, error) {
	s := string(m)
	if s == "" {
		return nil, ErrEmptyMultiaddr
	}
	if !strings.HasPrefix(s, "/") {
		return nil, ErrNotMultiaddrFormat
	}

	parts := strings.Split(s[1:], "/")
	var out []Component
	for i := 0; i < len(parts); i++ {
		proto := parts[i]
		if !known[proto] {
			return nil, fmt.Errorf("%w: unknown protocol %q", ErrInvalidMultiaddr, proto)
		}
		if valueless[proto] {
			out = append(out, Component{Protocol: proto})
			continue
		}
		if i+1 >= len(parts) || parts[i+1] == "" {
			return nil, fmt.Errorf("%w: missing value for %q", ErrInvalidMultiaddr, proto)
		}
		value := parts[i+1]
		i++
		if err := validateComponent(proto, value); err != nil {
			return nil, err
		}
		out = append(out, Component{Protocol: proto, Value: value})
	}

	if len(out) == 0 {
		return nil, ErrInvalidMultiaddr
	}
	return out, nil
}

func validateComponent(proto, value string) error {
	switch proto {
	case ProtoIP4:
		ip := net.ParseIP(value)
		if ip == nil || ip.To4() == nil {
			return fmt.Errorf("%w: bad ip4 %q", ErrInvalidMultiaddr, value)
		}
	case ProtoIP6:
		ip := net.ParseIP(value)
		if ip == nil || ip.To4() != nil {
			return fmt.Errorf("%w: bad ip6 %q", ErrInvalidMultiaddr, value)
		}
	case ProtoTCP, ProtoUDP:
		port, err := strconv.Atoi(value)
		if err != nil || port < 0 || port > 65535 {
			return fmt.Errorf("%w: bad port %q", ErrInvalidMultiaddr, value)
		}
	case ProtoP2P:
		if _, err := ParsePeerID(value); err != nil {
			return fmt.Errorf("%w: bad p2p component: %v", ErrInvalidMultiaddr, err)
		}
	}
	return nil
}

// ============================================================================
//                              批量转换
// ============================================================================

// MultiaddrsToStrings 将 Multiaddr 列表转换为字符串列表
func MultiaddrsToStrings(mas []Multiaddr) []string {
	out := make([]string, len(mas))
	for i, ma := range mas {
		out[i] = ma.String()
	}
	return out
}

// ParseMultiaddrs 严格解析字符串列表，任一失败即返回错误
func ParseMultiaddrs(strs []string) ([]Multiaddr, error) {
	out := make([]Multiaddr, 0, len(strs))
	for _, s := range strs {
		ma, err := ParseMultiaddr(s)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", s, err)
		}
		out = append(out, ma)
	}
	return out, nil
}
