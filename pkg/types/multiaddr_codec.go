package types

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/multiformats/go-varint"
)

// ============================================================================
//                              二进制编码
// ============================================================================

// 协议代码（multicodec 表）
const (
	codeIP4        = 0x04
	codeTCP        = 0x06
	codeIP6        = 0x29
	codeDNS        = 0x35
	codeDNS4       = 0x36
	codeDNS6       = 0x37
	codeDNSAddr    = 0x38
	codeUDP        = 0x0111
	codeP2PCircuit = 0x0122
	codeP2P        = 0x01a5
	codeQUICV1     = 0x01cc
)

// varSize 值带 varint 长度前缀
const varSize = -1

// codecSpec 协议的二进制布局
type codecSpec struct {
	code uint64
	size int // 字节数；0 无值；varSize 变长
}

var codecByName = map[string]codecSpec{
	ProtoIP4:        {codeIP4, 4},
	ProtoTCP:        {codeTCP, 2},
	ProtoIP6:        {codeIP6, 16},
	ProtoDNS:        {codeDNS, varSize},
	ProtoDNS4:       {codeDNS4, varSize},
	ProtoDNS6:       {codeDNS6, varSize},
	ProtoDNSAddr:    {codeDNSAddr, varSize},
	ProtoUDP:        {codeUDP, 2},
	ProtoP2PCircuit: {codeP2PCircuit, 0},
	ProtoP2P:        {codeP2P, varSize},
	ProtoQUICV1:     {codeQUICV1, 0},
}

var nameByCode = func() map[uint64]string {
	m := make(map[uint64]string, len(codecByName))
	for name, spec := range codecByName {
		m[spec.code] = name
	}
	return m
}()

// Bytes 返回 multiaddr 的二进制形式
func (m Multiaddr) Bytes() ([]byte, error) {
	cs, err := m.components()
	if err != nil {
		return nil, err
	}

	var buf []byte
	for _, c := range cs {
		spec := codecByName[c.Protocol]
		buf = append(buf, varint.ToUvarint(spec.code)...)
		if spec.size == 0 {
			continue
		}
		val, err := componentToBytes(c)
		if err != nil {
			return nil, err
		}
		if spec.size == varSize {
			buf = append(buf, varint.ToUvarint(uint64(len(val)))...)
		}
		buf = append(buf, val...)
	}
	return buf, nil
}

// MultiaddrFromBytes 解码二进制 multiaddr
//
// 含未支持协议（ws、webtransport 等）的地址返回 ErrInvalidMultiaddr。
func MultiaddrFromBytes(b []byte) (Multiaddr, error) {
	if len(b) == 0 {
		return "", ErrEmptyMultiaddr
	}

	var sb strings.Builder
	for len(b) > 0 {
		code, n, err := varint.FromUvarint(b)
		if err != nil {
			return "", fmt.Errorf("%w: protocol code: %v", ErrInvalidMultiaddr, err)
		}
		b = b[n:]

		name, ok := nameByCode[code]
		if !ok {
			return "", fmt.Errorf("%w: unsupported protocol code 0x%x", ErrInvalidMultiaddr, code)
		}
		sb.WriteString("/")
		sb.WriteString(name)

		spec := codecByName[name]
		if spec.size == 0 {
			continue
		}

		size := spec.size
		if size == varSize {
			l, n, err := varint.FromUvarint(b)
			if err != nil {
				return "", fmt.Errorf("%w: %s length: %v", ErrInvalidMultiaddr, name, err)
			}
			b = b[n:]
			size = int(l)
		}
		if size < 0 || len(b) < size {
			return "", fmt.Errorf("%w: %s truncated", ErrInvalidMultiaddr, name)
		}

		val, err := bytesToComponent(name, b[:size])
		if err != nil {
			return "", err
		}
		b = b[size:]
		sb.WriteString("/")
		sb.WriteString(val)
	}

	return ParseMultiaddr(sb.String())
}

// MultiaddrsFromBytes 解码地址列表，跳过无法解码的条目
func MultiaddrsFromBytes(bs [][]byte) []Multiaddr {
	out := make([]Multiaddr, 0, len(bs))
	for _, b := range bs {
		if ma, err := MultiaddrFromBytes(b); err == nil {
			out = append(out, ma)
		}
	}
	return out
}

// MultiaddrsToBytes 编码地址列表，跳过无法编码的条目
func MultiaddrsToBytes(mas []Multiaddr) [][]byte {
	out := make([][]byte, 0, len(mas))
	for _, ma := range mas {
		if b, err := ma.Bytes(); err == nil {
			out = append(out, b)
		}
	}
	return out
}

func componentToBytes(c Component) ([]byte, error) {
	switch c.Protocol {
	case ProtoIP4:
		return net.ParseIP(c.Value).To4(), nil
	case ProtoIP6:
		return net.ParseIP(c.Value).To16(), nil
	case ProtoTCP, ProtoUDP:
		port, _ := strconv.Atoi(c.Value)
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(port)) // #nosec G115 -- 解析时已校验范围
		return b, nil
	case ProtoP2P:
		raw := PeerID(c.Value).Bytes()
		if raw == nil {
			return nil, fmt.Errorf("%w: bad p2p component", ErrInvalidMultiaddr)
		}
		return raw, nil
	default:
		return []byte(c.Value), nil
	}
}

func bytesToComponent(name string, b []byte) (string, error) {
	switch name {
	case ProtoIP4, ProtoIP6:
		return net.IP(b).String(), nil
	case ProtoTCP, ProtoUDP:
		return strconv.Itoa(int(binary.BigEndian.Uint16(b))), nil
	case ProtoP2P:
		id, err := PeerIDFromBytes(b)
		if err != nil {
			return "", fmt.Errorf("%w: p2p component: %v", ErrInvalidMultiaddr, err)
		}
		return id.String(), nil
	default:
		if len(b) == 0 || strings.Contains(string(b), "/") {
			return "", fmt.Errorf("%w: bad %s name", ErrInvalidMultiaddr, name)
		}
		return string(b), nil
	}
}
