// Package wire 提供协议流上的消息帧编解码
//
// 帧格式：unsigned-varint 长度前缀 + 消息体。
// 身份交换、Kademlia、AutoNAT 与中继协议的消息体均为 protobuf wire format，
// 字段布局与 libp2p 的 .proto 定义一致。
package wire

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/multiformats/go-varint"
)

// DefaultMaxMessageSize 单条消息的默认上限
const DefaultMaxMessageSize = 64 * 1024

var (
	// ErrMsgTooLarge 消息超过上限
	ErrMsgTooLarge = errors.New("message too large")
)

// ============================================================================
//                              帧读写
// ============================================================================

// WriteMsg 写入一条长度前缀消息
func WriteMsg(w io.Writer, data []byte) error {
	buf := make([]byte, 0, varint.UvarintSize(uint64(len(data)))+len(data))
	buf = append(buf, varint.ToUvarint(uint64(len(data)))...)
	buf = append(buf, data...)
	_, err := w.Write(buf)
	return err
}

// ReadMsg 读取一条长度前缀消息
//
// max <= 0 时使用 DefaultMaxMessageSize。
func ReadMsg(r io.Reader, max int) ([]byte, error) {
	if max <= 0 {
		max = DefaultMaxMessageSize
	}

	br, ok := r.(io.ByteReader)
	if !ok {
		br = &byteReader{r: r}
	}

	length, err := varint.ReadUvarint(br)
	if err != nil {
		return nil, err
	}
	if length > uint64(max) {
		return nil, fmt.Errorf("%w: %d > %d", ErrMsgTooLarge, length, max)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

// ============================================================================
//                              Protobuf 消息
// ============================================================================

// Marshaler 可编码为 protobuf wire format 的消息
type Marshaler interface {
	MarshalProto() []byte
}

// Unmarshaler 可从 protobuf wire format 解码的消息
type Unmarshaler interface {
	UnmarshalProto(data []byte) error
}

// WriteProto 编码 m 并按帧写出
func WriteProto(w io.Writer, m Marshaler) error {
	return WriteMsg(w, m.MarshalProto())
}

// ReadProto 读取一帧并解码到 m
func ReadProto(r io.Reader, max int, m Unmarshaler) error {
	data, err := ReadMsg(r, max)
	if err != nil {
		return err
	}
	if err := m.UnmarshalProto(data); err != nil {
		return fmt.Errorf("unmarshal message: %w", err)
	}
	return nil
}

// NewReader 返回带缓冲的读取器
//
// 对同一条流多次调用 ReadMsg 时应复用同一个 Reader。
func NewReader(r io.Reader) *bufio.Reader {
	return bufio.NewReader(r)
}

// byteReader 为不支持 io.ByteReader 的流逐字节读取长度前缀，
// 避免缓冲吞掉后续帧的数据。
type byteReader struct {
	r   io.Reader
	buf [1]byte
}

func (b *byteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(b.r, b.buf[:]); err != nil {
		return 0, err
	}
	return b.buf[0], nil
}
