package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize 帧头长度：4 字节大端无符号长度
const HeaderSize = 4

// DefaultMaxFrameSize 单帧负载上限（1MB），超出视为异常连接
const DefaultMaxFrameSize = 1 << 20

var ErrFrameTooLarge = errors.New("protocol: frame too large")

// Encode 为负载加上长度前缀
func Encode(payload []byte) []byte {
	frame := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[HeaderSize:], payload)
	return frame
}

// Feed 将新数据追加到缓冲区，切出所有完整帧；不完整的尾部原样保留
func Feed(buf, data []byte) (msgs [][]byte, rest []byte) {
	buf = append(buf, data...)
	for len(buf) >= HeaderSize {
		n := binary.BigEndian.Uint32(buf)
		if uint64(len(buf)) < HeaderSize+uint64(n) {
			break
		}
		end := HeaderSize + int(n)
		msg := make([]byte, n)
		copy(msg, buf[HeaderSize:end])
		msgs = append(msgs, msg)
		buf = buf[end:]
	}
	return msgs, buf
}

// Decoder 每个连接一个，持有跨读取的残余字节
type Decoder struct {
	buf      []byte
	maxFrame int
}

func NewDecoder(maxFrame int) *Decoder {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}
	return &Decoder{maxFrame: maxFrame}
}

// Write 喂入一次读取的数据，返回本次凑齐的完整消息
func (d *Decoder) Write(data []byte) ([][]byte, error) {
	msgs, rest := Feed(d.buf, data)
	// 压缩残余，避免底层数组无限增长
	d.buf = append(d.buf[:0:0], rest...)
	if len(d.buf) >= HeaderSize {
		if n := binary.BigEndian.Uint32(d.buf); uint64(n) > uint64(d.maxFrame) {
			return msgs, fmt.Errorf("%w: declared %d bytes, limit %d", ErrFrameTooLarge, n, d.maxFrame)
		}
	}
	return msgs, nil
}

// Buffered 当前滞留的不完整字节数
func (d *Decoder) Buffered() int { return len(d.buf) }
