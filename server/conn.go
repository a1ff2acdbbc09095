package server

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"skyclimb/protocol"
)

const (
	writeWait   = 5 * time.Second
	readBufSize = 4096
)

var (
	errConnClosed    = errors.New("connection closed")
	errSendQueueFull = errors.New("send queue full")
)

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// ClientConn 一条客户端字节流（TCP 或 WebSocket）的轻量包装。
// 所有写出都经过 send 队列，由唯一的写协程串行落到底层连接
type ClientConn struct {
	rw     io.ReadWriteCloser
	Remote string
	SID    string // 会话 id，仅用于日志关联

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClientConn(rw io.ReadWriteCloser, remote string, queue int) *ClientConn {
	return &ClientConn{
		rw:     rw,
		Remote: remote,
		SID:    uuid.NewString(),
		send:   make(chan []byte, queue),
		done:   make(chan struct{}),
	}
}

// Send 编码消息并入队（非阻塞）
func (c *ClientConn) Send(msg any) error {
	frame, err := protocol.Marshal(msg)
	if err != nil {
		return err
	}
	return c.SendFrame(frame)
}

// SendFrame 将已编码的帧压入队列，满则返回错误由调用方记录
func (c *ClientConn) SendFrame(frame []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return errConnClosed
	default:
		return errSendQueueFull
	}
}

// Close 关闭底层连接并结束写协程，可重复调用
func (c *ClientConn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.rw.Close()
	})
}

// writePump 独立协程，负责从 send 队列写出
func (c *ClientConn) writePump() {
	defer c.Close()
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			if d, ok := c.rw.(writeDeadliner); ok {
				_ = d.SetWriteDeadline(time.Now().Add(writeWait))
			}
			if _, err := c.rw.Write(frame); err != nil {
				Log.Warnw("write failed", "sid", c.SID, "remote", c.Remote, "err", err)
				return
			}
		}
	}
}

// readPump 阻塞读取并切帧，每个完整负载交给 handle。
// 对端正常关闭（EOF）返回 nil；handle 出错则终止读取
func (c *ClientConn) readPump(maxFrame int, handle func(payload []byte) error) error {
	dec := protocol.NewDecoder(maxFrame)
	buf := make([]byte, readBufSize)
	for {
		n, err := c.rw.Read(buf)
		if n > 0 {
			msgs, derr := dec.Write(buf[:n])
			for _, m := range msgs {
				if herr := handle(m); herr != nil {
					return herr
				}
			}
			if derr != nil {
				return derr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
