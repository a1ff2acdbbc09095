package server

import (
	"context"
	"errors"
	"net"
	"time"
)

// ListenAndServe 监听 TCP 地址并阻塞接收连接
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	Log.Infow("tcp listening", "addr", ln.Addr().String())
	return s.Serve(ctx, ln)
}

// Serve 接收循环：每条连接一个读协程；ctx 取消后关闭监听并返回 nil
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				Log.Warnw("accept timeout", "err", err)
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return err
		}
		go s.HandleConn(conn, conn.RemoteAddr().String())
	}
}
