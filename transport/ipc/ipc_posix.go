//go:build !windows

// Package ipc implements a transport over Unix domain sockets, registered
// under the "ipc" URI scheme. Unlike transport/ws's data frames or the
// Windows variant's message-mode pipes, a Unix domain socket is a plain
// byte stream with no message boundaries, so each frame is prefixed with
// a big-endian length header before the body — the same framing the
// teacher's connipc_posix.go puts on the wire.
package ipc

import (
	"encoding/binary"
	"io"
	"net"
	"sync"

	zx "github.com/pjkundert/zeromq3-0"
	zerr "github.com/pjkundert/zeromq3-0/errors"
)

const maxFrame = 1 << 20

func init() {
	zx.RegisterTransport(ipcTransport{})
}

type ipcTransport struct{}

func (ipcTransport) Scheme() string  { return "ipc" }
func (ipcTransport) Multicast() bool { return false }

func (ipcTransport) Dial(addr string) (zx.Pipe, error) {
	conn, err := net.Dial("unix", addr)
	if err != nil {
		return nil, err
	}
	return bridge(conn), nil
}

func (ipcTransport) Listen(addr string) (zx.TransportListener, error) {
	ln, err := net.Listen("unix", addr)
	if err != nil {
		return nil, err
	}
	return &ipcListener{addr: addr, listener: ln}, nil
}

func writeFrame(conn net.Conn, body []byte) error {
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(body)))
	if _, err := conn.Write(header); err != nil {
		return err
	}
	_, err := conn.Write(body)
	return err
}

func readFrame(conn net.Conn) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return nil, err
	}
	sz := binary.BigEndian.Uint32(header[:])
	if sz > maxFrame {
		return nil, zerr.ErrTooLong
	}
	body := make([]byte, sz)
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, err
	}
	return body, nil
}

func bridge(conn net.Conn) zx.Pipe {
	local, feeder := zx.NewPipePair(0, 0, false, false)

	go func() {
		for {
			m, err := feeder.Recv()
			if err != nil {
				conn.Close()
				return
			}
			if err := writeFrame(conn, m.Body); err != nil {
				feeder.Terminate(0)
				return
			}
		}
	}()
	go func() {
		for {
			body, err := readFrame(conn)
			if err != nil {
				feeder.Terminate(0)
				return
			}
			m := zx.NewMessage(len(body))
			m.Body = append(m.Body, body...)
			if err := feeder.Send(m); err != nil {
				continue
			}
		}
	}()
	return local
}

type ipcListener struct {
	addr string

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

func (l *ipcListener) Accept() (zx.Pipe, error) {
	conn, err := l.listener.Accept()
	if err != nil {
		return nil, err
	}
	return bridge(conn), nil
}

func (l *ipcListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return zerr.ErrClosed
	}
	l.closed = true
	return l.listener.Close()
}

func (l *ipcListener) Addr() string { return l.addr }
