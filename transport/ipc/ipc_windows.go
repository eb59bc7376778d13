//go:build windows

// Package ipc implements a transport over Windows named pipes, registered
// under the "ipc" URI scheme, using go-winio's message-mode pipes so that
// one Write corresponds to exactly one Read on the far end — the same
// one-message-per-frame contract transport/ws gets from websocket data
// frames. Bridging onto a local zx.Pipe follows the identical
// NewPipePair pump pattern. Grounded on the teacher's
// transport/ipc/ipc_windows.go.
package ipc

import (
	"net"
	"sync"

	winio "github.com/Microsoft/go-winio"

	zx "github.com/pjkundert/zeromq3-0"
	zerr "github.com/pjkundert/zeromq3-0/errors"
)

const pipePrefix = `\\.\pipe\`

const maxFrame = 1 << 20

func init() {
	zx.RegisterTransport(ipcTransport{})
}

type ipcTransport struct{}

func (ipcTransport) Scheme() string  { return "ipc" }
func (ipcTransport) Multicast() bool { return false }

func (ipcTransport) Dial(addr string) (zx.Pipe, error) {
	conn, err := winio.DialPipe(pipePrefix+addr, nil)
	if err != nil {
		return nil, err
	}
	return bridge(conn), nil
}

func (ipcTransport) Listen(addr string) (zx.TransportListener, error) {
	cfg := &winio.PipeConfig{
		InputBufferSize:  4096,
		OutputBufferSize: 4096,
		MessageMode:      true,
	}
	ln, err := winio.ListenPipe(pipePrefix+addr, cfg)
	if err != nil {
		return nil, err
	}
	return &ipcListener{addr: addr, listener: ln}, nil
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
			if _, err := conn.Write(m.Body); err != nil {
				feeder.Terminate(0)
				return
			}
		}
	}()
	go func() {
		buf := make([]byte, maxFrame)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				feeder.Terminate(0)
				return
			}
			m := zx.NewMessage(n)
			m.Body = append(m.Body, buf[:n]...)
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
