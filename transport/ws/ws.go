// Package ws implements a WebSocket transport, registered under the
// "ws" URI scheme. Each accepted or dialed connection is bridged onto a
// local zx.Pipe via zx.NewPipePair: one goroutine pumps inbound
// websocket frames onto the pipe's queue, another drains outbound
// messages and writes them as binary frames. This keeps the transport
// itself free of any framing/backpressure logic — that already lives in
// pipe.go — and is why the pump is built on NewPipePair rather than a
// bespoke queue. Grounded on the teacher's transport/ws/ws.go.
package ws

import (
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	zx "github.com/pjkundert/zeromq3-0"
	zerr "github.com/pjkundert/zeromq3-0/errors"
)

const subprotocol = "zx.v1"

func init() {
	zx.RegisterTransport(wsTransport{})
}

type wsTransport struct{}

func (wsTransport) Scheme() string  { return "ws" }
func (wsTransport) Multicast() bool { return false }

func (wsTransport) Dial(addr string) (zx.Pipe, error) {
	d := websocket.Dialer{Subprotocols: []string{subprotocol}}
	conn, _, err := d.Dial("ws://"+addr, nil)
	if err != nil {
		return nil, err
	}
	return bridge(conn), nil
}

func (wsTransport) Listen(addr string) (zx.TransportListener, error) {
	l := &wsListener{
		addr:    addr,
		pending: make(chan zx.Pipe, 16),
		closed:  make(chan struct{}),
		up:      websocket.Upgrader{Subprotocols: []string{subprotocol}},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", l.handle)
	l.server = &http.Server{Addr: addr, Handler: mux}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	l.listener = ln
	go l.server.Serve(ln)
	return l, nil
}

// bridge wraps conn in a local Pipe backed by two pump goroutines.
func bridge(conn *websocket.Conn) zx.Pipe {
	local, feeder := zx.NewPipePair(0, 0, false, false)

	go func() {
		for {
			m, err := feeder.Recv()
			if err != nil {
				conn.Close()
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, m.Body); err != nil {
				feeder.Terminate(0)
				return
			}
		}
	}()
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				feeder.Terminate(0)
				return
			}
			m := zx.NewMessage(len(data))
			m.Body = append(m.Body, data...)
			if err := feeder.Send(m); err != nil {
				continue
			}
		}
	}()
	return local
}

type wsListener struct {
	addr string

	mu       sync.Mutex
	up       websocket.Upgrader
	server   *http.Server
	listener net.Listener
	pending  chan zx.Pipe
	closed   chan struct{}
}

func (l *wsListener) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := l.up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	select {
	case l.pending <- bridge(conn):
	case <-l.closed:
		conn.Close()
	}
}

func (l *wsListener) Accept() (zx.Pipe, error) {
	select {
	case p := <-l.pending:
		return p, nil
	case <-l.closed:
		return nil, zerr.ErrClosed
	}
}

func (l *wsListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.closed:
		return nil
	default:
		close(l.closed)
	}
	if l.listener != nil {
		l.listener.Close()
	}
	return nil
}

func (l *wsListener) Addr() string { return l.addr }
