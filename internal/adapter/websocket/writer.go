package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	messageBufferSize = 64
)

type frame struct {
	messageType int
	data        []byte
}

// clientWriter owns every write to a connection. Frames are written in the
// order they were queued; a queued close frame is written last and ends the
// writer.
type clientWriter struct {
	connection  *websocket.Conn
	clock       clockwork.Clock
	sendChannel chan frame
	doneChannel chan struct{}
	exited      chan struct{}
	stopOnce    sync.Once
	onPingFail  func()
}

func newClientWriter(connection *websocket.Conn, clock clockwork.Clock, onPingFail func()) *clientWriter {
	cw := &clientWriter{
		connection:  connection,
		clock:       clock,
		sendChannel: make(chan frame, messageBufferSize),
		doneChannel: make(chan struct{}),
		exited:      make(chan struct{}),
		onPingFail:  onPingFail,
	}
	cw.configurePongHandler()
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer close(cw.exited)

	for {
		select {
		case f := <-cw.sendChannel:
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(f.messageType, f.data); err != nil {
				return
			}
			if f.messageType == websocket.CloseMessage {
				return
			}
		case <-ticker.Chan():
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				if cw.onPingFail != nil {
					cw.onPingFail()
				}
				return
			}
		case <-cw.doneChannel:
			return
		}
	}
}

// send queues a text frame. When the buffer is full it waits up to
// writeDeadline for space. It reports false when the wait expires or the
// writer has exited.
func (cw *clientWriter) send(data []byte) bool {
	f := frame{messageType: websocket.TextMessage, data: data}

	select {
	case <-cw.exited:
		return false
	case cw.sendChannel <- f:
		return true
	default:
	}

	timer := cw.clock.NewTimer(writeDeadline)
	defer timer.Stop()

	select {
	case cw.sendChannel <- f:
		return true
	case <-cw.exited:
		return false
	case <-timer.Chan():
		return false
	}
}

// closeWith queues a close frame behind any pending frames and waits up to
// writeDeadline for it to be written.
func (cw *clientWriter) closeWith(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)

	timer := cw.clock.NewTimer(writeDeadline)
	defer timer.Stop()

	select {
	case cw.sendChannel <- frame{messageType: websocket.CloseMessage, data: msg}:
	case <-cw.exited:
		return
	case <-timer.Chan():
		return
	}

	select {
	case <-cw.exited:
	case <-timer.Chan():
	}
}

// exitedChan is closed once the writer goroutine has returned.
func (cw *clientWriter) exitedChan() <-chan struct{} {
	return cw.exited
}

func (cw *clientWriter) stop() {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)
		<-cw.exited
		_ = cw.connection.Close()
	})
}

func (cw *clientWriter) configurePongHandler() {
	cw.updateReadDeadline()
	cw.connection.SetPongHandler(func(string) error {
		cw.updateReadDeadline()
		return nil
	})
}

func (cw *clientWriter) updateWriteDeadline() {
	_ = cw.connection.SetWriteDeadline(cw.clock.Now().Add(writeDeadline))
}

func (cw *clientWriter) updateReadDeadline() {
	_ = cw.connection.SetReadDeadline(cw.clock.Now().Add(pongDeadline))
}
