// Package session implements the per-connection protocol state machine: a
// reader goroutine and a writer goroutine bridged by a bounded outbound
// queue, so that a slow peer can only block its own queue push, never the
// synthesis of the next reply.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ocpp-central/station/internal/codec"
	"github.com/ocpp-central/station/internal/dispatch"
	"github.com/ocpp-central/station/internal/events"
	"github.com/ocpp-central/station/internal/metrics"
)

// outboundQueueSize is the bounded outbound queue capacity from §4.4: large
// enough to absorb a burst of replies without the writer falling behind, but
// bounded so a stalled peer causes backpressure rather than unbounded growth.
const outboundQueueSize = 64

// frame is one item on the outbound queue: a WebSocket frame type plus its
// payload bytes.
type frame struct {
	messageType int
	data        []byte
}

// Session owns one upgraded WebSocket for its lifetime. StationID is the
// observational station identifier taken from the upgrade path.
type Session struct {
	conn *websocket.Conn
	// SessionID disambiguates concurrent or successive connections from the
	// same station (reconnects, dual links) in logs and events, since
	// StationID alone is not unique across connections.
	SessionID  string
	StationID  string
	RemoteAddr string
	dispatcher *dispatch.Dispatcher
	events     events.Publisher
	log        zerolog.Logger

	out        chan frame
	shutdown   chan struct{}
	writerDone chan struct{}

	mu           sync.Mutex
	lastActivity time.Time
}

// New wraps conn as a Session. The caller is responsible for having already
// performed the WebSocket upgrade. A nil publisher is replaced with
// events.NopPublisher.
func New(conn *websocket.Conn, stationID, remoteAddr string, dispatcher *dispatch.Dispatcher, publisher events.Publisher, log zerolog.Logger) *Session {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	sessionID := uuid.NewString()
	return &Session{
		conn:         conn,
		SessionID:    sessionID,
		StationID:    stationID,
		RemoteAddr:   remoteAddr,
		dispatcher:   dispatcher,
		events:       publisher,
		log:          log.With().Str("stationId", stationID).Str("sessionId", sessionID).Logger(),
		out:          make(chan frame, outboundQueueSize),
		shutdown:     make(chan struct{}),
		writerDone:   make(chan struct{}),
		lastActivity: time.Now(),
	}
}

// Serve runs the reader and writer loops to completion. It blocks until both
// have exited, i.e. until the socket has been released exactly once.
func (s *Session) Serve() {
	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	s.events.Publish(events.Event{Kind: events.KindSessionConnected, StationID: s.StationID, Timestamp: time.Now().UTC(), Detail: map[string]interface{}{"sessionId": s.SessionID, "remoteAddr": s.RemoteAddr}})
	defer s.events.Publish(events.Event{Kind: events.KindSessionDisconnected, StationID: s.StationID, Timestamp: time.Now().UTC(), Detail: map[string]interface{}{"sessionId": s.SessionID}})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.writeLoop()
	}()
	go func() {
		defer wg.Done()
		s.readLoop()
	}()
	wg.Wait()
}

// readLoop drives termination: it is the only goroutine that calls
// conn.ReadMessage, and it fires the one-shot shutdown signal on exit so the
// writer knows to drain and stop.
func (s *Session) readLoop() {
	defer close(s.shutdown)

	s.conn.SetPongHandler(func(string) error {
		s.noteLiveness()
		metrics.MessagesReceived.WithLabelValues("ocpp1.6", "pong").Inc()
		return nil
	})
	s.conn.SetPingHandler(func(appData string) error {
		s.noteLiveness()
		metrics.MessagesReceived.WithLabelValues("ocpp1.6", "ping").Inc()
		s.enqueue(frame{websocket.PongMessage, []byte(appData)})
		return nil
	})
	s.conn.SetCloseHandler(func(code int, text string) error {
		s.enqueue(frame{websocket.CloseMessage, websocket.FormatCloseMessage(code, "")})
		return nil
	})

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if isUnexpectedClose(err) {
				s.log.Warn().Err(err).Msg("read error, closing session")
			} else {
				s.log.Debug().Err(err).Msg("session closed")
			}
			return
		}

		switch msgType {
		case websocket.TextMessage:
			s.noteLiveness()
			metrics.MessagesReceived.WithLabelValues("ocpp1.6", "text").Inc()
			if !s.handleText(data) {
				return
			}
		case websocket.BinaryMessage:
			s.log.Debug().Msg("ignoring binary frame")
		case websocket.CloseMessage:
			// The close handler above already enqueued the echo.
			return
		}
	}
}

// handleText decodes and dispatches one inbound text frame, enqueuing its
// reply (if any) before the reader accepts the next frame — this is what
// gives per-message causal order on the wire. It returns false if the
// session should stop reading (dispatcher-requested close, or the writer
// has already gone away).
func (s *Session) handleText(data []byte) bool {
	env, decErr := codec.DecodeEnvelope(data)
	if decErr != nil {
		return s.enqueueOutcome(s.dispatcher.HandleDecodeError(decErr))
	}

	switch env.TypeID {
	case codec.TypeCall:
		outcome := s.dispatcher.HandleCall(s.StationID, env.Call.MessageID, env.Call.Action, env.Call.Payload)
		return s.enqueueOutcome(outcome)
	case codec.TypeCallResult:
		outcome := s.dispatcher.HandleCallResult(env.CallResult.MessageID, env.CallResult.Payload)
		return s.enqueueOutcome(outcome)
	case codec.TypeCallError:
		outcome := s.dispatcher.HandleCallError(env.CallError.MessageID, env.CallError.ErrorCode, env.CallError.ErrorDescription)
		return s.enqueueOutcome(outcome)
	}
	return true
}

func (s *Session) enqueueOutcome(outcome dispatch.Outcome) bool {
	for _, f := range outcome.Frames {
		if !s.enqueue(frame{websocket.TextMessage, f}) {
			return false
		}
	}
	if outcome.Close {
		s.enqueue(frame{websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")})
		return false
	}
	return true
}

// enqueue pushes f onto the bounded outbound queue. A full queue makes the
// caller (the reader) yield until the writer drains it; if the writer has
// already exited, enqueue gives up rather than blocking forever.
func (s *Session) enqueue(f frame) bool {
	select {
	case s.out <- f:
		return true
	case <-s.writerDone:
		return false
	}
}

func (s *Session) noteLiveness() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// LastActivity reports the last time a Text, Ping, or Pong frame was
// observed from the peer.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// writeLoop is the single consumer of the outbound queue and the sole owner
// of write access to conn, so reply frames and Pong echoes never race each
// other on the socket. It releases the socket exactly once, on exit.
func (s *Session) writeLoop() {
	defer close(s.writerDone)
	defer s.conn.Close()

	for {
		select {
		case f, ok := <-s.out:
			if !ok {
				return
			}
			if s.writeFrame(f) {
				if f.messageType == websocket.CloseMessage {
					return
				}
				continue
			}
			return
		case <-s.shutdown:
			s.drain()
			return
		}
	}
}

// drain flushes whatever is already queued once the reader has signaled
// shutdown, then returns — it never blocks waiting for new sends.
func (s *Session) drain() {
	for {
		select {
		case f, ok := <-s.out:
			if !ok {
				return
			}
			if !s.writeFrame(f) {
				return
			}
		default:
			return
		}
	}
}

func (s *Session) writeFrame(f frame) bool {
	if err := s.conn.WriteMessage(f.messageType, f.data); err != nil {
		s.log.Warn().Err(err).Msg("write error, ending session")
		return false
	}
	return true
}

func isUnexpectedClose(err error) bool {
	return websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNormalClosure,
	) && !errors.Is(err, websocket.ErrCloseSent)
}
