package mux

import (
	"io"
	"sync"

	"duskline/internal/log"
)

// Session owns a single underlying byte stream and multiplexes any number
// of logical Streams over it. Frame writes are serialized at the session
// level; reads are dispatched by a single loop goroutine.
type Session struct {
	conn     io.ReadWriteCloser
	isClient bool

	writeMu sync.Mutex

	mu      sync.Mutex
	streams map[uint32]*Stream
	nextID  uint32
	acceptC chan *Stream
	closed  bool
	closeC  chan struct{}
}

// NewSession wraps conn. isClient selects the stream-id parity this side
// uses when opening new streams: client uses odd ids starting at 1, server
// uses even ids starting at 2.
func NewSession(conn io.ReadWriteCloser, isClient bool) *Session {
	s := &Session{
		conn:     conn,
		isClient: isClient,
		streams:  make(map[uint32]*Stream),
		acceptC:  make(chan *Stream, 16),
		closeC:   make(chan struct{}),
	}
	if isClient {
		s.nextID = 1
	} else {
		s.nextID = 2
	}
	go s.readLoop()
	return s
}

// Open creates a new locally-initiated stream and sends its SYN frame.
func (s *Session) Open() (*Stream, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStreamClosed
	}
	id := s.nextID
	s.nextID += 2
	stream := newStream(id, s)
	s.streams[id] = stream
	s.mu.Unlock()

	if err := s.writeFrame(Frame{Command: CmdSYN, StreamID: id}); err != nil {
		return nil, err
	}
	return stream, nil
}

// Accept blocks until a remotely-initiated stream (SYN) arrives, or the
// session closes.
func (s *Session) Accept() (*Stream, error) {
	select {
	case st, ok := <-s.acceptC:
		if !ok {
			return nil, ErrStreamClosed
		}
		return st, nil
	case <-s.closeC:
		return nil, ErrStreamClosed
	}
}

// writeFrame serializes and writes a single frame to the underlying conn,
// holding writeMu for the duration.
func (s *Session) writeFrame(f Frame) error {
	buf, err := f.Encode()
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err = s.conn.Write(buf)
	return err
}

// Ping sends a NOP keepalive frame on stream 0.
func (s *Session) Ping() error {
	return s.writeFrame(Frame{Command: CmdNOP, StreamID: 0})
}

func (s *Session) removeStream(id uint32) {
	s.mu.Lock()
	delete(s.streams, id)
	s.mu.Unlock()
}

// readLoop reads frames until a fatal error (truncated header/payload) or
// the session closes. An unexpected version byte is logged and the frame
// is skipped, per spec.md §4.3 failure semantics.
func (s *Session) readLoop() {
	defer s.Close()
	hdr := make([]byte, 8)
	for {
		if _, err := io.ReadFull(s.conn, hdr); err != nil {
			return // truncated header read is fatal for the session
		}
		version, cmd, length, streamID, err := DecodeHeader(hdr)
		if err != nil {
			return
		}
		if version != ProtocolVersion {
			log.Log.Warnf("Mux", "unexpected frame version %d on stream %d, dropping frame", version, streamID)
			if length > 0 {
				if _, err := io.CopyN(io.Discard, s.conn, int64(length)); err != nil {
					return
				}
			}
			continue
		}

		var payload []byte
		if length > 0 {
			payload = make([]byte, length)
			if _, err := io.ReadFull(s.conn, payload); err != nil {
				return // truncated payload read is fatal for the session
			}
		}

		s.dispatch(cmd, streamID, payload)
	}
}

func (s *Session) dispatch(cmd Command, streamID uint32, payload []byte) {
	switch cmd {
	case CmdSYN:
		s.mu.Lock()
		st, exists := s.streams[streamID]
		if !exists {
			st = newStream(streamID, s)
			s.streams[streamID] = st
		}
		s.mu.Unlock()
		if !exists {
			select {
			case s.acceptC <- st:
			default:
				log.Log.Warnf("Mux", "accept queue full, dropping SYN for stream %d", streamID)
			}
		}

	case CmdFIN:
		s.mu.Lock()
		st := s.streams[streamID]
		s.mu.Unlock()
		if st != nil {
			st.markHalfClosed()
		}

	case CmdPSH:
		s.mu.Lock()
		st := s.streams[streamID]
		s.mu.Unlock()
		if st != nil {
			st.deliver(payload)
		}

	case CmdUPD:
		if len(payload) < 4 {
			return
		}
		n := int(payload[0]) | int(payload[1])<<8 | int(payload[2])<<16 | int(payload[3])<<24
		s.mu.Lock()
		st := s.streams[streamID]
		s.mu.Unlock()
		if st != nil {
			st.credit(n)
		}

	case CmdNOP:
		// keepalive, no action

	default:
		log.Log.Warnf("Mux", "unknown command %d on stream %d", cmd, streamID)
	}
}

// Close tears down the session and every stream it owns.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	streams := make([]*Stream, 0, len(s.streams))
	for _, st := range s.streams {
		streams = append(streams, st)
	}
	s.mu.Unlock()

	close(s.closeC)
	for _, st := range streams {
		st.mu.Lock()
		st.state = StreamClosed
		st.mu.Unlock()
		st.notifyReadable()
	}
	return s.conn.Close()
}

// StreamCount returns the number of streams currently tracked by the session.
func (s *Session) StreamCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}
