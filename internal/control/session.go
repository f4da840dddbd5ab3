package control

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/dshills/pterminal/internal/logging"
)

// maxMessageSize bounds one request line.
const maxMessageSize = 4 << 20

// serialQueueSize bounds the serial requests waiting on one connection.
const serialQueueSize = 64

// stream carries whole JSON messages in both directions.
type stream interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// lineStream frames messages as newline-terminated lines.
type lineStream struct {
	conn   net.Conn
	reader *bufio.Reader
}

func newLineStream(conn net.Conn) *lineStream {
	return &lineStream{conn: conn, reader: bufio.NewReaderSize(conn, 64*1024)}
}

func (s *lineStream) ReadMessage() ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := s.reader.ReadLine()
		if err != nil {
			if len(line) > 0 && errors.Is(err, io.EOF) {
				return line, nil
			}
			return nil, err
		}
		line = append(line, chunk...)
		if len(line) > maxMessageSize {
			return nil, errors.New("request line too long")
		}
		if !isPrefix {
			return line, nil
		}
	}
}

func (s *lineStream) WriteMessage(data []byte) error {
	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, data...)
	buf = append(buf, '\n')
	_, err := s.conn.Write(buf)
	return err
}

func (s *lineStream) Close() error { return s.conn.Close() }

// wsStream carries one message per WebSocket text frame.
type wsStream struct {
	conn *websocket.Conn
}

func (s *wsStream) ReadMessage() ([]byte, error) {
	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (s *wsStream) WriteMessage(data []byte) error {
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsStream) Close() error { return s.conn.Close() }

// session serves one connection. Requests run concurrently; serial methods
// run in arrival order on a single worker.
type session struct {
	id       string
	registry *Registry
	stream   stream
	logger   *logging.Logger

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

func newSession(id string, registry *Registry, s stream, logger *logging.Logger) *session {
	return &session{
		id:       id,
		registry: registry,
		stream:   s,
		logger:   logger.WithField("conn", id),
	}
}

// run reads until the stream fails or ctx ends. Handlers in flight see
// their context cancelled when the connection goes away.
func (s *session) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	serial := make(chan *Request, serialQueueSize)
	serialDone := make(chan struct{})

	go func() {
		defer close(serialDone)
		for req := range serial {
			s.handle(ctx, req)
		}
	}()

	stop := context.AfterFunc(ctx, func() { s.stream.Close() })
	defer func() {
		stop()
		cancel()
		close(serial)
		<-serialDone
		s.wg.Wait()
		s.stream.Close()
	}()

	for {
		data, err := s.stream.ReadMessage()
		if err != nil {
			if isClosedErr(err) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if len(bytes.TrimSpace(data)) == 0 {
			continue
		}

		req, rpcErr := DecodeRequest(data)
		if rpcErr != nil {
			s.write(Failure(responseID(req), rpcErr))
			continue
		}

		if s.registry.IsSerial(req.Method) {
			select {
			case serial <- req:
			case <-ctx.Done():
				return nil
			}
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, req)
		}()
	}
}

func (s *session) handle(ctx context.Context, req *Request) {
	resp := s.registry.Dispatch(ctx, req)
	if resp.Error != nil && resp.Error.Code == CodeInternalError {
		s.logger.Warn("request failed", "method", req.Method, "error", resp.Error.Message)
	} else {
		s.logger.Debug("request", "method", req.Method)
	}
	s.write(resp)
}

func (s *session) write(resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("encode response", "error", err)
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.stream.WriteMessage(data); err != nil && !isClosedErr(err) {
		s.logger.Debug("write response", "error", err)
	}
}

func isClosedErr(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}
