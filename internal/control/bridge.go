package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dshills/pterminal/internal/logging"
)

// Bridge exposes the control surface over HTTP on a loopback address:
//
//	GET  /health  liveness and connection count
//	GET  /rpc     WebSocket, one JSON-RPC message per text frame
//	POST /rpc     one request per body
//
// WebSocket connections are sessions of the same Server as the socket, so
// they share its method table and concurrency rules.
type Bridge struct {
	server   *Server
	logger   *logging.Logger
	engine   *gin.Engine
	upgrader websocket.Upgrader

	mu       sync.Mutex
	listener net.Listener
	httpSrv  *http.Server
}

// NewBridge creates a bridge onto server.
func NewBridge(server *Server, logger *logging.Logger) *Bridge {
	gin.SetMode(gin.ReleaseMode)
	b := &Bridge{
		server: server,
		logger: logging.OrNop(logger).WithComponent("bridge"),
		engine: gin.New(),
	}
	b.upgrader = websocket.Upgrader{
		ReadBufferSize:  32 * 1024,
		WriteBufferSize: 32 * 1024,
		CheckOrigin:     checkLoopbackOrigin,
	}
	b.engine.Use(gin.Recovery())
	b.engine.GET("/health", b.health)
	b.engine.GET("/rpc", b.serveWebSocket)
	b.engine.POST("/rpc", b.post)
	return b
}

// Handler returns the HTTP handler.
func (b *Bridge) Handler() http.Handler { return b.engine }

// Listen binds addr, which must be a loopback address.
func (b *Bridge) Listen(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("bridge address %q: %w", addr, err)
	}
	if !isLoopbackHost(host) {
		return fmt.Errorf("bridge address %q is not loopback", addr)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	b.mu.Lock()
	b.listener = ln
	b.httpSrv = &http.Server{Handler: b.engine, ReadHeaderTimeout: 5 * time.Second}
	b.mu.Unlock()
	b.logger.Info("bridge listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Listen.
func (b *Bridge) Addr() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener == nil {
		return ""
	}
	return b.listener.Addr().String()
}

// Serve handles HTTP until ctx ends.
func (b *Bridge) Serve(ctx context.Context) error {
	b.mu.Lock()
	ln, srv := b.listener, b.httpSrv
	b.mu.Unlock()
	if ln == nil {
		return errors.New("bridge not listening")
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases the listener without waiting for requests in flight.
func (b *Bridge) Close() error {
	b.mu.Lock()
	ln, srv := b.listener, b.httpSrv
	b.mu.Unlock()
	if srv == nil {
		return nil
	}
	// The server only tracks listeners passed to Serve.
	_ = ln.Close()
	if err := srv.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type healthResult struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
}

func (b *Bridge) health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResult{Status: "ok", Connections: b.server.Connections()})
}

func (b *Bridge) serveWebSocket(c *gin.Context) {
	conn, err := b.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		b.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)
	if err := b.server.serveStream(c.Request.Context(), &wsStream{conn: conn}); err != nil && !errors.Is(err, ErrClosed) {
		b.logger.Debug("websocket session ended", "error", err)
	}
}

func (b *Bridge) post(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxMessageSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, Failure(nullID, NewError(CodeParseError, "read body: %v", err)))
		return
	}
	req, rpcErr := DecodeRequest(body)
	if rpcErr != nil {
		c.JSON(http.StatusOK, Failure(responseID(req), rpcErr))
		return
	}
	c.JSON(http.StatusOK, b.server.registry.Dispatch(c.Request.Context(), req))
}

// NewWebSocketClient wraps a dialed WebSocket connection as a Client.
func NewWebSocketClient(conn *websocket.Conn, opts ...ClientOption) *Client {
	return newClient(&wsStream{conn: conn}, opts...)
}

func checkLoopbackOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return isLoopbackHost(u.Hostname())
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
