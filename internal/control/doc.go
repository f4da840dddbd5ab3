// Package control implements the pterminal control surface: JSON-RPC 2.0
// over a local unix socket, with an optional loopback WebSocket bridge.
//
// # Wire Format
//
// Each message is one JSON object terminated by a newline:
//
//	{"jsonrpc":"2.0","id":1,"method":"pane.send","params":{"pane_id":"p0","text":"ls\n"}}
//	{"jsonrpc":"2.0","id":1,"result":{"pane_id":"p0","bytes":3}}
//
// Errors carry a code and message:
//
//	{"jsonrpc":"2.0","id":2,"error":{"code":-32004,"message":"pane not found: p9"}}
//
// # Architecture
//
//   - Registry: method table with aliases, param prototypes and the serial flag
//   - Server: unix socket listener; one session per connection
//   - Bridge: gin router exposing /rpc (WebSocket) and /health
//   - Client: id-correlated caller with per-call timeouts
//
// Requests on one connection run concurrently and may complete out of
// order. Methods registered as Serial run one at a time per connection in
// arrival order, so a client's structural edits apply in the order sent.
package control
