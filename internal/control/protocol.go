package control

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dshills/pterminal/internal/split"
	"github.com/dshills/pterminal/internal/terminal"
	"github.com/dshills/pterminal/internal/workspace"
)

// Version is the JSON-RPC protocol version.
const Version = "2.0"

// Error codes. The first five are the JSON-RPC standard set.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeConflict = -32003
	CodeNotFound = -32004
)

// Request is a JSON-RPC request. ID is kept raw so it echoes back exactly.
type Request struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a wire error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewError creates an error with a formatted message.
func NewError(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// InvalidParams creates an invalid params error.
func InvalidParams(format string, args ...any) *Error {
	return NewError(CodeInvalidParams, format, args...)
}

var nullID = json.RawMessage("null")

// ErrorFrom maps an error to its wire form. Wire errors pass through;
// domain sentinels map to their codes; anything else is internal.
func ErrorFrom(err error) *Error {
	if err == nil {
		return nil
	}
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	code := CodeInternalError
	switch {
	case errors.Is(err, split.ErrPaneNotFound),
		errors.Is(err, split.ErrSplitNotFound),
		errors.Is(err, workspace.ErrNotFound),
		errors.Is(err, terminal.ErrTerminalNotFound):
		code = CodeNotFound
	case errors.Is(err, split.ErrLastPane),
		errors.Is(err, workspace.ErrLastWorkspace),
		errors.Is(err, workspace.ErrExists),
		errors.Is(err, split.ErrDuplicatePane),
		errors.Is(err, terminal.ErrTerminalClosed),
		errors.Is(err, terminal.ErrInputQueueFull):
		code = CodeConflict
	case errors.Is(err, split.ErrInvalidRatio),
		errors.Is(err, split.ErrInvalidDirection),
		errors.Is(err, workspace.ErrEmptyName),
		errors.Is(err, workspace.ErrIndexOutOfRange),
		errors.Is(err, terminal.ErrUnknownKey),
		errors.Is(err, terminal.ErrInvalidSelection),
		errors.Is(err, terminal.ErrInvalidSize):
		code = CodeInvalidParams
	}
	return &Error{Code: code, Message: err.Error()}
}

// DecodeRequest parses one request line.
func DecodeRequest(data []byte) (*Request, *Error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		if json.Valid(data) {
			return nil, NewError(CodeInvalidRequest, "request must be a JSON object")
		}
		return nil, NewError(CodeParseError, "parse error")
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		if !json.Valid(data) {
			return nil, NewError(CodeParseError, "parse error")
		}
		return nil, NewError(CodeInvalidRequest, "invalid request: %v", err)
	}
	if req.JSONRPC != "" && req.JSONRPC != Version {
		return &req, NewError(CodeInvalidRequest, "unsupported jsonrpc version %q", req.JSONRPC)
	}
	if req.Method == "" {
		return &req, NewError(CodeInvalidRequest, "missing method")
	}
	if len(req.ID) > 0 && !validID(req.ID) {
		return &req, NewError(CodeInvalidRequest, "id must be a string, number or null")
	}
	return &req, nil
}

func validID(id json.RawMessage) bool {
	switch id[0] {
	case '"', 'n', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return true
	}
	return false
}

// responseID returns the id to echo for req.
func responseID(req *Request) json.RawMessage {
	if req == nil || len(req.ID) == 0 || !validID(req.ID) {
		return nullID
	}
	return req.ID
}

// Success builds a result response.
func Success(id json.RawMessage, result any) *Response {
	if len(id) == 0 {
		id = nullID
	}
	data, err := json.Marshal(result)
	if err != nil {
		return Failure(id, NewError(CodeInternalError, "encode result: %v", err))
	}
	return &Response{JSONRPC: Version, ID: id, Result: data}
}

// Failure builds an error response.
func Failure(id json.RawMessage, err error) *Response {
	if len(id) == 0 {
		id = nullID
	}
	return &Response{JSONRPC: Version, ID: id, Error: ErrorFrom(err)}
}

// Bind decodes params into v. Absent or null params leave v unchanged.
// Fields v does not declare are rejected.
func Bind(params json.RawMessage, v any) error {
	params = bytes.TrimSpace(params)
	if len(params) == 0 || bytes.Equal(params, nullID) {
		return nil
	}
	if params[0] != '{' {
		return InvalidParams("params must be an object")
	}
	dec := json.NewDecoder(bytes.NewReader(params))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return InvalidParams("invalid params: %v", err)
	}
	if dec.More() {
		return InvalidParams("invalid params: trailing data after object")
	}
	return nil
}
