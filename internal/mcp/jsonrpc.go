package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// jsonrpcVersion is the JSON-RPC protocol version used by MCP.
const jsonrpcVersion = "2.0"

type idKind uint8

const (
	idInt idKind = iota
	idString
	idOther
)

// RequestID is a JSON-RPC id: an integer or a string. Equality is
// strict, so the integer 7 and the string "7" are different ids. Ids of
// any other JSON type decode without error but never equal anything.
type RequestID struct {
	kind idKind
	num  int64
	str  string
}

// IntID returns an integer request id.
func IntID(n int64) RequestID {
	return RequestID{kind: idInt, num: n}
}

// StringID returns a string request id.
func StringID(s string) RequestID {
	return RequestID{kind: idString, str: s}
}

// Equal reports whether two ids are the same value of the same type.
func (id RequestID) Equal(other RequestID) bool {
	switch id.kind {
	case idInt:
		return other.kind == idInt && id.num == other.num
	case idString:
		return other.kind == idString && id.str == other.str
	default:
		return false
	}
}

// String renders the id for logs.
func (id RequestID) String() string {
	switch id.kind {
	case idInt:
		return strconv.FormatInt(id.num, 10)
	case idString:
		return strconv.Quote(id.str)
	default:
		return id.str
	}
}

// MarshalJSON implements json.Marshaler.
func (id RequestID) MarshalJSON() ([]byte, error) {
	switch id.kind {
	case idInt:
		return strconv.AppendInt(nil, id.num, 10), nil
	case idString:
		return json.Marshal(id.str)
	default:
		return nil, fmt.Errorf("cannot marshal request id %s", id.str)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *RequestID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = StringID(s)
		return nil
	}
	if n, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		*id = IntID(n)
		return nil
	}
	*id = RequestID{kind: idOther, str: string(data)}
	return nil
}

// Request is a JSON-RPC 2.0 request message.
type Request struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      RequestID `json:"id"`
	Method  string    `json:"method"`
	Params  any       `json:"params,omitempty"`
}

// NewRequest creates a JSON-RPC 2.0 request with the given method and params.
func NewRequest(id int64, method string, params any) *Request {
	return &Request{
		JSONRPC: jsonrpcVersion,
		ID:      IntID(id),
		Method:  method,
		Params:  params,
	}
}

// Response is a JSON-RPC 2.0 response message. Exactly one of Result
// or Error is non-nil in a well-formed response. ID is nil when the
// message carried a null or missing id; such messages are never
// correlated with a request. Method is set only when the server sent a
// request or notification of its own, which is never a response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *RequestID      `json:"id"`
	Method  string          `json:"method,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Matches reports whether the message is a response answering the
// request with the given id.
func (r *Response) Matches(id RequestID) bool {
	return r != nil && r.Method == "" && r.ID != nil && r.ID.Equal(id)
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface for RPCError.
func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// decodeMessages parses a JSON-RPC payload that is either a single
// message object or a batch array of them.
func decodeMessages(data []byte) ([]Response, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	if data[0] == '[' {
		var batch []Response
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, err
		}
		return batch, nil
	}

	var single Response
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, err
	}
	return []Response{single}, nil
}

// findResponse returns the first message in msgs answering id.
func findResponse(msgs []Response, id RequestID) (*Response, bool) {
	for i := range msgs {
		if msgs[i].Matches(id) {
			return &msgs[i], true
		}
	}
	return nil, false
}
