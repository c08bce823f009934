package mcp

import (
	"context"
	"io"

	"github.com/tmaxmax/go-sse"
)

// readStream consumes a text/event-stream body until an event carries
// the response to req. Each event's data (multiple data: lines joined
// with newlines) is decoded as one JSON-RPC message or a batch. Frames
// that are not JSON, or that answer other ids, are skipped. On a match
// the body is closed without draining, since the server may keep the
// stream open. Reading is bounded only by ctx.
func (t *HTTPTransport) readStream(ctx context.Context, body io.ReadCloser, req *Request) (*Response, error) {
	cfg := &sse.ReadConfig{MaxEventSize: maxBodySize}

	frames := 0
	for ev, err := range sse.Read(body, cfg) {
		if err != nil {
			if cerr := cancelled(ctx, req.Method); cerr != nil {
				return nil, cerr
			}
			return nil, &TransportError{Endpoint: t.url, Err: err}
		}
		frames++

		t.logger.Log(ctx, levelTrace, "MCP stream frame",
			"method", req.Method,
			"id", req.ID.String(),
			"event", ev.Type,
			"data", ev.Data,
		)

		msgs, err := decodeMessages([]byte(ev.Data))
		if err != nil {
			t.logger.Debug("skipping non-JSON-RPC stream frame",
				"event", ev.Type,
				"error", err,
			)
			continue
		}

		if resp, ok := findResponse(msgs, req.ID); ok {
			body.Close()
			return resp, nil
		}
	}

	if cerr := cancelled(ctx, req.Method); cerr != nil {
		return nil, cerr
	}

	t.logger.Debug("event stream ended without matching response",
		"method", req.Method,
		"id", req.ID.String(),
		"frames", frames,
	)
	return nil, &ProtocolError{Reason: ReasonStreamEnded}
}
