package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/nugget/thane-mcpbridge/internal/tools"
)

// Register exposes every tool in set on the registry under its key.
// Previously registered MCP tools that are no longer in the set are
// removed, so calling Register after each materialization keeps the
// registry in step with the configured endpoints. It returns the number
// of tools registered.
func Register(registry *tools.Registry, set *Toolset, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.Default()
	}

	for _, name := range registry.AllToolNames() {
		if !strings.HasPrefix(name, KeyPrefix) {
			continue
		}
		if _, ok := set.Get(name); !ok {
			registry.Unregister(name)
			logger.Debug("unregistered stale MCP tool", "tool", name)
		}
	}

	count := 0
	for key, t := range set.All() {
		registry.Register(registryTool(key, t))
		count++

		logger.Debug("registered MCP tool",
			"tool", key,
			"remote_name", t.RemoteName,
			"mcp_label", t.EndpointLabel,
		)
	}
	return count
}

// registryTool adapts t to the registry's handler shape. The handler
// returns the JSON-encoded Result; only cancellation is reported as an
// error so the caller can stop its loop.
func registryTool(key string, t *Tool) *tools.Tool {
	return &tools.Tool{
		Name:        key,
		Description: t.Description,
		Parameters:  schemaParameters(t.InputSchema),
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			raw, err := json.Marshal(args)
			if err != nil {
				return "", err
			}

			res := t.Invoke(ctx, raw)
			if res.Cancelled() {
				return "", res.Err
			}

			out, err := json.Marshal(res)
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}

// schemaParameters decodes an input schema for the registry. Schemas
// that are missing or not JSON objects yield nil, which the registry
// lists as an empty object schema.
func schemaParameters(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil
	}
	return params
}
