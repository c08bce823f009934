package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nugget/thane-mcpbridge/internal/config"
)

// Endpoint is one configured MCP server.
type Endpoint struct {
	// Label is the human-readable name used in tool keys. Optional.
	Label string

	// URL is the Streamable HTTP endpoint.
	URL string

	Enabled bool
}

// storedEndpoint is the JSON storage shape of one endpoint. The legacy
// single record used "endpoint" rather than "endpointUrl".
type storedEndpoint struct {
	Label       string `json:"label"`
	EndpointURL string `json:"endpointUrl"`
	Endpoint    string `json:"endpoint"`
	Enabled     bool   `json:"enabled"`
}

func (s storedEndpoint) endpoint() Endpoint {
	u := s.EndpointURL
	if u == "" {
		u = s.Endpoint
	}
	return Endpoint{
		Label:   strings.TrimSpace(s.Label),
		URL:     strings.TrimSpace(u),
		Enabled: s.Enabled,
	}
}

// DecodeEndpoints parses endpoint configuration as stored by the host:
// either a list of {label, endpointUrl, enabled} records or the legacy
// single {enabled, endpoint} record. Empty input or JSON null yields no
// endpoints. An entry is enabled only if it says so explicitly.
func DecodeEndpoints(data []byte) ([]Endpoint, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	switch data[0] {
	case '[':
		var list []storedEndpoint
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decode endpoint list: %w", err)
		}
		out := make([]Endpoint, 0, len(list))
		for _, s := range list {
			out = append(out, s.endpoint())
		}
		return out, nil
	case '{':
		var legacy storedEndpoint
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("decode endpoint record: %w", err)
		}
		return []Endpoint{legacy.endpoint()}, nil
	default:
		return nil, fmt.Errorf("decode endpoints: unexpected JSON value starting with %q", data[0])
	}
}

// EndpointsFromConfig converts the config file's MCP section, in either
// of its shapes, into endpoints.
func EndpointsFromConfig(cfg config.MCPConfig) []Endpoint {
	servers := cfg.EffectiveServers()
	out := make([]Endpoint, 0, len(servers))
	for _, s := range servers {
		out = append(out, Endpoint{
			Label:   strings.TrimSpace(s.Label),
			URL:     strings.TrimSpace(s.URL),
			Enabled: s.IsEnabled(),
		})
	}
	return out
}

// active filters to enabled endpoints with a non-empty URL, preserving
// order. An endpoint whose URL repeats an earlier one is dropped; the
// first occurrence wins.
func active(endpoints []Endpoint) []Endpoint {
	var out []Endpoint
	seen := make(map[string]bool, len(endpoints))
	for _, ep := range endpoints {
		u := strings.TrimSpace(ep.URL)
		if !ep.Enabled || u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, ep)
	}
	return out
}
