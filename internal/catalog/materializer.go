package catalog

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nugget/thane-mcpbridge/internal/mcp"
)

// SessionFactory opens a session for an endpoint. It is called at most
// once per endpoint URL while that endpoint stays cached.
type SessionFactory func(ep Endpoint) Session

// HTTPSessionFactory returns a factory that opens Streamable HTTP
// sessions, sending headers on every request.
func HTTPSessionFactory(headers map[string]string, logger *slog.Logger) SessionFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ep Endpoint) Session {
		transport := mcp.NewHTTPTransport(mcp.HTTPConfig{
			URL:     ep.URL,
			Headers: headers,
			Logger:  logger,
		})
		return mcp.NewClient(ep.URL, transport, logger)
	}
}

// Materializer builds tool sets from endpoint configuration.
type Materializer struct {
	cache   *Cache
	factory SessionFactory
	logger  *slog.Logger
}

// New creates a Materializer. A nil cache gets a private one; a nil
// factory opens plain HTTP sessions with no extra headers.
func New(cache *Cache, factory SessionFactory, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		cache = NewCache()
	}
	if factory == nil {
		factory = HTTPSessionFactory(nil, logger)
	}
	return &Materializer{cache: cache, factory: factory, logger: logger}
}

// Cache returns the cache backing this materializer.
func (m *Materializer) Cache() *Cache {
	return m.cache
}

// MaterializeConfig decodes stored endpoint configuration and
// materializes it. Undecodable configuration is logged and yields an
// empty set.
func (m *Materializer) MaterializeConfig(ctx context.Context, raw []byte) *Toolset {
	endpoints, err := DecodeEndpoints(raw)
	if err != nil {
		m.logger.Error("invalid MCP endpoint configuration", "error", err)
		return newToolset()
	}
	return m.Materialize(ctx, endpoints)
}

// Materialize builds the tool set for the enabled endpoints. Endpoints
// are materialized concurrently and merged in configuration order. An
// endpoint that fails contributes no tools; the failure is logged and
// never returned.
func (m *Materializer) Materialize(ctx context.Context, endpoints []Endpoint) *Toolset {
	return m.run(ctx, endpoints, false)
}

// Refresh is Materialize, except that cached endpoints re-list their
// tools over the existing session instead of reusing the cached set.
func (m *Materializer) Refresh(ctx context.Context, endpoints []Endpoint) *Toolset {
	return m.run(ctx, endpoints, true)
}

func (m *Materializer) run(ctx context.Context, endpoints []Endpoint, refresh bool) *Toolset {
	logger := m.logger.With("pass_id", uuid.NewString())
	set := newToolset()

	eps := active(endpoints)
	if len(eps) == 0 {
		logger.Debug("no MCP endpoints enabled")
		return set
	}

	results := make([][]*Tool, len(eps))
	var g errgroup.Group
	for i, ep := range eps {
		g.Go(func() error {
			results[i] = m.materializeEndpoint(ctx, ep, deriveLabel(ep, i+1), refresh, logger)
			return nil
		})
	}
	_ = g.Wait()

	for _, endpointTools := range results {
		for _, t := range endpointTools {
			if key := set.add(t); key != t.Key {
				logger.Debug("renamed colliding MCP tool", "tool", t.Key, "key", key)
			}
		}
	}

	logger.Info("materialized MCP tools", "endpoints", len(eps), "tools", set.Len())
	return set
}

// materializeEndpoint returns the tools for one endpoint, or nil if the
// endpoint is unavailable.
func (m *Materializer) materializeEndpoint(ctx context.Context, ep Endpoint, label string, refresh bool, logger *slog.Logger) []*Tool {
	url := strings.TrimSpace(ep.URL)
	logger = logger.With("mcp_label", label, "mcp_endpoint", url)

	entry, cached := m.cache.get(url)
	if cached && !refresh {
		logger.Debug("using cached MCP tools", "tools", len(entry.tools))
		return entry.tools
	}

	var session Session
	if cached {
		session = entry.session
	} else {
		session = m.factory(Endpoint{Label: ep.Label, URL: url, Enabled: ep.Enabled})
	}

	descs, err := session.ListTools(ctx, refresh)
	if err != nil {
		logger.Warn("MCP endpoint unavailable, skipping", "error", err)
		return nil
	}

	built := buildTools(descs, label, url, session)
	m.cache.put(url, &cacheEntry{label: label, session: session, tools: built})

	logger.Debug("MCP endpoint materialized", "tools", len(built), "refresh", refresh)
	return built
}

// buildTools turns one endpoint's catalog into tools with keys unique
// within the endpoint. Descriptors without a name are dropped.
func buildTools(descs []mcp.ToolDescriptor, label, url string, session Session) []*Tool {
	taken := make(map[string]bool, len(descs))
	out := make([]*Tool, 0, len(descs))

	for _, d := range descs {
		if strings.TrimSpace(d.Name) == "" {
			continue
		}
		key := uniqueKey(toolKey(label, d.Name), func(k string) bool { return taken[k] })
		taken[key] = true

		out = append(out, &Tool{
			Key:           key,
			EndpointLabel: label,
			EndpointURL:   url,
			RemoteName:    d.Name,
			Description:   describe(d, label),
			InputSchema:   d.InputSchema,
			session:       session,
		})
	}
	return out
}
