package catalog

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nugget/thane-mcpbridge/internal/mcp"
)

const (
	// KeyPrefix starts every materialized tool key.
	KeyPrefix = "mcp__"

	// maxKeyLen is the longest tool name function-calling APIs accept.
	maxKeyLen = 64

	maxLabelLen = 24

	// maxSchemaLen caps the compact JSON schema appended to descriptions
	// when the schema has no properties to summarize.
	maxSchemaLen = 300
)

var (
	labelStrip   = regexp.MustCompile(`[^a-z0-9_]`)
	toolNameRepl = regexp.MustCompile(`[^A-Za-z0-9_-]`)
)

// deriveLabel picks the label for the endpoint at the given 1-based
// position: the configured label, else the URL's hostname without a
// leading "www.", else mcp<position>.
func deriveLabel(ep Endpoint, position int) string {
	candidates := []string{ep.Label}
	if u, err := url.Parse(strings.TrimSpace(ep.URL)); err == nil {
		candidates = append(candidates, strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."))
	}

	for _, c := range candidates {
		if label := normalizeLabel(c); label != "" {
			return label
		}
	}
	return fmt.Sprintf("mcp%d", position)
}

// normalizeLabel lowercases s, keeps only [a-z0-9_] and truncates.
func normalizeLabel(s string) string {
	s = labelStrip.ReplaceAllString(strings.ToLower(s), "")
	if len(s) > maxLabelLen {
		s = s[:maxLabelLen]
	}
	return s
}

// sanitizeToolName replaces characters outside [A-Za-z0-9_-] with "_".
func sanitizeToolName(name string) string {
	return toolNameRepl.ReplaceAllString(name, "_")
}

// toolKey builds mcp__<label>__<tool>, truncated to the key length limit.
func toolKey(label, remoteName string) string {
	return truncate(KeyPrefix+label+"__"+sanitizeToolName(remoteName), maxKeyLen)
}

// uniqueKey returns base if it is free, otherwise base with the first
// free _1, _2, ... suffix, truncating base so the result still fits.
func uniqueKey(base string, taken func(string) bool) string {
	if !taken(base) {
		return base
	}
	for n := 1; ; n++ {
		suffix := "_" + strconv.Itoa(n)
		candidate := truncate(base, maxKeyLen-len(suffix)) + suffix
		if !taken(candidate) {
			return candidate
		}
	}
}

// truncate shortens s to n bytes. Keys are ASCII after sanitization.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// describe builds the agent-facing description of a remote tool: the
// server's description annotated with the endpoint label, followed by a
// compact rendering of the input schema.
func describe(desc mcp.ToolDescriptor, label string) string {
	var b strings.Builder

	text := strings.TrimSpace(desc.Description)
	if text == "" {
		text = "Remote tool " + desc.Name
	}
	fmt.Fprintf(&b, "%s [MCP: %s]", text, label)

	if schema := renderSchema(desc.InputSchema); schema != "" {
		b.WriteString("\nInput: ")
		b.WriteString(schema)
	}
	return b.String()
}

type schemaSummary struct {
	Properties map[string]json.RawMessage `json:"properties"`
	Required   []string                   `json:"required"`
}

type propertySummary struct {
	Type        json.RawMessage `json:"type"`
	Description string          `json:"description"`
}

// renderSchema summarizes a JSON schema as "name (type, required), ...".
// Schemas without properties are rendered as compact JSON, truncated.
// A bare {"type":"object"} or an undecodable schema renders as "".
func renderSchema(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s schemaSummary
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}

	if len(s.Properties) == 0 {
		var generic map[string]any
		if err := json.Unmarshal(raw, &generic); err == nil {
			delete(generic, "type")
			delete(generic, "properties")
			delete(generic, "required")
			if len(generic) == 0 {
				return ""
			}
		}
		compact, err := json.Marshal(json.RawMessage(raw))
		if err != nil {
			return ""
		}
		if len(compact) > maxSchemaLen {
			return string(compact[:maxSchemaLen]) + "..."
		}
		return string(compact)
	}

	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}

	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		var p propertySummary
		_ = json.Unmarshal(s.Properties[name], &p)

		attrs := []string{}
		if t := propertyType(p.Type); t != "" {
			attrs = append(attrs, t)
		}
		if required[name] {
			attrs = append(attrs, "required")
		}

		if len(attrs) == 0 {
			parts = append(parts, name)
		} else {
			parts = append(parts, fmt.Sprintf("%s (%s)", name, strings.Join(attrs, ", ")))
		}
	}
	return strings.Join(parts, ", ")
}

// propertyType renders a schema "type", which may be a string or a list.
func propertyType(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return strings.Join(many, "|")
	}
	return ""
}
