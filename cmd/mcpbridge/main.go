// Mcpbridge exposes the tools of remote MCP servers as one flat catalog.
//
// It reads the configured Streamable HTTP endpoints, performs the MCP
// handshake with each, and either lists the materialized tools or invokes
// one of them. Configuration is loaded from a YAML (or TOML) file
// discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	mcpbridge tools                    List materialized tools
//	mcpbridge call <key> [json-args]   Invoke a tool by key
//	mcpbridge version                  Print version and build information
//	mcpbridge -o json tools            Output tool definitions as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/nugget/thane-mcpbridge/internal/buildinfo"
	"github.com/nugget/thane-mcpbridge/internal/catalog"
	"github.com/nugget/thane-mcpbridge/internal/config"
	"github.com/nugget/thane-mcpbridge/internal/mcp"
	"github.com/nugget/thane-mcpbridge/internal/tools"
)

// main constructs the OS-level environment and delegates to [run] so the
// whole command can be driven from tests.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "%s\n", err)
		stop()
		os.Exit(1)
	}
}

// options holds the parsed global flags.
type options struct {
	configPath string
	outputFmt  string // "text" (default) or "json"
	logLevel   string
	logFormat  string
}

// run is the real entry point. Command output goes to stdout and logs go
// to stderr. Arguments are parsed by hand to avoid the flag package's
// global state.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var opts options
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			opts.configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			opts.configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			opts.outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			opts.outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			opts.outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-log-level" && i+1 < len(args):
			opts.logLevel = args[i+1]
			i++
		case args[i] == "-log-format" && i+1 < len(args):
			opts.logFormat = args[i+1]
			i++
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if opts.outputFmt == "" {
		opts.outputFmt = "text"
	}
	if opts.outputFmt != "text" && opts.outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", opts.outputFmt)
	}

	switch command {
	case "tools":
		return runTools(ctx, stdout, stderr, opts)
	case "call":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: mcpbridge call <key> [json-args]")
		}
		argsJSON := ""
		if len(cmdArgs) > 1 {
			argsJSON = strings.Join(cmdArgs[1:], " ")
		}
		return runCall(ctx, stdout, stderr, opts, cmdArgs[0], argsJSON)
	case "version":
		return runVersion(stdout, opts.outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.BuildInfo()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

func printUsage(w io.Writer) error {
	yellow := color.New(color.FgYellow)

	fmt.Fprintln(w, "mcpbridge - remote MCP tools as one catalog")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: mcpbridge [flags] <command> [args]")
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  tools                    List materialized tools")
	fmt.Fprintln(w, "  call <key> [json-args]   Invoke a tool by key")
	fmt.Fprintln(w, "  version                  Show version information")
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>       Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt     Output format: text (default) or json")
	fmt.Fprintln(w, "  -log-level level     trace, debug, info, warn, error (overrides config)")
	fmt.Fprintln(w, "  -log-format fmt      text or json (overrides config)")
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Config search order:")
	fmt.Fprintf(w, "  %s\n", strings.Join(config.DefaultSearchPaths(), ", "))
	return nil
}

// runTools materializes the configured endpoints and lists the result.
func runTools(ctx context.Context, stdout, stderr io.Writer, opts options) error {
	registry, set, err := materialize(ctx, stderr, opts)
	if err != nil {
		return err
	}

	if opts.outputFmt == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(registry.List())
	}

	if set.Len() == 0 {
		fmt.Fprintln(stdout, "No MCP tools available.")
		return nil
	}

	cyan := color.New(color.FgCyan)
	faint := color.New(color.Faint)
	for key, t := range set.All() {
		cyan.Fprintln(stdout, key)
		faint.Fprintf(stdout, "  %s via %s\n", t.RemoteName, t.EndpointURL)
		for _, line := range strings.Split(t.Description, "\n") {
			fmt.Fprintf(stdout, "  %s\n", line)
		}
	}
	fmt.Fprintf(stdout, "\n%d tools\n", set.Len())
	return nil
}

// runCall materializes the configured endpoints and invokes one tool
// through the agent registry.
func runCall(ctx context.Context, stdout, stderr io.Writer, opts options, key, argsJSON string) error {
	registry, _, err := materialize(ctx, stderr, opts)
	if err != nil {
		return err
	}

	out, err := registry.Execute(ctx, key, argsJSON)
	if err != nil {
		return fmt.Errorf("call %s: %w", key, err)
	}

	if opts.outputFmt == "json" {
		fmt.Fprintln(stdout, out)
		return nil
	}

	var res catalog.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		return fmt.Errorf("call %s: decode result: %w", key, err)
	}
	if !res.Success {
		return fmt.Errorf("call %s: %s", key, res.Error)
	}

	color.New(color.FgGreen).Fprintln(stdout, "ok")
	fmt.Fprintln(stdout, mcp.ResultText(res.Result))
	return nil
}

// materialize loads config, builds the logger and registers every
// materialized tool on a fresh registry.
func materialize(ctx context.Context, stderr io.Writer, opts options) (*tools.Registry, *catalog.Toolset, error) {
	cfg, cfgPath, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, nil, err
	}

	logger, err := newLogger(stderr, cfg, opts)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("config loaded", "path", cfgPath)

	factory := catalog.HTTPSessionFactory(cfg.MCP.Headers, logger)
	m := catalog.New(catalog.NewCache(), factory, logger)
	set := m.Materialize(ctx, catalog.EndpointsFromConfig(cfg.MCP))

	registry := tools.NewRegistry()
	catalog.Register(registry, set, logger)
	return registry, set, nil
}

// newLogger builds the logger from config, with command-line overrides.
func newLogger(w io.Writer, cfg *config.Config, opts options) (*slog.Logger, error) {
	levelName := cfg.LogLevel
	if opts.logLevel != "" {
		levelName = opts.logLevel
	}
	level, err := config.ParseLogLevel(levelName)
	if err != nil {
		return nil, err
	}

	format := cfg.LogFormat
	if opts.logFormat != "" {
		format = opts.logFormat
	}
	return config.NewLogger(w, level, format), nil
}

// loadConfig locates and parses the configuration file. If explicit is
// non-empty, that exact path is used (and must exist).
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
