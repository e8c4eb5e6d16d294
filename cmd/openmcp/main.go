// ABOUTME: Entry point for the openmcp server and management CLI
// ABOUTME: Hosts browser automation, web search, and web crawling tool services

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/openmcp-ai/openmcp/internal/auth"
	"github.com/openmcp-ai/openmcp/internal/config"
	"github.com/openmcp-ai/openmcp/internal/server"
)

const banner = `
  ___  _ __   ___ _ __  _ __ ___   ___ _ __
 / _ \| '_ \ / _ \ '_ \| '_ ' _ \ / __| '_ \
| (_) | |_) |  __/ | | | | | | | | (__| |_) |
 \___/| .__/ \___|_| |_|_| |_| |_|\___| .__/
      |_|                             |_|
`

// getConfigPath returns the path to the openmcp config file.
// Priority: OPENMCP_CONFIG env var > XDG_CONFIG_HOME/openmcp/config.yaml > ~/.config/openmcp/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("OPENMCP_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "openmcp", "config.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: openmcp <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                    Start the openmcp server")
		fmt.Println("  init-config              Write a default config file")
		fmt.Println("  list-services            List available tool services")
		fmt.Println("  create-key NAME          Create an API key")
		fmt.Println("  health                   Check server health")
		fmt.Println("  version                  Show version information")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init-config":
		err = runInitConfig()
	case "list-services":
		err = runListServices()
	case "create-key":
		err = runCreateKey()
	case "health":
		err = runHealth(ctx)
	case "version":
		fmt.Printf("openmcp version %s\n", server.Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", server.Version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config: %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:   %s\n", cfg.Server.Addr())

	srv := server.New(cfg, logger)

	fmt.Println()
	cyan.Println("    API keys")
	for token, key := range srv.Auth().ListKeys() {
		green.Print("    ▶ ")
		fmt.Printf("%s: %s\n", key.Name, token)
	}
	fmt.Println()

	logger.Info("starting openmcp",
		"config", configPath,
		"addr", cfg.Server.Addr(),
	)

	return srv.Run(ctx)
}

func runInitConfig() error {
	reader := bufio.NewReader(os.Stdin)

	outputFile := getConfigPath()
	if len(os.Args) > 2 {
		outputFile = os.Args[2]
	}

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	cfg := config.Default()
	if err := cfg.Save(outputFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("Configuration file created: %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Println("  openmcp serve")
	return nil
}

func runListServices() error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)

	services := []struct {
		name        string
		description string
	}{
		{"browseruse", "Web browser automation service"},
		{"web_search", "Google search via the Serper API"},
		{"web_crawler", "Webpage crawling and content extraction"},
	}

	fmt.Println("Available MCP Services")
	fmt.Println("----------------------")
	for _, svc := range services {
		cyan.Printf("  %-12s", svc.name)
		green.Printf("  %s\n", svc.description)
	}
	return nil
}

func runCreateKey() error {
	args := os.Args[2:]
	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		return fmt.Errorf("usage: openmcp create-key NAME [--expires DAYS]")
	}
	name := args[0]

	expiresDays := 0
	for i := 1; i < len(args); i++ {
		switch {
		case args[i] == "--expires" || args[i] == "-e":
			if i+1 >= len(args) {
				return fmt.Errorf("--expires requires a value")
			}
			days, err := strconv.Atoi(args[i+1])
			if err != nil {
				return fmt.Errorf("invalid --expires value: %s", args[i+1])
			}
			expiresDays = days
			i++
		case strings.HasPrefix(args[i], "--expires="):
			days, err := strconv.Atoi(strings.TrimPrefix(args[i], "--expires="))
			if err != nil {
				return fmt.Errorf("invalid --expires value: %s", args[i])
			}
			expiresDays = days
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	manager := auth.NewManager(cfg.Auth, slog.New(slog.DiscardHandler))
	token := manager.CreateKey(name, expiresDays, nil)

	green := color.New(color.FgGreen)
	green.Println("API key created successfully!")
	fmt.Printf("Name: %s\n", name)
	fmt.Printf("Key:  %s\n", token)
	if expiresDays > 0 {
		fmt.Printf("Expires in: %d days\n", expiresDays)
	}
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.Addr())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	fmt.Println(string(body))
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
