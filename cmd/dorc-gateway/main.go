// ABOUTME: Entry point for the dorc-gateway capability gateway
// ABOUTME: Serves the proxy, mints tokens, and scaffolds configuration

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/dorc/dorc-gateway/internal/audit"
	"github.com/dorc/dorc-gateway/internal/auth"
	"github.com/dorc/dorc-gateway/internal/config"
	"github.com/dorc/dorc-gateway/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
     _                                  _
  __| | ___  _ __ ___       __ _  __ _| |_ _____      ____ _ _   _
 / _' |/ _ \| '__/ __|____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
| (_| | (_) | | | (_|_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
 \__,_|\___/|_|  \___|     \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                           |___/                             |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: DORC_GATEWAY_CONFIG env var > XDG_CONFIG_HOME/dorc/gateway.yaml > ~/.config/dorc/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("DORC_GATEWAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "dorc", "gateway.yaml")
}

// getDataPath returns the path to the dorc data directory.
// Priority: XDG_DATA_HOME/dorc > ~/.local/share/dorc
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "dorc")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: dorc-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve       Start the gateway server")
		fmt.Println("  init        Create a new config file interactively")
		fmt.Println("  mint-token  Mint a signed capability token")
		fmt.Println("  audit       List recent request decisions")
		fmt.Println("  health      Check gateway health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "mint-token":
		err = runMintToken()
	case "audit":
		err = runAudit(ctx)
	case "health":
		err = runHealth(ctx)
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

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Backend:  %s\n", cfg.Backend.BaseURL)

	if cfg.Auth.StaticKeysFile != "" {
		green.Print("    ▶ ")
		fmt.Printf("Keys:     %s\n", cfg.Auth.StaticKeysFile)
	}
	if cfg.Audit.Path != "" {
		green.Print("    ▶ ")
		fmt.Printf("Audit:    %s\n", cfg.Audit.Path)
	} else {
		yellow.Print("    ▶ ")
		fmt.Println("Audit:    log only")
	}

	fmt.Println()

	logger.Info("starting dorc-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"backend", cfg.Backend.BaseURL,
		"routes", len(cfg.Routes),
	)

	// Create and run gateway
	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
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

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
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

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
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

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Make HTTP request to health endpoint with context
	url := fmt.Sprintf("http://%s/healthz", cfg.Server.HTTPAddr)
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

	fmt.Println("healthy")
	return nil
}

// runMintToken mints a short-lived signed token with the configured
// secret. Intended for operators issuing credentials to backend clients:
// dorc-gateway mint-token --subject svc-ci --tenant acme --scopes validate:write
func runMintToken() error {
	fs := flag.NewFlagSet("mint-token", flag.ContinueOnError)
	subject := fs.String("subject", "", "token subject (service or user identity)")
	tenant := fs.String("tenant", "", "tenant the token is bound to")
	scopes := fs.String("scopes", "", "comma-separated scopes, e.g. validate:write,runs:read")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(os.Args[2:]); err != nil {
		return err
	}

	if *subject == "" || *tenant == "" || *scopes == "" {
		return fmt.Errorf("--subject, --tenant, and --scopes are required")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt_secret not configured; mint-token needs a signing secret")
	}

	codec, err := auth.NewCodec([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("creating codec: %w", err)
	}

	scopeList := strings.Split(*scopes, ",")
	for i := range scopeList {
		scopeList[i] = strings.TrimSpace(scopeList[i])
	}

	now := time.Now()
	token, err := codec.Mint(*subject, *tenant, scopeList, now, *ttl)
	if err != nil {
		return fmt.Errorf("minting token: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Println("  Token minted")
	fmt.Printf("  Subject: %s\n", *subject)
	fmt.Printf("  Tenant:  %s\n", *tenant)
	fmt.Printf("  Scopes:  %s\n", strings.Join(scopeList, " "))
	fmt.Printf("  Expires: %s\n", now.Add(*ttl).UTC().Format(time.RFC3339))
	fmt.Println()
	fmt.Println(token)

	return nil
}

// runAudit lists the most recent request decisions from the configured
// audit store, newest first.
func runAudit(ctx context.Context) error {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	limit := fs.Int("n", 20, "number of entries to list")
	if err := fs.Parse(os.Args[2:]); err != nil {
		return err
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Audit.Path == "" {
		return fmt.Errorf("audit.path not configured; decisions go to the log only")
	}

	store, err := audit.NewSQLiteStore(cfg.Audit.Path)
	if err != nil {
		return fmt.Errorf("opening audit store: %w", err)
	}
	defer store.Close()

	entries, err := store.ListRecent(ctx, *limit)
	if err != nil {
		return fmt.Errorf("listing audit entries: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("no audit entries")
		return nil
	}

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	gray := color.New(color.FgHiBlack)

	for _, e := range entries {
		gray.Printf("%s  ", e.Time.Local().Format("2006-01-02 15:04:05"))
		if e.Outcome == audit.OutcomeForwarded {
			green.Printf("%-9s", e.Outcome)
		} else {
			red.Printf("%-9s", e.Outcome)
		}
		fmt.Printf(" %3d  %-16s %-12s %s", e.Status, e.Operation, e.Tenant, e.Subject)
		if e.Reason != "" {
			gray.Printf("  (%s)", e.Reason)
		}
		fmt.Println()
	}

	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("dorc-gateway configuration setup")
	fmt.Println("================================")
	fmt.Println()

	// Default paths
	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultAuditPath := filepath.Join(defaultDataPath, "audit.db")
	defaultKeysPath := filepath.Join(filepath.Dir(defaultConfigPath), "keys.toml")

	// Output filename
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Server configuration
	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")

	// Backend
	fmt.Println("\n--- Backend Configuration ---")
	backendURL := prompt(reader, "Backend base URL", "http://localhost:9090")
	backendTimeout := prompt(reader, "Backend timeout", "30s")

	// Auth
	fmt.Println("\n--- Auth Configuration ---")
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating signing secret: %w", err)
	}
	jwtSecret := base64.StdEncoding.EncodeToString(secretBytes)
	keysFile := prompt(reader, "Static keys file (empty to disable)", defaultKeysPath)

	// Audit
	fmt.Println("\n--- Audit Configuration ---")
	auditPath := prompt(reader, "Audit database path (empty for log only)", defaultAuditPath)

	// Logging
	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	// Generate config
	var cfg strings.Builder
	cfg.WriteString("# dorc-gateway configuration\n")
	cfg.WriteString("# Generated by dorc-gateway init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  jwt_secret: \"%s\"\n", jwtSecret))
	cfg.WriteString("  issuer: \"dorc\"\n")
	if keysFile != "" {
		cfg.WriteString(fmt.Sprintf("  static_keys_file: \"%s\"\n", keysFile))
	}
	cfg.WriteString("\n")

	cfg.WriteString("backend:\n")
	cfg.WriteString(fmt.Sprintf("  base_url: \"%s\"\n", backendURL))
	cfg.WriteString(fmt.Sprintf("  timeout: \"%s\"\n", backendTimeout))
	cfg.WriteString("\n")

	cfg.WriteString("routes:\n")
	cfg.WriteString("  - method: POST\n")
	cfg.WriteString("    path: /v1/validate\n")
	cfg.WriteString("    operation: validate:write\n")
	cfg.WriteString("  - method: GET\n")
	cfg.WriteString("    path: /v1/runs/{run_id}\n")
	cfg.WriteString("    operation: runs:read\n")
	cfg.WriteString("  - method: GET\n")
	cfg.WriteString("    path: /v1/runs/{run_id}/chunks\n")
	cfg.WriteString("    operation: runs:read\n")
	cfg.WriteString("\n")

	if auditPath != "" {
		cfg.WriteString("audit:\n")
		cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", auditPath))
		cfg.WriteString("\n")
	}

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))
	cfg.WriteString("\n")

	cfg.WriteString("metrics:\n")
	cfg.WriteString("  enabled: false\n")
	cfg.WriteString("  path: \"/metrics\"\n")

	// Ensure config directory exists
	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write config file; it holds the signing secret, so owner-only
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// Write a starter key table unless one already exists
	if keysFile != "" {
		if _, err := os.Stat(keysFile); os.IsNotExist(err) {
			keyBytes := make([]byte, 24)
			if _, err := rand.Read(keyBytes); err != nil {
				return fmt.Errorf("generating static key: %w", err)
			}
			keyContent := fmt.Sprintf(`# dorc-gateway static key table
# Each [keys.<id>] entry is one opaque credential; <id> becomes the
# audit subject, the key material itself is never logged.

[keys.k-example]
key = "k-%s"
tenant = "example"
scopes = ["validate:write"]
`, base64.RawURLEncoding.EncodeToString(keyBytes))
			if err := os.WriteFile(keysFile, []byte(keyContent), 0600); err != nil {
				return fmt.Errorf("writing key table: %w", err)
			}
			fmt.Printf("\nStarter key table written to %s\n", keysFile)
		}
	}

	if auditPath != "" {
		if err := os.MkdirAll(filepath.Dir(auditPath), 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  dorc-gateway serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
