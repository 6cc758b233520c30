// FactKeeper - chat-driven personal data assistant
// License: MIT
//
// Copyright (c) 2026 FactKeeper contributors

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"

	"github.com/dotsetgreg/factkeeper/pkg/agent"
	"github.com/dotsetgreg/factkeeper/pkg/api"
	"github.com/dotsetgreg/factkeeper/pkg/channels"
	"github.com/dotsetgreg/factkeeper/pkg/config"
	"github.com/dotsetgreg/factkeeper/pkg/logger"
	"github.com/dotsetgreg/factkeeper/pkg/store"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

const appName = "factkeeper"

// formatVersion returns the version string with optional git commit
func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func formatBuildInfo() (build string, goVer string) {
	if buildTime != "" {
		build = buildTime
	}
	goVer = goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "%s %s\n", appName, formatVersion())
	build, goVer := formatBuildInfo()
	if build != "" {
		fmt.Fprintf(w, "  Build: %s\n", build)
	}
	if goVer != "" {
		fmt.Fprintf(w, "  Go: %s\n", goVer)
	}
}

func main() {
	if err := executeCLI(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// getConfigPath honours FACTKEEPER_CONFIG, then ~/.factkeeper/config.json.
func getConfigPath() string {
	if p := strings.TrimSpace(os.Getenv("FACTKEEPER_CONFIG")); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".factkeeper", "config.json")
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	return cfg, nil
}

func onboard(out io.Writer, in io.Reader, configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		fmt.Fprintf(out, "Config already exists at %s\n", configPath)
		fmt.Fprint(out, "Overwrite? (y/n): ")
		response, readErr := bufio.NewReader(in).ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return fmt.Errorf("read answer: %w", readErr)
		}
		if agent.ParseConfirmation(response) != agent.ConfirmYes {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	if err := config.SaveConfig(configPath, config.DefaultConfig()); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Fprintf(out, "%s is ready!\n", appName)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Edit", configPath)
	fmt.Fprintln(out, "     (optional) set classifier.provider to openrouter or gemini and add the API key")
	fmt.Fprintln(out, "  2. Chat locally: factkeeper chat")
	fmt.Fprintln(out, "  3. Enable channels.whatsapp and run: factkeeper gateway")
	fmt.Fprintln(out, "  4. Check readiness: factkeeper status")
	return nil
}

func chatCmd(ctx context.Context, cfg *config.Config, message, senderID string) error {
	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.InfoCF("agent", "Agent initialized", rt.loop.GetStartupInfo())

	if message != "" {
		response, err := rt.loop.ProcessDirect(ctx, message, senderID)
		if err != nil {
			return err
		}
		fmt.Printf("\n%s %s\n", appName, response)
		return nil
	}

	fmt.Printf("%s Interactive mode (Ctrl+C to exit)\n\n", appName)
	interactiveMode(ctx, rt.loop, senderID)
	return nil
}

func interactiveMode(ctx context.Context, agentLoop *agent.AgentLoop, senderID string) {
	prompt := fmt.Sprintf("%s You: ", appName)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(os.TempDir(), ".factkeeper_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		fmt.Println("Falling back to simple input mode...")
		simpleInteractiveMode(ctx, agentLoop, senderID, os.Stdin, os.Stdout)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}
		if !chatTurn(ctx, agentLoop, senderID, line, os.Stdout) {
			return
		}
	}
}

func simpleInteractiveMode(ctx context.Context, agentLoop *agent.AgentLoop, senderID string, in io.Reader, out io.Writer) {
	reader := bufio.NewReader(in)
	for {
		fmt.Fprintf(out, "%s You: ", appName)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				fmt.Fprintln(out, "\nGoodbye!")
				return
			}
			fmt.Fprintf(out, "Error reading input: %v\n", err)
			continue
		}
		if !chatTurn(ctx, agentLoop, senderID, line, out) {
			return
		}
	}
}

// chatTurn runs one line through the agent. It returns false when the
// user asked to leave.
func chatTurn(ctx context.Context, agentLoop *agent.AgentLoop, senderID, line string, out io.Writer) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}
	if input == "exit" || input == "quit" {
		fmt.Fprintln(out, "Goodbye!")
		return false
	}

	response, err := agentLoop.ProcessDirect(ctx, input, senderID)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return true
	}
	if response == "" {
		response = "(no reply)"
	}
	fmt.Fprintf(out, "\n%s %s\n\n", appName, response)
	return true
}

func gatewayCmd(ctx context.Context, cfg *config.Config) error {
	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	channelManager, err := channels.NewManager(cfg, rt.bus)
	if err != nil {
		return fmt.Errorf("create channel manager: %w", err)
	}
	fmt.Printf("✓ Channels enabled: %s\n", strings.Join(channelManager.GetEnabledChannels(), ", "))
	fmt.Printf("✓ Fact store: %s\n", rt.facts.BackendName())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := channelManager.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}

	var routes []api.RouteRegistrar
	if wa, ok := channelManager.WhatsApp(); ok {
		routes = append(routes, wa)
	}
	server := api.NewServer(cfg.Gateway.Host, cfg.Gateway.Port, rt.facts, rt.readiness(channelManager), routes...)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCF("api", "HTTP server error", map[string]interface{}{"error": err.Error()})
			cancel()
		}
	}()
	fmt.Printf("✓ HTTP endpoints available at http://%s (/health, /ready, /api, /webhook)\n", server.Addr())

	if rt.resyncer != nil {
		go rt.resyncer.Run(ctx)
		fmt.Printf("✓ Store resync scheduled (%s)\n", cfg.Store.ResyncCron)
	}

	go func() {
		_ = rt.loop.Run(ctx)
	}()
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	fmt.Println("\nShutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Stop(shutdownCtx)
	rt.loop.Stop()
	cancel()
	_ = channelManager.StopAll(shutdownCtx)

	report := rt.facts.Resync(shutdownCtx)
	if report.Replayed > 0 || report.Purged > 0 || report.Failed > 0 {
		fmt.Printf("✓ Final resync: %d replayed, %d purged, %d failed\n", report.Replayed, report.Purged, report.Failed)
	}
	fmt.Println("✓ Gateway stopped")
	return nil
}

func statusCmd(out io.Writer, cfg *config.Config, configPath string) {
	fmt.Fprintf(out, "%s Status\n", appName)
	fmt.Fprintf(out, "Version: %s\n", formatVersion())
	if build, _ := formatBuildInfo(); build != "" {
		fmt.Fprintf(out, "Build: %s\n", build)
	}
	fmt.Fprintln(out)

	mark := func(ok bool, missing string) string {
		if ok {
			return "✓"
		}
		return missing
	}

	_, cfgErr := os.Stat(configPath)
	fmt.Fprintln(out, "Config:", configPath, mark(cfgErr == nil, "✗ (defaults)"))

	fmt.Fprintln(out, "Store backend:", cfg.Store.Backend)
	if strings.EqualFold(cfg.Store.Backend, store.BackendSQLite) {
		_, dbErr := os.Stat(cfg.SQLitePath())
		fmt.Fprintln(out, "SQLite DB:", cfg.SQLitePath(), mark(dbErr == nil, "not initialized"))
	}
	fmt.Fprintln(out, "Sessions backend:", cfg.Sessions.Backend)
	fmt.Fprintln(out, "Classifier:", cfg.Classifier.Provider)
	fmt.Fprintln(out, "Events:", mark(cfg.Events.Enabled, "disabled"))

	wa := cfg.Channels.WhatsApp
	waReady := wa.Enabled && wa.AccessToken != "" && wa.PhoneNumberID != "" && wa.VerifyToken != ""
	fmt.Fprintln(out, "WhatsApp:", mark(waReady, notReady(wa.Enabled)))
	dc := cfg.Channels.Discord
	fmt.Fprintln(out, "Discord:", mark(dc.Enabled && dc.Token != "", notReady(dc.Enabled)))
	fmt.Fprintln(out, "Gateway:", cfg.ListenAddr())
}

func notReady(enabled bool) string {
	if enabled {
		return "missing credentials"
	}
	return "disabled"
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
