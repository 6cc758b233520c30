package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotsetgreg/factkeeper/pkg/config"
)

func runRootCommandForTest(args ...string) (string, error) {
	root := buildRootCommand(false)
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestCLIHelp(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "root_help",
			args: []string{"--help"},
			want: []string{"onboard", "chat", "gateway", "status", "facts", "version"},
		},
		{
			name: "chat_help",
			args: []string{"chat", "--help"},
			want: []string{"--message", "--sender", "--debug"},
		},
		{
			name: "facts_help",
			args: []string{"facts", "--help"},
			want: []string{"list", "search", "profile"},
		},
		{
			name: "facts_list_help",
			args: []string{"facts", "list", "--help"},
			want: []string{"--query", "--limit", "list <sender>"},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			output, err := runRootCommandForTest(tc.args...)
			require.NoError(t, err, output)
			for _, want := range tc.want {
				assert.Contains(t, output, want)
			}
		})
	}
}

func TestCLIRejectsBadArgs(t *testing.T) {
	_, err := runRootCommandForTest()
	assert.EqualError(t, err, "a subcommand is required")

	_, err = runRootCommandForTest("facts", "list")
	assert.Error(t, err)

	_, err = runRootCommandForTest("facts", "profile", "a", "b")
	assert.Error(t, err)

	_, err = runRootCommandForTest("status", "extra")
	assert.Error(t, err)
}

func TestCLIVersion(t *testing.T) {
	output, err := runRootCommandForTest("version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(output, appName+" "+formatVersion()), output)
}

func withConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if cfg != nil {
		require.NoError(t, config.SaveConfig(path, cfg))
	}
	t.Setenv("FACTKEEPER_CONFIG", path)
	return path
}

func TestOnboardWritesDefaults(t *testing.T) {
	path := withConfig(t, nil)

	output, err := runRootCommandForTest("onboard")
	require.NoError(t, err)
	assert.Contains(t, output, "is ready!")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Gateway.Port, cfg.Gateway.Port)
}

func TestOnboardKeepsExistingConfigUnlessConfirmed(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Gateway.Port = 4100
	path := withConfig(t, cfg)

	var out bytes.Buffer
	require.NoError(t, onboard(&out, strings.NewReader("nope\n"), path, false))
	assert.Contains(t, out.String(), "Aborted.")
	kept, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4100, kept.Gateway.Port)

	out.Reset()
	require.NoError(t, onboard(&out, strings.NewReader("yes\n"), path, false))
	reset, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3000, reset.Gateway.Port)
}

func TestStatusReportsReadiness(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Backend = "memory"
	cfg.Channels.WhatsApp.Enabled = true
	path := withConfig(t, cfg)

	var out bytes.Buffer
	statusCmd(&out, cfg, path)
	text := out.String()
	assert.Contains(t, text, "Store backend: memory")
	assert.Contains(t, text, "WhatsApp: missing credentials")
	assert.Contains(t, text, "Discord: disabled")
	assert.Contains(t, text, "Gateway: 0.0.0.0:3000")
}

func TestChatOneShotAndFactsCommands(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Backend = "sqlite"
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "facts.db")
	withConfig(t, cfg)

	rt, err := newRuntime(context.Background(), cfg)
	require.NoError(t, err)
	for _, line := range []string{"hello", "My name is Neha", "I like pineapple"} {
		_, err := rt.loop.ProcessDirect(context.Background(), line, "local")
		require.NoError(t, err)
	}
	rt.Close()

	output, err := runRootCommandForTest("facts", "list", "cli:local")
	require.NoError(t, err)
	assert.Contains(t, output, "pineapple")

	output, err = runRootCommandForTest("facts", "search", "pineapple")
	require.NoError(t, err)
	assert.Contains(t, output, "pineapple")

	output, err = runRootCommandForTest("facts", "profile", "cli:local")
	require.NoError(t, err)
	assert.Contains(t, output, `"name": "Neha"`)
}

func TestSimpleInteractiveMode(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Backend = "memory"
	rt, err := newRuntime(context.Background(), cfg)
	require.NoError(t, err)
	defer rt.Close()

	var out bytes.Buffer
	simpleInteractiveMode(context.Background(), rt.loop, "local", strings.NewReader("hello\nMy name is Neha\nexit\n"), &out)
	assert.Contains(t, out.String(), "Hello Neha!")
	assert.Contains(t, out.String(), "Goodbye!")
}

func TestGetConfigPathHonoursEnv(t *testing.T) {
	t.Setenv("FACTKEEPER_CONFIG", filepath.Join(os.TempDir(), "fk.json"))
	assert.Equal(t, filepath.Join(os.TempDir(), "fk.json"), getConfigPath())
}

func TestDocsGenerateAndCheck(t *testing.T) {
	dir := t.TempDir()
	docs := newDocsCommand(func() *cobra.Command { return buildRootCommand(false) })
	run := func(args ...string) error {
		docs.SetArgs(args)
		docs.SetOut(&bytes.Buffer{})
		return docs.Execute()
	}

	require.Error(t, run("generate", "--output", dir, "--check"), "empty docs dir is stale")
	require.NoError(t, run("generate", "--output", dir, "--check=false"))
	require.NoError(t, run("generate", "--output", dir, "--check"))

	factRef, err := os.ReadFile(filepath.Join(dir, "reference", "facts.md"))
	require.NoError(t, err)
	assert.Contains(t, string(factRef), "`birthday` > `phone` > `name`")
	assert.Contains(t, string(factRef), "gotcha, Adam's birthday is <value>")
	assert.Contains(t, string(factRef), "| `data_question` |")

	cfgRef, err := os.ReadFile(filepath.Join(dir, "reference", "config.md"))
	require.NoError(t, err)
	assert.Contains(t, string(cfgRef), "| `store.resync_cron` | `FACTKEEPER_STORE_RESYNC_CRON` | `*/5 * * * *` |")

	provRef, err := os.ReadFile(filepath.Join(dir, "reference", "providers.md"))
	require.NoError(t, err)
	assert.Contains(t, string(provRef), "`gemini`")

	_, err = os.Stat(filepath.Join(dir, "reference", "cli", "factkeeper_facts_list.md"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "reference", "facts.md"), []byte("edited"), 0o644))
	err = run("generate", "--output", dir, "--check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "facts.md")
}
