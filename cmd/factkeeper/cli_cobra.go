package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dotsetgreg/factkeeper/pkg/config"
	"github.com/dotsetgreg/factkeeper/pkg/facts"
	"github.com/dotsetgreg/factkeeper/pkg/logger"
	"github.com/dotsetgreg/factkeeper/pkg/store"
)

func executeCLI() error {
	root := buildRootCommand(true)
	if err := root.ExecuteContext(context.Background()); err != nil {
		return err
	}
	return nil
}

func buildRootCommand(includeDocsCommand bool) *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:   appName,
		Short: "Chat-driven personal data assistant with a WhatsApp webhook gateway",
		Long: strings.TrimSpace(`factkeeper remembers what people tell it over chat.

It extracts personal facts from messages, asks before overwriting what it
already knows, answers questions from stored facts, and serves the WhatsApp
webhook plus a small read-only HTTP API.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion(cmd.OutOrStdout())
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")

	root.AddCommand(newOnboardCommand())
	root.AddCommand(newChatCommand())
	root.AddCommand(newGatewayCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newFactsCommand())
	root.AddCommand(newVersionCommand())

	if includeDocsCommand {
		docsCmd := newDocsCommand(func() *cobra.Command { return buildRootCommand(false) })
		root.AddCommand(docsCmd)
	}

	return root
}

// commandConfig loads the config and raises the log level when debug is set.
func commandConfig(debug bool) (*config.Config, error) {
	cfg, err := loadConfig(getConfigPath())
	if err != nil {
		return nil, err
	}
	if debug {
		logger.SetLevel(logger.DEBUG)
		logger.DebugC("main", "Debug mode enabled")
	}
	return cfg, nil
}

func newOnboardCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "onboard",
		Short:   "Write a default ~/.factkeeper/config.json",
		Long:    "Create the default configuration for a new factkeeper installation.",
		Example: "  factkeeper onboard",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return onboard(cmd.OutOrStdout(), cmd.InOrStdin(), getConfigPath(), force)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config without asking")
	return cmd
}

func newChatCommand() *cobra.Command {
	var (
		message string
		sender  string
		debug   bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant locally (CLI mode)",
		Long:  "Run an interactive local conversation or send one message without WhatsApp.",
		Example: strings.Join([]string{
			"  factkeeper chat",
			"  factkeeper chat --sender 919910053492",
			"  factkeeper chat --message \"My birthday is 26th February\"",
		}, "\n"),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := commandConfig(debug)
			if err != nil {
				return err
			}
			return chatCmd(commandContext(cmd), cfg, strings.TrimSpace(message), strings.TrimSpace(sender))
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "One-shot message to send")
	cmd.Flags().StringVarP(&sender, "sender", "s", "local", "Sender identity for the local conversation")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

func newGatewayCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:     "gateway",
		Short:   "Run the WhatsApp webhook gateway and HTTP API",
		Long:    "Start channel adapters, the HTTP server, the agent loop and the store resync schedule.",
		Example: "  factkeeper gateway --debug",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := commandConfig(debug)
			if err != nil {
				return err
			}
			return gatewayCmd(commandContext(cmd), cfg)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show configuration, store and channel readiness",
		Example: "  factkeeper status",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := getConfigPath()
			cfg, err := loadConfig(path)
			if err != nil {
				return err
			}
			statusCmd(cmd.OutOrStdout(), cfg, path)
			return nil
		},
	}
}

func newFactsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "facts",
		Short: "Inspect stored facts",
		Long:  "Read facts straight from the configured store. Output is JSON.",
	}

	var (
		listQuery string
		listLimit int
	)
	list := &cobra.Command{
		Use:     "list <sender>",
		Short:   "List a sender's facts, newest first",
		Example: "  factkeeper facts list 919910053492 --query preference",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFactStore(commandContext(cmd), func(ctx context.Context, fs *store.FactStore) error {
				return printJSON(cmd.OutOrStdout(), nonNilFacts(fs.List(ctx, args[0], listQuery, listLimit)))
			})
		},
	}
	list.Flags().StringVarP(&listQuery, "query", "q", "", "Only facts whose type or content matches")
	list.Flags().IntVarP(&listLimit, "limit", "n", 10, "Maximum facts to print")

	var searchLimit int
	search := &cobra.Command{
		Use:     "search <query>",
		Short:   "Search facts across all senders",
		Example: "  factkeeper facts search pineapple",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return withFactStore(commandContext(cmd), func(ctx context.Context, fs *store.FactStore) error {
				return printJSON(cmd.OutOrStdout(), nonNilFacts(fs.Search(ctx, query, searchLimit)))
			})
		},
	}
	search.Flags().IntVarP(&searchLimit, "limit", "n", 5, "Maximum facts to print")

	profile := &cobra.Command{
		Use:     "profile <sender>",
		Short:   "Print a sender's profile summary",
		Example: "  factkeeper facts profile 919910053492",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFactStore(commandContext(cmd), func(ctx context.Context, fs *store.FactStore) error {
				return printJSON(cmd.OutOrStdout(), fs.Profile(ctx, args[0]))
			})
		},
	}

	cmd.AddCommand(list, search, profile)
	return cmd
}

func withFactStore(ctx context.Context, fn func(context.Context, *store.FactStore) error) error {
	cfg, err := loadConfig(getConfigPath())
	if err != nil {
		return err
	}
	fs, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open fact store: %w", err)
	}
	defer fs.Close()
	return fn(ctx, fs)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show version information",
		Example: "  factkeeper version",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion(cmd.OutOrStdout())
			return nil
		},
	}
}

func nonNilFacts(list []facts.Fact) []facts.Fact {
	if list == nil {
		return []facts.Fact{}
	}
	return list
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
