package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	cobraDoc "github.com/spf13/cobra/doc"

	"github.com/dotsetgreg/factkeeper/pkg/config"
	"github.com/dotsetgreg/factkeeper/pkg/facts"
	"github.com/dotsetgreg/factkeeper/pkg/providers"
)

func newDocsCommand(rootFactory func() *cobra.Command) *cobra.Command {
	docsRoot := &cobra.Command{
		Use:    "docs",
		Short:  "Docs maintenance commands",
		Hidden: true,
	}

	var (
		outputDir string
		checkOnly bool
	)
	gen := &cobra.Command{
		Use:   "generate",
		Short: "Generate CLI, fact model, config and provider reference docs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(outputDir) == "" {
				return fmt.Errorf("--output must not be empty")
			}
			docs, err := renderReferences(rootFactory())
			if err != nil {
				return err
			}
			if checkOnly {
				return checkReferences(docs, outputDir)
			}
			return writeReferences(cmd, docs, outputDir)
		},
	}
	gen.Flags().StringVar(&outputDir, "output", "docs", "Docs directory root")
	gen.Flags().BoolVar(&checkOnly, "check", false, "Fail if generated docs are out of date")

	docsRoot.AddCommand(gen)
	return docsRoot
}

// renderReferences builds every reference page in memory, keyed by its
// path under the docs root.
func renderReferences(root *cobra.Command) (map[string][]byte, error) {
	docs := map[string][]byte{}
	if err := renderCommandPages(root, docs); err != nil {
		return nil, err
	}
	docs[filepath.Join("reference", "facts.md")] = []byte(factModelReference())
	docs[filepath.Join("reference", "config.md")] = []byte(configReference())
	docs[filepath.Join("reference", "providers.md")] = []byte(providersReference())
	return docs, nil
}

func renderCommandPages(cmd *cobra.Command, docs map[string][]byte) error {
	if cmd.Hidden || cmd.Name() == "help" {
		return nil
	}
	cmd.DisableAutoGenTag = true

	var buf bytes.Buffer
	name := strings.ReplaceAll(cmd.CommandPath(), " ", "_") + ".md"
	fmt.Fprintf(&buf, "# %s\n\n", cmd.CommandPath())
	if err := cobraDoc.GenMarkdownCustom(cmd, &buf, func(s string) string { return s }); err != nil {
		return fmt.Errorf("render %s: %w", cmd.CommandPath(), err)
	}
	docs[filepath.Join("reference", "cli", name)] = buf.Bytes()

	for _, child := range cmd.Commands() {
		if err := renderCommandPages(child, docs); err != nil {
			return err
		}
	}
	return nil
}

func writeReferences(cmd *cobra.Command, docs map[string][]byte, outputDir string) error {
	for _, rel := range sortedPaths(docs) {
		path := filepath.Join(outputDir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, docs[rel], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", rel, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	return nil
}

func checkReferences(docs map[string][]byte, outputDir string) error {
	var stale []string
	for _, rel := range sortedPaths(docs) {
		current, err := os.ReadFile(filepath.Join(outputDir, rel))
		if err != nil || !bytes.Equal(current, docs[rel]) {
			stale = append(stale, rel)
		}
	}
	if len(stale) > 0 {
		return fmt.Errorf("docs out of date, run `factkeeper docs generate`: %s", strings.Join(stale, ", "))
	}
	return nil
}

func sortedPaths(docs map[string][]byte) []string {
	paths := make([]string, 0, len(docs))
	for p := range docs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

var intentDocs = []struct {
	kind facts.IntentKind
	when string
}{
	{facts.IntentCommand, "contains `delete data` or `delete all data`"},
	{facts.IntentGreeting, "contains a greeting word (hello, hi, hey, good morning/afternoon/evening, greetings)"},
	{facts.IntentQuestion, "matches a fixed question pattern, or has a when/what/who opener or trailing `?` and asks about `<Name>'s <field>` or the sender"},
	{facts.IntentStatement, "the classifier finds a personal data type"},
	{facts.IntentNone, "anything else; nothing is sent"},
}

func factModelReference() string {
	var b strings.Builder
	b.WriteString("# Fact Model Reference\n\n")
	b.WriteString("Generated from `pkg/facts`.\n\n")

	b.WriteString("## Data types\n\n")
	b.WriteString("Rule precedence: ")
	order := facts.RuleOrder()
	names := make([]string, len(order))
	for i, t := range order {
		names[i] = "`" + string(t) + "`"
	}
	b.WriteString(strings.Join(names, " > ") + ", otherwise `other`.\n\n")

	b.WriteString("| Type | Label | Stored for self | Stored for a third party |\n")
	b.WriteString("| --- | --- | --- | --- |\n")
	for _, t := range []facts.DataType{
		facts.TypeBirthday, facts.TypePhone, facts.TypeName, facts.TypePreference,
		facts.TypeWork, facts.TypeIdentity, facts.TypeTrip, facts.TypeEvent,
	} {
		self := facts.Acknowledge(facts.Extraction{DataType: t, Subject: facts.SelfSubject, Content: "<value>"})
		other := facts.Acknowledge(facts.Extraction{DataType: t, Subject: "Adam", Person: "Adam", Content: "<value>"})
		fmt.Fprintf(&b, "| `%s` | %s | %s | %s |\n", t, t.Label(), self, other)
	}

	b.WriteString("\n## Intents\n\nChecked top to bottom; the first match wins.\n\n")
	b.WriteString("| Intent | When |\n")
	b.WriteString("| --- | --- |\n")
	for _, in := range intentDocs {
		fmt.Fprintf(&b, "| `%s` | %s |\n", in.kind, in.when)
	}
	return b.String()
}

// configReference walks DefaultConfig and lists every leaf setting with
// its env override and default.
func configReference() string {
	var b strings.Builder
	b.WriteString("# Config Reference\n\n")
	b.WriteString("Generated from `config.DefaultConfig()`. Env vars override the file.\n\n")
	b.WriteString("| Key | Env Var | Default |\n")
	b.WriteString("| --- | --- | --- |\n")

	var rows []string
	walkConfig(reflect.ValueOf(config.DefaultConfig()).Elem(), "", func(key, env string, v reflect.Value) {
		rows = append(rows, fmt.Sprintf("| `%s` | `%s` | `%s` |\n", key, orDash(env), orDash(defaultText(v))))
	})
	sort.Strings(rows)
	for _, r := range rows {
		b.WriteString(r)
	}
	return b.String()
}

func walkConfig(v reflect.Value, prefix string, visit func(key, env string, v reflect.Value)) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := strings.Split(field.Tag.Get("json"), ",")[0]
		if !field.IsExported() || tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if field.Type.Kind() == reflect.Struct {
			walkConfig(v.Field(i), key, visit)
			continue
		}
		visit(key, field.Tag.Get("env"), v.Field(i))
	}
}

func defaultText(v reflect.Value) string {
	switch v.Kind() {
	case reflect.Slice:
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = fmt.Sprint(v.Index(i).Interface())
		}
		return strings.Join(parts, ",")
	case reflect.String:
		return v.String()
	default:
		return fmt.Sprint(v.Interface())
	}
}

func providersReference() string {
	var b strings.Builder
	b.WriteString("# Provider Reference\n\n")
	b.WriteString("Set `classifier.provider` to one of the providers below. ")
	b.WriteString("`none` keeps the rule-based classifier and fixed reply templates.\n\n")
	for _, name := range providers.SupportedProviders() {
		fmt.Fprintf(&b, "- `%s`: configured under `providers.%s`, requires `api_key`\n", name, name)
	}
	return b.String()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "|", "\\|")
}
