package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hanogt/hanogt-bot/internal/core"
	"github.com/hanogt/hanogt-bot/internal/output"
)

var (
	flagPatternsCategory   string
	flagPatternsExitCode   bool
	flagPatternsOutputFile string
)

func init() {
	patternsListCmd.Flags().StringVar(&flagPatternsCategory, "category", "", "show only one threat category")
	patternsTestCmd.Flags().BoolVar(&flagPatternsExitCode, "exit-code", false, "exit 1 when the snippet is malicious")
	patternsExportCmd.Flags().StringVarP(&flagPatternsOutputFile, "output", "O", "", "output file (default: stdout)")

	patternsCmd.AddCommand(patternsListCmd)
	patternsCmd.AddCommand(patternsTestCmd)
	patternsCmd.AddCommand(patternsExportCmd)
	rootCmd.AddCommand(patternsCmd)
}

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Inspect the threat pattern catalog",
	Long: `Inspect the built-in threat pattern catalog.

The catalog is fixed: patterns cannot be added or removed at runtime.
Rules are matched case-insensitively except where a rule is explicitly
case sensitive. Per category, evaluation stops at the first hit.`,
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog rules grouped by category",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog := core.DefaultCatalog()

		categories := catalog.Categories()
		if flagPatternsCategory != "" {
			wanted := core.ThreatCategory(flagPatternsCategory)
			found := false
			for _, category := range categories {
				if category == wanted {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("unknown category: %s", flagPatternsCategory)
			}
			categories = []core.ThreatCategory{wanted}
		}

		if GetOutput() == "text" {
			for _, category := range categories {
				rules := catalog.Rules(category)
				fmt.Printf("\n%s (%d rules):\n", category, len(rules))
				for _, rule := range rules {
					if rule.CaseSensitive {
						fmt.Printf("  %s (case sensitive)\n", rule.Expr)
					} else {
						fmt.Printf("  %s\n", rule.Expr)
					}
				}
			}
			fmt.Println()
			return nil
		}

		result := make(map[string][]core.RuleDetails, len(categories))
		for _, category := range categories {
			rules := catalog.Rules(category)
			details := make([]core.RuleDetails, 0, len(rules))
			for _, rule := range rules {
				details = append(details, core.RuleDetails{
					Expr:          rule.Expr,
					CaseSensitive: rule.CaseSensitive,
				})
			}
			result[string(category)] = details
		}
		out := output.New(output.Format(GetOutput()))
		return out.Write(result)
	},
}

var patternsTestCmd = &cobra.Command{
	Use:   "test <snippet>",
	Short: "Classify a snippet against the catalog",
	Long: `Classify a code snippet and show the verdict.

Use --exit-code to exit 1 when the snippet is malicious; this suits
pre-commit hooks and CI gates.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snippet := args[0]
		verdict := core.Classify(snippet)
		imports := core.FindDangerousImports(snippet)
		builtins := core.FindDangerousBuiltins(snippet)

		if GetOutput() == "text" {
			renderVerdict(cmd.ErrOrStderr(), verdict, imports, builtins, false)
		} else {
			out := output.New(output.Format(GetOutput()))
			if err := out.Write(buildScanPayload(verdict, imports, builtins, false)); err != nil {
				return err
			}
		}

		if flagPatternsExitCode && verdict.IsMalicious {
			os.Stdout.Sync()
			os.Exit(1)
		}
		return nil
	},
}

var patternsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the catalog for external tools",
	Long: `Export the full catalog with metadata and a content hash.

The SHA256 hash is deterministic over the rule set, enabling change
detection across versions.

Examples:
  hanogt-bot patterns export                 # JSON to stdout
  hanogt-bot patterns export -O catalog.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog := core.DefaultCatalog()

		content, err := catalog.ExportJSON()
		if err != nil {
			return fmt.Errorf("exporting catalog: %w", err)
		}

		if flagPatternsOutputFile != "" {
			if err := os.WriteFile(flagPatternsOutputFile, []byte(content), 0644); err != nil {
				return fmt.Errorf("writing %s: %w", flagPatternsOutputFile, err)
			}
			out := output.New(output.Format(GetOutput()))
			if GetOutput() == "text" {
				out.Success(fmt.Sprintf("exported %d rules to %s", catalog.RuleCount(), flagPatternsOutputFile))
				return nil
			}
			return out.Write(map[string]any{
				"status": "exported",
				"file":   flagPatternsOutputFile,
				"sha256": catalog.ComputeHash(),
				"count":  catalog.RuleCount(),
			})
		}

		fmt.Print(content)
		if !strings.HasSuffix(content, "\n") {
			fmt.Println()
		}
		return nil
	},
}
