package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/hanogt/hanogt-bot/internal/core"
	"github.com/hanogt/hanogt-bot/internal/enforce"
	"github.com/hanogt/hanogt-bot/internal/output"
)

var (
	flagScanEmail    string
	flagScanRecord   bool
	flagScanEnforce  bool
	flagScanExitCode bool
)

func init() {
	scanCmd.Flags().StringVarP(&flagScanEmail, "email", "e", "", "identity the submission belongs to")
	scanCmd.Flags().BoolVar(&flagScanRecord, "record", false, "append the result to the security event trail (requires --email)")
	scanCmd.Flags().BoolVar(&flagScanEnforce, "enforce", false, "ban the identity when the verdict recommends it (requires --email)")
	scanCmd.Flags().BoolVar(&flagScanExitCode, "exit-code", false, "exit 1 when the submission is malicious")

	rootCmd.AddCommand(scanCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan [file]",
	Short: "Scan code for malicious patterns",
	Long: `Scan a code submission against the threat catalog.

Reads from the given file, or from stdin when no file (or "-") is given.
The verdict lists the triggered threat categories, the matched snippets,
and any dangerous imports or built-ins found.

With --email and --record the result is appended to the security event
trail. With --enforce a malicious verdict permanently bans the identity.
The policy is zero tolerance: there is no graduated response.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	if (flagScanRecord || flagScanEnforce) && flagScanEmail == "" {
		return fmt.Errorf("--record and --enforce require --email")
	}

	code, err := readCode(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	// The limit counts characters, not bytes.
	if max := cfg.Security.MaxCodeLength; utf8.RuneCountInString(code) > max {
		return fmt.Errorf("submission is %d characters, limit is %d", utf8.RuneCountInString(code), max)
	}

	verdict := core.Classify(code)
	imports := core.FindDangerousImports(code)
	builtins := core.FindDangerousBuiltins(code)

	banned := false
	if flagScanRecord || (flagScanEnforce && verdict.ShouldBan) {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()
		svc := newEnforcer(database)

		if flagScanEnforce && verdict.ShouldBan {
			if isTrustedUser(flagScanEmail) {
				loggerFor("scan").Warn("trusted user not banned despite malicious verdict", "email", flagScanEmail)
			} else {
				banned = svc.Ban(cmd.Context(), flagScanEmail, banReason(verdict), code)
				if !banned {
					return fmt.Errorf("banning %s failed", flagScanEmail)
				}
			}
		}

		if flagScanRecord {
			if eventType, ok := scanEventType(verdict, imports, builtins, banned); ok {
				svc.Record(cmd.Context(), flagScanEmail, eventType, verdict, code)
			}
		}
	}

	payload := buildScanPayload(verdict, imports, builtins, banned)

	if GetOutput() == "text" {
		renderVerdict(cmd.ErrOrStderr(), verdict, imports, builtins, banned)
	} else {
		out := output.New(output.Format(GetOutput()))
		if err := out.Write(payload); err != nil {
			return err
		}
	}

	if flagScanExitCode && verdict.IsMalicious {
		os.Stdout.Sync()
		os.Exit(1)
	}
	return nil
}

// readCode reads the submission from the file argument or stdin.
func readCode(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return string(data), nil
}

// scanEventType maps a scan result to its audit event type. A scan with no
// findings at all has nothing worth recording and reports ok=false.
func scanEventType(verdict *core.Verdict, imports, builtins []string, banned bool) (enforce.EventType, bool) {
	switch {
	case banned:
		return enforce.EventBan, true
	case verdict.IsMalicious:
		return enforce.EventBlock, true
	case len(imports) > 0 || len(builtins) > 0:
		// Dangerous imports or builtins alone are a warning, not a block.
		return enforce.EventWarning, true
	default:
		return "", false
	}
}

// banReason summarizes the verdict for the ban record.
func banReason(verdict *core.Verdict) string {
	if len(verdict.Threats) == 0 {
		return "Malicious code detected"
	}
	names := make([]string, 0, len(verdict.Threats))
	for _, threat := range verdict.Threats {
		names = append(names, string(threat))
	}
	return "Malicious code detected: " + strings.Join(names, ", ")
}

func buildScanPayload(verdict *core.Verdict, imports, builtins []string, banned bool) map[string]any {
	payload := map[string]any{
		"is_malicious": verdict.IsMalicious,
		"severity":     string(verdict.Severity),
		"should_ban":   verdict.ShouldBan,
	}
	if len(verdict.Threats) > 0 {
		payload["threats"] = verdict.Threats
	}
	if len(verdict.MatchedSnippets) > 0 {
		payload["matched_snippets"] = verdict.MatchedSnippets
	}
	if len(imports) > 0 {
		payload["dangerous_imports"] = imports
	}
	if len(builtins) > 0 {
		payload["dangerous_builtins"] = builtins
	}
	if banned {
		payload["banned"] = true
	}
	return payload
}

func isTrustedUser(email string) bool {
	for _, trusted := range cfg.Security.TrustedUsers {
		if strings.EqualFold(trusted, email) {
			return true
		}
	}
	return false
}
