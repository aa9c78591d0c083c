// Terminal rendering of verdicts and ban status using lipgloss.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/hanogt/hanogt-bot/internal/core"
	"github.com/hanogt/hanogt-bot/internal/enforce"
)

// Catppuccin Mocha color palette
var (
	colorRed     = lipgloss.Color("#f38ba8") // malicious / banned
	colorGreen   = lipgloss.Color("#a6e3a1") // clean
	colorYellow  = lipgloss.Color("#f9e2af") // warnings
	colorOverlay = lipgloss.Color("#6c7086") // muted text
)

var (
	maliciousStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorRed)

	cleanStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorGreen)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorOverlay)
)

// isTTY reports whether stderr is a terminal; styling is disabled otherwise.
func isTTY() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func styled(style lipgloss.Style, s string) string {
	if !isTTY() {
		return s
	}
	return style.Render(s)
}

func renderVerdict(w io.Writer, verdict *core.Verdict, imports, builtins []string, banned bool) {
	if verdict.IsMalicious {
		fmt.Fprintf(w, "%s\n", styled(maliciousStyle, "MALICIOUS"))
		fmt.Fprintf(w, "  severity:  %s\n", verdict.Severity)
		fmt.Fprintf(w, "  threats:   %s\n", joinThreats(verdict.Threats))
		if len(verdict.MatchedSnippets) > 0 {
			fmt.Fprintf(w, "  matched:   %s\n", strings.Join(verdict.MatchedSnippets, ", "))
		}
		fmt.Fprintf(w, "  ban:       recommended\n")
	} else {
		fmt.Fprintf(w, "%s\n", styled(cleanStyle, "CLEAN"))
	}

	if len(imports) > 0 {
		fmt.Fprintf(w, "  %s %s\n", styled(warnStyle, "dangerous imports:"), strings.Join(imports, ", "))
	}
	if len(builtins) > 0 {
		fmt.Fprintf(w, "  %s %s\n", styled(warnStyle, "dangerous builtins:"), strings.Join(builtins, ", "))
	}
	if banned {
		fmt.Fprintf(w, "%s\n", styled(maliciousStyle, "identity permanently banned"))
	}
}

func renderBanStatus(w io.Writer, email string, status enforce.BanStatus) {
	if !status.Banned {
		fmt.Fprintf(w, "%s %s\n", styled(cleanStyle, "NOT BANNED"), email)
		return
	}

	fmt.Fprintf(w, "%s %s\n", styled(maliciousStyle, "BANNED"), email)
	if status.Reason != "" {
		fmt.Fprintf(w, "  reason: %s\n", status.Reason)
	}
	if status.BannedAt != nil {
		fmt.Fprintf(w, "  since:  %s\n", status.BannedAt.Format(time.RFC3339))
	}
	if status.Source != "" {
		fmt.Fprintf(w, "  %s\n", styled(mutedStyle, "source: "+string(status.Source)))
	}
}

func joinThreats(threats []core.ThreatCategory) string {
	names := make([]string, 0, len(threats))
	for _, threat := range threats {
		names = append(names, string(threat))
	}
	return strings.Join(names, ", ")
}
