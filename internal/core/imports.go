package core

import (
	"regexp"
	"unicode/utf8"
)

// Policy limits owned by the security bot. MaxCodeLength is enforced by the
// caller before classification; MaxExecutionTimeMS bounds the runner.
const (
	// MaxCodeLength is the maximum code length accepted for scanning, in
	// characters.
	MaxCodeLength = 50000
	// MaxExecutionTimeMS is the maximum allowed execution time for submitted
	// code, in milliseconds.
	MaxExecutionTimeMS = 30000
)

// DangerousImports lists module names that must not be imported by submitted
// code.
var DangerousImports = []string{
	"os", "sys", "subprocess", "socket", "ctypes", "winreg",
	"win32api", "win32con", "win32gui", "pyautogui", "pynput",
	"keyboard", "mouse", "cv2", "PIL", "mss", "pyperclip",
}

// DangerousBuiltins lists built-in names that must not be invoked by
// submitted code.
var DangerousBuiltins = []string{
	"__import__", "open", "exec", "eval", "compile",
	"globals", "locals", "vars", "__builtins__",
}

type importRule struct {
	name     string
	compiled *regexp.Regexp
}

var (
	importGuards  []importRule
	builtinGuards []importRule
)

func init() {
	importGuards = make([]importRule, 0, len(DangerousImports))
	for _, name := range DangerousImports {
		q := regexp.QuoteMeta(name)
		importGuards = append(importGuards, importRule{
			name:     name,
			compiled: regexp.MustCompile(`(?i)(import\s+` + q + `|from\s+` + q + `\s+import)`),
		})
	}

	builtinGuards = make([]importRule, 0, len(DangerousBuiltins))
	for _, name := range DangerousBuiltins {
		q := regexp.QuoteMeta(name)
		builtinGuards = append(builtinGuards, importRule{
			name:     name,
			compiled: regexp.MustCompile(`(?i)\b` + q + `\b`),
		})
	}
}

// FindDangerousImports returns the dangerous module names the code imports,
// via either direct "import X" or "from X import" syntax. The result holds
// each name at most once; it is empty when the code is clean.
func FindDangerousImports(code string) []string {
	found := make([]string, 0, 2)
	for _, r := range importGuards {
		if r.compiled.MatchString(code) {
			found = append(found, r.name)
		}
	}
	return found
}

// FindDangerousBuiltins returns the dangerous built-in names referenced by
// the code.
func FindDangerousBuiltins(code string) []string {
	found := make([]string, 0, 2)
	for _, r := range builtinGuards {
		if r.compiled.MatchString(code) {
			found = append(found, r.name)
		}
	}
	return found
}

// ExceedsMaxLength reports whether code is longer than the accepted maximum.
// The limit counts characters, not bytes.
func ExceedsMaxLength(code string) bool {
	return utf8.RuneCountInString(code) > MaxCodeLength
}
