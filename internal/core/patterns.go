// Package core implements malicious-code classification for the Hanogt
// security bot: the threat pattern catalog, the classifier, and the
// dangerous-import guard.
package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"time"
)

// ThreatCategory labels a class of malicious behavior recognized by the catalog.
type ThreatCategory string

const (
	CategorySystemCommands      ThreatCategory = "systemCommands"
	CategoryFileAttacks         ThreatCategory = "fileAttacks"
	CategoryResourceAttacks     ThreatCategory = "resourceAttacks"
	CategoryNetworkAttacks      ThreatCategory = "networkAttacks"
	CategoryDataTheft           ThreatCategory = "dataTheft"
	CategoryCryptoMining        ThreatCategory = "cryptoMining"
	CategoryRansomware          ThreatCategory = "ransomware"
	CategoryBackdoor            ThreatCategory = "backdoor"
	CategoryPrivilegeEscalation ThreatCategory = "privilegeEscalation"
	CategoryExploits            ThreatCategory = "exploits"
	CategoryMalwareIndicators   ThreatCategory = "malwareIndicators"
)

// Severity is the ordinal severity attached to a verdict.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rule is one compiled detection pattern within a threat category.
type Rule struct {
	// Category is the threat category this rule belongs to.
	Category ThreatCategory
	// Expr is the regex pattern string as authored.
	Expr string
	// Compiled is the compiled regex.
	Compiled *regexp.Regexp
	// CaseSensitive disables the default case-insensitive compilation.
	CaseSensitive bool
}

type ruleDef struct {
	expr          string
	caseSensitive bool
}

func rx(expr string) ruleDef { return ruleDef{expr: expr} }

// builtinRules holds the authoritative rule set, in evaluation order.
// Within a category the first matching rule wins; remaining rules in that
// category are not evaluated.
var builtinRules = []struct {
	category ThreatCategory
	rules    []ruleDef
}{
	{CategorySystemCommands, []ruleDef{
		rx(`os\.system\s*\(`),
		rx(`subprocess\.(call|run|Popen|check_output)\s*\(`),
		rx(`exec\s*\(`),
		rx(`eval\s*\(`),
		rx(`shell_exec\s*\(`),
		rx(`system\s*\(`),
		rx(`passthru\s*\(`),
		rx(`popen\s*\(`),
		rx(`proc_open\s*\(`),
		rx(`Runtime\.getRuntime\(\)\.exec`),
		rx(`ProcessBuilder`),
		rx(`child_process`),
		rx(`spawn\s*\(`),
		rx(`execSync\s*\(`),
		rx(`execFile\s*\(`),
	}},
	{CategoryFileAttacks, []ruleDef{
		rx(`rm\s+-rf`),
		rx(`rm\s+-f`),
		rx(`rm\s+--no-preserve-root`),
		rx(`del\s+/[fqs]`),
		rx(`rmdir\s+/[sq]`),
		rx(`format\s+[a-z]:`),
		rx(`mkfs\.`),
		rx(`dd\s+if=.*of=`),
		rx(`shutil\.rmtree\s*\(`),
		rx(`os\.remove\s*\(`),
		rx(`os\.unlink\s*\(`),
		rx(`os\.rmdir\s*\(`),
		rx(`pathlib.*unlink`),
		rx(`fs\.unlinkSync\s*\(`),
		rx(`fs\.rmdirSync\s*\(`),
		rx(`fs\.rmSync\s*\(`),
		rx(`File\.delete\s*\(`),
		rx(`Files\.delete\s*\(`),
		rx(`Files\.deleteIfExists`),
		rx(`FileUtils\.deleteDirectory`),
		rx(`rimraf`),
		rx(`deltree`),
	}},
	{CategoryResourceAttacks, []ruleDef{
		rx(`:\(\)\{\s*:\|:\s*&\s*\}`),
		rx(`while\s*\(\s*true\s*\)\s*\{\s*fork`),
		rx(`for\s*\(\s*;\s*;\s*\)\s*fork`),
		rx(`\bfork\s*\(\s*\)`),
		rx(`while\s*\(\s*1\s*\)\s*\{[^}]*malloc`),
		rx(`while\s*True\s*:`),
		rx(`while\s*\(\s*true\s*\)`),
		rx(`for\s*\(\s*;\s*;\s*\)`),
		rx(`%0\|%0`),
		rx(`bomb`),
		rx(`infinite.*loop`),
		rx(`memory.*leak`),
		rx(`oom.*killer`),
	}},
	{CategoryNetworkAttacks, []ruleDef{
		rx(`socket\.connect`),
		rx(`socket\.socket`),
		rx(`urllib\.request`),
		rx(`requests\.(get|post|put|delete|patch)`),
		rx(`http\.client`),
		rx(`httplib`),
		rx(`XMLHttpRequest`),
		rx(`net\.connect`),
		rx(`new\s+Socket`),
		rx(`WebSocket`),
		rx(`reverse.*shell`),
		rx(`bind.*shell`),
		rx(`nc\s+-[el]`),
		rx(`ncat`),
		rx(`telnet`),
		rx(`ssh.*-R`),
		rx(`curl\s+.*\|.*sh`),
		rx(`wget\s+.*\|.*sh`),
		rx(`powershell.*download`),
		rx(`Invoke-WebRequest`),
		rx(`DDoS`),
		rx(`syn.*flood`),
		rx(`ping\s+-f`),
	}},
	{CategoryDataTheft, []ruleDef{
		rx(`keyboard`),
		rx(`pynput`),
		rx(`keylogger`),
		rx(`key.*log`),
		rx(`pyautogui\.screenshot`),
		rx(`ImageGrab\.grab`),
		rx(`mss\.mss`),
		rx(`win32clipboard`),
		rx(`pyperclip`),
		rx(`ctypes\.windll`),
		rx(`GetAsyncKeyState`),
		rx(`SetWindowsHookEx`),
		rx(`subprocess.*password`),
		rx(`os\.environ`),
		rx(`getenv`),
		rx(`credential`),
		rx(`stealer`),
		rx(`grabber`),
		rx(`webcam`),
		rx(`microphone`),
		rx(`cv2\.VideoCapture`),
		rx(`screen.*capture`),
		rx(`clipboard`),
		rx(`browser.*data`),
		rx(`cookie.*steal`),
		rx(`session.*hijack`),
	}},
	{CategoryCryptoMining, []ruleDef{
		rx(`coinhive`),
		rx(`cryptonight`),
		rx(`minero`),
		rx(`stratum\+tcp`),
		rx(`xmrig`),
		rx(`crypto-?loot`),
		rx(`minergate`),
		rx(`nicehash`),
		rx(`hashrate`),
		rx(`mining.*pool`),
		rx(`monero`),
		rx(`bitcoin.*mine`),
		rx(`ethereum.*mine`),
		rx(`cpu.*miner`),
		rx(`gpu.*miner`),
	}},
	{CategoryRansomware, []ruleDef{
		rx(`\.encrypt\s*\(`),
		rx(`AES\.new\s*\(`),
		rx(`Fernet\s*\(`),
		rx(`RSA.*encrypt`),
		rx(`bitcoin.*wallet`),
		rx(`ransom`),
		rx(`your files.*encrypted`),
		rx(`pay.*bitcoin`),
		rx(`decrypt.*key`),
		rx(`cryptolocker`),
		rx(`wannacry`),
		rx(`locky`),
		rx(`\.locked$`),
		rx(`\.encrypted$`),
		rx(`file.*hostage`),
	}},
	{CategoryBackdoor, []ruleDef{
		rx(`backdoor`),
		rx(`reverse.*connect`),
		rx(`remote.*access`),
		{expr: `RAT`, caseSensitive: true},
		rx(`trojan`),
		rx(`rootkit`),
		rx(`persistence`),
		rx(`autorun`),
		rx(`startup.*folder`),
		rx(`registry.*run`),
		rx(`crontab`),
		rx(`scheduled.*task`),
		rx(`schtasks`),
		rx(`hidden.*service`),
		rx(`c2.*server`),
		rx(`command.*control`),
		rx(`beacon`),
		rx(`implant`),
	}},
	{CategoryPrivilegeEscalation, []ruleDef{
		rx(`sudo\s+`),
		rx(`su\s+-`),
		rx(`runas`),
		rx(`privilege.*escalat`),
		rx(`setuid`),
		rx(`setgid`),
		rx(`chmod\s+4`),
		rx(`chmod\s+777`),
		rx(`chown.*root`),
		rx(`passwd`),
		rx(`shadow`),
		rx(`SAM.*database`),
		rx(`mimikatz`),
		rx(`hashdump`),
		rx(`lsass`),
		rx(`token.*impersonat`),
	}},
	{CategoryExploits, []ruleDef{
		rx(`exploit`),
		rx(`payload`),
		rx(`shellcode`),
		rx(`buffer.*overflow`),
		rx(`heap.*spray`),
		rx(`ROP.*chain`),
		rx(`return.*oriented`),
		rx(`stack.*smash`),
		rx(`format.*string`),
		rx(`use.*after.*free`),
		rx(`CVE-\d{4}`),
		rx(`0day`),
		rx(`zero.*day`),
		rx(`metasploit`),
		rx(`msfvenom`),
		rx(`cobalt.*strike`),
	}},
	{CategoryMalwareIndicators, []ruleDef{
		rx(`virus`),
		rx(`malware`),
		rx(`worm`),
		rx(`spyware`),
		rx(`adware`),
		rx(`botnet`),
		rx(`zombie`),
		rx(`phishing`),
		rx(`inject`),
		rx(`hook`),
		rx(`patch.*memory`),
		rx(`dll.*inject`),
		rx(`code.*cave`),
		rx(`pe.*infect`),
		rx(`elf.*infect`),
		rx(`obfuscat`),
		rx(`pack.*executable`),
		rx(`upx.*-d`),
		rx(`anti.*debug`),
		rx(`anti.*vm`),
		rx(`sandbox.*detect`),
	}},
}

// Catalog is the read-only registry of detection rules grouped by category.
// It is built once at initialization and never mutated afterwards.
type Catalog struct {
	categories []ThreatCategory
	rules      map[ThreatCategory][]*Rule
}

// NewCatalog builds a catalog from the builtin rule set.
func NewCatalog() *Catalog {
	c := &Catalog{
		rules: make(map[ThreatCategory][]*Rule, len(builtinRules)),
	}
	for _, group := range builtinRules {
		c.categories = append(c.categories, group.category)
		c.rules[group.category] = compileRules(group.category, group.rules)
	}
	return c
}

func compileRules(category ThreatCategory, defs []ruleDef) []*Rule {
	result := make([]*Rule, 0, len(defs))
	for _, d := range defs {
		expr := d.expr
		if !d.caseSensitive {
			expr = "(?i)" + expr
		}
		compiled, err := regexp.Compile(expr)
		if err != nil {
			// Builtin rules must always be valid.
			panic(fmt.Sprintf("invalid builtin rule %q in %s: %v", d.expr, category, err))
		}
		result = append(result, &Rule{
			Category:      category,
			Expr:          d.expr,
			Compiled:      compiled,
			CaseSensitive: d.caseSensitive,
		})
	}
	return result
}

// Categories returns the categories in evaluation order.
func (c *Catalog) Categories() []ThreatCategory {
	out := make([]ThreatCategory, len(c.categories))
	copy(out, c.categories)
	return out
}

// Rules returns the rules for a category in evaluation order.
func (c *Catalog) Rules(category ThreatCategory) []*Rule {
	return c.rules[category]
}

// RuleCount returns the total number of rules across all categories.
func (c *Catalog) RuleCount() int {
	n := 0
	for _, rules := range c.rules {
		n += len(rules)
	}
	return n
}

// Global catalog instance.
var defaultCatalog = NewCatalog()

// DefaultCatalog returns the process-wide catalog.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// CatalogExport is the exported rule set for external tools.
type CatalogExport struct {
	Version     string                    `json:"version"`
	GeneratedAt time.Time                 `json:"generated_at"`
	SHA256      string                    `json:"sha256"`
	Categories  map[string]CategoryExport `json:"categories"`
	Metadata    CatalogExportMetadata     `json:"metadata"`
}

// CategoryExport represents a single category's rules for export.
type CategoryExport struct {
	Rules []RuleDetails `json:"rules"`
}

// RuleDetails represents a single rule for export.
type RuleDetails struct {
	Expr          string `json:"expr"`
	CaseSensitive bool   `json:"case_sensitive,omitempty"`
}

// CatalogExportMetadata contains summary information about the export.
type CatalogExportMetadata struct {
	RuleCount      int            `json:"rule_count"`
	CategoryCounts map[string]int `json:"category_counts"`
}

// Export exports the catalog in a structured format suitable for external tools.
func (c *Catalog) Export() *CatalogExport {
	export := &CatalogExport{
		Version:     "1.0.0",
		GeneratedAt: time.Now().UTC(),
		Categories:  make(map[string]CategoryExport, len(c.categories)),
		Metadata: CatalogExportMetadata{
			CategoryCounts: make(map[string]int, len(c.categories)),
		},
	}

	for _, category := range c.categories {
		rules := c.rules[category]
		details := make([]RuleDetails, 0, len(rules))
		for _, r := range rules {
			details = append(details, RuleDetails{
				Expr:          r.Expr,
				CaseSensitive: r.CaseSensitive,
			})
		}
		export.Categories[string(category)] = CategoryExport{Rules: details}
		export.Metadata.CategoryCounts[string(category)] = len(rules)
		export.Metadata.RuleCount += len(rules)
	}

	export.SHA256 = c.ComputeHash()
	return export
}

// ComputeHash returns a deterministic hash of all rules for change detection.
func (c *Catalog) ComputeHash() string {
	var all []string
	for _, category := range c.categories {
		for _, r := range c.rules[category] {
			all = append(all, fmt.Sprintf("%s:%s:%t", category, r.Expr, r.CaseSensitive))
		}
	}
	sort.Strings(all)

	h := sha256.New()
	for _, s := range all {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ExportJSON returns the catalog as an indented JSON string.
func (c *Catalog) ExportJSON() (string, error) {
	data, err := json.MarshalIndent(c.Export(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
