package permission

import (
	"regexp"
	"strings"
)

// Risk classifies a requested tool call.
type Risk int

const (
	RiskNormal Risk = iota
	RiskHigh
	RiskDestructive
)

func (r Risk) String() string {
	switch r {
	case RiskDestructive:
		return "destructive"
	case RiskHigh:
		return "high-risk"
	default:
		return "normal"
	}
}

// destructivePatterns match commands that can irreversibly lose data.
var destructivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\brm\s+(-[a-z]*r[a-z]*f|-[a-z]*f[a-z]*r)[a-z]*\b`),
	regexp.MustCompile(`\bgit\s+reset\s+--hard\b`),
	regexp.MustCompile(`\bgit\s+push\b.*(--force\b|-f\b)`),
	regexp.MustCompile(`\bgit\s+clean\s+-[a-z]*f`),
	regexp.MustCompile(`\bmkfs\b`),
	regexp.MustCompile(`\bdd\s+.*\bof=/dev/`),
	regexp.MustCompile(`\bformat\s+[a-z]:`),
	regexp.MustCompile(`>\s*/dev/sd[a-z]`),
}

// highRiskPatterns match commands that change system state or publish
// beyond the working tree.
var highRiskPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bsudo\b`),
	regexp.MustCompile(`\bdoas\b`),
	regexp.MustCompile(`\bgit\s+push\b`),
	regexp.MustCompile(`\bnpm\s+publish\b`),
	regexp.MustCompile(`\bcargo\s+publish\b`),
	regexp.MustCompile(`\bgem\s+push\b`),
	regexp.MustCompile(`\btwine\s+upload\b`),
	regexp.MustCompile(`\bchmod\b`),
	regexp.MustCompile(`\bchown\b`),
	regexp.MustCompile(`\b(curl|wget)\b[^|;&]*\|\s*(ba|z|da)?sh\b`),
}

// credentialPathFragments flag writes into locations that usually hold
// secrets.
var credentialPathFragments = []string{
	".ssh/",
	".aws/",
	".gnupg/",
	"id_rsa",
	"id_ed25519",
	".netrc",
	"credentials",
	".npmrc",
	".pypirc",
}

// Classify inspects a tool call and returns its risk level. Commands are
// scanned for destructive and high-risk patterns; file-writing tools are
// checked for credential-looking target paths.
func Classify(tool string, params map[string]any) Risk {
	if cmd := commandText(tool, params); cmd != "" {
		lower := strings.ToLower(cmd)
		for _, p := range destructivePatterns {
			if p.MatchString(lower) {
				return RiskDestructive
			}
		}
		for _, p := range highRiskPatterns {
			if p.MatchString(lower) {
				return RiskHigh
			}
		}
	}

	if path := writeTargetPath(tool, params); path != "" {
		lower := strings.ToLower(path)
		for _, fragment := range credentialPathFragments {
			if strings.Contains(lower, fragment) {
				return RiskDestructive
			}
		}
	}

	return RiskNormal
}

func commandText(tool string, params map[string]any) string {
	switch tool {
	case "shell":
		s, _ := params["command"].(string)
		return s
	case "git":
		s, _ := params["args"].(string)
		if s == "" {
			return ""
		}
		return "git " + s
	default:
		return ""
	}
}

func writeTargetPath(tool string, params map[string]any) string {
	switch tool {
	case "write_file", "edit_file":
		s, _ := params["path"].(string)
		return s
	default:
		return ""
	}
}
