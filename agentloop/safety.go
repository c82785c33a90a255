package agentloop

import (
	"regexp"
	"strings"
)

// blockedCommandPatterns match commands that are never run, regardless of
// what the planner asks for. Matching is case-insensitive.
var blockedCommandPatterns = []string{
	// Unix
	`rm\s+-rf\s+[/~*]`,
	`rm\s+-fr\s+[/~*]`,
	`mkfs\.`,
	`dd\s+if=.*\s+of=/dev/`,
	`chmod\s+-R\s+777\s+/`,
	`:\(\)\s*\{.*:\|:.*\}`,

	// cmd.exe
	`del\s+/s\s+/q\s+C:\\`,
	`format\s+C:`,
	`reg\s+delete\s+HKLM`,

	// PowerShell
	`Remove-Item\s+.*-Recurse\s+.*-Force\s+[C:\\/$~]`,
	`Remove-Item\s+.*-Force\s+.*-Recurse\s+[C:\\/$~]`,
	`rm\s+.*-r\s+.*-fo\s+[C:\\/$~]`,
	`Format-Volume\s+`,
	`Clear-Disk\s+`,
	`Initialize-Disk\s+`,
	`Remove-Partition\s+`,
	`Set-ExecutionPolicy\s+Unrestricted`,

	// Remote code execution
	`curl\s+.*\|\s*sh`,
	`curl\s+.*\|\s*bash`,
	`wget\s+.*\|\s*sh`,
	`wget\s+.*\|\s*bash`,
	`Invoke-Expression.*Invoke-WebRequest`,
	`iex.*iwr`,
	`Invoke-Expression.*curl`,
	`Invoke-Expression.*wget`,
	`powershell\s+-enc`,
	`powershell\s+-e\s`,
	`powershell\.exe\s+-enc`,
	`pwsh\s+-enc`,
}

var blockedCommandRegexps = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(blockedCommandPatterns))
	for i, p := range blockedCommandPatterns {
		out[i] = regexp.MustCompile("(?i)" + p)
	}
	return out
}()

// CheckCommandSafety reports whether command may run. When it may not, the
// returned reason names the pattern it matched.
func CheckCommandSafety(command string) (bool, string) {
	normalized := strings.TrimSpace(command)
	for i, re := range blockedCommandRegexps {
		if re.MatchString(normalized) {
			return false, "Command blocked: matches dangerous pattern '" + blockedCommandPatterns[i] + "'"
		}
	}
	return true, ""
}
