// Package scanner detects credential material in vault files so tasks
// carrying secrets are flagged before any automated step touches them.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cuemby/hutch/pkg/audit"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/vault"
)

// pattern pairs a finding label with its compiled expression. Order is
// fixed so repeated scans report findings deterministically.
type pattern struct {
	name string
	re   *regexp.Regexp
}

var patterns = []pattern{
	{"aws_access_key", regexp.MustCompile(`(?i)(?:AKIA|ABIA|ACCA|ASIA)[0-9A-Z]{16}`)},
	{"api_token", regexp.MustCompile(`(?i)(?:api[_-]?key|api[_-]?token|apikey)\s*[:=]\s*["']?[\w\-]{20,}`)},
	{"pem_key", regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA )?PRIVATE KEY-----`)},
	{"password_field", regexp.MustCompile(`(?i)(?:password|passwd|pwd)\s*[:=]\s*["']?[^\s"']{8,}`)},
	{"generic_secret", regexp.MustCompile(`(?i)(?:secret|token|bearer)\s*[:=]\s*["']?[\w\-/.]{20,}`)},
	{"connection_string", regexp.MustCompile(`(?i)(?:mongodb|postgres|mysql|redis)://\S+:\S+@`)},
}

// scannedFolders are the vault folders swept by ScanVault.
var scannedFolders = []string{
	vault.FolderNeedsAction,
	vault.FolderInProgress,
	vault.FolderDone,
	vault.FolderPlans,
}

// Finding is one credential hit. Match is partially masked and safe
// to log.
type Finding struct {
	Pattern string
	File    string
	Line    int
	Match   string
}

// Scanner sweeps files for credential patterns. With an audit log
// attached, every vault finding is recorded as credential_flagged.
type Scanner struct {
	auditLog *audit.Log
}

// New creates a scanner. auditLog may be nil for report-only scans.
func New(auditLog *audit.Log) *Scanner {
	return &Scanner{auditLog: auditLog}
}

// ScanFile checks one file line by line against every pattern.
// Unreadable files yield no findings.
func (s *Scanner) ScanFile(path string) []Finding {
	data, err := os.ReadFile(path)
	if err != nil {
		log.WithComponent("scanner").Warn().Err(err).Str("file", path).Msg("cannot read file for scanning")
		return nil
	}

	var findings []Finding
	for i, line := range strings.Split(string(data), "\n") {
		for _, p := range patterns {
			for _, match := range p.re.FindAllString(line, -1) {
				findings = append(findings, Finding{
					Pattern: p.name,
					File:    path,
					Line:    i + 1,
					Match:   maskValue(match),
				})
			}
		}
	}
	return findings
}

// ScanVault sweeps the markdown files in the workflow folders and
// returns all findings. Each finding is audited when a log is wired.
func (s *Scanner) ScanVault(v *vault.Vault) []Finding {
	if _, err := os.Stat(v.Root()); err != nil {
		log.WithComponent("scanner").Warn().Str("vault", v.Root()).Msg("vault path not found")
		return nil
	}

	var all []Finding
	for _, folder := range scannedFolders {
		matches, err := filepath.Glob(filepath.Join(v.Dir(folder), "*.md"))
		if err != nil {
			continue
		}
		for _, path := range matches {
			all = append(all, s.ScanFile(path)...)
		}
	}

	if s.auditLog != nil {
		for _, f := range all {
			s.report(f)
		}
	}
	return all
}

func (s *Scanner) report(f Finding) {
	log.WithComponent("scanner").Warn().
		Str("pattern", f.Pattern).
		Str("file", f.File).
		Int("line", f.Line).
		Msg("credential detected")
	s.auditLog.Append(audit.OpCredentialFlagged, filepath.Base(f.File), filepath.Base(filepath.Dir(f.File)), "",
		audit.OutcomeFlagged, fmt.Sprintf("pattern:%s line:%d", f.Pattern, f.Line))
}

// maskValue keeps the first four and last two characters of a match,
// or just the first two for short values. Length is preserved.
func maskValue(v string) string {
	if len(v) <= 2 {
		return v
	}
	if len(v) <= 8 {
		return v[:2] + strings.Repeat("*", len(v)-2)
	}
	return v[:4] + strings.Repeat("*", len(v)-6) + v[len(v)-2:]
}
