// Package authkeys inventories the public keys that sshd would accept for
// each local account: it resolves the AuthorizedKeysFile patterns from
// sshd_config, expands the per-user tokens, and parses every key line found.
package authkeys

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sveniu/ssh-scankeys/config"
	"github.com/sveniu/ssh-scankeys/keyscan"
	"github.com/sveniu/ssh-scankeys/logger"
	"github.com/sveniu/ssh-scankeys/output"
	"github.com/sveniu/ssh-scankeys/passwd"
	"github.com/sveniu/ssh-scankeys/tracing"
	"github.com/sveniu/ssh-scankeys/utils"

	"golang.org/x/crypto/ssh"
)

// Entry is one authorized key line attributed to one account. Authorized
// keys are public material, so the encrypted flag is always 0.
type Entry struct {
	Owner       string `json:"owner"`
	Group       string `json:"group"`
	Mode        string `json:"mode"`
	ModTime     int64  `json:"mtime"`
	Fingerprint string `json:"fingerprint"`
	Bits        int    `json:"bit_length"`
	Type        string `json:"key_type"`
	Path        string `json:"path"`
	Line        string `json:"public_key_line"`
	User        string `json:"user"`
}

func (e Entry) Kind() string { return "authorized" }

func (e Entry) Fields() []string {
	keyType := e.Type
	if keyType == "" {
		keyType = "NA"
	}
	return []string{
		e.Owner,
		e.Group,
		e.Mode,
		strconv.FormatInt(e.ModTime, 10),
		e.Fingerprint,
		strconv.Itoa(e.Bits),
		keyType,
		"0",
		e.Path,
		e.Line,
	}
}

// Scan resolves and parses every account's authorized keys files. Missing
// files are the normal case; parse failures skip the line, not the run.
func Scan(ctx context.Context, cfg *config.Config, w *output.Writer) error {
	ctx, endTask := tracing.StartTask(ctx, "authorized_keys_scan")
	defer endTask()

	users, err := passwd.Users(cfg.PasswdPath)
	if err != nil {
		return err
	}
	patterns := keyFilePatterns(cfg.SSHDConfigPath)

	for _, u := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		for _, pattern := range patterns {
			path := ExpandTokens(pattern, u)
			if path == "" {
				continue
			}
			for _, entry := range collectFile(path, u) {
				w.Write(entry)
			}
		}
	}
	return nil
}

func collectFile(path string, u passwd.User) []Entry {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		logger.Debugf("Cannot open %s: %v", path, err)
		return nil
	}
	defer f.Close()

	owner, group := utils.Ownership(info)
	mode := utils.ModeOctal(info)
	mtime := utils.ModTimeEpoch(info)

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
		if err != nil {
			logger.Debugf("Unparseable key line in %s: %v", path, err)
			continue
		}
		entries = append(entries, Entry{
			Owner:       owner,
			Group:       group,
			Mode:        mode,
			ModTime:     mtime,
			Fingerprint: ssh.FingerprintLegacyMD5(pub),
			Bits:        keyscan.PublicKeyBits(pub),
			Type:        keyscan.KeyTypeName(pub.Type()),
			Path:        path,
			Line:        line,
			User:        u.Name,
		})
	}
	return entries
}

// keyFilePatterns reads the AuthorizedKeysFile directive from sshd_config.
// Absent directive, unreadable config, or "none" fall back to sshd's
// compiled-in default.
func keyFilePatterns(sshdConfigPath string) []string {
	defaults := []string{".ssh/authorized_keys"}

	f, err := os.Open(sshdConfigPath)
	if err != nil {
		return defaults
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || !strings.EqualFold(fields[0], "AuthorizedKeysFile") {
			continue
		}
		var patterns []string
		for _, field := range fields[1:] {
			if strings.EqualFold(field, "none") {
				continue
			}
			patterns = append(patterns, field)
		}
		return patterns
	}
	return defaults
}

// ExpandTokens substitutes the sshd_config per-user tokens in an
// AuthorizedKeysFile pattern: %h is the home directory, %u the username, %%
// a literal percent. A leading ~ and bare relative paths resolve against the
// user's home.
func ExpandTokens(pattern string, u passwd.User) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		if pattern[i] != '%' || i+1 >= len(pattern) {
			b.WriteByte(pattern[i])
			continue
		}
		i++
		switch pattern[i] {
		case '%':
			b.WriteByte('%')
		case 'h':
			b.WriteString(u.Home)
		case 'u':
			b.WriteString(u.Name)
		default:
			// Unknown token; keep it verbatim rather than guess.
			b.WriteByte('%')
			b.WriteByte(pattern[i])
		}
	}
	path := b.String()
	switch {
	case strings.HasPrefix(path, "~/"):
		path = filepath.Join(u.Home, path[2:])
	case path == "~":
		path = u.Home
	case !filepath.IsAbs(path):
		path = filepath.Join(u.Home, path)
	}
	return filepath.Clean(path)
}
