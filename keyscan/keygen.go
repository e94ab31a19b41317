package keyscan

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// KeygenTool shells out to ssh-keygen. Standard input is always bound to the
// null device so an encrypted key makes the tool fail immediately instead of
// prompting; every invocation runs under a deadline and dies with the scan
// context.
type KeygenTool struct {
	Path    string
	Timeout time.Duration
}

func (t *KeygenTool) DerivePublicKey(ctx context.Context, path string) (string, error) {
	out, err := t.run(ctx, nil, "-y", "-f", path)
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(out)
	if line == "" {
		return "", fmt.Errorf("ssh-keygen produced no public key for %s", path)
	}
	return line, nil
}

func (t *KeygenTool) FingerprintLine(ctx context.Context, line string) (Fingerprint, error) {
	// "-f -" makes ssh-keygen read the key from stdin; the input is a pipe
	// fed from memory, never a terminal.
	out, err := t.run(ctx, strings.NewReader(line+"\n"), "-l", "-E", "md5", "-f", "-")
	if err != nil {
		return Fingerprint{}, err
	}
	return parseKeygenListing(out)
}

func (t *KeygenTool) FingerprintFile(ctx context.Context, path string) (Fingerprint, error) {
	out, err := t.run(ctx, nil, "-l", "-E", "md5", "-f", path)
	if err != nil {
		return Fingerprint{}, err
	}
	return parseKeygenListing(out)
}

func (t *KeygenTool) run(ctx context.Context, stdin io.Reader, args ...string) (string, error) {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name := t.Path
	if name == "" {
		name = "ssh-keygen"
	}
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin == nil {
		devnull, err := os.Open(os.DevNull)
		if err != nil {
			return "", err
		}
		defer devnull.Close()
		stdin = devnull
	}
	cmd.Stdin = stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("ssh-keygen %s: %s", args[0], msg)
	}
	return stdout.String(), nil
}

// parseKeygenListing parses one line of `ssh-keygen -l -E md5` output:
// "2048 MD5:0f:57:..:9b comment (RSA)".
func parseKeygenListing(out string) (Fingerprint, error) {
	line := strings.TrimSpace(out)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Fingerprint{}, fmt.Errorf("unexpected ssh-keygen listing: %q", line)
	}
	bits, err := strconv.Atoi(fields[0])
	if err != nil {
		return Fingerprint{}, fmt.Errorf("unexpected ssh-keygen listing: %q", line)
	}
	digest := strings.TrimPrefix(fields[1], "MD5:")

	// Older ssh-keygen omits the parenthesized type for some key classes;
	// the assembler falls back to the public key line's leading token then.
	var keyType string
	last := fields[len(fields)-1]
	if strings.HasPrefix(last, "(") && strings.HasSuffix(last, ")") {
		keyType = KeyTypeName(strings.Trim(last, "()"))
	}
	return Fingerprint{Bits: bits, Digest: digest, Type: keyType}, nil
}
