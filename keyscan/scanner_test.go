package keyscan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sveniu/ssh-scankeys/config"
	"github.com/sveniu/ssh-scankeys/output"
)

func testConfig(outputPath string) *config.Config {
	return &config.Config{
		Mode:           config.ModeHome,
		ScanKeys:       true,
		OutputFormat:   "lines",
		OutputFileName: outputPath,
		Concurrency:    2,
		ConcurrencySet: true,
		NiceLevel:      "medium",
		ToolTimeout:    5 * time.Second,
	}
}

func runScan(t *testing.T, cfg *config.Config) []string {
	t.Helper()
	t.Setenv("SCANKEYS_DISABLE_PROGRESS", "1")

	var metrics output.Metrics
	w, err := output.New(cfg, &metrics)
	if err != nil {
		t.Fatalf("output.New: %v", err)
	}
	scanErr := Scan(context.Background(), cfg, w)
	w.Close()
	if scanErr != nil {
		t.Fatalf("Scan: %v", scanErr)
	}

	data, err := os.ReadFile(cfg.OutputFileName)
	if err != nil {
		t.Fatal(err)
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestScanHomeMode(t *testing.T) {
	dir := t.TempDir()
	sshDir := filepath.Join(dir, "home", "alice", ".ssh")
	if err := os.MkdirAll(sshDir, 0o700); err != nil {
		t.Fatal(err)
	}
	keyPath, pubLine := writeEd25519Key(t, sshDir)
	if err := os.WriteFile(keyPath+".pub", []byte(pubLine+" alice@laptop\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Non-key noise in the same directory.
	if err := os.WriteFile(filepath.Join(sshDir, "known_hosts"), []byte("github.com ssh-rsa AAAA\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	passwdPath := filepath.Join(dir, "passwd")
	passwdContent := fmt.Sprintf("alice:x:1000:1000:Alice:%s:/bin/bash\nmalformed line\n",
		filepath.Join(dir, "home", "alice"))
	if err := os.WriteFile(passwdPath, []byte(passwdContent), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(filepath.Join(dir, "out"))
	cfg.PasswdPath = passwdPath

	lines := runScan(t, cfg)
	if len(lines) != 1 {
		t.Fatalf("got %d records, want 1: %v", len(lines), lines)
	}
	fields := strings.Split(lines[0], ";")
	if len(fields) != 10 {
		t.Fatalf("field count = %d, want 10: %q", len(fields), lines[0])
	}
	if len(fields[4]) != 47 {
		t.Errorf("fingerprint = %q, want 47-char MD5", fields[4])
	}
	if fields[5] != "256" || fields[6] != "ED25519" {
		t.Errorf("bits/type = %s/%s", fields[5], fields[6])
	}
	if fields[7] != "0" {
		t.Errorf("encrypted = %q, want 0", fields[7])
	}
	if fields[8] != keyPath {
		t.Errorf("path = %q, want %q", fields[8], keyPath)
	}
	// The matching companion line, with its comment, wins over the derived one.
	if fields[9] != pubLine+" alice@laptop" {
		t.Errorf("line = %q", fields[9])
	}
}

func TestScanHomeModeNoSSHDirs(t *testing.T) {
	dir := t.TempDir()
	passwdPath := filepath.Join(dir, "passwd")
	content := fmt.Sprintf("bob:x:1001:1001::%s:/bin/sh\n", filepath.Join(dir, "bob"))
	if err := os.WriteFile(passwdPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig(filepath.Join(dir, "out"))
	cfg.PasswdPath = passwdPath

	if lines := runScan(t, cfg); len(lines) != 0 {
		t.Fatalf("expected no records, got %v", lines)
	}
}

func TestScanHomeModeUnreadablePasswd(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(filepath.Join(dir, "out"))
	cfg.PasswdPath = filepath.Join(dir, "no-such-passwd")

	var metrics output.Metrics
	w, err := output.New(cfg, &metrics)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	t.Setenv("SCANKEYS_DISABLE_PROGRESS", "1")

	err = Scan(context.Background(), cfg, w)
	if err == nil || !strings.Contains(err.Error(), ErrNoReadableRoot.Error()) {
		t.Fatalf("err = %v, want no readable root", err)
	}
}

func TestScanFullMode(t *testing.T) {
	dir := t.TempDir()
	keysDir := filepath.Join(dir, "stash")
	if err := os.MkdirAll(keysDir, 0o755); err != nil {
		t.Fatal(err)
	}
	keyPath, _ := writeEd25519Key(t, keysDir)
	if err := os.WriteFile(filepath.Join(keysDir, "notes.txt"), []byte("nothing to see here, just text\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(filepath.Join(dir, "out"))
	cfg.Mode = config.ModeFull
	cfg.StartPaths = []string{keysDir}
	cfg.SizeMin = 1

	lines := runScan(t, cfg)
	if len(lines) != 1 {
		t.Fatalf("got %d records, want 1: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], keyPath) {
		t.Fatalf("record does not name the key file: %q", lines[0])
	}
}

func TestScanFullModeNoReadableRoot(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(filepath.Join(dir, "out"))
	cfg.Mode = config.ModeFull
	cfg.StartPaths = []string{filepath.Join(dir, "missing")}

	var metrics output.Metrics
	w, err := output.New(cfg, &metrics)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	t.Setenv("SCANKEYS_DISABLE_PROGRESS", "1")

	err = Scan(context.Background(), cfg, w)
	if err == nil || !strings.Contains(err.Error(), ErrNoReadableRoot.Error()) {
		t.Fatalf("err = %v, want no readable root", err)
	}
}

func TestScanRootsCollapsesNestedPaths(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "inner")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Mode: config.ModeFull, StartPaths: []string{dir, nested, dir}}
	roots, err := scanRoots(cfg)
	if err != nil {
		t.Fatalf("scanRoots: %v", err)
	}
	if len(roots) != 1 || roots[0] != dir {
		t.Fatalf("roots = %v, want just %s", roots, dir)
	}
}

func TestAcceptCandidate(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "small")
	if err := os.WriteFile(small, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	smallInfo, _ := os.Stat(small)

	full := &config.Config{Mode: config.ModeFull, SizeMin: 200, SizeMax: 14000}
	home := &config.Config{Mode: config.ModeHome}

	if acceptCandidate(full, small, smallInfo) {
		t.Error("full mode must reject files below size-min")
	}
	if !acceptCandidate(home, small, smallInfo) {
		t.Error("home mode has no size filter")
	}
	if acceptCandidate(home, small+".pub", smallInfo) {
		t.Error("companion .pub files are never candidates themselves")
	}
}

func TestSkipFullModeDir(t *testing.T) {
	if !skipFullModeDir("/proc") || !skipFullModeDir("/sys/") {
		t.Error("virtual filesystems must be skipped")
	}
	if skipFullModeDir("/procs") || skipFullModeDir("/home/proc") {
		t.Error("only exact mount roots are skipped")
	}
}

func TestAdjustConcurrency(t *testing.T) {
	cfg := &config.Config{NiceLevel: "low", Concurrency: 8}
	adjustConcurrency(cfg)
	if cfg.Concurrency != 1 {
		t.Fatalf("low nice concurrency = %d, want 1", cfg.Concurrency)
	}

	cfg = &config.Config{NiceLevel: "low", Concurrency: 8, ConcurrencySet: true}
	adjustConcurrency(cfg)
	if cfg.Concurrency != 8 {
		t.Fatal("explicit concurrency must not be overridden")
	}
}
