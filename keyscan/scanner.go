package keyscan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/sveniu/ssh-scankeys/config"
	"github.com/sveniu/ssh-scankeys/logger"
	"github.com/sveniu/ssh-scankeys/output"
	"github.com/sveniu/ssh-scankeys/passwd"
	"github.com/sveniu/ssh-scankeys/utils"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"
)

// ErrNoReadableRoot means the scan had nowhere to start: the passwd database
// could not be read in home mode, or none of the start paths is accessible in
// full mode. Callers treat this as fatal with a distinct exit status.
var ErrNoReadableRoot = errors.New("no readable scan root")

// Virtual and device filesystems have nothing to offer and plenty of ways to
// stall a reader.
var fullModeSkipDirs = []string{"/proc", "/sys", "/dev", "/run"}

// Scan walks the configured roots and pushes every accepted candidate file
// through classification, decoding, derivation, and reconciliation. Files are
// independent; the worker pool fans them out and the writer serializes the
// results.
func Scan(ctx context.Context, cfg *config.Config, w *output.Writer) error {
	adjustConcurrency(cfg)
	tool := NewTool(cfg)
	matcher := utils.NewExcludeMatcher(cfg.ExcludePatterns)

	roots, err := scanRoots(cfg)
	if err != nil {
		return err
	}
	if len(roots) == 0 {
		logger.Info("No key directories to scan")
		return nil
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Scanning key files"),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetVisibility(progressVisible()),
		progressbar.OptionFullWidth(),
	)
	progressCh := make(chan int, cfg.Concurrency*4)
	var progressWG sync.WaitGroup
	progressWG.Add(1)
	go func() {
		defer progressWG.Done()
		for delta := range progressCh {
			_ = bar.Add(delta)
		}
	}()

	var ioLimiter *rate.Limiter
	if cfg.MaxIOPerSecond > 0 {
		ioLimiter = rate.NewLimiter(rate.Limit(cfg.MaxIOPerSecond), cfg.MaxIOPerSecond)
	}

	filesChan := make(chan Candidate, cfg.Concurrency)

	go func() {
		defer close(filesChan)
		for _, root := range roots {
			err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					logger.Debugf("Failed to access %s: %v", path, err)
					return nil
				}
				if d == nil {
					return nil
				}
				if d.IsDir() {
					if cfg.Mode == config.ModeFull && skipFullModeDir(path) {
						return fs.SkipDir
					}
					return nil
				}
				if matcher.Excluded(path) {
					return nil
				}
				info, err := d.Info()
				if err != nil {
					return nil
				}
				if !acceptCandidate(cfg, path, info) {
					return nil
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case filesChan <- Candidate{Path: path, Info: info}:
					if ioLimiter != nil {
						if err := ioLimiter.Wait(ctx); err != nil {
							return err
						}
					}
				}
				return nil
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warnf("Error walking %s: %v", root, err)
			}
		}
	}()

	var wg sync.WaitGroup
	for range cfg.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cand := range filesChan {
				select {
				case <-ctx.Done():
					return
				default:
				}
				processCandidate(ctx, cand, cfg, tool, w)
				progressCh <- 1
			}
		}()
	}

	wg.Wait()
	close(progressCh)
	progressWG.Wait()
	return nil
}

// scanRoots resolves the directories to walk. Home mode discovers every
// account's ~/.ssh; full mode takes the configured start paths, dropping the
// unreadable ones.
func scanRoots(cfg *config.Config) ([]string, error) {
	if cfg.Mode == config.ModeFull {
		var roots []string
		for _, path := range cfg.StartPaths {
			if unix.Access(path, unix.R_OK) != nil {
				logger.Warnf("Start path %s is not readable, skipping", path)
				continue
			}
			if utils.IsPathWithin(path, roots) {
				logger.Debugf("Start path %s is nested in another root, skipping", path)
				continue
			}
			roots = append(roots, path)
		}
		if len(roots) == 0 {
			return nil, fmt.Errorf("%w: none of %v is readable", ErrNoReadableRoot, cfg.StartPaths)
		}
		return roots, nil
	}

	users, err := passwd.Users(cfg.PasswdPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrNoReadableRoot, cfg.PasswdPath, err)
	}
	var roots []string
	for _, home := range passwd.HomeDirs(users) {
		sshDir := filepath.Join(home, ".ssh")
		info, err := os.Stat(sshDir)
		if err != nil || !info.IsDir() {
			continue
		}
		if unix.Access(sshDir, unix.R_OK) != nil {
			logger.Debugf("Skipping unreadable %s", sshDir)
			continue
		}
		roots = append(roots, sshDir)
	}
	return roots, nil
}

func acceptCandidate(cfg *config.Config, path string, info os.FileInfo) bool {
	if !info.Mode().IsRegular() {
		return false
	}
	if strings.HasSuffix(path, ".pub") {
		return false
	}
	if cfg.Mode == config.ModeFull {
		size := info.Size()
		if size < cfg.SizeMin {
			return false
		}
		if cfg.SizeMax > 0 && size > cfg.SizeMax {
			return false
		}
	}
	return true
}

func skipFullModeDir(path string) bool {
	clean := filepath.Clean(path)
	for _, dir := range fullModeSkipDirs {
		if clean == dir {
			return true
		}
	}
	return false
}

func adjustConcurrency(cfg *config.Config) {
	if cfg.ConcurrencySet {
		return
	}
	numCPU := runtime.NumCPU()
	switch cfg.NiceLevel {
	case "high":
		cfg.Concurrency = numCPU
	case "medium":
		cfg.Concurrency = numCPU / 2
		if cfg.Concurrency < 1 {
			cfg.Concurrency = 1
		}
	case "low":
		cfg.Concurrency = 1
	}
}

func progressVisible() bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv("SCANKEYS_DISABLE_PROGRESS")))
	return value != "1" && value != "true" && value != "yes" && value != "on"
}
