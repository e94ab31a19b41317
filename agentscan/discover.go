package agentscan

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sveniu/ssh-scankeys/config"
	"github.com/sveniu/ssh-scankeys/logger"

	"github.com/shirou/gopsutil/v4/process"
)

const authSockVar = "SSH_AUTH_SOCK="

// DiscoverSockets collects candidate agent socket paths from three sources:
// our own environment, SSH_AUTH_SOCK snapshots of every visible process, and
// the conventional temp-directory globs. Reading another process's
// environment needs matching privileges; failures are expected and skipped.
func DiscoverSockets(ctx context.Context, cfg *config.Config) []string {
	seen := make(map[string]struct{})

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		seen[sock] = struct{}{}
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		logger.Debugf("Process listing failed: %v", err)
	}
	for _, p := range procs {
		if ctx.Err() != nil {
			break
		}
		env, err := p.EnvironWithContext(ctx)
		if err != nil {
			continue
		}
		for _, kv := range env {
			if strings.HasPrefix(kv, authSockVar) {
				if sock := strings.TrimPrefix(kv, authSockVar); sock != "" {
					seen[sock] = struct{}{}
				}
			}
		}
	}

	for _, pattern := range cfg.AgentGlobs {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			logger.Debugf("Bad agent socket glob %q: %v", pattern, err)
			continue
		}
		for _, match := range matches {
			seen[match] = struct{}{}
		}
	}

	sockets := make([]string, 0, len(seen))
	for sock := range seen {
		sockets = append(sockets, sock)
	}
	sort.Strings(sockets)
	return sockets
}
