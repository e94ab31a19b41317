package keyscan

import (
	"context"
	"io"
	"os"

	"github.com/sveniu/ssh-scankeys/config"
)

// maxKeyFileBytes caps how much of a candidate file any tool reads. Real key
// files are a few KB; the cap defends against a huge file that happens to
// start with a key header.
const maxKeyFileBytes = 1 << 20

// KeyTool is the key-derivation and fingerprinting capability. Implementations
// must fail fast and must never wait on terminal input; an encrypted key is a
// quick error, not a prompt.
type KeyTool interface {
	// DerivePublicKey recovers the public key line from an unencrypted
	// private key file.
	DerivePublicKey(ctx context.Context, path string) (string, error)
	// FingerprintLine fingerprints a single public key line.
	FingerprintLine(ctx context.Context, line string) (Fingerprint, error)
	// FingerprintFile fingerprints a key file: a .pub file, or a private key
	// whose format exposes its public section (listing mode).
	FingerprintFile(ctx context.Context, path string) (Fingerprint, error)
}

// NewTool selects the configured KeyTool implementation.
func NewTool(cfg *config.Config) KeyTool {
	if cfg.UseKeygen {
		return &KeygenTool{Path: cfg.KeygenPath, Timeout: cfg.ToolTimeout}
	}
	return &CryptoTool{}
}

func readFileCapped(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit))
}
