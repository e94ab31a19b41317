package keyscan

import (
	"context"
	"os"
	"strings"

	"github.com/sveniu/ssh-scankeys/logger"
)

// Reconcile builds the PublicKeyRecord for a derived public key line,
// preferring a companion .pub file when its fingerprint matches: the
// companion keeps authorized-keys options and the human comment that a
// derived line lacks. On mismatch the companion is rejected and the derived
// line stands.
func Reconcile(ctx context.Context, tool KeyTool, path, derivedLine string) PublicKeyRecord {
	rec := PublicKeyRecord{Line: derivedLine, Verified: true}
	derived, err := tool.FingerprintLine(ctx, derivedLine)
	if err != nil {
		logger.Debugf("Fingerprinting derived key for %s failed: %v", path, err)
		return rec
	}
	rec.Fingerprint = derived.Digest
	rec.Bits = derived.Bits
	rec.Type = derived.Type

	companionPath := path + ".pub"
	companionLine, ok := readCompanionLine(companionPath)
	if !ok {
		return rec
	}
	companion, err := tool.FingerprintLine(ctx, companionLine)
	if err != nil {
		logger.Debugf("Fingerprinting companion %s failed: %v", companionPath, err)
		return rec
	}
	if companion.Digest != "" && companion.Digest == derived.Digest {
		rec.Line = companionLine
		if companion.Bits > 0 {
			rec.Bits = companion.Bits
		}
		if companion.Type != "" {
			rec.Type = companion.Type
		}
	} else {
		logger.Debugf("Companion %s fingerprint mismatch, keeping derived key", companionPath)
	}
	return rec
}

// AdoptCompanion is the fallback for files where no usable public key could
// be derived: an existing companion .pub is taken at face value, with no
// fingerprint cross-check against the private key, and marked unverified.
func AdoptCompanion(ctx context.Context, tool KeyTool, path string) (PublicKeyRecord, bool) {
	companionPath := path + ".pub"
	line, ok := readCompanionLine(companionPath)
	if !ok {
		return PublicKeyRecord{}, false
	}
	rec := PublicKeyRecord{Line: line, Verified: false}
	if fp, err := tool.FingerprintLine(ctx, line); err == nil {
		rec.Fingerprint = fp.Digest
		rec.Bits = fp.Bits
		rec.Type = fp.Type
	}
	return rec, true
}

func readCompanionLine(path string) (string, bool) {
	data, err := readFileCapped(path, maxKeyFileBytes)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Debugf("Reading companion %s failed: %v", path, err)
		}
		return "", false
	}
	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line != "" {
			return line, true
		}
	}
	return "", false
}
