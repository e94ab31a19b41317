package keyscan

import (
	"context"

	"github.com/sveniu/ssh-scankeys/config"
	"github.com/sveniu/ssh-scankeys/logger"
	"github.com/sveniu/ssh-scankeys/output"
	"github.com/sveniu/ssh-scankeys/tracing"
)

// processCandidate runs one file through the full pipeline. Every verdict is
// a per-file value; nothing here is shared between files except the writer.
func processCandidate(ctx context.Context, cand Candidate, cfg *config.Config, tool KeyTool, w *output.Writer) {
	ctx, endTask := tracing.StartTask(ctx, "process_key_file")
	tracing.Log(ctx, "file", cand.Path)
	defer endTask()

	w.IncrementScanned()

	data, err := readFileCapped(cand.Path, maxKeyFileBytes)
	if err != nil {
		logger.Debugf("Failed to read %s: %v", cand.Path, err)
		return
	}

	window := data
	if len(window) > headerWindowBytes {
		window = window[:headerWindowBytes]
	}
	if cfg.Mode == config.ModeFull && IsKnownBinaryType(window) {
		return
	}
	format := Classify(window)
	if format == FormatUnrecognized {
		return
	}

	enc := DetectEncryption(format, data)
	logger.Debugf("%s: format=%s encryption=%s", cand.Path, format, enc)

	var rec *PublicKeyRecord
	switch enc {
	case Unencrypted:
		endRegion := tracing.StartRegion(ctx, "derive_public_key")
		line, err := tool.DerivePublicKey(ctx, cand.Path)
		endRegion()
		if err != nil {
			logger.Debugf("Deriving public key from %s failed: %v", cand.Path, err)
		} else {
			r := Reconcile(ctx, tool, cand.Path, line)
			rec = &r
		}
	case Encrypted:
		if format == FormatSSH1 {
			// The protocol 1 public section is cleartext, so the listing
			// probe still yields a fingerprint for a ciphered key.
			if fp, err := tool.FingerprintFile(ctx, cand.Path); err == nil && fp.Digest != "" {
				rec = &PublicKeyRecord{
					Fingerprint: fp.Digest,
					Bits:        fp.Bits,
					Type:        fp.Type,
				}
			}
		}
	}

	if rec == nil || rec.Line == "" {
		if adopted, ok := AdoptCompanion(ctx, tool, cand.Path); ok {
			if rec != nil {
				// Keep what the listing probe already established; the
				// companion only fills the gaps.
				if adopted.Fingerprint == "" {
					adopted.Fingerprint = rec.Fingerprint
				}
				if adopted.Bits == 0 {
					adopted.Bits = rec.Bits
				}
				if adopted.Type == "" {
					adopted.Type = rec.Type
				}
			}
			rec = &adopted
		}
	}
	if rec == nil {
		logger.Debugf("No usable public key for %s, dropping", cand.Path)
		return
	}
	if ctx.Err() != nil {
		return
	}
	w.Write(AssembleReport(cand, format, enc, *rec))
}
