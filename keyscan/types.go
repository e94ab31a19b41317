package keyscan

import "os"

// Format identifies the on-disk container of a candidate private key file.
type Format int

const (
	FormatUnrecognized Format = iota
	FormatSSH1
	FormatPEM
	FormatOpenSSHv1
)

func (f Format) String() string {
	switch f {
	case FormatSSH1:
		return "ssh1"
	case FormatPEM:
		return "pem"
	case FormatOpenSSHv1:
		return "openssh-v1"
	default:
		return "unrecognized"
	}
}

// Encryption is the passphrase verdict for a classified file. Unknown means
// the format-specific check could not run to completion (truncated or
// malformed container), which is distinct from a positive "no cipher" result.
type Encryption int

const (
	EncryptionUnknown Encryption = iota
	Encrypted
	Unencrypted
)

func (e Encryption) String() string {
	switch e {
	case Encrypted:
		return "encrypted"
	case Unencrypted:
		return "unencrypted"
	default:
		return "unknown"
	}
}

// Candidate is one file believed to hold a private key, as produced by the
// walker. Immutable once built.
type Candidate struct {
	Path string
	Info os.FileInfo
}

// PublicKeyRecord holds derived or reconciled public material for one key.
// Verified is false when a companion .pub file was adopted blind, without a
// fingerprint cross-check against the private key.
type PublicKeyRecord struct {
	Type        string
	Bits        int
	Fingerprint string
	Line        string
	Verified    bool
}

// Fingerprint is the result of a fingerprinting probe: bit length, 47-char
// colon-hex MD5 digest, and key type name when the probe can tell.
type Fingerprint struct {
	Bits   int
	Digest string
	Type   string
}
