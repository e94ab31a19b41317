package keyscan

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"strings"
)

const endOpenSSH = "-----END OPENSSH PRIVATE KEY-----"

var opensshMagic = []byte("openssh-key-v1\x00")

// Cipher names are short; anything longer means we are not looking at a
// well-formed v1 container.
const opensshMaxCipherName = 64

// DecodeOpenSSHv1 strips the armor, base64-decodes the body, and reads the
// cipher name that directly follows the container magic. "none" means the key
// is stored in the clear. Malformed base64 or a truncated buffer yields
// EncryptionUnknown, never Unencrypted. The cipher-name field location is
// specific to format version 1 and must be revisited if the container gains
// a v2.
func DecodeOpenSSHv1(data []byte) Encryption {
	body := opensshBody(data)
	if body == "" {
		return EncryptionUnknown
	}
	blob, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return EncryptionUnknown
	}
	if !bytes.HasPrefix(blob, opensshMagic) {
		return EncryptionUnknown
	}
	rest := blob[len(opensshMagic):]
	if len(rest) < 4 {
		return EncryptionUnknown
	}
	n := binary.BigEndian.Uint32(rest)
	if n == 0 || n > opensshMaxCipherName || uint32(len(rest)-4) < n {
		return EncryptionUnknown
	}
	if string(rest[4:4+n]) == "none" {
		return Unencrypted
	}
	return Encrypted
}

// opensshBody returns the concatenated base64 payload between the BEGIN and
// END marker lines, or "" when the markers do not bracket a body.
func opensshBody(data []byte) string {
	var b strings.Builder
	inBody := false
	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, beginOpenSSH):
			inBody = true
		case strings.HasPrefix(line, endOpenSSH):
			return b.String()
		case inBody:
			b.WriteString(line)
		}
	}
	// No END marker: decode what we have so truncation surfaces as a base64
	// or length failure rather than a silent empty verdict.
	return b.String()
}
