package keyscan

import (
	"bufio"
	"bytes"
	"strings"
)

// DecodePEM scans for an RFC 1421 Proc-Type header and checks its second
// comma-delimited field. The keyword comparison is case-sensitive, the header
// name is not. A PEM container with no Proc-Type header is reported
// unencrypted; that is the documented signal, not a cryptographic guarantee.
func DecodePEM(data []byte) Encryption {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			// Blank line ends the encapsulated header section.
			break
		}
		const header = "proc-type:"
		if len(line) < len(header) || !strings.EqualFold(line[:len(header)], header) {
			continue
		}
		fields := strings.Split(line[len(header):], ",")
		if len(fields) >= 2 && strings.TrimSpace(fields[1]) == "ENCRYPTED" {
			return Encrypted
		}
		return Unencrypted
	}
	return Unencrypted
}
