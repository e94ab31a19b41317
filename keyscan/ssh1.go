package keyscan

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"math/big"
)

// SSH protocol 1 private key layout: the 31-byte magic line, a newline, a NUL,
// then a one-byte cipher type. The public section (bit count, modulus,
// exponent, comment) follows a 4-byte reserved field and is stored in the
// clear even when the private section is ciphered.
const (
	ssh1CipherOffset = 33
	ssh1CipherNone   = 0
	ssh1PublicOffset = 38
)

// DecodeSSH1 reads the cipher-type byte at its fixed offset. A missing byte
// (truncated file) is EncryptionUnknown, never Unencrypted.
func DecodeSSH1(data []byte) Encryption {
	if len(data) <= ssh1CipherOffset {
		return EncryptionUnknown
	}
	if data[ssh1CipherOffset] == ssh1CipherNone {
		return Unencrypted
	}
	return Encrypted
}

type ssh1PublicKey struct {
	Bits     int
	Modulus  []byte
	Exponent []byte
	Comment  string
}

// parseSSH1PublicKey extracts the cleartext public section. Multi-precision
// integers are stored as a 16-bit bit count followed by ceil(bits/8) bytes.
func parseSSH1PublicKey(data []byte) (*ssh1PublicKey, error) {
	if len(data) < ssh1PublicOffset+4 {
		return nil, fmt.Errorf("ssh1 key too short for public section")
	}
	bits := binary.BigEndian.Uint32(data[ssh1PublicOffset:])
	rest := data[ssh1PublicOffset+4:]

	modulus, rest, err := readSSH1MPInt(rest)
	if err != nil {
		return nil, fmt.Errorf("reading modulus: %w", err)
	}
	exponent, rest, err := readSSH1MPInt(rest)
	if err != nil {
		return nil, fmt.Errorf("reading exponent: %w", err)
	}
	comment, _, err := readSSH1String(rest)
	if err != nil {
		// The comment is decoration; fingerprint and bits stand without it.
		comment = ""
	}
	return &ssh1PublicKey{
		Bits:     int(bits),
		Modulus:  modulus,
		Exponent: exponent,
		Comment:  comment,
	}, nil
}

// SSH1Fingerprint probes an SSH1 key for its fingerprint and bit length
// without touching the private section. The digest is MD5 over the raw
// modulus and exponent bytes, the historical RSA1 fingerprint input.
func SSH1Fingerprint(data []byte) (Fingerprint, error) {
	pub, err := parseSSH1PublicKey(data)
	if err != nil {
		return Fingerprint{}, err
	}
	sum := md5.Sum(append(append([]byte{}, pub.Modulus...), pub.Exponent...))
	return Fingerprint{
		Bits:   pub.Bits,
		Digest: colonHex(sum[:]),
		Type:   "RSA1",
	}, nil
}

// ssh1PublicLine renders the public section in the protocol 1 public key file
// format: "bits exponent modulus comment", decimal integers.
func ssh1PublicLine(pub *ssh1PublicKey) string {
	e := new(big.Int).SetBytes(pub.Exponent)
	n := new(big.Int).SetBytes(pub.Modulus)
	line := fmt.Sprintf("%d %s %s", pub.Bits, e.String(), n.String())
	if pub.Comment != "" {
		line += " " + pub.Comment
	}
	return line
}

func readSSH1MPInt(data []byte) (value, rest []byte, err error) {
	if len(data) < 2 {
		return nil, nil, fmt.Errorf("mpint header truncated")
	}
	bits := binary.BigEndian.Uint16(data)
	n := (int(bits) + 7) / 8
	if len(data) < 2+n {
		return nil, nil, fmt.Errorf("mpint body truncated: want %d bytes, have %d", n, len(data)-2)
	}
	return data[2 : 2+n], data[2+n:], nil
}

func readSSH1String(data []byte) (value string, rest []byte, err error) {
	if len(data) < 4 {
		return "", nil, fmt.Errorf("string header truncated")
	}
	n := binary.BigEndian.Uint32(data)
	if uint32(len(data)-4) < n {
		return "", nil, fmt.Errorf("string body truncated")
	}
	return string(data[4 : 4+n]), data[4+n:], nil
}

func colonHex(sum []byte) string {
	out := make([]byte, 0, len(sum)*3-1)
	const hexdigits = "0123456789abcdef"
	for i, b := range sum {
		if i > 0 {
			out = append(out, ':')
		}
		out = append(out, hexdigits[b>>4], hexdigits[b&0xf])
	}
	return string(out)
}
