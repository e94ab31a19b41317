package keyscan

import (
	"bytes"
	"context"
	"crypto/dsa"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/md5"
	"crypto/rsa"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/crypto/ssh"
)

// CryptoTool derives and fingerprints keys in-process with x/crypto/ssh. It
// cannot prompt by construction: an encrypted key parses to a
// PassphraseMissingError and that is the end of it.
type CryptoTool struct{}

func (t *CryptoTool) DerivePublicKey(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := readFileCapped(path, maxKeyFileBytes)
	if err != nil {
		return "", err
	}
	if bytes.HasPrefix(data, []byte(ssh1HeaderLine)) {
		pub, err := parseSSH1PublicKey(data)
		if err != nil {
			return "", err
		}
		return ssh1PublicLine(pub), nil
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return "", fmt.Errorf("parsing private key: %w", err)
	}
	return strings.TrimSpace(string(ssh.MarshalAuthorizedKey(signer.PublicKey()))), nil
}

func (t *CryptoTool) FingerprintLine(ctx context.Context, line string) (Fingerprint, error) {
	if err := ctx.Err(); err != nil {
		return Fingerprint{}, err
	}
	if pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line)); err == nil {
		return fingerprintOf(pub), nil
	}
	if fp, err := rsa1LineFingerprint(line); err == nil {
		return fp, nil
	}
	return Fingerprint{}, fmt.Errorf("unparseable public key line")
}

func (t *CryptoTool) FingerprintFile(ctx context.Context, path string) (Fingerprint, error) {
	if err := ctx.Err(); err != nil {
		return Fingerprint{}, err
	}
	data, err := readFileCapped(path, maxKeyFileBytes)
	if err != nil {
		return Fingerprint{}, err
	}
	if bytes.HasPrefix(data, []byte(ssh1HeaderLine)) {
		return SSH1Fingerprint(data)
	}
	var firstLine string
	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		firstLine = line
		break
	}
	if firstLine != "" {
		if fp, err := t.FingerprintLine(ctx, firstLine); err == nil {
			return fp, nil
		}
	}
	// Not a public key file; last resort is treating it as an unencrypted
	// private key and fingerprinting its derived public half.
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("no fingerprintable key in %s", path)
	}
	return fingerprintOf(signer.PublicKey()), nil
}

func fingerprintOf(pub ssh.PublicKey) Fingerprint {
	return Fingerprint{
		Bits:   PublicKeyBits(pub),
		Digest: ssh.FingerprintLegacyMD5(pub),
		Type:   KeyTypeName(pub.Type()),
	}
}

// PublicKeyBits returns the conventional bit length of a public key: modulus
// bits for RSA, prime bits for DSA, curve size for ECDSA, 256 for Ed25519.
func PublicKeyBits(pub ssh.PublicKey) int {
	cpk, ok := pub.(ssh.CryptoPublicKey)
	if !ok {
		return 0
	}
	switch key := cpk.CryptoPublicKey().(type) {
	case *rsa.PublicKey:
		return key.N.BitLen()
	case *dsa.PublicKey:
		return key.P.BitLen()
	case *ecdsa.PublicKey:
		return key.Curve.Params().BitSize
	case ed25519.PublicKey:
		return 256
	default:
		return 0
	}
}

// rsa1LineFingerprint handles the protocol 1 public key line format
// "bits exponent modulus [comment]", fingerprinted as MD5 over the raw
// modulus and exponent bytes.
func rsa1LineFingerprint(line string) (Fingerprint, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Fingerprint{}, fmt.Errorf("not an rsa1 public key line")
	}
	bits, err := strconv.Atoi(fields[0])
	if err != nil || bits <= 0 {
		return Fingerprint{}, fmt.Errorf("not an rsa1 public key line")
	}
	e, ok := new(big.Int).SetString(fields[1], 10)
	if !ok {
		return Fingerprint{}, fmt.Errorf("bad rsa1 exponent")
	}
	n, ok := new(big.Int).SetString(fields[2], 10)
	if !ok {
		return Fingerprint{}, fmt.Errorf("bad rsa1 modulus")
	}
	sum := md5.Sum(append(n.Bytes(), e.Bytes()...))
	return Fingerprint{
		Bits:   bits,
		Digest: colonHex(sum[:]),
		Type:   "RSA1",
	}, nil
}
