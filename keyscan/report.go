package keyscan

import (
	"strconv"
	"strings"

	"github.com/sveniu/ssh-scankeys/utils"
)

// Report is the final record for one processed file.
type Report struct {
	Owner       string `json:"owner"`
	Group       string `json:"group"`
	Mode        string `json:"mode"`
	ModTime     int64  `json:"mtime"`
	Fingerprint string `json:"fingerprint"`
	Bits        int    `json:"bit_length"`
	Type        string `json:"key_type"`
	Encrypted   bool   `json:"encrypted"`
	Path        string `json:"path"`
	Line        string `json:"public_key_line"`
	Format      string `json:"format"`
	Verified    bool   `json:"verified"`
}

func (r Report) Kind() string { return "key" }

// Fields renders the fixed ten-field record:
// owner;group;mode;mtime;fingerprint;bit_length;key_type;encrypted;path;line
// Missing fingerprint is an empty field, missing bits is 0, missing type is NA.
func (r Report) Fields() []string {
	encrypted := "0"
	if r.Encrypted {
		encrypted = "1"
	}
	keyType := r.Type
	if keyType == "" {
		keyType = "NA"
	}
	return []string{
		r.Owner,
		r.Group,
		r.Mode,
		strconv.FormatInt(r.ModTime, 10),
		r.Fingerprint,
		strconv.Itoa(r.Bits),
		keyType,
		encrypted,
		r.Path,
		r.Line,
	}
}

// AssembleReport merges file metadata, the decoder verdict, and the public
// key material into one record. The Unknown encryption verdict folds into the
// unencrypted flag value; the tri-state is preserved only in logs.
func AssembleReport(cand Candidate, format Format, enc Encryption, rec PublicKeyRecord) Report {
	owner, group := utils.Ownership(cand.Info)
	keyType := rec.Type
	if keyType == "" {
		keyType = typeFromLine(rec.Line)
	}
	return Report{
		Owner:       owner,
		Group:       group,
		Mode:        utils.ModeOctal(cand.Info),
		ModTime:     utils.ModTimeEpoch(cand.Info),
		Fingerprint: rec.Fingerprint,
		Bits:        rec.Bits,
		Type:        keyType,
		Encrypted:   enc == Encrypted,
		Path:        cand.Path,
		Line:        rec.Line,
		Format:      format.String(),
		Verified:    rec.Verified,
	}
}

var keyTypeNames = map[string]string{
	"ssh-rsa":     "RSA",
	"rsa":         "RSA",
	"ssh-dss":     "DSA",
	"dsa":         "DSA",
	"ssh-ed25519": "ED25519",
	"ed25519":     "ED25519",
	"rsa1":        "RSA1",
}

// KeyTypeName maps an algorithm identifier (an authorized-keys leading token
// like "ssh-rsa", or a bare name like "RSA" from a fingerprint listing) to
// the report's key type vocabulary. Unknown identifiers map to "".
func KeyTypeName(identifier string) string {
	id := strings.ToLower(strings.TrimSuffix(identifier, "-cert-v01@openssh.com"))
	if name, ok := keyTypeNames[id]; ok {
		return name
	}
	if strings.HasPrefix(id, "ecdsa-") || id == "ecdsa" {
		return "ECDSA"
	}
	if strings.HasPrefix(id, "sk-ssh-ed25519") {
		return "ED25519"
	}
	if strings.HasPrefix(id, "sk-ecdsa-") {
		return "ECDSA"
	}
	return ""
}

// typeFromLine derives the key type from a raw public key line when the
// fingerprint probe did not report one: the first algorithm-looking token
// wins, and a leading decimal bit count marks the protocol 1 format.
func typeFromLine(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	if _, err := strconv.Atoi(fields[0]); err == nil {
		return "RSA1"
	}
	for _, field := range fields {
		if name := KeyTypeName(field); name != "" {
			return name
		}
	}
	return ""
}
