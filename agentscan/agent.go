package agentscan

import (
	"context"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sveniu/ssh-scankeys/config"
	"github.com/sveniu/ssh-scankeys/keyscan"
	"github.com/sveniu/ssh-scankeys/logger"
	"github.com/sveniu/ssh-scankeys/output"
	"github.com/sveniu/ssh-scankeys/tracing"
	"github.com/sveniu/ssh-scankeys/utils"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// Identity is one key held by a running agent. Agent-resident keys are
// decrypted by definition, so the encrypted flag is always 0.
type Identity struct {
	Owner       string `json:"owner"`
	Group       string `json:"group"`
	Mode        string `json:"mode"`
	ModTime     int64  `json:"mtime"`
	Fingerprint string `json:"fingerprint"`
	Bits        int    `json:"bit_length"`
	Type        string `json:"key_type"`
	Socket      string `json:"socket"`
	RemotePath  string `json:"remote_path,omitempty"`
	Comment     string `json:"comment,omitempty"`
}

func (i Identity) Kind() string { return "agent" }

// Fields matches the key report layout, with the public key line slot
// carrying the forwarded-path annotation when the identity has one.
func (i Identity) Fields() []string {
	annotation := ""
	if i.RemotePath != "" {
		annotation = "remote_path=" + i.RemotePath
	}
	keyType := i.Type
	if keyType == "" {
		keyType = "NA"
	}
	return []string{
		i.Owner,
		i.Group,
		i.Mode,
		strconv.FormatInt(i.ModTime, 10),
		i.Fingerprint,
		strconv.Itoa(i.Bits),
		keyType,
		"0",
		i.Socket,
		annotation,
	}
}

// Scan queries every discovered socket. A socket that is missing, not a
// socket, or unwilling to talk contributes nothing; none of that aborts the
// run.
func Scan(ctx context.Context, cfg *config.Config, w *output.Writer) {
	ctx, endTask := tracing.StartTask(ctx, "agent_scan")
	defer endTask()

	for _, socket := range DiscoverSockets(ctx, cfg) {
		if ctx.Err() != nil {
			return
		}
		identities, err := ListIdentities(ctx, socket, cfg.ToolTimeout)
		if err != nil {
			logger.Debugf("Agent query on %s failed: %v", socket, err)
			continue
		}
		for _, ident := range identities {
			w.Write(ident)
		}
	}
}

// ListIdentities lists the keys held by the agent at socketPath. A path that
// is not a live, permitted socket yields no identities and no error.
func ListIdentities(ctx context.Context, socketPath string, timeout time.Duration) ([]Identity, error) {
	info, err := os.Stat(socketPath)
	if err != nil || info.Mode()&os.ModeSocket == 0 {
		return nil, nil
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, nil
	}
	defer conn.Close()
	if timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}

	keys, err := agent.NewClient(conn).List()
	if err != nil {
		return nil, err
	}

	owner, group := utils.Ownership(info)
	identities := make([]Identity, 0, len(keys))
	for _, key := range keys {
		ident := Identity{
			Owner:       owner,
			Group:       group,
			Mode:        utils.ModeOctal(info),
			ModTime:     utils.ModTimeEpoch(info),
			Fingerprint: ssh.FingerprintLegacyMD5(key),
			Type:        keyscan.KeyTypeName(key.Type()),
			Socket:      socketPath,
			Comment:     key.Comment,
		}
		if pub, err := ssh.ParsePublicKey(key.Blob); err == nil {
			ident.Bits = keyscan.PublicKeyBits(pub)
		}
		// An agent-forwarded identity carries the key's path on the origin
		// host as its comment.
		if strings.HasPrefix(key.Comment, "/") {
			ident.RemotePath = key.Comment
		}
		identities = append(identities, ident)
	}
	return identities, nil
}
