package agentscan

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/ssh/agent"
)

// serveAgent runs an in-process keyring agent on a unix socket and returns
// the socket path.
func serveAgent(t *testing.T, keyring agent.Agent) string {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "agent.sock")
	l, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_ = agent.ServeAgent(keyring, conn)
			}()
		}
	}()
	return sock
}

func TestListIdentities(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	keyring := agent.NewKeyring()
	if err := keyring.Add(agent.AddedKey{PrivateKey: priv, Comment: "/home/alice/.ssh/id_ed25519"}); err != nil {
		t.Fatal(err)
	}
	sock := serveAgent(t, keyring)

	idents, err := ListIdentities(context.Background(), sock, 5*time.Second)
	if err != nil {
		t.Fatalf("ListIdentities: %v", err)
	}
	if len(idents) != 1 {
		t.Fatalf("got %d identities, want 1", len(idents))
	}
	ident := idents[0]
	if len(ident.Fingerprint) != 47 {
		t.Errorf("fingerprint = %q, want 47-char MD5", ident.Fingerprint)
	}
	if ident.Type != "ED25519" || ident.Bits != 256 {
		t.Errorf("type/bits = %s/%d", ident.Type, ident.Bits)
	}
	if ident.Socket != sock {
		t.Errorf("socket = %q", ident.Socket)
	}
	// A path-shaped comment marks a forwarded identity.
	if ident.RemotePath != "/home/alice/.ssh/id_ed25519" {
		t.Errorf("remote path = %q", ident.RemotePath)
	}
}

func TestListIdentitiesLocalComment(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	keyring := agent.NewKeyring()
	if err := keyring.Add(agent.AddedKey{PrivateKey: priv, Comment: "alice@laptop"}); err != nil {
		t.Fatal(err)
	}
	sock := serveAgent(t, keyring)

	idents, err := ListIdentities(context.Background(), sock, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if len(idents) != 1 || idents[0].RemotePath != "" {
		t.Fatalf("idents = %+v", idents)
	}
}

func TestListIdentitiesNotASocket(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.fake")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	idents, err := ListIdentities(context.Background(), path, time.Second)
	if err != nil || idents != nil {
		t.Fatalf("regular file: idents=%v err=%v, want nil/nil", idents, err)
	}

	idents, err = ListIdentities(context.Background(), filepath.Join(dir, "missing"), time.Second)
	if err != nil || idents != nil {
		t.Fatalf("missing path: idents=%v err=%v, want nil/nil", idents, err)
	}
}

func TestIdentityFields(t *testing.T) {
	ident := Identity{
		Owner:       "alice",
		Group:       "alice",
		Mode:        "0600",
		ModTime:     1700000000,
		Fingerprint: "aa:bb",
		Bits:        256,
		Type:        "ED25519",
		Socket:      "/tmp/ssh-x/agent.1",
		RemotePath:  "/home/alice/.ssh/id_ed25519",
	}
	fields := ident.Fields()
	if len(fields) != 10 {
		t.Fatalf("field count = %d, want 10", len(fields))
	}
	if fields[7] != "0" {
		t.Errorf("encrypted = %q, want 0", fields[7])
	}
	if fields[8] != ident.Socket {
		t.Errorf("path field = %q", fields[8])
	}
	if fields[9] != "remote_path="+ident.RemotePath {
		t.Errorf("annotation = %q", fields[9])
	}

	local := Identity{Socket: "/tmp/agent"}
	fields = local.Fields()
	if fields[9] != "" {
		t.Errorf("local annotation = %q, want empty", fields[9])
	}
	if fields[6] != "NA" {
		t.Errorf("missing type = %q, want NA", fields[6])
	}
}
