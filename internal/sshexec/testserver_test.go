package sshexec

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"golang.org/x/crypto/ssh"
)

// testFS simulates a simple in-memory filesystem for the test SSH server.
type testFS struct {
	mu    sync.Mutex
	files map[string][]byte // path → content
	dirs  map[string]bool   // path → exists
}

func newTestFS() *testFS {
	return &testFS{
		files: map[string][]byte{
			"/root/hello.txt": []byte("hello world"),
			"/root/data.bin":  {0x00, 0x01, 0x02, 0xFF},
		},
		dirs: map[string]bool{
			"/root":     true,
			"/root/sub": true,
			"/tmp":      true,
		},
	}
}

// handleExec processes an exec command against the in-memory filesystem.
func (fs *testFS) handleExec(cmd string) (stdout string, exitCode int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	switch {
	case strings.HasPrefix(cmd, "ls -lrth "):
		return fs.handleLs(extractShellArg(cmd, "ls -lrth "))

	case strings.HasPrefix(cmd, "cat "):
		return fs.handleCat(extractShellArg(cmd, "cat "))

	case strings.HasPrefix(cmd, "mkdir -p "):
		fs.handleMkdir(extractShellArg(cmd, "mkdir -p "))
		return "", 0

	case strings.HasPrefix(cmd, "> "):
		fs.files[extractShellArg(cmd, "> ")] = []byte{}
		return "", 0

	case strings.HasPrefix(cmd, "echo '") && strings.Contains(cmd, "| base64 -d >>"):
		return fs.handleBase64Append(cmd)

	case strings.HasPrefix(cmd, "cd ") && strings.HasSuffix(cmd, " && pwd"):
		path := extractShellArg(cmd, "cd ")
		if !fs.dirs[path] {
			return "no such directory", 1
		}
		return path + "\n", 0

	case cmd == "hostname":
		return "testhost\n", 0

	case cmd == "whoami":
		return "root\n", 0

	case cmd == "pwd":
		return "/root\n", 0

	default:
		return fmt.Sprintf("unknown command: %s", cmd), 127
	}
}

func (fs *testFS) handleLs(path string) (string, int) {
	if !fs.dirs[path] {
		return "cannot access " + path, 2
	}

	prefix := path
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var rows []string
	for fpath, content := range fs.files {
		if strings.HasPrefix(fpath, prefix) && !strings.Contains(fpath[len(prefix):], "/") {
			name := fpath[len(prefix):]
			rows = append(rows, fmt.Sprintf("-rw-r--r-- 1 root root %d Jan  1 00:00 %s", len(content), name))
		}
	}
	for dpath := range fs.dirs {
		if dpath == path {
			continue
		}
		if strings.HasPrefix(dpath, prefix) && !strings.Contains(dpath[len(prefix):], "/") {
			name := dpath[len(prefix):]
			rows = append(rows, fmt.Sprintf("drwxr-xr-x 2 root root 4.0K Jan  1 00:00 %s", name))
		}
	}
	sort.Strings(rows)

	lines := append([]string{"total 8"}, rows...)
	return strings.Join(lines, "\n") + "\n", 0
}

func (fs *testFS) handleCat(path string) (string, int) {
	content, ok := fs.files[path]
	if !ok {
		return "cat: " + path + ": No such file or directory", 1
	}
	return string(content), 0
}

func (fs *testFS) handleMkdir(path string) {
	parts := strings.Split(path, "/")
	for i := 1; i <= len(parts); i++ {
		p := strings.Join(parts[:i], "/")
		if p == "" {
			continue
		}
		fs.dirs[p] = true
	}
}

func (fs *testFS) handleBase64Append(cmd string) (string, int) {
	// echo '<b64>' | base64 -d >> '/path'
	start := strings.Index(cmd, "'") + 1
	end := strings.Index(cmd[start:], "'") + start
	b64 := cmd[start:end]

	pathStart := strings.LastIndex(cmd, ">> ") + 3
	path := extractQuotedArg(cmd[pathStart:])

	decoded, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return fmt.Sprintf("base64 decode error: %v", err), 1
	}

	fs.files[path] = append(fs.files[path], decoded...)
	return "", 0
}

// extractShellArg extracts a shell-quoted argument from a command after removing the prefix.
func extractShellArg(cmd, prefix string) string {
	return extractQuotedArg(strings.TrimPrefix(cmd, prefix))
}

// extractQuotedArg extracts a single-quoted argument, handling escaped quotes.
func extractQuotedArg(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "'") {
		return strings.Fields(s)[0]
	}

	var result strings.Builder
	i := 1 // skip opening quote
	for i < len(s) {
		if s[i] == '\'' {
			if i+3 < len(s) && s[i:i+4] == "'\\''" {
				result.WriteByte('\'')
				i += 4
				continue
			}
			break
		}
		result.WriteByte(s[i])
		i++
	}
	return result.String()
}

// generateKeyPEM creates an ed25519 private key in PEM format.
func generateKeyPEM(t *testing.T) []byte {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}

	privBytes, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatalf("marshal private key: %v", err)
	}

	return pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: privBytes,
	})
}

// testSSHServer starts an in-process SSH server backed by the given testFS.
// It handles exec requests by dispatching to the filesystem.
func testSSHServer(t *testing.T, authorizedKey ssh.PublicKey, fs *testFS) (addr string, cleanup func()) {
	t.Helper()

	hostSigner, err := ssh.ParsePrivateKey(generateKeyPEM(t))
	if err != nil {
		t.Fatalf("parse host key: %v", err)
	}

	config := &ssh.ServerConfig{
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if ssh.FingerprintSHA256(key) == ssh.FingerprintSHA256(authorizedKey) {
				return &ssh.Permissions{}, nil
			}
			return nil, fmt.Errorf("unknown public key")
		},
	}
	config.AddHostKey(hostSigner)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	var conns []net.Conn
	var connsMu sync.Mutex

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			netConn, err := listener.Accept()
			if err != nil {
				return
			}
			connsMu.Lock()
			conns = append(conns, netConn)
			connsMu.Unlock()
			go handleTestConn(netConn, config, fs)
		}
	}()

	return listener.Addr().String(), func() {
		listener.Close()
		connsMu.Lock()
		for _, c := range conns {
			c.Close()
		}
		connsMu.Unlock()
		<-done
	}
}

func handleTestConn(netConn net.Conn, config *ssh.ServerConfig, fs *testFS) {
	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, config)
	if err != nil {
		netConn.Close()
		return
	}
	defer sshConn.Close()

	go func() {
		for req := range reqs {
			if req.WantReply {
				req.Reply(true, nil)
			}
		}
	}()

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			newChan.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		ch, requests, err := newChan.Accept()
		if err != nil {
			continue
		}
		go handleTestSession(ch, requests, fs)
	}
}

func handleTestSession(ch ssh.Channel, requests <-chan *ssh.Request, fs *testFS) {
	defer ch.Close()
	for req := range requests {
		if req.Type == "exec" {
			// Payload format: uint32 length + command string
			cmdLen := uint32(req.Payload[0])<<24 | uint32(req.Payload[1])<<16 | uint32(req.Payload[2])<<8 | uint32(req.Payload[3])
			cmd := string(req.Payload[4 : 4+cmdLen])

			if req.WantReply {
				req.Reply(true, nil)
			}

			stdout, exitCode := fs.handleExec(cmd)

			if exitCode != 0 {
				ch.Stderr().Write([]byte(stdout))
			} else {
				ch.Write([]byte(stdout))
			}

			exitPayload := []byte{byte(exitCode >> 24), byte(exitCode >> 16), byte(exitCode >> 8), byte(exitCode)}
			ch.SendRequest("exit-status", false, exitPayload)

			return
		}
		if req.WantReply {
			req.Reply(true, nil)
		}
	}
}

// newTestClient dials an in-process SSH server through the public Dial API.
func newTestClient(t *testing.T, fs *testFS) (*Client, func()) {
	t.Helper()

	keyPEM := generateKeyPEM(t)

	signer, err := ssh.ParsePrivateKey(keyPEM)
	if err != nil {
		t.Fatalf("parse private key: %v", err)
	}

	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	addr, cleanup := testSSHServer(t, signer.PublicKey(), fs)

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		cleanup()
		t.Fatalf("split addr %s: %v", addr, err)
	}
	port, _ := strconv.Atoi(portStr)

	client, err := Dial(context.Background(), Options{
		Host:    host,
		User:    "root",
		KeyPath: keyPath,
		Port:    port,
	})
	if err != nil {
		cleanup()
		t.Fatalf("dial test server: %v", err)
	}

	return client, func() {
		client.Close()
		cleanup()
	}
}
