package app

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"sf/internal/config"
	"sf/internal/file"
	"sf/internal/netif"
	"sf/internal/protocol"
	"sf/internal/ui"
)

type loopbackLister struct{}

// A /32 mask makes the announcement go to the loopback address itself
func (loopbackLister) List() ([]netif.LocalAddr, error) {
	return []netif.LocalAddr{{Interface: "lo", IP: netip.MustParseAddr("127.0.0.1"), Mask: net.CIDRMask(32, 32)}}, nil
}

func freePort(t *testing.T, network string) uint16 {
	t.Helper()
	if network == "udp" {
		pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("ListenPacket: %v", err)
		}
		defer pc.Close()
		return uint16(pc.LocalAddr().(*net.UDPAddr).Port)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	return uint16(ln.Addr().(*net.TCPAddr).Port)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Transfer.Port = freePort(t, "tcp")
	cfg.Transfer.ChunkSize = 8
	cfg.Discovery.SignalingPort = freePort(t, "udp")
	cfg.Discovery.BroadcastPort = freePort(t, "udp")
	cfg.Discovery.SignalDelay = 50 * time.Millisecond
	cfg.Discovery.Timeout = 5 * time.Second
	cfg.Dial.Attempts = 50
	cfg.Dial.InitialWait = 20 * time.Millisecond
	return cfg
}

func writeSource(t *testing.T) string {
	t.Helper()
	src := t.TempDir()
	files := map[string]string{
		"docs/readme.txt": "hello world",
		"docs/sub/a.bin":  "",
		"docs/skip.tmp":   "excluded",
	}
	for name, content := range files {
		p := filepath.Join(src, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	return src
}

func runPair(t *testing.T, target string, strip bool) (string, string) {
	t.Helper()
	cfg := testConfig(t)
	src := writeSource(t)
	dst := t.TempDir()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	var recvOut bytes.Buffer
	receiver := NewReceiverApp(cfg, ui.NewConsoleUIWriter("Receiving", &recvOut), zaptest.NewLogger(t))
	receiver.Lister = loopbackLister{}
	errc := make(chan error, 1)
	go func() {
		errc <- receiver.Run(ctx, &ReceiverOptions{Dir: dst, StripPrefix: strip})
	}()

	var sendOut bytes.Buffer
	sender := NewSenderApp(cfg, file.NewOsService(), ui.NewConsoleUIWriter("Sending", &sendOut), zaptest.NewLogger(t))
	err := sender.Run(ctx, &SenderOptions{
		Target:   target,
		Paths:    []string{filepath.Join(src, "docs")},
		Excludes: []string{"*.tmp"},
	})
	if err != nil {
		t.Fatalf("sender: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("receiver: %v", err)
	}
	if !strings.Contains(sendOut.String(), "Transfer completed successfully!") {
		t.Errorf("sender output missing summary:\n%s", sendOut.String())
	}
	return src, dst
}

func assertFile(t *testing.T, path, want string) {
	t.Helper()
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != want {
		t.Errorf("%s = %q, want %q", path, got, want)
	}
}

func TestTransfer_AutoDiscoveryStripPrefix(t *testing.T) {
	_, dst := runPair(t, "auto", true)

	assertFile(t, filepath.Join(dst, "readme.txt"), "hello world")
	assertFile(t, filepath.Join(dst, "sub", "a.bin"), "")
	if _, err := os.Stat(filepath.Join(dst, "skip.tmp")); !os.IsNotExist(err) {
		t.Errorf("excluded file was transferred: %v", err)
	}
}

func TestTransfer_DirectKeepsPaths(t *testing.T) {
	src, dst := runPair(t, "127.0.0.1", false)

	// the sender's full path is recreated below the destination
	rel := filepath.ToSlash(filepath.Join(src, "docs", "readme.txt"))
	assertFile(t, filepath.Join(dst, filepath.FromSlash(rel)), "hello world")
}

func TestSenderApp_InvalidInput(t *testing.T) {
	cfg := testConfig(t)
	sender := NewSenderApp(cfg, file.NewOsService(), ui.NewConsoleUIWriter("Sending", &bytes.Buffer{}), zaptest.NewLogger(t))

	err := sender.Run(context.Background(), &SenderOptions{Target: "not-an-ip", Paths: []string{"x"}})
	if !errors.Is(err, protocol.ErrAddressResolution) {
		t.Errorf("bad target: err = %v, want ErrAddressResolution", err)
	}

	err = sender.Run(context.Background(), &SenderOptions{Target: "127.0.0.1", Paths: []string{filepath.Join(t.TempDir(), "missing")}})
	if !errors.Is(err, protocol.ErrFilesystem) {
		t.Errorf("missing file: err = %v, want ErrFilesystem", err)
	}

	if err := sender.Run(context.Background(), &SenderOptions{Target: "auto"}); err == nil {
		t.Error("empty file list accepted")
	}
}

func TestReceiverApp_InvalidBind(t *testing.T) {
	receiver := NewReceiverApp(testConfig(t), ui.NewConsoleUIWriter("Receiving", &bytes.Buffer{}), zaptest.NewLogger(t))
	receiver.Lister = loopbackLister{}

	err := receiver.Run(context.Background(), &ReceiverOptions{Dir: t.TempDir(), Bind: "nonsense"})
	if !errors.Is(err, protocol.ErrAddressResolution) {
		t.Errorf("err = %v, want ErrAddressResolution", err)
	}
}
