package discovery

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"sf/internal/netif"
	"sf/internal/protocol"
)

func TestBroadcastAddr(t *testing.T) {
	tests := []struct {
		ip   string
		mask net.IPMask
		want string
	}{
		{"192.168.1.20", net.CIDRMask(24, 32), "192.168.1.255"},
		{"10.1.2.3", net.CIDRMask(8, 32), "10.255.255.255"},
		{"172.16.5.4", net.CIDRMask(20, 32), "172.16.15.255"},
		{"192.168.1.20", net.CIDRMask(32, 32), "192.168.1.20"},
		{"fe80::1", net.CIDRMask(64, 128), "fe80::ffff:ffff:ffff:ffff"},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			got, err := BroadcastAddr(netip.MustParseAddr(tt.ip), tt.mask)
			if err != nil {
				t.Fatalf("BroadcastAddr: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBroadcastAddr_FamilyMismatch(t *testing.T) {
	_, err := BroadcastAddr(netip.MustParseAddr("192.168.1.20"), net.CIDRMask(64, 128))
	if !errors.Is(err, protocol.ErrDiscovery) {
		t.Errorf("err = %v, want ErrDiscovery", err)
	}
	_, err = BroadcastAddr(netip.MustParseAddr("fe80::1"), net.CIDRMask(24, 32))
	if !errors.Is(err, protocol.ErrDiscovery) {
		t.Errorf("err = %v, want ErrDiscovery", err)
	}
}

func freeUDPPort(t *testing.T) uint16 {
	t.Helper()
	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	defer pc.Close()
	return uint16(pc.LocalAddr().(*net.UDPAddr).Port)
}

func loopbackListener(t *testing.T) *net.TCPListener {
	t.Helper()
	ln, err := net.ListenTCP("tcp4", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln
}

// A /32 mask makes the "broadcast" address the loopback address itself, so
// the survey can be observed without a broadcast-capable interface.
var loopback = netif.LocalAddr{IP: netip.MustParseAddr("127.0.0.1"), Mask: net.CIDRMask(32, 32)}

func TestSurvey_BroadcastsThenAccepts(t *testing.T) {
	signal, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	defer signal.Close()

	ln := loopbackListener(t)
	s := &Surveyor{
		SignalingPort: uint16(signal.LocalAddr().(*net.UDPAddr).Port),
		Delay:         50 * time.Millisecond,
		Logger:        zaptest.NewLogger(t),
	}

	type result struct {
		conn net.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		c, err := s.Survey(context.Background(), ln, loopback)
		done <- result{c, err}
	}()

	_ = signal.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 64)
	n, _, err := signal.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if n != protocol.DatagramSize {
		t.Errorf("datagram size = %d, want %d", n, protocol.DatagramSize)
	}
	addr, err := protocol.DecodeAddr(buf[:n])
	if err != nil {
		t.Fatalf("DecodeAddr: %v", err)
	}
	if addr != ln.Addr().(*net.TCPAddr).AddrPort() {
		t.Errorf("announced %v, listener is %v", addr, ln.Addr())
	}

	client, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("Survey: %v", r.err)
		}
		r.conn.Close()
	case <-time.After(5 * time.Second):
		t.Fatal("survey did not return after a client connected")
	}
}

func TestSurvey_FailsForFallback(t *testing.T) {
	ln := loopbackListener(t)
	s := &Surveyor{SignalingPort: freeUDPPort(t), Delay: 50 * time.Millisecond, Logger: zaptest.NewLogger(t)}

	bad := netif.LocalAddr{IP: netip.MustParseAddr("127.0.0.1"), Mask: net.CIDRMask(64, 128)}
	_, err := s.Survey(context.Background(), ln, bad)
	if !errors.Is(err, protocol.ErrDiscovery) {
		t.Fatalf("err = %v, want ErrDiscovery", err)
	}

	// the listener must still be usable for a blocking accept
	go func() {
		c, err := net.Dial("tcp", ln.Addr().String())
		if err == nil {
			c.Close()
		}
	}()
	_ = ln.SetDeadline(time.Now().Add(5 * time.Second))
	c, err := ln.Accept()
	if err != nil {
		t.Fatalf("Accept after failed survey: %v", err)
	}
	c.Close()
}

func TestSurvey_Cancelled(t *testing.T) {
	ln := loopbackListener(t)
	s := &Surveyor{SignalingPort: freeUDPPort(t), Delay: time.Hour, Logger: zaptest.NewLogger(t)}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := s.Survey(ctx, ln, loopback)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDiscover_SkipsMalformedDatagrams(t *testing.T) {
	port := freeUDPPort(t)
	d := &Discoverer{SignalingPort: port, Timeout: 5 * time.Second, Logger: zaptest.NewLogger(t)}

	want := netip.MustParseAddrPort("192.168.1.20:8370")
	good := protocol.EncodeAddr(want)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		conn, err := net.Dial("udp4", netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), port).String())
		if err != nil {
			return
		}
		defer conn.Close()
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			_, _ = conn.Write([]byte{9, 9, 9})
			_, _ = conn.Write(good[:])
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	got, err := d.Discover(ctx)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDiscover_Timeout(t *testing.T) {
	d := &Discoverer{SignalingPort: freeUDPPort(t), Timeout: 50 * time.Millisecond, Logger: zaptest.NewLogger(t)}

	_, err := d.Discover(context.Background())
	if !errors.Is(err, protocol.ErrDiscovery) {
		t.Errorf("err = %v, want ErrDiscovery", err)
	}
}

func TestDiscover_Cancelled(t *testing.T) {
	d := &Discoverer{SignalingPort: freeUDPPort(t), Logger: zaptest.NewLogger(t)}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := d.Discover(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
