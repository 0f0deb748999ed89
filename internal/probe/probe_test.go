package probe

import (
	"context"
	"net"
	"testing"
	"time"
)

func freeAddress(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatalf("close listener: %v", err)
	}
	return addr
}

func TestIsOpenFreePort(t *testing.T) {
	addr := freeAddress(t)
	timeout := 200 * time.Millisecond

	start := time.Now()
	if IsOpen(context.Background(), addr, timeout) {
		t.Fatalf("expected %s to be closed", addr)
	}
	if elapsed := time.Since(start); elapsed > timeout+500*time.Millisecond {
		t.Fatalf("liveness check took %s, expected about %s", elapsed, timeout)
	}
}

func TestIsOpenListeningPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	if !IsOpen(context.Background(), ln.Addr().String(), DefaultTimeout) {
		t.Fatalf("expected %s to be live", ln.Addr())
	}
}

func TestWaitForOpenSeesLateListener(t *testing.T) {
	addr := freeAddress(t)
	ready := make(chan net.Listener, 1)
	go func() {
		time.Sleep(150 * time.Millisecond)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			ready <- nil
			return
		}
		ready <- ln
	}()

	ok := WaitForOpen(context.Background(), addr, WaitOptions{Attempts: 40, Interval: 50 * time.Millisecond, Timeout: 100 * time.Millisecond})
	ln := <-ready
	if ln == nil {
		t.Skip("port was taken before the listener could bind")
	}
	defer ln.Close()
	if !ok {
		t.Fatal("expected WaitForOpen to observe the listener")
	}
}

func TestWaitForOpenExhaustsAttempts(t *testing.T) {
	addr := freeAddress(t)
	start := time.Now()
	if WaitForOpen(context.Background(), addr, WaitOptions{Attempts: 3, Interval: 20 * time.Millisecond, Timeout: 50 * time.Millisecond}) {
		t.Fatal("expected poll to give up")
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("expected two sleeps between three attempts, took %s", elapsed)
	}
}

func TestWaitForOpenStopsOnCancel(t *testing.T) {
	addr := freeAddress(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if WaitForOpen(ctx, addr, WaitOptions{Attempts: 100, Interval: time.Second, Timeout: 50 * time.Millisecond}) {
		t.Fatal("expected cancelled poll to report not ready")
	}
	if time.Since(start) > time.Second {
		t.Fatal("expected cancelled poll to return promptly")
	}
}
