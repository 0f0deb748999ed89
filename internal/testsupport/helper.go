package testsupport

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Helper process control. A test package's TestMain calls
// RunHelperIfRequested before m.Run; a child spawned from the test binary
// with HelperModeEnv set then behaves like a stand-in daemon instead of
// running tests.
const (
	HelperModeEnv   = "PDCDESK_TEST_HELPER"
	HelperRecordEnv = "PDCDESK_TEST_HELPER_RECORD"

	// HelperSleep blocks until killed.
	HelperSleep = "sleep"
	// HelperServe listens on the address taken from --host/--port or
	// OLLAMA_HOST and accepts connections until killed.
	HelperServe = "serve"
	// HelperExit exits immediately with HelperExitCode.
	HelperExit = "exit"

	HelperExitCode = 3
)

// HelperInvocation is what a serving helper writes to HelperRecordEnv.
type HelperInvocation struct {
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
	Address string            `json:"address"`
	PID     int               `json:"pid"`
}

var recordedEnvKeys = []string{"OLLAMA_HOST", "OLLAMA_MODELS", "OLLAMA_BASE_URL", "PDC_DATA_DIR"}

// RunHelperIfRequested turns the current process into a helper daemon when
// HelperModeEnv is set. It never returns in that case.
func RunHelperIfRequested() {
	mode := os.Getenv(HelperModeEnv)
	if mode == "" {
		return
	}
	switch mode {
	case HelperSleep:
		time.Sleep(time.Hour)
		os.Exit(0)
	case HelperExit:
		os.Exit(HelperExitCode)
	case HelperServe:
		if err := serve(os.Args[1:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown helper mode %q\n", mode)
		os.Exit(2)
	}
}

func serve(args []string) error {
	address := helperAddress(args)
	if address == "" {
		return fmt.Errorf("helper: no listen address in args %v or OLLAMA_HOST", args)
	}
	if dir := os.Getenv(HelperRecordEnv); dir != "" {
		if err := recordInvocation(dir, address, args); err != nil {
			return err
		}
	}
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("helper listen %s: %w", address, err)
	}
	for {
		conn, err := listener.Accept()
		if err != nil {
			return err
		}
		_ = conn.Close()
	}
}

func helperAddress(args []string) string {
	var host, port string
	for i := 0; i < len(args)-1; i++ {
		switch args[i] {
		case "--host":
			host = args[i+1]
		case "--port":
			port = args[i+1]
		}
	}
	if host != "" && port != "" {
		return net.JoinHostPort(host, port)
	}
	return strings.TrimPrefix(os.Getenv("OLLAMA_HOST"), "http://")
}

func recordInvocation(dir, address string, args []string) error {
	inv := HelperInvocation{
		Args:    args,
		Env:     map[string]string{},
		Address: address,
		PID:     os.Getpid(),
	}
	for _, key := range recordedEnvKeys {
		if value, ok := os.LookupEnv(key); ok {
			inv.Env[key] = value
		}
	}
	data, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, recordName(address)), data, 0o644)
}

func recordName(address string) string {
	_, port, err := net.SplitHostPort(address)
	if err != nil {
		port = strings.NewReplacer(":", "_", "/", "_").Replace(address)
	}
	return "helper-" + port + ".json"
}

// ReadInvocation loads what the helper serving address recorded in dir.
func ReadInvocation(t testing.TB, dir, address string) HelperInvocation {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, recordName(address)))
	if err != nil {
		t.Fatalf("read helper record for %s: %v", address, err)
	}
	var inv HelperInvocation
	if err := json.Unmarshal(data, &inv); err != nil {
		t.Fatalf("decode helper record: %v", err)
	}
	return inv
}

// HelperExecutable returns the absolute path of the running test binary.
func HelperExecutable(t testing.TB) string {
	t.Helper()

	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	abs, err := filepath.Abs(exe)
	if err != nil {
		t.Fatalf("abs %s: %v", exe, err)
	}
	return abs
}

// FreeAddress returns a loopback host:port nothing is listening on.
func FreeAddress(t testing.TB) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen for free port: %v", err)
	}
	addr := listener.Addr().String()
	if err := listener.Close(); err != nil {
		t.Fatalf("close probe listener: %v", err)
	}
	return addr
}

// Listen opens a loopback listener that is closed when the test ends.
func Listen(t testing.TB) net.Listener {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() {
		_ = listener.Close()
	})
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()
	return listener
}
