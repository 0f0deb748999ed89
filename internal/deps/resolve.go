package deps

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// StrategyKind identifies one way of locating a sidecar executable.
type StrategyKind int

const (
	// StrategyExplicit accepts a configured absolute path as-is.
	StrategyExplicit StrategyKind = iota
	// StrategyBundled looks for the binary inside a directory, normally the
	// one holding the running application executable.
	StrategyBundled
	// StrategySearchPath resolves the name through PATH.
	StrategySearchPath
)

func (k StrategyKind) String() string {
	switch k {
	case StrategyExplicit:
		return "explicit"
	case StrategyBundled:
		return "bundled"
	case StrategySearchPath:
		return "path"
	default:
		return "unknown"
	}
}

// Strategy is one entry of an ordered resolution chain.
type Strategy struct {
	Kind StrategyKind
	Dir  string
}

// Resolution reports where an executable was found.
type Resolution struct {
	Path     string
	Strategy StrategyKind
}

// ErrNotFound is returned when no strategy locates the executable.
var ErrNotFound = errors.New("executable not found")

// DefaultStrategies prefers a binary packaged next to the running executable
// and falls back to PATH, so a system-wide install can stand in for a
// missing bundled one.
func DefaultStrategies() []Strategy {
	strategies := []Strategy{{Kind: StrategyExplicit}}
	if exe, err := os.Executable(); err == nil {
		strategies = append(strategies, Strategy{Kind: StrategyBundled, Dir: filepath.Dir(exe)})
	}
	return append(strategies, Strategy{Kind: StrategySearchPath})
}

// Resolve evaluates strategies in order and returns the first hit.
func Resolve(name string, strategies ...Strategy) (Resolution, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Resolution{}, fmt.Errorf("resolve executable: %w: empty name", ErrNotFound)
	}
	tried := make([]string, 0, len(strategies))
	for _, strategy := range strategies {
		path, ok := locate(strategy, name)
		if ok {
			return Resolution{Path: path, Strategy: strategy.Kind}, nil
		}
		tried = append(tried, strategy.Kind.String())
	}
	return Resolution{}, fmt.Errorf("resolve executable %q: %w (tried %s)", name, ErrNotFound, strings.Join(tried, ", "))
}

func locate(strategy Strategy, name string) (string, bool) {
	switch strategy.Kind {
	case StrategyExplicit:
		if !filepath.IsAbs(name) {
			return "", false
		}
		return name, executableFile(name)
	case StrategyBundled:
		if strategy.Dir == "" || filepath.IsAbs(name) || strings.ContainsAny(name, `/\`) {
			return "", false
		}
		candidate := filepath.Join(strategy.Dir, ExecutableName(name))
		return candidate, executableFile(candidate)
	case StrategySearchPath:
		if filepath.IsAbs(name) {
			return "", false
		}
		path, err := exec.LookPath(name)
		if err != nil {
			return "", false
		}
		return path, true
	default:
		return "", false
	}
}

// ExecutableName appends the platform executable suffix when one is missing.
func ExecutableName(name string) string {
	if runtime.GOOS == "windows" && !strings.EqualFold(filepath.Ext(name), ".exe") {
		return name + ".exe"
	}
	return name
}

func executableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
