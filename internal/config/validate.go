package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateInference(); err != nil {
		return err
	}
	if err := c.validateBackend(); err != nil {
		return err
	}
	if c.Probe.TimeoutMS <= 0 {
		return errors.New("probe.timeout_ms must be positive")
	}
	return nil
}

func (c *Config) validateInference() error {
	if err := validateAddress("inference.address", c.Inference.Address); err != nil {
		return err
	}
	if strings.TrimSpace(c.Inference.Executable) == "" {
		return errors.New("inference.executable must be set")
	}
	marker := c.Inference.SeedMarker
	if marker == "" || marker == "." || marker == ".." || strings.ContainsAny(marker, `/\`) {
		return fmt.Errorf("inference.seed_marker must be a plain file name, got %q", marker)
	}
	return nil
}

func (c *Config) validateBackend() error {
	if err := validateAddress("backend.address", c.Backend.Address); err != nil {
		return err
	}
	if strings.TrimSpace(c.Backend.Executable) == "" {
		return errors.New("backend.executable must be set")
	}
	if c.Backend.ReadyAttempts < 0 {
		return errors.New("backend.ready_attempts must be >= 0")
	}
	if c.Backend.ReadyIntervalMS <= 0 {
		return errors.New("backend.ready_interval_ms must be positive")
	}
	if c.Inference.Enabled && c.Backend.Enabled && c.Inference.Address == c.Backend.Address {
		return errors.New("inference.address and backend.address must differ")
	}
	return nil
}

func validateAddress(key, value string) error {
	host, port, err := net.SplitHostPort(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if strings.TrimSpace(host) == "" {
		return fmt.Errorf("%s: host must be set", key)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("%s: invalid port %q", key, port)
	}
	return nil
}
