// ABOUTME: Configuration sources for backup sessions
// ABOUTME: Simulated device configs and configs exported to a directory

package fetcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nainya/confsnap/pkg/snapshot"
)

// ErrUnknownDevice is returned when a source has no configuration for a host.
var ErrUnknownDevice = errors.New("fetcher: unknown device")

// Simulated serves configurations from memory. It stands in for real
// devices when none are reachable.
type Simulated struct {
	mu      sync.RWMutex
	configs map[string]string
}

// NewSimulated creates a simulated source seeded with configs.
func NewSimulated(configs map[string]string) *Simulated {
	s := &Simulated{configs: make(map[string]string, len(configs))}
	for host, cfg := range configs {
		s.configs[host] = cfg
	}
	return s
}

// DefaultSimulated returns the built-in lab: Switch1, Router1 and Firewall1.
func DefaultSimulated() *Simulated {
	return NewSimulated(map[string]string{
		"Switch1": `
hostname Switch1
interface Fa0/1
 switchport mode access
 switchport access vlan 10
!
`,
		"Router1": `
hostname Router1
interface Gig0/1
 ip address 192.168.1.1 255.255.255.0
!
`,
		"Firewall1": `
hostname Firewall1
policy allow all
interface WAN
 security-level 100
!
`,
	})
}

// Fetch returns the device's current simulated configuration.
func (s *Simulated) Fetch(ctx context.Context, deviceID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[deviceID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	return cfg, nil
}

// Set replaces a device's configuration, simulating drift.
func (s *Simulated) Set(deviceID, config string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[deviceID] = config
}

// Directory reads configurations exported by another tool as
// {dir}/{hostname}.txt or {dir}/{hostname}.cfg.
type Directory struct {
	dir string
}

// Extensions are tried in order.
var Extensions = []string{".txt", ".cfg"}

// NewDirectory creates a source reading from dir.
func NewDirectory(dir string) (*Directory, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("config directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("config directory: %s is not a directory", dir)
	}
	return &Directory{dir: dir}, nil
}

// Fetch reads the device's exported configuration.
func (d *Directory) Fetch(ctx context.Context, deviceID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	// Hostnames become file names
	if err := snapshot.ValidateDeviceID(deviceID); err != nil {
		return "", err
	}

	for _, ext := range Extensions {
		data, err := os.ReadFile(filepath.Join(d.dir, deviceID+ext))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("read config for %s: %w", deviceID, err)
		}
		return string(data), nil
	}

	return "", fmt.Errorf("%w: no %s{%s,%s} in %s", ErrUnknownDevice, deviceID, Extensions[0], Extensions[1], d.dir)
}
