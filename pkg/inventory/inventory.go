// ABOUTME: Device inventory loaded from YAML
// ABOUTME: Hostnames identify devices and must be unique

package inventory

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nainya/confsnap/pkg/snapshot"
)

// ErrInvalid indicates an unusable inventory.
var ErrInvalid = errors.New("inventory: invalid")

// Device is one managed network device.
type Device struct {
	Hostname string `yaml:"hostname"`
	Address  string `yaml:"address,omitempty"`
}

// Inventory is the ordered device list. Order is the reporting order.
type Inventory struct {
	Devices []Device `yaml:"devices"`
}

// Default returns the built-in lab inventory.
func Default() *Inventory {
	return &Inventory{Devices: []Device{
		{Hostname: "Switch1", Address: "192.168.1.10"},
		{Hostname: "Router1", Address: "192.168.1.11"},
		{Hostname: "Firewall1", Address: "192.168.1.12"},
	}}
}

// Load reads and validates an inventory file.
func Load(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}
	inv, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return inv, nil
}

// Parse decodes and validates an inventory document.
func Parse(r io.Reader) (*Inventory, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var inv Inventory
	if err := dec.Decode(&inv); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Validate checks that the inventory lists at least one device and that
// every hostname is a usable, unique device id.
func (inv *Inventory) Validate() error {
	if len(inv.Devices) == 0 {
		return fmt.Errorf("%w: no devices", ErrInvalid)
	}

	seen := make(map[string]int, len(inv.Devices))
	for i, d := range inv.Devices {
		if err := snapshot.ValidateDeviceID(d.Hostname); err != nil {
			return fmt.Errorf("%w: device %d: %v", ErrInvalid, i, err)
		}
		if j, dup := seen[d.Hostname]; dup {
			return fmt.Errorf("%w: hostname %q listed at %d and %d", ErrInvalid, d.Hostname, j, i)
		}
		seen[d.Hostname] = i
	}
	return nil
}

// Hostnames returns the device ids in inventory order.
func (inv *Inventory) Hostnames() []string {
	out := make([]string, len(inv.Devices))
	for i, d := range inv.Devices {
		out[i] = d.Hostname
	}
	return out
}

// Filter keeps only the named devices, preserving inventory order. Unknown
// names are an error.
func (inv *Inventory) Filter(hostnames ...string) (*Inventory, error) {
	if len(hostnames) == 0 {
		return inv, nil
	}

	want := make(map[string]bool, len(hostnames))
	for _, h := range hostnames {
		want[h] = true
	}

	out := &Inventory{}
	for _, d := range inv.Devices {
		if want[d.Hostname] {
			out.Devices = append(out.Devices, d)
			delete(want, d.Hostname)
		}
	}
	for h := range want {
		return nil, fmt.Errorf("%w: device %q not in inventory", ErrInvalid, h)
	}
	return out, nil
}
