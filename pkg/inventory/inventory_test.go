// ABOUTME: Tests for inventory parsing, validation and filtering
// ABOUTME: Bad YAML and duplicate hostnames are rejected

package inventory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	inv := Default()
	require.NoError(t, inv.Validate())
	assert.Equal(t, []string{"Switch1", "Router1", "Firewall1"}, inv.Hostnames())
	assert.Equal(t, "192.168.1.11", inv.Devices[1].Address)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.yaml")
	doc := `devices:
  - hostname: core1
    address: 10.0.0.1
  - hostname: edge1
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	inv, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []Device{
		{Hostname: "core1", Address: "10.0.0.1"},
		{Hostname: "edge1"},
	}, inv.Devices)
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"no devices":    "devices: []\n",
		"duplicate":     "devices:\n  - hostname: a\n  - hostname: a\n",
		"blank host":    "devices:\n  - address: 10.0.0.1\n",
		"path in host":  "devices:\n  - hostname: a/b\n",
		"unknown field": "devices:\n  - hostname: a\n    ip: 10.0.0.1\n",
		"not yaml":      "devices: [",
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestFilter(t *testing.T) {
	inv := Default()

	sub, err := inv.Filter("Firewall1", "Switch1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Switch1", "Firewall1"}, sub.Hostnames())

	all, err := inv.Filter()
	require.NoError(t, err)
	assert.Len(t, all.Devices, 3)

	_, err = inv.Filter("Core9")
	assert.ErrorIs(t, err, ErrInvalid)
}
