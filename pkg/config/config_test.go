package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/netstack/tcpip"

	"MESH-SAL/pkg/meshstack"
)

const sample = `
local: node1
nodes:
  - name: border
    address: fd00:db8::1
    role: router
  - name: node1
    address: fd00:db8::2
    sockets_max: 8
    stream_buffer_size: 4096
`

func TestParseConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mesh.yaml")
	if err := ioutil.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := ParseConfig(path)
	if err != nil {
		t.Fatalf("ParseConfig() = %v", err)
	}
	want := &Config{
		Local: "node1",
		Nodes: []NodeConfig{
			{Name: "border", Address: "fd00:db8::1", Role: "router"},
			{Name: "node1", Address: "fd00:db8::2", SocketsMax: 8, StreamBufferSize: 4096},
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("ParseConfig() mismatch (-want +got):\n%s", diff)
	}
	if got := cfg.LocalNode(); got != "node1" {
		t.Errorf("LocalNode() = %q", got)
	}

	stackCfg, err := cfg.Nodes[1].StackConfig()
	if err != nil {
		t.Fatal(err)
	}
	raw := [16]byte{0xfd, 0x00, 0x0d, 0xb8, 15: 2}
	wantStack := meshstack.NodeConfig{
		Name:             "node1",
		Address:          tcpip.Address(raw[:]),
		Role:             meshstack.RoleHost,
		SocketsMax:       8,
		StreamBufferSize: 4096,
	}
	if diff := cmp.Diff(wantStack, stackCfg); diff != "" {
		t.Errorf("StackConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseConfigMissingFile(t *testing.T) {
	if _, err := ParseConfig(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Errorf("ParseConfig() of a missing file succeeded")
	}
}

func TestParseErrors(t *testing.T) {
	for _, test := range []struct {
		name string
		in   string
	}{
		{"no nodes", "nodes: []"},
		{"unknown field", "nodes:\n  - name: a\n    address: fd00::1\n    colour: red\n"},
		{"missing name", "nodes:\n  - address: fd00::1\n"},
		{"duplicate name", "nodes:\n  - name: a\n    address: fd00::1\n  - name: a\n    address: fd00::2\n"},
		{"duplicate address", "nodes:\n  - name: a\n    address: fd00::1\n  - name: b\n    address: fd00:0::1\n"},
		{"ipv4", "nodes:\n  - name: a\n    address: 10.0.0.1\n"},
		{"mapped ipv4", "nodes:\n  - name: a\n    address: ::ffff:10.0.0.1\n"},
		{"bad role", "nodes:\n  - name: a\n    address: fd00::1\n    role: leaf\n"},
		{"too many sockets", "nodes:\n  - name: a\n    address: fd00::1\n    sockets_max: 99\n"},
		{"unknown local", "local: b\nnodes:\n  - name: a\n    address: fd00::1\n"},
	} {
		t.Run(test.name, func(t *testing.T) {
			if _, err := Parse([]byte(test.in)); err == nil {
				t.Errorf("Parse() succeeded")
			}
		})
	}
}

func TestLocalNodeDefaultsToFirst(t *testing.T) {
	cfg, err := Parse([]byte("nodes:\n  - name: a\n    address: fd00::1\n  - name: b\n    address: fd00::2\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.LocalNode(); got != "a" {
		t.Errorf("LocalNode() = %q, want a", got)
	}
}
