// Package config reads the YAML description of a simulated mesh: the nodes
// attached to the medium and the node the shell drives.
package config

import (
	"io/ioutil"
	"net/netip"

	"github.com/google/netstack/tcpip"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"MESH-SAL/pkg/meshstack"
)

type NodeConfig struct {
	Name             string `yaml:"name"`
	Address          string `yaml:"address"`
	Role             string `yaml:"role"`
	SocketsMax       int    `yaml:"sockets_max,omitempty"`
	StreamBufferSize int    `yaml:"stream_buffer_size,omitempty"`
	InterfaceID      int8   `yaml:"interface_id,omitempty"`
}

type Config struct {
	// Local names the node driven by the shell. Empty means the first node.
	Local string       `yaml:"local,omitempty"`
	Nodes []NodeConfig `yaml:"nodes"`
}

// ParseConfig reads and validates the file at fileName.
func ParseConfig(fileName string) (*Config, error) {
	data, err := ioutil.ReadFile(fileName)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", fileName)
	}
	return cfg, nil
}

func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Nodes) == 0 {
		return errors.New("no nodes configured")
	}
	names := make(map[string]bool)
	addrs := make(map[netip.Addr]string)
	for i, n := range c.Nodes {
		if n.Name == "" {
			return errors.Errorf("node %d: missing name", i)
		}
		if names[n.Name] {
			return errors.Errorf("node %q: duplicate name", n.Name)
		}
		names[n.Name] = true

		ip, err := parseIPv6(n.Address)
		if err != nil {
			return errors.Wrapf(err, "node %q", n.Name)
		}
		if other, ok := addrs[ip]; ok {
			return errors.Errorf("node %q: address %s already used by %q", n.Name, ip, other)
		}
		addrs[ip] = n.Name

		if _, err := parseRole(n.Role); err != nil {
			return errors.Wrapf(err, "node %q", n.Name)
		}
		if n.SocketsMax < 0 || n.SocketsMax > meshstack.SocketsMax {
			return errors.Errorf("node %q: sockets_max must be at most %d", n.Name, meshstack.SocketsMax)
		}
	}
	if c.Local != "" && !names[c.Local] {
		return errors.Errorf("local node %q is not configured", c.Local)
	}
	return nil
}

// LocalNode returns the name of the node the shell drives.
func (c *Config) LocalNode() string {
	if c.Local != "" {
		return c.Local
	}
	return c.Nodes[0].Name
}

// StackConfig converts n for meshstack.NewNode.
func (n *NodeConfig) StackConfig() (meshstack.NodeConfig, error) {
	ip, err := parseIPv6(n.Address)
	if err != nil {
		return meshstack.NodeConfig{}, err
	}
	role, err := parseRole(n.Role)
	if err != nil {
		return meshstack.NodeConfig{}, err
	}
	raw := ip.As16()
	return meshstack.NodeConfig{
		Name:             n.Name,
		Address:          tcpip.Address(raw[:]),
		Role:             role,
		SocketsMax:       n.SocketsMax,
		StreamBufferSize: n.StreamBufferSize,
		InterfaceID:      n.InterfaceID,
	}, nil
}

func parseIPv6(s string) (netip.Addr, error) {
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, errors.Wrap(err, "address")
	}
	if !ip.Is6() || ip.Is4In6() {
		return netip.Addr{}, errors.Errorf("address %s is not IPv6", s)
	}
	return ip.WithZone(""), nil
}

func parseRole(s string) (meshstack.Role, error) {
	switch s {
	case "", "host":
		return meshstack.RoleHost, nil
	case "router":
		return meshstack.RoleRouter, nil
	}
	return 0, errors.Errorf("unknown role %q", s)
}
