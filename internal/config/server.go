package config

import (
	"fmt"
	"net"
)

// Listen binds the node's gRPC socket. Spec §4.4 runs every node on
// loopback (a single host hosts the whole overlay for experiments), so
// unlike the teacher's public/private interface selection this only
// validates and binds cfg.Bind.
func (cfg *NodeConfig) Listen() (net.Listener, error) {
	host := cfg.Bind
	if host == "" {
		host = "127.0.0.1"
	}
	if ip := net.ParseIP(host); ip == nil {
		return nil, fmt.Errorf("invalid bind address: %s", host)
	}
	addr := fmt.Sprintf("%s:%d", host, cfg.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return lis, nil
}
