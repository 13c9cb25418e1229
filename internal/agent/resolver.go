// Package agent implements the FleetPulse agent: host-IP resolution,
// metrics sampling, and the retrying push transport.
package agent

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	psnet "github.com/shirou/gopsutil/v4/net"
)

// probeAddr is a well-known external address used to discover the local
// endpoint of the default route. Dialing UDP opens no connection and
// sends no data.
const probeAddr = "8.8.8.8:80"

const probeTimeout = 2 * time.Second

// skippedIfacePrefixes name loopback and virtual-bridge/container
// interfaces that never carry the externally-reachable address.
var skippedIfacePrefixes = []string{"lo", "docker", "br-", "veth"}

type resolveStrategy struct {
	name string
	fn   func() (string, error)
}

// IPResolver determines the host's externally-reachable IPv4 address
// using an ordered fallback chain. Resolve never fails: the loopback
// literal is returned when every strategy is exhausted.
type IPResolver struct {
	log        *slog.Logger
	strategies []resolveStrategy
}

// NewIPResolver builds a resolver with the default strategy chain:
// routed-socket probe, interface enumeration, hostname lookup.
func NewIPResolver(log *slog.Logger) *IPResolver {
	r := &IPResolver{log: log}
	r.strategies = []resolveStrategy{
		{"routed_socket", r.viaRoutedSocket},
		{"interfaces", r.viaInterfaces},
		{"hostname", r.viaHostname},
	}
	return r
}

// Resolve returns the best-effort host address, falling back to 127.0.0.1.
func (r *IPResolver) Resolve() string {
	for _, s := range r.strategies {
		ip, err := s.fn()
		if err != nil {
			r.log.Warn("ip strategy failed", "strategy", s.name, "error", err)
			continue
		}
		r.log.Info("host ip resolved", "strategy", s.name, "ip", ip)
		return ip
	}
	r.log.Warn("no usable host ip, falling back to loopback")
	return "127.0.0.1"
}

// viaRoutedSocket opens a connectionless socket toward a public address
// and reads back the local endpoint chosen for that route.
func (r *IPResolver) viaRoutedSocket() (string, error) {
	conn, err := net.DialTimeout("udp", probeAddr, probeTimeout)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil {
		return "", fmt.Errorf("unexpected local address %v", conn.LocalAddr())
	}
	ip := addr.IP.To4()
	if ip == nil || ip.IsLoopback() {
		return "", fmt.Errorf("routed socket yielded %v", addr.IP)
	}
	return ip.String(), nil
}

// viaInterfaces enumerates NICs, skipping loopback and container bridges,
// and returns the first IPv4 that is neither loopback nor link-local.
func (r *IPResolver) viaInterfaces() (string, error) {
	ifaces, err := psnet.Interfaces()
	if err != nil {
		return "", err
	}
	for _, iface := range ifaces {
		if skippedInterface(iface.Name) {
			continue
		}
		for _, addr := range iface.Addrs {
			ip := parseIfaceAddr(addr.Addr)
			if ip == nil {
				continue
			}
			if ip.IsLoopback() || ip.IsLinkLocalUnicast() {
				continue
			}
			return ip.String(), nil
		}
	}
	return "", fmt.Errorf("no usable interface address")
}

// viaHostname resolves the local hostname; loopback results are rejected
// because /etc/hosts commonly maps the hostname to 127.0.0.1.
func (r *IPResolver) viaHostname() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", err
	}
	addrs, err := net.LookupHost(hostname)
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		ip := net.ParseIP(a)
		if ip == nil {
			continue
		}
		if v4 := ip.To4(); v4 != nil && !v4.IsLoopback() {
			return v4.String(), nil
		}
	}
	return "", fmt.Errorf("hostname %q resolves only to loopback", hostname)
}

func skippedInterface(name string) bool {
	for _, prefix := range skippedIfacePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// parseIfaceAddr accepts both plain and CIDR-form addresses as reported
// by the interface layer, returning the IPv4 or nil.
func parseIfaceAddr(s string) net.IP {
	if host, _, err := net.ParseCIDR(s); err == nil {
		return host.To4()
	}
	if ip := net.ParseIP(s); ip != nil {
		return ip.To4()
	}
	return nil
}
