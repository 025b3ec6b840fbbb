package network

import (
	"fmt"
	"net"
	"strings"

	psnet "github.com/shirou/gopsutil/net"
)

// LocalAddress returns the first IPv4 address of an interface which is up
// and not a loopback. ok is false if there is none, which usually means we
// are not connected to any (wireless) network.
func LocalAddress() (address string, ok bool, _ error) {
	interfaces, err := psnet.Interfaces()
	if err != nil {
		return "", false, fmt.Errorf("cannot list network interfaces: %w", err)
	}
	address, ok = selectAddress(interfaces)
	return address, ok, nil
}

func selectAddress(interfaces []psnet.InterfaceStat) (string, bool) {
	for _, candidate := range interfaces {
		if !hasFlag(candidate.Flags, "up") || hasFlag(candidate.Flags, "loopback") {
			continue
		}
		for _, addr := range candidate.Addrs {
			ip := parseIP(addr.Addr)
			if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
				continue
			}
			if v4 := ip.To4(); v4 != nil {
				return v4.String(), true
			}
		}
	}
	return "", false
}

func parseIP(plain string) net.IP {
	if ip, _, err := net.ParseCIDR(plain); err == nil {
		return ip
	}
	return net.ParseIP(plain)
}

func hasFlag(flags []string, flag string) bool {
	for _, candidate := range flags {
		if strings.EqualFold(candidate, flag) {
			return true
		}
	}
	return false
}
