// Package discovery advertises the HTTP API over mDNS so clients on the LAN
// can find the garage without a fixed address.
package discovery

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// Service identity.
const (
	ServiceType = "_garage._tcp"
	Domain      = "local."

	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63
)

// Info describes the advertised service.
type Info struct {
	Instance  string
	Port      int
	Version   string
	Interface string // empty advertises on all interfaces
}

// TXT builds the TXT records pointing clients at the API paths.
func TXT(info Info) []string {
	txt := []string{"path=/door", "cistern=/cistern"}
	if info.Version != "" {
		txt = append(txt, "version="+info.Version)
	}
	return txt
}

// InstanceName trims name to a valid DNS label, falling back to "garage".
func InstanceName(name string) string {
	if name == "" {
		name = "garage"
	}
	if len(name) > MaxInstanceNameLen {
		name = name[:MaxInstanceNameLen]
	}
	return name
}

// PortFromAddr extracts the port of a listen address such as ":80".
func PortFromAddr(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("parse listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("listen address %q has no usable port", addr)
	}
	return port, nil
}

type server interface {
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (server, error)

func zeroconfRegister(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (server, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

// Advertiser owns one mDNS registration.
type Advertiser struct {
	mu       sync.Mutex
	server   server
	register registerFunc
}

// NewAdvertiser creates an Advertiser backed by zeroconf.
func NewAdvertiser() *Advertiser {
	return &Advertiser{register: zeroconfRegister}
}

// Start registers the service, replacing any earlier registration.
func (a *Advertiser) Start(info Info) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	var ifaces []net.Interface
	if info.Interface != "" {
		iface, err := net.InterfaceByName(info.Interface)
		if err != nil {
			return fmt.Errorf("mdns interface %q: %w", info.Interface, err)
		}
		ifaces = []net.Interface{*iface}
	}

	srv, err := a.register(InstanceName(info.Instance), ServiceType, Domain, info.Port, TXT(info), ifaces)
	if err != nil {
		return fmt.Errorf("register mdns service: %w", err)
	}
	a.server = srv
	return nil
}

// Stop withdraws the registration. Safe to call when not started.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}
