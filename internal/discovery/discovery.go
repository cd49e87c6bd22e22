// Package discovery implements the supplemental mDNS publish/browse and
// udev hotplug features named in SPEC_FULL.md §3: the controller
// announces itself over mDNS the way the teacher's dns_sd.go announces
// its KISS-over-TCP service, and optionally browses for peer DDP nodes
// to populate the otherwise-inert auto_discovered flag on remote sinks
// (§3 data model). Grounded in original_source's main/wled_discovery.cpp
// and main/mdns_init.cpp, which publish and discover peer WLED-protocol
// nodes over mDNS from the original ESP32 firmware.
package discovery

import (
	"context"

	"github.com/brutella/dnssd"

	"github.com/lumenbridge/lumenbridge/internal/logx"
)

const (
	// ServiceType is this controller's own mDNS service type.
	ServiceType = "_lumenbridge._udp"
	// PeerServiceType is the DDP peer service type browsed for remote
	// sink auto-discovery.
	PeerServiceType = "_ddp._udp"
)

// Announcer publishes this controller's own presence over mDNS, mirroring
// dns_sd.go's Config/Service/Responder sequence.
type Announcer struct {
	log *logx.Logger
}

func NewAnnouncer(log *logx.Logger) *Announcer {
	return &Announcer{log: log}
}

// Publish announces name:port under ServiceType and blocks until ctx is
// cancelled, responding to mDNS queries on a background goroutine exactly
// as dns_sd_announce does for the teacher's KISS service.
func (a *Announcer) Publish(ctx context.Context, name string, port int) error {
	cfg := dnssd.Config{
		Name: name,
		Type: ServiceType,
		Port: port,
	}

	sv, err := dnssd.NewService(cfg)
	if err != nil {
		a.log.Error("discovery: failed to create mdns service", "err", err)
		return err
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		a.log.Error("discovery: failed to create mdns responder", "err", err)
		return err
	}

	if _, err := rp.Add(sv); err != nil {
		a.log.Error("discovery: failed to add mdns service", "err", err)
		return err
	}

	a.log.Info("discovery: announcing lumenbridge", "name", name, "port", port)
	return rp.Respond(ctx)
}

// PeerFoundFunc receives a discovered remote node's address and port.
type PeerFoundFunc func(host string, port int)

// Browse looks up PeerServiceType entries until ctx is cancelled, calling
// onFound for each one seen (new or refreshed). It supplements remote
// sinks marked auto_discovered (§3) rather than replacing explicit
// configuration.
func Browse(ctx context.Context, log *logx.Logger, onFound PeerFoundFunc) error {
	added := func(e dnssd.BrowseEntry) {
		for _, ip := range e.IPs {
			onFound(ip.String(), e.Port)
			return
		}
	}
	removed := func(e dnssd.BrowseEntry) {
		log.Debug("discovery: peer entry removed", "name", e.Name)
	}

	err := dnssd.LookupType(ctx, PeerServiceType+".local.", added, removed)
	if err != nil && ctx.Err() == nil {
		log.Warn("discovery: mdns browse failed", "err", err)
	}
	return err
}
