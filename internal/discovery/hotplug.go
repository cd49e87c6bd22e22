package discovery

import (
	"context"

	"github.com/jochenvg/go-udev"

	"github.com/lumenbridge/lumenbridge/internal/logx"
)

// spiSubsystem is the kernel subsystem a locally-attached DMA/SPI output
// adapter enumerates under. Grounded in original_source's wifi_c6.cpp
// hotplug-adjacent bring-up pattern, generalized from network-adapter
// bring-up to device-node bring-up: when a udev "add" event fires for this
// subsystem, localdrv.Init's DMA-enabled path becomes eligible.
const spiSubsystem = "spidev"

// HotplugFunc is called once per udev add/remove event for the watched
// subsystem, with the device's syspath.
type HotplugFunc func(action, syspath string)

// DMAAvailable does a one-shot udev enumeration for the spidev subsystem,
// used at startup to decide whether localdrv.Init's DMA-enabled path is
// eligible before the hotplug monitor (which only reports future events)
// has had a chance to see anything. Returns false on any enumeration
// failure, treating "no udev" the same as "no adapter present."
func DMAAvailable(log *logx.Logger) bool {
	u := udev.Udev{}
	e := u.NewEnumerate()
	if err := e.AddMatchSubsystem(spiSubsystem); err != nil {
		log.Warn("discovery: udev enumerate filter failed", "err", err)
		return false
	}
	devices, err := e.Devices()
	if err != nil {
		log.Warn("discovery: udev enumerate unavailable, DMA path disabled", "err", err)
		return false
	}
	return len(devices) > 0
}

// WatchHotplug blocks until ctx is cancelled, invoking onEvent for every
// spidev add/remove event observed on the udev netlink socket. A failure
// to open the monitor (e.g. no privilege, no udev on this host) is logged
// and treated as "no hotplug adapter available" rather than fatal — the
// local driver still operates in its non-DMA software-pulse mode.
func WatchHotplug(ctx context.Context, log *logx.Logger, onEvent HotplugFunc) {
	u := udev.Udev{}
	mon := u.NewMonitorFromNetlink("udev")
	if err := mon.FilterAddMatchSubsystem(spiSubsystem); err != nil {
		log.Warn("discovery: udev subsystem filter failed", "err", err)
		return
	}

	deviceCh, cancel, err := mon.DeviceChan(ctx)
	if err != nil {
		log.Warn("discovery: udev monitor unavailable, DMA hotplug disabled", "err", err)
		return
	}
	defer close(cancel)

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deviceCh:
			if !ok {
				return
			}
			onEvent(d.Action(), d.Syspath())
		}
	}
}
