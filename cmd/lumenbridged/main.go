// Command lumenbridged is the lumenbridge core's entrypoint: it parses
// flags, loads a decoded configuration snapshot (§6.3), wires every
// package together and runs the four long-lived tasks of §5 (analyzer,
// scheduler, discovery, heartbeat) until signalled to stop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/lumenbridge/lumenbridge/internal/audio"
	"github.com/lumenbridge/lumenbridge/internal/audiostate"
	"github.com/lumenbridge/lumenbridge/internal/config"
	"github.com/lumenbridge/lumenbridge/internal/ddp"
	"github.com/lumenbridge/lumenbridge/internal/ddpsession"
	"github.com/lumenbridge/lumenbridge/internal/discovery"
	"github.com/lumenbridge/lumenbridge/internal/effects"
	"github.com/lumenbridge/lumenbridge/internal/localdrv"
	"github.com/lumenbridge/lumenbridge/internal/logx"
	"github.com/lumenbridge/lumenbridge/internal/observability"
	"github.com/lumenbridge/lumenbridge/internal/scheduler"
)

func main() {
	var (
		configFile  = pflag.StringP("config-file", "c", "lumenbridge.yaml", "Configuration snapshot file (YAML).")
		logLevel    = pflag.StringP("log-level", "l", "info", "Log level: debug, info, warn, error.")
		dryRun      = pflag.BoolP("dry-run", "n", false, "Load and validate configuration, then exit without running.")
		mdnsName    = pflag.StringP("mdns-name", "m", "lumenbridge", "Service name to announce over mDNS.")
		snapshotDir = pflag.StringP("snapshot-dir", "s", "", "Directory for rotating diagnostic snapshots (strftime-patterned). Empty disables.")
		help        = pflag.BoolP("help", "h", false, "Display help text.")
	)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "lumenbridged: LED output core\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		return
	}

	log := logx.New(os.Stdout, logx.ParseLevel(*logLevel))

	snap, err := config.Load(*configFile)
	if err != nil {
		log.Error("loading configuration", "path", *configFile, "err", err)
		os.Exit(1)
	}
	log.Info("configuration loaded", "path", *configFile, "local_sinks", len(snap.LocalSinks), "remote_sinks", len(snap.RemoteSinks))

	if *dryRun {
		log.Info("dry-run: configuration is valid, exiting")
		return
	}

	var cfgMu sync.RWMutex
	cfgProvider := func() *config.Snapshot {
		cfgMu.RLock()
		defer cfgMu.RUnlock()
		return snap
	}

	audioStore := audiostate.NewStore()
	analyzer := audio.NewAnalyzer(snap.Audio, audioStore, log.With("audio"))
	renderer := effects.NewRenderer(audioStore)
	localDriver := localdrv.New("gpiochip0")
	ddpTx := ddp.NewTransmitter()
	ddpSessions := ddpsession.NewManager(nil, log.With("ddpsession"))
	sched := scheduler.New(cfgProvider, renderer, audioStore, localDriver, ddpTx, ddpSessions, log.With("scheduler"))

	collector := observability.NewCollector(audioStore, ddpTx)
	_ = collector // constructed here; no transport exposes it

	discoveryLog := log.With("discovery")

	// DMA hotplug gating: an initial udev enumeration decides whether the
	// DMA-enabled path is eligible for channels initialized right now;
	// the live monitor goroutine below keeps the flag current for any
	// sink initialized later (e.g. on a future config reload).
	var dmaAvailable atomic.Bool
	dmaAvailable.Store(discovery.DMAAvailable(discoveryLog))

	for i := range snap.LocalSinks {
		ls := &snap.LocalSinks[i]
		if !ls.Enabled {
			continue
		}
		dmaEnabled := snap.DMAEnabled && dmaAvailable.Load()
		if err := localDriver.Init(ls.Pin, ls.Channel, ls.Chipset, ls.ColorOrder, ls.GammaColor, ls.GammaBright, ls.ApplyGamma, dmaEnabled); err != nil {
			log.Warn("local sink init failed", "sink", ls.ID, "pin", ls.Pin, "err", err)
		}
	}

	if *snapshotDir != "" {
		pattern := *snapshotDir + "/snapshot-%Y%m%d-%H%M%S.json"
		if _, err := observability.NewSnapshotWriter(pattern, log); err != nil {
			log.Warn("snapshot writer disabled", "err", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	var wg sync.WaitGroup

	// Task 1: audio analyzer (§5, §4.6).
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := analyzer.Run(ctx); err != nil {
			log.Warn("audio analyzer exited", "err", err)
		}
	}()

	// Task 2: output scheduler (§5, §4.9).
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("scheduler exited unexpectedly", "err", err)
		}
	}()

	// Task 3: discovery — mDNS announce of this controller (supplemental).
	wg.Add(1)
	go func() {
		defer wg.Done()
		announcer := discovery.NewAnnouncer(discoveryLog)
		if err := announcer.Publish(ctx, *mdnsName, snap.DDPPort); err != nil && ctx.Err() == nil {
			log.Warn("mdns announce stopped", "err", err)
		}
	}()

	// Task 3b: discovery — browse for peer DDP nodes and mark matching
	// configured remote sinks auto_discovered (§3 data model).
	wg.Add(1)
	go func() {
		defer wg.Done()
		onFound := func(host string, port int) {
			cfgMu.Lock()
			defer cfgMu.Unlock()
			now := time.Now().UnixMilli()
			for i := range snap.RemoteSinks {
				rs := &snap.RemoteSinks[i]
				if rs.Address == host && (rs.Port == 0 || rs.Port == port) {
					rs.AutoDiscovered = true
					rs.LastSeenUnixMs = now
				}
			}
		}
		if err := discovery.Browse(ctx, discoveryLog, onFound); err != nil && ctx.Err() == nil {
			log.Warn("mdns browse stopped", "err", err)
		}
	}()

	// Task 3c: discovery — udev hotplug watch keeps the DMA-eligibility
	// flag current for any sink initialized after startup.
	wg.Add(1)
	go func() {
		defer wg.Done()
		discovery.WatchHotplug(ctx, discoveryLog, func(action, syspath string) {
			switch action {
			case "add":
				dmaAvailable.Store(true)
			case "remove":
				dmaAvailable.Store(false)
			}
			discoveryLog.Debug("udev event", "action", action, "syspath", syspath)
		})
	}()

	// Task 4: heartbeat/housekeeping status line (supplemental).
	wg.Add(1)
	go func() {
		defer wg.Done()
		observability.RunHeartbeat(ctx, log.With("heartbeat"), func() (float64, int, int64) {
			s := sched.Stats(cfgProvider())
			return s.UptimeSeconds, s.ActiveSinks, s.DroppedFrames
		})
	}()

	wg.Wait()
	localDriver.DeinitAll()
	log.Info("lumenbridged stopped")
}
