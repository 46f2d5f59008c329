// Command sdnmpictl runs the SDN-MPI control plane components and
// hosts the RPC feed and HTTP surface northbound. It opens no OpenFlow
// listener; fabricBridge is the seam a southbound session layer
// attaches to.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sdnmpi/controller/internal/bus"
	"github.com/sdnmpi/controller/internal/config"
	"github.com/sdnmpi/controller/internal/forwardingdb"
	"github.com/sdnmpi/controller/internal/httpapi"
	"github.com/sdnmpi/controller/internal/journal"
	"github.com/sdnmpi/controller/internal/metrics"
	"github.com/sdnmpi/controller/internal/model"
	"github.com/sdnmpi/controller/internal/monitor"
	"github.com/sdnmpi/controller/internal/ofproto"
	"github.com/sdnmpi/controller/internal/processmgr"
	"github.com/sdnmpi/controller/internal/rankdb"
	"github.com/sdnmpi/controller/internal/router"
	"github.com/sdnmpi/controller/internal/rpchub"
	"github.com/sdnmpi/controller/internal/topologydb"
	"github.com/sdnmpi/controller/internal/topologymgr"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "sdnmpi.toml", "Path to TOML configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("sdnmpictl %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	log.Printf("sdnmpictl %s starting, openflow=%s http=%s", version, cfg.Server.OpenFlowAddr, cfg.Server.HTTPAddr)

	var j *journal.Journal
	if cfg.Journal.Enabled {
		j, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			log.Fatalf("opening journal: %v", err)
		}
		defer j.Close()
		log.Printf("journal enabled at %s", cfg.Journal.Path)
	}

	topo := topologydb.New()
	fdb := forwardingdb.New()
	ranks := rankdb.New()

	registry := newSwitchRegistry()
	// Gauges are set from the DBs' contents: re-adds and absent-rank
	// deletes also fire signals, so counting fires would drift.
	topoGauges := func() {
		snap := topo.CurrentTopology()
		metrics.SwitchesConnected.Set(float64(len(snap.Switches)))
		metrics.LinksDiscovered.Set(float64(len(snap.Links)))
		metrics.HostsKnown.Set(float64(len(snap.Hosts)))
	}
	topo.SwitchAdded.Connect(func(model.Switch) { topoGauges() })
	topo.SwitchDeleted.Connect(func(model.DPID) { topoGauges() })
	topo.LinkAdded.Connect(func(model.Link) { topoGauges() })
	topo.LinkDeleted.Connect(func(model.Link) { topoGauges() })
	topo.HostAdded.Connect(func(model.Host) { topoGauges() })
	ranks.ProcessAdded.Connect(func(model.RankEntry) { metrics.ProcessesActive.Set(float64(len(ranks.Snapshot()))) })
	ranks.ProcessDeleted.Connect(func(int32) { metrics.ProcessesActive.Set(float64(len(ranks.Snapshot()))) })

	topoMgr := topologymgr.New(topo)
	procMgr := processmgr.New(ranks)
	topoComp := bus.NewComponent("topology", 64)
	topoMgr.Register(topoComp)
	procComp := bus.NewComponent("process", 64)
	procMgr.Register(procComp)

	rt := router.New(topoComp, fdb, ranks, registry.lookup)
	hub := rpchub.New(fdb, ranks, topo, j)

	mon := monitor.New(registry.snapshot, func(r model.PortRate) {
		log.Printf("monitor: dpid=%s port=%d rx=%.1f pkt/s %.1f B/s tx=%.1f pkt/s %.1f B/s",
			r.DPID, r.PortNo, r.RxPackets, r.RxBytes, r.TxPackets, r.TxBytes)
	}, time.Now)

	httpSrv := httpapi.New(httpapi.Config{
		Addr:           cfg.Server.HTTPAddr,
		MetricsEnabled: cfg.Metrics.Enabled,
	}, hub)

	fabric := &fabricBridge{
		topo:     topo,
		topoMgr:  topoMgr,
		procMgr:  procMgr,
		topoComp: topoComp,
		procComp: procComp,
		router:   rt,
		registry: registry,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		mon.Run(ctx)
	}()
	wg.Add(2)
	go func() {
		defer wg.Done()
		topoComp.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		procComp.Run(ctx)
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil {
			log.Printf("http server stopped: %v", err)
		}
	}()

	// fabric is the handle a real OpenFlow listener attaches switch
	// connect/disconnect and PacketIn callbacks to; building and
	// speaking that southbound wire protocol is out of scope here.
	_ = fabric

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("shutting down...")
	cancel()
	wg.Wait()
}

// switchRegistry tracks the live OpenFlow sessions the router and
// monitor dispatch against. A real southbound listener would populate
// this as switches connect and disconnect; that listener is out of
// scope here, so the registry starts and stays empty.
type switchRegistry struct {
	mu      sync.RWMutex
	sockets map[model.DPID]ofproto.Switch
}

func newSwitchRegistry() *switchRegistry {
	return &switchRegistry{sockets: make(map[model.DPID]ofproto.Switch)}
}

func (r *switchRegistry) lookup(dpid model.DPID) (ofproto.Switch, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sw, ok := r.sockets[dpid]
	return sw, ok
}

func (r *switchRegistry) snapshot() map[model.DPID]ofproto.Switch {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[model.DPID]ofproto.Switch, len(r.sockets))
	for dpid, sw := range r.sockets {
		out[dpid] = sw
	}
	return out
}

func (r *switchRegistry) add(dpid model.DPID, sw ofproto.Switch) {
	r.mu.Lock()
	r.sockets[dpid] = sw
	r.mu.Unlock()
}

func (r *switchRegistry) remove(dpid model.DPID) {
	r.mu.Lock()
	delete(r.sockets, dpid)
	r.mu.Unlock()
}

// fabricBridge is the seam between a live OpenFlow connection and the
// control plane components: it is what a southbound listener calls
// on connect, disconnect, and PacketIn. No such listener is
// implemented here. Switch-connect flow installs go straight to the
// managers; PacketIn events are published to their bus mailboxes so
// each manager handles one event at a time.
type fabricBridge struct {
	topo     *topologydb.DB
	topoMgr  *topologymgr.Manager
	procMgr  *processmgr.Manager
	topoComp *bus.Component
	procComp *bus.Component
	router   *router.Router
	registry *switchRegistry
}

func (f *fabricBridge) onSwitchConnect(sw model.Switch, session ofproto.Switch) error {
	f.registry.add(sw.DPID, session)
	f.topo.AddSwitch(sw)
	if err := f.topoMgr.OnSwitchConnect(session); err != nil {
		return err
	}
	return f.procMgr.OnSwitchConnect(session)
}

func (f *fabricBridge) onSwitchDisconnect(dpid model.DPID) {
	f.registry.remove(dpid)
	f.topo.DeleteSwitch(dpid)
}

func (f *fabricBridge) onPacketIn(ctx context.Context, dpid model.DPID, pkt ofproto.PacketIn) error {
	dst := model.MAC(pkt.DlDst)
	if dst.IsBroadcast() {
		// Announcements travel as broadcast UDP/61000; ProcessManager
		// captures those, TopologyManager floods everything else
		// along the spanning tree (and itself skips the UDP/61000 case).
		f.procComp.Publish(processmgr.KindPacketIn, pkt)
		session, ok := f.registry.lookup(dpid)
		if !ok {
			return nil
		}
		f.topoComp.Publish(topologymgr.KindPacketIn, topologymgr.PacketInEvent{
			Session: session,
			DPID:    dpid,
			Pkt:     pkt,
		})
		return nil
	}
	return f.router.HandlePacketIn(ctx, dpid, pkt)
}
