// Command fleetcored is the composition root: it loads configuration,
// wires the ringbus, metrics, compound and search engines (plus the
// stateless dag and swarm functions) behind the transport gateway, and
// serves them over a WebSocket endpoint. A logstream parser is built
// only for the optional synthetic generator.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fleetcore/fleetcore/internal/compound"
	"github.com/fleetcore/fleetcore/internal/config"
	"github.com/fleetcore/fleetcore/internal/logstream"
	"github.com/fleetcore/fleetcore/internal/metrics"
	"github.com/fleetcore/fleetcore/internal/ringbus"
	"github.com/fleetcore/fleetcore/internal/search"
	"github.com/fleetcore/fleetcore/internal/synth"
	"github.com/fleetcore/fleetcore/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to XDG config dir)")
	port := flag.Int("port", 0, "override gateway port")
	synthMode := flag.Bool("synth", false, "drive the engines with the synthetic fleet generator")
	noSearch := flag.Bool("no-search", false, "disable the full-text search index")
	flag.Parse()

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath()
	}

	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		log.Fatalf("fleetcored: failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.Gateway.Port = *port
	}

	met := metrics.NewEngine()
	met.CreateHistogram("task_duration_ms", cfg.Metrics.HistogramBuckets, cfg.Metrics.ReservoirCap)
	defaultCounter := cfg.CounterConfigFor("default")
	met.CreateCounter("tasks_completed", defaultCounter.WindowSeconds, defaultCounter.BucketCount)

	bus := ringbus.New()
	comp := compound.New()

	var idx *search.Index
	if !*noSearch {
		idx, err = search.New(cfg.Search.IndexDir)
		if err != nil {
			log.Fatalf("fleetcored: failed to open search index: %v", err)
		}
		defer idx.Close()
	}

	gw := transport.New(bus, met, comp, idx)
	defer gw.Close()

	broadcaster := transport.NewBroadcaster(gw, cfg.Gateway.BroadcastThrottle, cfg.Gateway.MaxConnections)
	defer broadcaster.Stop()
	gw.SetBroadcaster(broadcaster)

	server := transport.NewServer(gw, broadcaster, cfg.Gateway.AllowedOrigins)
	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *synthMode {
		log.Println("fleetcored: starting synthetic fleet generator")
		gen := synth.New(logstream.New(), met, bus, comp, cfg.Synthetic.TickInterval, cfg.Synthetic.SwarmCount, cfg.Synthetic.WorkersPer)
		go gen.Start(ctx)
	}

	addr := cfg.Gateway.Host + ":" + strconv.Itoa(cfg.Gateway.Port)
	httpSrv := &http.Server{Addr: addr, Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("fleetcored: shutting down...")
		cancel()
		httpSrv.Close()
	}()

	log.Printf("fleetcored: listening on %s", addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("fleetcored: server error: %v", err)
	}
}
