package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "reeltide.gg/internal/persistence/log"
	"reeltide.gg/internal/persistence/records"
	"reeltide.gg/internal/sim/catalogs"
	"reeltide.gg/internal/sim/game"
	"reeltide.gg/internal/sim/tuning"
	"reeltide.gg/internal/transport/panel"
	"reeltide.gg/internal/transport/ws"
)

func main() {
	var (
		addr         = flag.String("addr", ":8080", "http listen address")
		configDir    = flag.String("configs", "./configs", "config directory")
		dataDir      = flag.String("data", "./data", "runtime data directory")
		tuningPath   = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		seed         = flag.Int64("seed", 0, "rng seed (0 = time-based)")
		disableDB    = flag.Bool("disable_db", false, "disable sqlite persistence (records live in memory only)")
		disablePanel = flag.Bool("disable_panel", false, "disable the authenticated panel endpoint")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	_ = os.MkdirAll(*dataDir, 0o755)

	var store game.RecordStore
	if !*disableDB {
		s, err := records.Open(filepath.Join(*dataDir, "reeltide.db"))
		if err != nil {
			logger.Fatalf("open records db: %v", err)
		}
		defer s.Close()
		store = s
	} else {
		logger.Printf("persistence disabled (-disable_db)")
	}

	auditLog := persistlog.NewAuditLogger(*dataDir)
	defer auditLog.Close()

	ctx, cancel := signalContext()
	defer cancel()

	wsSrv := ws.NewServer(nil, logger) // inbox wired after the game exists

	g := game.New(game.Config{Tune: tune, Seed: *seed}, cats, store, auditLog, wsSrv, logger)
	wsSrv.SetInbox(g.Inbox())

	go func() {
		if err := g.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("engine stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m := g.Metrics()

		fmt.Fprintf(rw, "# HELP reeltide_commands_total Total commands dispatched.\n")
		fmt.Fprintf(rw, "# TYPE reeltide_commands_total counter\n")
		fmt.Fprintf(rw, "reeltide_commands_total %d\n", m.Commands)

		fmt.Fprintf(rw, "# HELP reeltide_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE reeltide_queue_depth gauge\n")
		fmt.Fprintf(rw, "reeltide_queue_depth{queue=%q} %d\n", "inbox", m.InboxDepth)
		fmt.Fprintf(rw, "reeltide_queue_depth{queue=%q} %d\n", "timers", m.FiresDepth)
	})
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	if !*disablePanel {
		panelCfg, err := panel.LoadConfigFromEnv(nil)
		if err != nil {
			logger.Fatalf("panel config: %v", err)
		}
		mux.HandleFunc("/v1/panel/command", panel.NewServer(panelCfg, g.Inbox(), logger).Handler())
	} else {
		logger.Printf("panel endpoint disabled (-disable_panel)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
