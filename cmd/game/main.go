package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/AIEngineerX/BagsWorld-sub012/internal/api"
	"github.com/AIEngineerX/BagsWorld-sub012/internal/arena"
	"github.com/AIEngineerX/BagsWorld-sub012/internal/config"
	"github.com/AIEngineerX/BagsWorld-sub012/internal/engine"
	"github.com/AIEngineerX/BagsWorld-sub012/internal/gateway"
	"github.com/AIEngineerX/BagsWorld-sub012/internal/stats"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	records := stats.NewRecords()
	hub := arena.NewHub(0)
	a := arena.New(arena.Options{
		TickInterval: cfg.TickInterval,
		Grace:        cfg.MatchGrace,
		MaxTicks:     cfg.MaxMatchTicks,
	}, hub, records, clock, engine.NewRNG(0))

	var rep gateway.ReputationSource
	if karma := api.NewClient(cfg.ReputationAPIBase); karma.Enabled() {
		rep = karma
	}
	gw := gateway.New(a, hub, rep, gateway.Options{
		DefaultReputation: cfg.DefaultReputation,
		SendBuffer:        cfg.SendBuffer,
		Keepalive:         cfg.Keepalive,
	})

	go hub.Run(ctx)
	go a.Run(ctx)

	sched, err := arena.StartJobs(a, hub, records, arena.JobOptions{Keepalive: cfg.Keepalive, Clock: clock})
	if err != nil {
		log.Fatalf("jobs: %v", err)
	}

	s := &server{arena: a, hub: hub, records: records, ws: gw, now: clock.Now}
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: s.routes(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Printf("arena game listening on %s (tick=%s, REPUTATION_API_BASE=%q)", cfg.ListenAddr, cfg.TickInterval, cfg.ReputationAPIBase)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := sched.Shutdown(); err != nil {
		log.Printf("jobs shutdown: %v", err)
	}
}
