// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command reactived wires the reactive forwarding engine to a TCP
// switch-control listener, an HTTP inspection API and a Prometheus
// metrics endpoint. The OpenFlow 1.3 wire codec itself is out of scope
// for this repository (see internal/transport's package doc); this
// binary demonstrates the plumbing around that boundary rather than
// terminating real switch connections end to end.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grimm.is/reactived/internal/api"
	"grimm.is/reactived/internal/metrics"
	"grimm.is/reactived/internal/policy"
	"grimm.is/reactived/internal/rconfig"
	"grimm.is/reactived/internal/runtime"
)

func main() {
	configPath := flag.String("config", "", "path to an HCL config file (defaults built in if unset)")
	configYAML := flag.String("config-yaml", "", "path to a YAML config file, alternate to -config")
	flag.Parse()

	logger := log.New(os.Stderr, "reactived: ", log.LstdFlags)

	cfg, err := loadConfig(*configPath, *configYAML)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	m := metrics.New()
	reg := prometheus.NewRegistry()
	m.MustRegister(reg)

	rt := runtime.New(cfg, m, logger)

	macTable := policy.NewMACTable()
	rt.Use("mac-learning", macTable.Handler())

	hosts := policy.NewHostTable()
	arp := policy.NewARPResponder(hosts, rt)
	rt.Use("arp-responder", arp.Handler())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go serveAPI(ctx, logger, cfg.APIAddr, rt, reg)
	go acceptSwitches(ctx, logger, cfg, rt)

	<-ctx.Done()
	logger.Print("shutting down")
}

func loadConfig(hclPath, yamlPath string) (*rconfig.Config, error) {
	switch {
	case hclPath != "":
		return rconfig.Load(hclPath)
	case yamlPath != "":
		return rconfig.LoadYAML(yamlPath)
	default:
		return rconfig.Default(), nil
	}
}

func serveAPI(ctx context.Context, logger *log.Logger, addr string, rt *runtime.Runtime, reg *prometheus.Registry) {
	if addr == "" {
		return
	}
	router := mux.NewRouter()
	api.NewHandlers(rt).RegisterRoutes(router.PathPrefix("/api").Subrouter())
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: router}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	logger.Printf("inspection API listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("api server: %v", err)
	}
}
