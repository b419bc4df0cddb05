package main

import (
	"flag"
	"log"
	"os"

	"github.com/seantiz/pulse/internal/api"
	"github.com/seantiz/pulse/internal/config"
	"github.com/seantiz/pulse/internal/engine"
	"github.com/seantiz/pulse/internal/probe"
	"github.com/seantiz/pulse/internal/store"
)

func main() {
	workflowsFlag := flag.String("workflows", "", "path to a workflow YAML file or directory (overrides PULSE_WORKFLOWS)")
	flag.Parse()

	cfg := config.Load()
	if *workflowsFlag != "" {
		cfg.WorkflowsPath = *workflowsFlag
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("pulse: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"monitor_interval", cfg.MonitorInterval.String(),
	)

	if cfg.WorkflowsPath == "" {
		log.Fatal("no workflows configured: set PULSE_WORKFLOWS or pass -workflows")
	}

	defs, err := config.LoadWorkflows(cfg.WorkflowsPath)
	if err != nil {
		log.Fatalf("failed to load workflows: %v", err)
	}

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	for _, def := range defs {
		if err := db.RegisterDefinition(def); err != nil {
			log.Fatalf("failed to register workflow %q: %v", def.Name, err)
		}
		logger.Info("workflow registered", "name", def.Name, "apis", len(def.APIs))
	}

	client, err := probe.NewClient(probe.Config{
		Timeout:        cfg.ProbeTimeout,
		ProxyURL:       cfg.ProxyURL,
		DefaultHeaders: cfg.DefaultHeaders,
	})
	if err != nil {
		log.Fatalf("failed to build probe client: %v", err)
	}

	eng := engine.NewEngine(db, engine.NewExecutor(client, logger), cfg.LoadTestDefaults, cfg.MonitorInterval, logger)
	eng.Start()

	srv := api.NewServer(cfg.ListenAddr, db, eng, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}

	// Let in-flight runs finish before closing the store.
	eng.Stop()
	eng.Wait()
}
