package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"polytrader/internal/app"
	ptcfg "polytrader/internal/config"
	"polytrader/internal/logger"
)

func main() {
	cfgPath := flag.String("config", defaultConfigPath(), "path to config file")
	writeDefault := flag.Bool("write-config", false, "write a starter config to -config and exit")
	flag.Parse()

	if *writeDefault {
		if err := ptcfg.WriteDefault(*cfgPath); err != nil {
			log.Fatalf("writing starter config failed: %v", err)
		}
		log.Printf("starter config written to %s", *cfgPath)
		return
	}

	cfg, err := ptcfg.Load(*cfgPath)
	if err != nil {
		log.Fatalf("loading config failed: %v", err)
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("config loaded (env=%s, http=%s)", cfg.App.Env, cfg.App.HTTPAddr)

	a, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("initializing app failed: %v", err)
	}
	a.WatchConfig(*cfgPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		log.Fatalf("run failed: %v", err)
	}
}

func defaultConfigPath() string {
	if p := os.Getenv("POLYTRADER_CONFIG"); p != "" {
		return p
	}
	return "configs/config.yaml"
}
