package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/itohio/gopms/pkg/config"
	"github.com/itohio/gopms/pkg/exporter"
	"github.com/itohio/gopms/pkg/monitor"
	"github.com/itohio/gopms/pkg/pms"
)

func main() {
	var (
		portFlag           = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyUSB0)")
		configFlag         = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag           = flag.Bool("mock", false, "Use simulated sensor instead of serial port")
		listenFlag         = flag.String("listen-address", "", "Address for the /metrics endpoint (overrides config)")
		logLevelFlag       = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
		averageSamplesFlag = flag.Int("average-samples", -1, "Number of samples to average (0 = disabled, overrides config)")
		listPortsFlag      = flag.Bool("list-ports", false, "List available serial ports and exit")
		saveConfigFlag     = flag.Bool("save-config", false, "Write the effective configuration to the config file and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *listenFlag != "" {
		cfg.Report.ListenAddress = *listenFlag
	}
	if *logLevelFlag != "" {
		cfg.Log.Level = *logLevelFlag
	}
	if *averageSamplesFlag >= 0 {
		cfg.Report.AverageSamples = *averageSamplesFlag
	}

	if err := setupLogging(cfg.Log.Level); err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}

	if *saveConfigFlag {
		if err := cfg.Save(*configFlag); err != nil {
			log.Fatalf("Failed to save configuration: %v", err)
		}
		log.Infof("Configuration written to %s", *configFlag)
		return
	}

	if *listPortsFlag {
		if err := listPorts(); err != nil {
			log.Fatalf("Failed to list serial ports: %v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dev, err := openDevice(cfg, *mockFlag)
	if err != nil {
		log.Fatalf("Failed to open sensor: %v", err)
	}

	airMonitor := monitor.New(cfg.Report.Window)
	metrics := exporter.New()
	rep := newReporter(metrics, cfg.Report.Period)
	airMonitor.OnUpdate(rep.update)

	chain, err := startChain(ctx, cfg, dev, airMonitor)
	if err != nil {
		dev.Close()
		log.Fatalf("Failed to start measurement: %v", err)
	}

	srv := serveMetrics(cfg.Report.ListenAddress, metrics)

	<-ctx.Done()
	log.Info("Shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("Metrics server shutdown: %v", err)
		}
		cancel()
	}
	chain.close()
}

// setupLogging configures the logrus text formatter and level.
func setupLogging(level string) error {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	return nil
}

func listPorts() error {
	ports, err := pms.Ports()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}
	for _, p := range ports {
		if p.Description != "" {
			fmt.Printf("%s\t%s\n", p.Name, p.Description)
		} else {
			fmt.Println(p.Name)
		}
	}
	return nil
}

// serveMetrics exposes the exporter on addr. An empty addr disables it.
func serveMetrics(addr string, metrics *exporter.Exporter) *http.Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		log.Infof("Serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("Metrics server failed: %v", err)
		}
	}()

	return srv
}
