package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/airco2ctl/internal/config"
	"codeberg.org/mutker/airco2ctl/internal/device"
	"codeberg.org/mutker/airco2ctl/internal/errors"
	"codeberg.org/mutker/airco2ctl/internal/exporter"
	"codeberg.org/mutker/airco2ctl/internal/logger"
	"codeberg.org/mutker/airco2ctl/internal/monitor"
	"codeberg.org/mutker/airco2ctl/internal/mqttpub"
	"codeberg.org/mutker/airco2ctl/internal/pid"
	"codeberg.org/mutker/airco2ctl/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, logger.IsService()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug().Msg("Config loaded")

	if err := run(cfg); err != nil {
		logger.Error().Err(err).Msg("airco2ctl failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	errFactory := errors.New()

	if err := pid.Write(); err != nil {
		return err
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	dev, err := device.Open()
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}
	defer func() {
		if err := dev.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close device")
		}
	}()

	mon, err := monitor.New(dev, monitor.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		PollInterval: time.Duration(cfg.PollInterval) * time.Millisecond,
	})
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}

	mon.Register(monitor.ObserverFunc(printSnapshot))

	if cfg.Telemetry {
		recorder, err := telemetry.NewService(telemetry.Config{DBPath: cfg.Database})
		if err != nil {
			return errFactory.Wrap(errors.ErrInitObserver, err)
		}
		defer func() {
			if err := recorder.Close(); err != nil {
				logger.Warn().Err(err).Msg("Failed to close telemetry")
			}
		}()
		mon.Register(monitor.ObserverFunc(func(s monitor.Snapshot) {
			if err := recorder.Record(context.Background(), s); err != nil {
				logger.Error().Err(err).Msg("Failed to record snapshot")
			}
		}))
	}

	if cfg.ListenAddress != "" {
		exp, err := exporter.New(cfg.ListenAddress)
		if err != nil {
			return errFactory.Wrap(errors.ErrInitObserver, err)
		}
		defer func() {
			if err := exp.Close(); err != nil {
				logger.Warn().Err(err).Msg("Failed to close metrics endpoint")
			}
		}()
		mon.Register(exp)
	}

	if cfg.Broker != "" {
		pub, err := mqttpub.New(mqttpub.Config{Broker: cfg.Broker, Topic: cfg.Topic})
		if err != nil {
			return errFactory.Wrap(errors.ErrInitObserver, err)
		}
		defer pub.Close()
		mon.Register(pub)
	}

	if err := mon.Start(); err != nil {
		return errFactory.Wrap(errors.ErrMainLoop, err)
	}

	wait(cfg, mon)
	mon.Stop()

	if err := mon.Err(); err != nil {
		return errFactory.Wrap(errors.ErrMainLoop, err)
	}
	logger.Info().Msg("Exiting...")

	return nil
}

// wait blocks until a termination signal arrives, the configured run
// duration elapses, or the acquisition worker dies on its own.
func wait(cfg *config.Config, mon *monitor.Monitor) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	var bounded <-chan time.Time
	if cfg.Duration > 0 {
		timer := time.NewTimer(time.Duration(cfg.Duration) * time.Second)
		defer timer.Stop()
		bounded = timer.C
	}

	select {
	case <-sigs:
		logger.Info().Msg("Received termination signal.")
	case <-bounded:
		logger.Info().Msg("Run duration elapsed.")
	case <-mon.Done():
		logger.Warn().Msg("Acquisition worker terminated.")
	}
}

func printSnapshot(s monitor.Snapshot) {
	fmt.Printf("Time: %s, CO2: %dppm, Temperature: %.1fC, Humidity: %.0f%%\n",
		s.Timestamp.Format("2006-01-02 15:04:05"), s.CO2PPM, s.Temperature, s.Humidity)
}
