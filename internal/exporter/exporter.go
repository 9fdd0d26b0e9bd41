// Package exporter exposes the latest snapshot as Prometheus gauges on
// an HTTP metrics endpoint.
package exporter

import (
	"context"
	"net/http"
	"time"

	"codeberg.org/mutker/airco2ctl/internal/errors"
	"codeberg.org/mutker/airco2ctl/internal/logger"
	"codeberg.org/mutker/airco2ctl/internal/monitor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

type Exporter struct {
	registry *prometheus.Registry
	server   *http.Server

	gaugeCO2         prometheus.Gauge
	gaugeTemperature prometheus.Gauge
	gaugeHumidity    prometheus.Gauge
}

func newGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	})
}

// New builds an exporter and starts serving /metrics on listenAddr.
func New(listenAddr string) (*Exporter, error) {
	if listenAddr == "" {
		return nil, errors.New().WithMessage(errors.ErrInvalidArgument, "empty listen address")
	}

	e := &Exporter{
		registry:         prometheus.NewRegistry(),
		gaugeCO2:         newGauge("air_co2_ppm", "Air carbon dioxide concentration (units: ppm)"),
		gaugeTemperature: newGauge("air_temperature_celsius", "Air temperature (units: degrees Celsius)"),
		gaugeHumidity:    newGauge("air_humidity_percent", "Relative air humidity (units: %)"),
	}

	e.registry.MustRegister(e.gaugeCO2)
	e.registry.MustRegister(e.gaugeTemperature)
	e.registry.MustRegister(e.gaugeHumidity)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	e.server = &http.Server{Addr: listenAddr, Handler: mux}

	go func() {
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("Metrics endpoint failed")
		}
	}()
	logger.Info().Msgf("Serving metrics on %s/metrics", listenAddr)

	return e, nil
}

// Observe updates the gauges from a completed snapshot.
func (e *Exporter) Observe(s monitor.Snapshot) {
	e.gaugeCO2.Set(float64(s.CO2PPM))
	e.gaugeTemperature.Set(s.Temperature)
	e.gaugeHumidity.Set(s.Humidity)
}

// Close shuts the metrics endpoint down.
func (e *Exporter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.server.Shutdown(ctx); err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}
