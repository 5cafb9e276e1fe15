package metric

import (
	"errors"
	"log/slog"
	"time"

	"parish/src-server/utils"

	"github.com/prometheus/client_golang/prometheus"
)

// register returns the collector already registered under the same name when
// there is one, ok is false when registration failed for another reason.
func register[T prometheus.Collector](name string, c T) (T, bool) {
	if err := prometheus.Register(c); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			if existing, ok := alreadyRegistered.ExistingCollector.(T); ok {
				return existing, true
			}
		}
		slog.Error("can't register "+name+" metric", "error", err)
		return c, false
	}
	slog.Debug(name + " metric registered")
	return c, true
}

func unregister(name string, c prometheus.Collector) {
	switch prometheus.Unregister(c) {
	case true:
		slog.Debug(name + " metric unregistered")
	case false:
		slog.Warn(name + " metric not registered")
	}
}

// databaseEmptyRead times an empty query every tickerInterval.
func databaseEmptyRead(as *utils.AppState, tickerInterval time.Duration) {
	const name = "parish_database_empty_read_microsec"
	gauge, ok := register(name, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: "The latency of an empty database read in microseconds",
	}))
	if !ok {
		return
	}
	gauge.Set(0)
	go func() {
		gracefulShutdownCh := as.CreateGracefulShutdownChan()
		ticker := time.NewTicker(tickerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-*gracefulShutdownCh:
				unregister(name, gauge)
				return
			case <-ticker.C:
				latency, err := database(as)
				if err != nil {
					slog.Error("can't get database latency", "error", err)
					continue
				}
				gauge.Set(float64(latency.Microseconds()))
			}
		}
	}()
}

// latestSample shows the last value pushed to ch, back to 0 after
// clearTickerInterval without samples.
func latestSample(as *utils.AppState, name, help string, ch chan float64, clearTickerInterval time.Duration) {
	gauge, ok := register(name, prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help}))
	if !ok {
		return
	}
	gauge.Set(0)
	go func() {
		gracefulShutdownCh := as.CreateGracefulShutdownChan()
		clearTicker := time.NewTicker(clearTickerInterval)
		defer clearTicker.Stop()
		for {
			select {
			case <-*gracefulShutdownCh:
				unregister(name, gauge)
				return
			case value := <-ch:
				gauge.Set(value)
				clearTicker.Reset(clearTickerInterval)
			case <-clearTicker.C:
				gauge.Set(0)
			}
		}
	}()
}

func eventsGenerated(as *utils.AppState) {
	const name = "parish_events_generated_total"
	counter, ok := register(name, prometheus.NewCounter(prometheus.CounterOpts{
		Name: name,
		Help: "Calendar events created by the recurrence generator",
	}))
	if !ok {
		return
	}
	go func() {
		gracefulShutdownCh := as.CreateGracefulShutdownChan()
		for {
			select {
			case <-*gracefulShutdownCh:
				unregister(name, counter)
				return
			case n := <-as.MetricChans.EventsGenerated:
				counter.Add(n)
			}
		}
	}()
}

func uptime(as *utils.AppState) {
	const name = "parish_uptime_sec"
	gauge, ok := register(name, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: name,
		Help: "Seconds since the app state was created",
	}, func() float64 { return as.GetUptime().Seconds() }))
	if !ok {
		return
	}
	go func() {
		<-*as.CreateGracefulShutdownChan()
		unregister(name, gauge)
	}()
}

func Init(as *utils.AppState) {
	tickerInterval := as.Config.GetMetricCollectionInterval()
	clearTickerInterval := tickerInterval * 2

	databaseEmptyRead(as, tickerInterval)
	latestSample(as, "parish_database_read_microsec",
		"The latency of a database read in microseconds",
		as.MetricChans.DatabaseRead, clearTickerInterval)
	latestSample(as, "parish_database_write_microsec",
		"The latency of a database write in microseconds",
		as.MetricChans.DatabaseWrite, clearTickerInterval)
	latestSample(as, "parish_image_process_microsec",
		"The time it took to process an uploaded image in microseconds",
		as.MetricChans.ImageProcess, clearTickerInterval)
	eventsGenerated(as)
	uptime(as)
}
