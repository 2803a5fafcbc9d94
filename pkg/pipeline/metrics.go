package pipeline

import "github.com/VictoriaMetrics/metrics"

var (
	readingsTotal    = metrics.NewCounter("dyno_readings_total")
	parseErrorsTotal = metrics.NewCounter("dyno_parse_errors_total")
	cyclesTotal      = metrics.NewCounter("dyno_cycles_total")
	relayErrorsTotal = metrics.NewCounter("dyno_relay_errors_total")
	temperature      = metrics.NewHistogram("dyno_temperature_celsius")
)
