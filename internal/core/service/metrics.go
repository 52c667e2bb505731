package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the observability counters of the transaction service.
type Metrics struct {
	Processed prometheus.Counter
	Errors    prometheus.Counter
	Retries   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Processed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transactions_processed_total",
			Help: "Number of transactions processed",
		}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transactions_errors_total",
			Help: "Number of transaction errors",
		}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transactions_retries_total",
			Help: "Number of transaction retries",
		}),
	}
	reg.MustRegister(m.Processed, m.Errors, m.Retries)
	return m
}
