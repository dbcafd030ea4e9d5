package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	acceleratorLoad = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "accelerator",
		Name:      "load_percent",
		Help:      "Share of wall time the transform engine spent executing transactions",
	}, []string{"engine"})

	acceleratorClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "accelerator",
		Name:      "clients",
		Help:      "Registered transform clients",
	}, []string{"engine"})

	acceleratorTransactions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "accelerator",
		Name:      "transactions_total",
		Help:      "Completed transform transactions",
	}, []string{"engine"})

	acceleratorCache   = make(map[string]*AcceleratorMetrics)
	acceleratorCacheMu sync.RWMutex
)

// AcceleratorMetrics holds current metric values for an engine.
type AcceleratorMetrics struct {
	Load         float64
	Clients      int
	Transactions uint64
}

// SetAcceleratorLoad sets the load percentage for an engine.
func SetAcceleratorLoad(engine string, load float64) {
	acceleratorLoad.WithLabelValues(engine).Set(load)
	updateAccelerator(engine, func(m *AcceleratorMetrics) { m.Load = load })
}

// SetAcceleratorClients sets the registered client count for an engine.
func SetAcceleratorClients(engine string, clients int) {
	acceleratorClients.WithLabelValues(engine).Set(float64(clients))
	updateAccelerator(engine, func(m *AcceleratorMetrics) { m.Clients = clients })
}

// SetAcceleratorTransactions sets the completed transaction count for an engine.
func SetAcceleratorTransactions(engine string, total uint64) {
	acceleratorTransactions.WithLabelValues(engine).Set(float64(total))
	updateAccelerator(engine, func(m *AcceleratorMetrics) { m.Transactions = total })
}

// DeleteAcceleratorMetrics removes all metrics for an engine.
func DeleteAcceleratorMetrics(engine string) {
	acceleratorLoad.DeleteLabelValues(engine)
	acceleratorClients.DeleteLabelValues(engine)
	acceleratorTransactions.DeleteLabelValues(engine)

	acceleratorCacheMu.Lock()
	delete(acceleratorCache, engine)
	acceleratorCacheMu.Unlock()
}

// GetAcceleratorMetrics returns current metric values for an engine.
func GetAcceleratorMetrics(engine string) *AcceleratorMetrics {
	acceleratorCacheMu.RLock()
	defer acceleratorCacheMu.RUnlock()
	if m, ok := acceleratorCache[engine]; ok {
		dup := *m
		return &dup
	}
	return nil
}

func updateAccelerator(engine string, update func(*AcceleratorMetrics)) {
	acceleratorCacheMu.Lock()
	defer acceleratorCacheMu.Unlock()
	m, ok := acceleratorCache[engine]
	if !ok {
		m = &AcceleratorMetrics{}
		acceleratorCache[engine] = m
	}
	update(m)
}
