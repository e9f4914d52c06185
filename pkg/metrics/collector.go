package metrics

import (
	"time"

	"github.com/cuemby/hutch/pkg/concurrency"
	"github.com/cuemby/hutch/pkg/vault"
)

// Collector samples vault and concurrency gauges on a fixed cadence.
type Collector struct {
	vault      *vault.Vault
	controller *concurrency.Controller
	stopCh     chan struct{}
}

// NewCollector creates a metrics collector. controller may be nil when
// concurrency control is disabled.
func NewCollector(v *vault.Vault, controller *concurrency.Controller) *Collector {
	return &Collector{
		vault:      v,
		controller: controller,
		stopCh:     make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectTaskMetrics()
	c.collectConcurrencyMetrics()
}

func (c *Collector) collectTaskMetrics() {
	folders := []struct {
		name  string
		gauge interface{ Set(float64) }
	}{
		{vault.FolderNeedsAction, TasksPending},
		{vault.FolderInProgress, TasksInProgress},
		{vault.FolderDone, TasksCompleted},
	}
	for _, f := range folders {
		names, err := c.vault.List(f.name)
		if err != nil {
			continue
		}
		f.gauge.Set(float64(len(names)))
	}
}

func (c *Collector) collectConcurrencyMetrics() {
	if c.controller == nil {
		return
	}
	ActiveSlots.Set(float64(c.controller.ActiveCount()))
	QueueDepth.Set(float64(len(c.controller.Queued())))
}
