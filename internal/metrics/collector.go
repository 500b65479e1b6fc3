// Package metrics exposes scene telemetry to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"voxeltherm/internal/persistence/indexdb"
	"voxeltherm/internal/sim/scene"
)

const namespace = "voxeltherm"

// Source publishes scene metrics. *scene.Scene satisfies it.
type Source interface {
	RunID() string
	Metrics() scene.Metrics
}

// IndexSource reports index writer queue pressure. *indexdb.SQLiteIndex satisfies it.
type IndexSource interface {
	Stats() indexdb.Stats
}

// SessionSource reports connected observers. *observer.Server satisfies it.
type SessionSource interface {
	Sessions() int64
}

// Collector reads the last published scene metrics on every scrape. It never touches the
// scene directly, so scrapes do not contend with the loop.
type Collector struct {
	src      Source
	index    IndexSource
	sessions SessionSource

	tick        *prometheus.Desc
	stepSeconds *prometheus.Desc
	bodies      *prometheus.Desc
	observers   *prometheus.Desc

	temperature *prometheus.Desc
	density     *prometheus.Desc
	cells       *prometheus.Desc
	residents   *prometheus.Desc
	exchanges   *prometheus.Desc
	cooler      *prometheus.Desc

	indexQueue   *prometheus.Desc
	indexDropped *prometheus.Desc
	wsSessions   *prometheus.Desc
}

// New builds a collector. index and sessions may be nil.
func New(src Source, index IndexSource, sessions SessionSource) *Collector {
	run := prometheus.Labels{"run_id": src.RunID()}
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, run)
	}
	return &Collector{
		src:      src,
		index:    index,
		sessions: sessions,

		tick:        desc("scene_tick", "Last completed simulation tick."),
		stepSeconds: desc("scene_step_seconds", "Duration of the last tick step."),
		bodies:      desc("scene_bodies", "Live bodies in the scene."),
		observers:   desc("scene_observers", "Observer sessions registered with the scene loop."),

		temperature: desc("volume_temperature", "Cell temperature summary per volume.", "volume", "stat"),
		density:     desc("volume_mean_density", "Mean cell density per volume.", "volume"),
		cells:       desc("volume_cells", "Cells per volume.", "volume"),
		residents:   desc("volume_residents", "Resident entities per volume.", "volume"),
		exchanges:   desc("volume_exchanges_total", "Conduction exchanges received by the cells of a volume.", "volume"),
		cooler:      desc("volume_cooler_initiations_total", "Exchanges refused because the caller was cooler.", "volume"),

		indexQueue:   desc("index_queue", "Index writer queue depth and capacity.", "kind"),
		indexDropped: desc("index_dropped_total", "Index rows dropped because the queue was full.", "kind"),
		wsSessions:   desc("observer_ws_sessions", "Connected observer websockets."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.tick, c.stepSeconds, c.bodies, c.observers,
		c.temperature, c.density, c.cells, c.residents, c.exchanges, c.cooler,
		c.indexQueue, c.indexDropped, c.wsSessions,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.src.Metrics()
	ch <- prometheus.MustNewConstMetric(c.tick, prometheus.GaugeValue, float64(m.Tick))
	ch <- prometheus.MustNewConstMetric(c.stepSeconds, prometheus.GaugeValue, m.StepDuration.Seconds())
	ch <- prometheus.MustNewConstMetric(c.bodies, prometheus.GaugeValue, float64(m.Bodies))
	ch <- prometheus.MustNewConstMetric(c.observers, prometheus.GaugeValue, float64(m.Observers))

	for _, v := range m.Volumes {
		ch <- prometheus.MustNewConstMetric(c.temperature, prometheus.GaugeValue, v.MinTemperature, v.ID, "min")
		ch <- prometheus.MustNewConstMetric(c.temperature, prometheus.GaugeValue, v.MaxTemperature, v.ID, "max")
		ch <- prometheus.MustNewConstMetric(c.temperature, prometheus.GaugeValue, v.MeanTemperature, v.ID, "mean")
		ch <- prometheus.MustNewConstMetric(c.density, prometheus.GaugeValue, v.MeanDensity, v.ID)
		ch <- prometheus.MustNewConstMetric(c.cells, prometheus.GaugeValue, float64(v.Cells), v.ID)
		ch <- prometheus.MustNewConstMetric(c.residents, prometheus.GaugeValue, float64(v.Residents), v.ID)
		ch <- prometheus.MustNewConstMetric(c.exchanges, prometheus.CounterValue, float64(v.Exchanges), v.ID)
		ch <- prometheus.MustNewConstMetric(c.cooler, prometheus.CounterValue, float64(v.CoolerInitiations), v.ID)
	}

	if c.index != nil {
		st := c.index.Stats()
		ch <- prometheus.MustNewConstMetric(c.indexQueue, prometheus.GaugeValue, float64(st.QueueDepth), "depth")
		ch <- prometheus.MustNewConstMetric(c.indexQueue, prometheus.GaugeValue, float64(st.QueueCapacity), "capacity")
		ch <- prometheus.MustNewConstMetric(c.indexDropped, prometheus.CounterValue, float64(st.DropTickTotal), "tick")
		ch <- prometheus.MustNewConstMetric(c.indexDropped, prometheus.CounterValue, float64(st.DropAuditTotal), "audit")
		ch <- prometheus.MustNewConstMetric(c.indexDropped, prometheus.CounterValue, float64(st.DropFrameTotal), "frame")
	}
	if c.sessions != nil {
		ch <- prometheus.MustNewConstMetric(c.wsSessions, prometheus.GaugeValue, float64(c.sessions.Sessions()))
	}
}
