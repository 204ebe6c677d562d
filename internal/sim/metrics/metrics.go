package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/fx"

	"github.com/dep2p/go-gossipsim/pkg/types"
)

const namespace = "gossipsim"

// Module 是 metrics 的 Fx 模块
var Module = fx.Module("sim.metrics",
	fx.Provide(New),
)

// Metrics 全部进程共享的计数器集合
type Metrics struct {
	reg *prometheus.Registry

	sent      *prometheus.CounterVec
	received  *prometheus.CounterVec
	generated *prometheus.CounterVec
	cacheHits *prometheus.CounterVec
	ttlDrops  *prometheus.CounterVec
	stimSent  *prometheus.CounterVec
	stimRecv  *prometheus.CounterVec
	migOut    *prometheus.CounterVec
	migIn     *prometheus.CounterVec
	delay     *prometheus.HistogramVec
}

func counter(subsystem, name, help string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		[]string{"lp"},
	)
}

// New 创建计数器并注册到新的注册表
func New() *Metrics {
	m := &Metrics{
		reg:       prometheus.NewRegistry(),
		sent:      counter("ping", "sent_total", "Ping messages sent."),
		received:  counter("ping", "received_total", "Ping messages received."),
		generated: counter("ping", "generated_total", "New messages generated."),
		cacheHits: counter("ping", "cache_hits_total", "Pings dropped by the duplicate cache."),
		ttlDrops:  counter("ping", "ttl_drops_total", "Pings dropped with exhausted TTL."),
		stimSent:  counter("stimulus", "sent_total", "Stimulus messages sent."),
		stimRecv:  counter("stimulus", "received_total", "Stimulus messages received."),
		migOut:    counter("migration", "out_total", "Entities migrated out."),
		migIn:     counter("migration", "in_total", "Entities migrated in."),
		delay: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ping",
				Name:      "delay_steps",
				Help:      "Simulated delay between generation and reception.",
				Buckets:   prometheus.LinearBuckets(1, 1, 16),
			},
			[]string{"lp"},
		),
	}
	m.reg.MustRegister(m.sent, m.received, m.generated, m.cacheHits, m.ttlDrops,
		m.stimSent, m.stimRecv, m.migOut, m.migIn, m.delay)
	return m
}

// Registry 返回注册表，可用于导出
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// ForLP 返回进程 lp 的记录器
func (m *Metrics) ForLP(lp types.LPID) *Recorder {
	label := strconv.Itoa(int(lp))
	return &Recorder{
		Sent:      m.sent.WithLabelValues(label),
		Received:  m.received.WithLabelValues(label),
		Generated: m.generated.WithLabelValues(label),
		CacheHits: m.cacheHits.WithLabelValues(label),
		TTLDrops:  m.ttlDrops.WithLabelValues(label),
		StimSent:  m.stimSent.WithLabelValues(label),
		StimRecv:  m.stimRecv.WithLabelValues(label),
		MigOut:    m.migOut.WithLabelValues(label),
		MigIn:     m.migIn.WithLabelValues(label),
		Delay:     m.delay.WithLabelValues(label),
	}
}

// Total 汇总全部进程
func (m *Metrics) Total() (Stats, error) {
	families, err := m.reg.Gather()
	if err != nil {
		return Stats{}, err
	}
	var s Stats
	for _, mf := range families {
		var sum uint64
		for _, metric := range mf.GetMetric() {
			sum += uint64(metric.GetCounter().GetValue())
		}
		switch mf.GetName() {
		case namespace + "_ping_sent_total":
			s.PingsSent = sum
		case namespace + "_ping_received_total":
			s.PingsReceived = sum
		case namespace + "_ping_generated_total":
			s.Generated = sum
		case namespace + "_ping_cache_hits_total":
			s.CacheHits = sum
		case namespace + "_ping_ttl_drops_total":
			s.TTLDrops = sum
		case namespace + "_stimulus_sent_total":
			s.StimuliSent = sum
		case namespace + "_stimulus_received_total":
			s.StimuliReceived = sum
		case namespace + "_migration_out_total":
			s.MigrationsOut = sum
		case namespace + "_migration_in_total":
			s.MigrationsIn = sum
		}
	}
	return s, nil
}

// Recorder 单个进程的计数器
type Recorder struct {
	Sent      prometheus.Counter
	Received  prometheus.Counter
	Generated prometheus.Counter
	CacheHits prometheus.Counter
	TTLDrops  prometheus.Counter
	StimSent  prometheus.Counter
	StimRecv  prometheus.Counter
	MigOut    prometheus.Counter
	MigIn     prometheus.Counter
	Delay     prometheus.Observer
}

// Stats 读回当前计数
func (r *Recorder) Stats() Stats {
	return Stats{
		PingsSent:       value(r.Sent),
		PingsReceived:   value(r.Received),
		Generated:       value(r.Generated),
		CacheHits:       value(r.CacheHits),
		TTLDrops:        value(r.TTLDrops),
		StimuliSent:     value(r.StimSent),
		StimuliReceived: value(r.StimRecv),
		MigrationsOut:   value(r.MigOut),
		MigrationsIn:    value(r.MigIn),
	}
}

func value(c prometheus.Counter) uint64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return uint64(m.GetCounter().GetValue())
}
