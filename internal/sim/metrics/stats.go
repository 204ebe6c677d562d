package metrics

// Stats 计数快照
type Stats struct {
	PingsSent       uint64 `json:"pings_sent"`
	PingsReceived   uint64 `json:"pings_received"`
	Generated       uint64 `json:"generated"`
	CacheHits       uint64 `json:"cache_hits"`
	TTLDrops        uint64 `json:"ttl_drops"`
	StimuliSent     uint64 `json:"stimuli_sent"`
	StimuliReceived uint64 `json:"stimuli_received"`
	MigrationsOut   uint64 `json:"migrations_out"`
	MigrationsIn    uint64 `json:"migrations_in"`
}

// Add 返回两个快照之和
func (s Stats) Add(o Stats) Stats {
	return Stats{
		PingsSent:       s.PingsSent + o.PingsSent,
		PingsReceived:   s.PingsReceived + o.PingsReceived,
		Generated:       s.Generated + o.Generated,
		CacheHits:       s.CacheHits + o.CacheHits,
		TTLDrops:        s.TTLDrops + o.TTLDrops,
		StimuliSent:     s.StimuliSent + o.StimuliSent,
		StimuliReceived: s.StimuliReceived + o.StimuliReceived,
		MigrationsOut:   s.MigrationsOut + o.MigrationsOut,
		MigrationsIn:    s.MigrationsIn + o.MigrationsIn,
	}
}
