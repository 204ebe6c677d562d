package gossipsim

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dep2p/go-gossipsim/internal/sim/localrt"
	"github.com/dep2p/go-gossipsim/internal/sim/metrics"
	"github.com/dep2p/go-gossipsim/internal/sim/process"
	"github.com/dep2p/go-gossipsim/pkg/types"
)

// Report 运行报告
type Report struct {
	RunID    uuid.UUID          `json:"run_id"`
	Mode     types.Mode         `json:"mode"`
	EndClock types.SimTime      `json:"end_clock"`
	Entities int                `json:"entities"`
	Elapsed  time.Duration      `json:"elapsed"`
	Total    metrics.Stats      `json:"total"`
	PerLP    []LPReport         `json:"per_lp"`
	Runtime  localrt.Statistics `json:"runtime"`
}

// LPReport 单个托管进程的结果
type LPReport struct {
	LP       types.LPID    `json:"lp"`
	Clock    types.SimTime `json:"clock"`
	Entities int           `json:"entities"`
	Stats    metrics.Stats `json:"stats"`
}

// JSON 返回缩进的 JSON 表示
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func (s *Simulation) report(procs []*process.Process, elapsed time.Duration) (*Report, error) {
	total, err := s.metrics.Total()
	if err != nil {
		return nil, err
	}
	cfg := s.opts.config
	r := &Report{
		RunID:    s.runID,
		Mode:     cfg.Dissemination.Mode,
		EndClock: types.SimTime(cfg.Simulation.EndClock),
		Entities: cfg.TotalEntities(),
		Elapsed:  elapsed,
		Total:    total,
		Runtime:  s.hub.Statistics(),
	}
	for _, p := range procs {
		sc := p.Context()
		r.PerLP = append(r.PerLP, LPReport{
			LP:       sc.LP,
			Clock:    sc.Clock,
			Entities: sc.LocalCount(),
			Stats:    sc.Stats.Stats(),
		})
	}
	return r, nil
}
