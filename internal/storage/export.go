package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/turretctl/internal/sim"
)

type ExportData struct {
	Meta    RunMetadata `json:"meta"`
	Samples []Row       `json:"samples"`
}

type Row struct {
	T       float64    `json:"t"`
	Q       [3]float64 `json:"q"`
	DQ      [3]float64 `json:"dq"`
	Target  [3]float64 `json:"target"`
	Aim     [3]float64 `json:"aim"`
	Miss    float64    `json:"miss"`
	Solved  bool       `json:"solved"`
	Clamped bool       `json:"clamped"`
}

// ExportJSON writes meta and every sample of result to w as indented JSON.
func ExportJSON(w io.Writer, meta RunMetadata, result *sim.Result) error {
	data := ExportData{
		Meta:    meta,
		Samples: make([]Row, len(result.Samples)),
	}
	data.Meta.Steps = len(result.Samples)
	data.Meta.Failures = result.Failures
	data.Meta.Metrics = result.Metrics

	for i, s := range result.Samples {
		data.Samples[i] = Row{
			T:       s.T,
			Q:       s.Q,
			DQ:      s.DQ,
			Target:  [3]float64{s.Target.X, s.Target.Y, s.Target.Z},
			Aim:     [3]float64{s.Aim.X, s.Aim.Y, s.Aim.Z},
			Miss:    s.Miss(),
			Solved:  s.Solved,
			Clamped: s.Clamped,
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
