package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/turretctl/internal/sim"
)

var ErrNotFound = errors.New("storage: run not found")

// Columns is the states.csv header.
var Columns = []string{
	"time",
	"pan", "tilt", "aim",
	"dpan", "dtilt", "daim",
	"target_x", "target_y", "target_z",
	"aim_x", "aim_y", "aim_z",
	"miss", "solved", "clamped",
}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Label     string             `json:"label"`
	Timestamp time.Time          `json:"timestamp"`
	RateHz    float64            `json:"rate_hz"`
	Duration  float64            `json:"duration"`
	Target    string             `json:"target"`
	Kp        float64            `json:"kp"`
	Ki        float64            `json:"ki"`
	Kd        float64            `json:"kd"`
	BufferN   int                `json:"buffer_n"`
	Steps     int                `json:"steps"`
	Failures  int                `json:"failures"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Save writes meta and the result samples under a new run directory. ID,
// Timestamp, Steps, Failures and Metrics are filled from the result.
func (s *Store) Save(meta RunMetadata, result *sim.Result) (string, error) {
	meta.ID = uuid.NewString()
	meta.Timestamp = time.Now()
	meta.Steps = len(result.Samples)
	meta.Failures = result.Failures
	meta.Metrics = result.Metrics

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "states.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write(Columns); err != nil {
		return "", err
	}
	for _, smp := range result.Samples {
		if err := w.Write(row(smp)); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return meta.ID, nil
}

func row(s sim.Sample) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	b := func(v bool) string {
		if v {
			return "1"
		}
		return "0"
	}
	return []string{
		f(s.T),
		f(s.Q[0]), f(s.Q[1]), f(s.Q[2]),
		f(s.DQ[0]), f(s.DQ[1]), f(s.DQ[2]),
		f(s.Target.X), f(s.Target.Y), f(s.Target.Z),
		f(s.Aim.X), f(s.Aim.Y), f(s.Aim.Z),
		f(s.Miss()), b(s.Solved), b(s.Clamped),
	}
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadSeries returns the time column and the named column of a run's
// states.csv.
func (s *Store) LoadSeries(runID, column string) (times, values []float64, err error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "states.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("storage: empty states file for %s", runID)
	}

	col := -1
	for i, name := range records[0] {
		if name == column {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, nil, fmt.Errorf("storage: unknown column %q", column)
	}

	times = make([]float64, 0, len(records)-1)
	values = make([]float64, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) <= col {
			continue
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}
		v, err := strconv.ParseFloat(record[col], 64)
		if err != nil {
			continue
		}
		times = append(times, t)
		values = append(values, v)
	}
	return times, values, nil
}
