package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/turretctl/internal/export"
	"github.com/san-kum/turretctl/internal/storage"
)

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTARGET\tTIME\tDURATION\tKP\tKI\tKD\tRMS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1fs\t%.2f\t%.2f\t%.2f\t%.5f\n",
			run.ID,
			run.Target,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Kp,
			run.Ki,
			run.Kd,
			run.Metrics["tracking_rms"],
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	_, values, err := st.LoadSeries(runID, column)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("target: %s  kp=%.2f ki=%.2f kd=%.2f\n", meta.Target, meta.Kp, meta.Ki, meta.Kd)
	fmt.Printf("samples: %d\n\n", len(values))

	graph := asciigraph.Plot(values,
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("%s vs time (%.1f Hz)", column, meta.RateHz)),
	)
	fmt.Println(graph)
	return nil
}

// runTraces loads the top view of the target and aim paths of a run.
func runTraces(st *storage.Store, runID string) ([]export.Trace, error) {
	load := func(xCol, yCol string) ([]export.Point, error) {
		_, xs, err := st.LoadSeries(runID, xCol)
		if err != nil {
			return nil, err
		}
		_, ys, err := st.LoadSeries(runID, yCol)
		if err != nil {
			return nil, err
		}
		pts := make([]export.Point, min(len(xs), len(ys)))
		for i := range pts {
			pts[i] = export.Point{X: xs[i], Y: ys[i]}
		}
		return pts, nil
	}

	target, err := load("target_x", "target_y")
	if err != nil {
		return nil, err
	}
	aim, err := load("aim_x", "aim_y")
	if err != nil {
		return nil, err
	}
	return []export.Trace{
		{Name: "target", Stroke: "#ff5f87", Points: target},
		{Name: "aim", Stroke: "#5fd7ff", Points: aim},
	}, nil
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	if svgOut != "" || htmlOut != "" {
		traces, err := runTraces(st, meta.ID)
		if err != nil {
			return err
		}
		if svgOut != "" {
			err := writeFile(svgOut, func(f *os.File) error { return export.TrajectorySVG(f, traces, 600, 600) })
			if err != nil {
				return err
			}
		}
		if htmlOut != "" {
			subtitle := fmt.Sprintf("%s kp=%.2f ki=%.2f kd=%.2f", meta.Target, meta.Kp, meta.Ki, meta.Kd)
			err := writeFile(htmlOut, func(f *os.File) error {
				return export.TrajectoryHTML(f, "run "+meta.ID, subtitle, traces)
			})
			if err != nil {
				return err
			}
		}
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}
