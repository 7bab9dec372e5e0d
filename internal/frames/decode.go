package frames

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/turretctl/internal/geom"
)

// wireTransform is one line of a pose feed. Orientation is [w, x, y, z].
type wireTransform struct {
	Parent      string     `json:"parent"`
	Child       string     `json:"child"`
	Stamp       *time.Time `json:"stamp,omitempty"`
	Position    [3]float64 `json:"position"`
	Orientation [4]float64 `json:"orientation"`
	Static      bool       `json:"static,omitempty"`
}

// Decoder turns a line-delimited JSON pose feed into transforms.
type Decoder struct {
	Now func() time.Time
}

func ParseLine(line []byte, now time.Time) (StampedTransform, error) {
	var w wireTransform
	if err := json.Unmarshal(line, &w); err != nil {
		return StampedTransform{}, err
	}
	stamp := now
	if w.Stamp != nil {
		stamp = *w.Stamp
	}
	return StampedTransform{
		Parent: w.Parent,
		Child:  w.Child,
		Stamp:  stamp,
		Static: w.Static,
		Pose: geom.NewPose(
			r3.Vec{X: w.Position[0], Y: w.Position[1], Z: w.Position[2]},
			quat.Number{Real: w.Orientation[0], Imag: w.Orientation[1], Jmag: w.Orientation[2], Kmag: w.Orientation[3]},
		),
	}, nil
}

// Decode reads r until EOF, sending each transform on out. Blank lines are
// skipped; a malformed line aborts with its line number.
func (d Decoder) Decode(ctx context.Context, r io.Reader, out chan<- StampedTransform) error {
	now := d.Now
	if now == nil {
		now = time.Now
	}

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		tf, err := ParseLine(line, now())
		if err != nil {
			return fmt.Errorf("frames: line %d: %w", lineNo, err)
		}
		select {
		case out <- tf:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return sc.Err()
}
