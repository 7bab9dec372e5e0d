package frames

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const feed = `{"parent":"base_link","child":"turret_pan_link","position":[0,0,0.1],"orientation":[1,0,0,0],"static":true}

{"parent":"base_link","child":"target_link","stamp":"2026-01-02T03:04:05Z","position":[1,2,3],"orientation":[0.7071067811865476,0,0,0.7071067811865476]}
`

func TestDecode(t *testing.T) {
	now := time.Unix(42, 0)
	out := make(chan StampedTransform, 4)

	err := Decoder{Now: func() time.Time { return now }}.Decode(context.Background(), strings.NewReader(feed), out)
	require.NoError(t, err)
	close(out)

	var got []StampedTransform
	for tf := range out {
		got = append(got, tf)
	}
	require.Len(t, got, 2)

	assert.True(t, got[0].Static)
	assert.Equal(t, now, got[0].Stamp)
	assert.Equal(t, 0.1, got[0].Pose.Position.Z)

	assert.Equal(t, "target_link", got[1].Child)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), got[1].Stamp.UTC())
	assert.InDelta(t, 0.7071067811865476, got[1].Pose.Orientation.Kmag, 1e-15)
}

func TestDecode_MalformedLine(t *testing.T) {
	out := make(chan StampedTransform, 1)
	err := Decoder{}.Decode(context.Background(), strings.NewReader("{not json}\n"), out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestListener_FeedsBuffer(t *testing.T) {
	b := NewBuffer()
	l := NewListener(b, zaptest.NewLogger(t))

	updates := make(chan StampedTransform)
	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background(), updates) }()

	err := Decoder{}.Decode(context.Background(), strings.NewReader(feed), updates)
	require.NoError(t, err)
	// invalid updates are logged and dropped
	updates <- StampedTransform{Parent: "x", Child: "x"}
	close(updates)
	require.NoError(t, <-done)

	p, err := b.Lookup("turret_pan_link", "target_link")
	require.NoError(t, err)
	assert.InDelta(t, 3-0.1, p.Position.Z, 1e-12)
}

func TestListener_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := NewListener(NewBuffer(), nil)

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx, make(chan StampedTransform)) }()
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
}
