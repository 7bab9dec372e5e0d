package frames

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/san-kum/turretctl/internal/geom"
)

// StampedTransform is the pose of Child expressed in Parent at Stamp.
// Static transforms never go stale.
type StampedTransform struct {
	Parent string
	Child  string
	Stamp  time.Time
	Pose   geom.Pose
	Static bool
}

// Buffer is a tree of the latest transform for every frame. Writers and
// readers may run on different goroutines.
type Buffer struct {
	mu        sync.RWMutex
	parents   map[string]StampedTransform
	known     map[string]struct{}
	changed   chan struct{}
	cacheTime time.Duration
	timeout   time.Duration
	now       func() time.Time
}

type Option func(*Buffer)

// WithCacheTime marks non-static transforms older than d as stale. Zero
// disables the check.
func WithCacheTime(d time.Duration) Option {
	return func(b *Buffer) { b.cacheTime = d }
}

// WithTimeout makes Lookup wait up to d for a failing lookup to resolve.
func WithTimeout(d time.Duration) Option {
	return func(b *Buffer) { b.timeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(b *Buffer) { b.now = now }
}

func NewBuffer(opts ...Option) *Buffer {
	b := &Buffer{
		parents: make(map[string]StampedTransform),
		known:   make(map[string]struct{}),
		changed: make(chan struct{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Set stores tf as the latest transform of tf.Child, replacing any
// previous parent.
func (b *Buffer) Set(tf StampedTransform) error {
	if tf.Parent == "" || tf.Child == "" {
		return fmt.Errorf("%w: empty frame name", ErrInvalid)
	}
	if tf.Parent == tf.Child {
		return fmt.Errorf("%w: %s is its own parent", ErrInvalid, tf.Child)
	}
	tf.Pose.Orientation = geom.Normalize(tf.Pose.Orientation)

	b.mu.Lock()
	defer b.mu.Unlock()

	for f := tf.Parent; ; {
		if f == tf.Child {
			return fmt.Errorf("%w: %s -> %s would form a loop", ErrInvalid, tf.Parent, tf.Child)
		}
		p, ok := b.parents[f]
		if !ok {
			break
		}
		f = p.Parent
	}

	b.parents[tf.Child] = tf
	b.known[tf.Child] = struct{}{}
	b.known[tf.Parent] = struct{}{}

	close(b.changed)
	b.changed = make(chan struct{})
	return nil
}

// Frames lists every frame seen so far.
func (b *Buffer) Frames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.known))
	for f := range b.known {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the pose of source expressed in target. Failures are
// *LookupError.
func (b *Buffer) Lookup(target, source string) (geom.Pose, error) {
	var timer *time.Timer
	for {
		b.mu.RLock()
		pose, err := b.lookupLocked(target, source)
		changed := b.changed
		b.mu.RUnlock()

		if err == nil || b.timeout <= 0 {
			return pose, err
		}
		if timer == nil {
			timer = time.NewTimer(b.timeout)
			defer timer.Stop()
		}
		select {
		case <-changed:
		case <-timer.C:
			return geom.Pose{}, &LookupError{
				Reason: ReasonTimeout,
				Target: target,
				Source: source,
				Last:   err,
			}
		}
	}
}

func (b *Buffer) lookupLocked(target, source string) (geom.Pose, error) {
	fail := func(r Reason, frame string) error {
		return &LookupError{Reason: r, Target: target, Source: source, Frame: frame}
	}

	for _, f := range []string{target, source} {
		if _, ok := b.known[f]; !ok {
			return geom.Pose{}, fail(ReasonUnknownFrame, f)
		}
	}
	if target == source {
		return geom.Identity(), nil
	}

	now := b.now()
	rootT, poseT, staleT := b.toRoot(target, now)
	rootS, poseS, staleS := b.toRoot(source, now)
	if rootT != rootS {
		return geom.Pose{}, fail(ReasonDisconnected, "")
	}
	if staleT != "" {
		return geom.Pose{}, fail(ReasonStale, staleT)
	}
	if staleS != "" {
		return geom.Pose{}, fail(ReasonStale, staleS)
	}
	return poseT.Inverse().Compose(poseS), nil
}

// toRoot walks from frame to the root of its tree, returning the root, the
// pose of frame in the root and the first stale frame on the way.
func (b *Buffer) toRoot(frame string, now time.Time) (string, geom.Pose, string) {
	pose := geom.Identity()
	stale := ""
	f := frame
	for {
		tf, ok := b.parents[f]
		if !ok {
			return f, pose, stale
		}
		if stale == "" && !tf.Static && b.cacheTime > 0 && now.Sub(tf.Stamp) > b.cacheTime {
			stale = f
		}
		pose = tf.Pose.Compose(pose)
		f = tf.Parent
	}
}
