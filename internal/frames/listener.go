package frames

import (
	"context"

	"go.uber.org/zap"
)

// Listener drains transform updates into a Buffer on its own goroutine.
type Listener struct {
	buf    *Buffer
	logger *zap.Logger
}

func NewListener(buf *Buffer, logger *zap.Logger) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{buf: buf, logger: logger.Named("frames")}
}

// Run stores every update until ctx is done or updates is closed.
func (l *Listener) Run(ctx context.Context, updates <-chan StampedTransform) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tf, ok := <-updates:
			if !ok {
				return nil
			}
			if err := l.buf.Set(tf); err != nil {
				l.logger.Warn("dropping transform",
					zap.String("parent", tf.Parent),
					zap.String("child", tf.Child),
					zap.Error(err))
			}
		}
	}
}
