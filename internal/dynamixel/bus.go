package dynamixel

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/san-kum/turretctl/internal/controller"
)

var ErrTimeout = errors.New("dynamixel: no status packet")

// Bus serialises instruction and status packets on one half-duplex line.
type Bus struct {
	mu     sync.Mutex
	port   io.ReadWriter
	closer io.Closer
	logger *zap.Logger

	// PanID and TiltID address the turret joints.
	PanID  byte
	TiltID byte
}

// Open opens a serial port at baud with a short read timeout so a missing
// servo surfaces as ErrTimeout rather than a hang.
func Open(path string, baud int, logger *zap.Logger) (*Bus, error) {
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("dynamixel: open %s: %w", path, err)
	}
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		port.Close()
		return nil, err
	}
	b := NewBus(timeoutReader{port}, logger)
	b.closer = port
	return b, nil
}

func NewBus(port io.ReadWriter, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{port: port, logger: logger.Named("dynamixel"), PanID: 1, TiltID: 2}
}

func (b *Bus) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// timeoutReader turns the zero-byte read a serial port returns on timeout
// into ErrTimeout.
type timeoutReader struct {
	serial.Port
}

func (t timeoutReader) Read(p []byte) (int, error) {
	n, err := t.Port.Read(p)
	if n == 0 && err == nil {
		return 0, ErrTimeout
	}
	return n, err
}

// transact sends one instruction and, unless it was broadcast, waits for the
// status reply.
func (b *Bus) transact(id, inst byte, params []byte) (Status, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.port.Write(Instruction(id, inst, params)); err != nil {
		return Status{}, err
	}
	if id == BroadcastID {
		return Status{}, nil
	}
	st, err := ReadStatus(b.port)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = ErrTimeout
	}
	if err != nil {
		return st, fmt.Errorf("id %d: %w", id, err)
	}
	if st.ID != id {
		return st, fmt.Errorf("%w: reply from id %d, want %d", ErrMalformed, st.ID, id)
	}
	return st, nil
}

func (b *Bus) Ping(id byte) error {
	_, err := b.transact(id, InstPing, nil)
	return err
}

func (b *Bus) Write(id byte, addr uint16, data []byte) error {
	_, err := b.transact(id, InstWrite, WriteParams(addr, data))
	return err
}

func (b *Bus) Write1(id byte, addr uint16, v byte) error {
	return b.Write(id, addr, []byte{v})
}

func (b *Bus) Write2(id byte, addr uint16, v uint16) error {
	return b.Write(id, addr, binary.LittleEndian.AppendUint16(nil, v))
}

// SyncWrite sends one broadcast packet writing data[id] at addr for every id
// in order. Sync writes get no status reply.
func (b *Bus) SyncWrite(addr uint16, size int, data map[byte][]byte, order []byte) error {
	params, err := SyncWriteParams(addr, size, data, order)
	if err != nil {
		return err
	}
	_, err = b.transact(BroadcastID, InstSyncWrite, params)
	return err
}

func (b *Bus) joints() []byte { return []byte{b.PanID, b.TiltID} }

// EnableVelocityMode switches both joints to velocity control with torque on.
// The operating mode is only writable with torque off.
func (b *Bus) EnableVelocityMode() error {
	for _, id := range b.joints() {
		if err := b.Write1(id, AddrTorqueEnable, 0); err != nil {
			return err
		}
		if err := b.Write1(id, AddrOperatingMode, ModeVelocity); err != nil {
			return err
		}
		if err := b.Write1(id, AddrTorqueEnable, 1); err != nil {
			return err
		}
	}
	b.logger.Info("velocity mode enabled", zap.Uint8("pan_id", b.PanID), zap.Uint8("tilt_id", b.TiltID))
	return nil
}

func (b *Bus) DisableTorque() error {
	var errs []error
	for _, id := range b.joints() {
		errs = append(errs, b.Write1(id, AddrTorqueEnable, 0))
	}
	return errors.Join(errs...)
}

// SetMotorGains writes the position, feedforward and velocity gain registers
// of both turret joints.
func (b *Bus) SetMotorGains(ctx context.Context, g controller.MotorGains) error {
	regs := []struct {
		addr uint16
		val  int32
	}{
		{AddrPositionPGain, g.KpPos},
		{AddrPositionIGain, g.KiPos},
		{AddrPositionDGain, g.KdPos},
		{AddrFeedforward1st, g.K1},
		{AddrFeedforward2nd, g.K2},
		{AddrVelocityPGain, g.KpVel},
		{AddrVelocityIGain, g.KiVel},
	}
	for _, id := range b.joints() {
		for _, r := range regs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if r.val < 0 || r.val > 0xFFFF {
				return fmt.Errorf("dynamixel: gain %d at address %d out of range", r.val, r.addr)
			}
			if err := b.Write2(id, r.addr, uint16(r.val)); err != nil {
				return err
			}
		}
	}
	b.logger.Info("motor gains written", zap.String("group", g.Group))
	return nil
}
