package dynamixel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	InstPing      byte = 0x01
	InstRead      byte = 0x02
	InstWrite     byte = 0x03
	InstSyncWrite byte = 0x83
	instStatus    byte = 0x55

	BroadcastID byte = 0xFE
)

var header = []byte{0xFF, 0xFF, 0xFD, 0x00}

var (
	ErrCRC       = errors.New("dynamixel: crc mismatch")
	ErrMalformed = errors.New("dynamixel: malformed packet")
)

// StatusError is the error byte of a status packet.
type StatusError struct {
	ID   byte
	Code byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dynamixel: id %d returned error 0x%02x", e.ID, e.Code)
}

var crcTable = func() [256]uint16 {
	var t [256]uint16
	for i := range t {
		c := uint16(i) << 8
		for b := 0; b < 8; b++ {
			if c&0x8000 != 0 {
				c = c<<1 ^ 0x8005
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}
	return t
}()

// CRC is the CRC-16 (polynomial 0x8005) used by Protocol 2.0.
func CRC(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc = crc<<8 ^ crcTable[byte(crc>>8)^b]
	}
	return crc
}

// stuff inserts 0xFD after every FF FF FD sequence in an instruction body.
func stuff(body []byte) []byte {
	out := make([]byte, 0, len(body)+4)
	for i, b := range body {
		out = append(out, b)
		if b == 0xFD && i >= 2 && body[i-1] == 0xFF && body[i-2] == 0xFF {
			out = append(out, 0xFD)
		}
	}
	return out
}

func unstuff(body []byte) []byte {
	out := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		out = append(out, body[i])
		if body[i] == 0xFD && i >= 2 && body[i-1] == 0xFF && body[i-2] == 0xFF &&
			i+1 < len(body) && body[i+1] == 0xFD {
			i++
		}
	}
	return out
}

// Instruction encodes an instruction packet for id.
func Instruction(id, inst byte, params []byte) []byte {
	body := stuff(append([]byte{inst}, params...))
	pkt := make([]byte, 0, len(header)+3+len(body)+2)
	pkt = append(pkt, header...)
	pkt = append(pkt, id)
	pkt = binary.LittleEndian.AppendUint16(pkt, uint16(len(body)+2))
	pkt = append(pkt, body...)
	return binary.LittleEndian.AppendUint16(pkt, CRC(pkt))
}

// WriteParams is the parameter block of a write instruction.
func WriteParams(addr uint16, data []byte) []byte {
	p := binary.LittleEndian.AppendUint16(nil, addr)
	return append(p, data...)
}

// SyncWriteParams writes the same-length data to addr on several ids.
func SyncWriteParams(addr uint16, size int, data map[byte][]byte, order []byte) ([]byte, error) {
	p := binary.LittleEndian.AppendUint16(nil, addr)
	p = binary.LittleEndian.AppendUint16(p, uint16(size))
	for _, id := range order {
		d, ok := data[id]
		if !ok || len(d) != size {
			return nil, fmt.Errorf("%w: sync write data for id %d", ErrMalformed, id)
		}
		p = append(p, id)
		p = append(p, d...)
	}
	return p, nil
}

type Status struct {
	ID     byte
	Error  byte
	Params []byte
}

// ReadStatus reads one status packet from r, skipping any bytes before the
// header.
func ReadStatus(r io.Reader) (Status, error) {
	var st Status
	matched := 0
	one := make([]byte, 1)
	for matched < len(header) {
		if _, err := io.ReadFull(r, one); err != nil {
			return st, err
		}
		switch {
		case one[0] == header[matched]:
			matched++
		case one[0] == header[0]:
			matched = 1
		default:
			matched = 0
		}
	}

	fixed := make([]byte, 3)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return st, err
	}
	n := int(binary.LittleEndian.Uint16(fixed[1:]))
	if n < 4 {
		return st, fmt.Errorf("%w: length %d", ErrMalformed, n)
	}
	rest := make([]byte, n)
	if _, err := io.ReadFull(r, rest); err != nil {
		return st, err
	}

	pkt := append(append(append([]byte{}, header...), fixed...), rest[:n-2]...)
	if got := binary.LittleEndian.Uint16(rest[n-2:]); got != CRC(pkt) {
		return st, ErrCRC
	}

	body := unstuff(rest[:n-2])
	if len(body) < 2 || body[0] != instStatus {
		return st, fmt.Errorf("%w: instruction 0x%02x", ErrMalformed, body[0])
	}
	st = Status{ID: fixed[0], Error: body[1], Params: body[2:]}
	if st.Error&0x7F != 0 {
		return st, &StatusError{ID: st.ID, Code: st.Error}
	}
	return st, nil
}
