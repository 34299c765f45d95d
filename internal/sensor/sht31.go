package sensor

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/sigurn/crc8"
)

// SHT31 I2C address and commands.
const (
	SHT31DefaultAddr = 0x44

	sht31MeasHighRep = 0x2400
	sht31SoftReset   = 0x30a2

	// High repeatability measurement takes at most 15ms.
	sht31MeasureDelay = 20 * time.Millisecond
)

// See SHT3x datasheet, section 4.12.
var sht31CRC = crc8.MakeTable(crc8.Params{
	Poly:   0x31,
	Init:   0xFF,
	RefIn:  false,
	RefOut: false,
	XorOut: 0x00,
	Check:  0xF7,
	Name:   "CRC-8/SHT3X",
})

// Bus is the subset of an I2C bus the SHT31 driver needs.
// embd.I2CBus satisfies it.
type Bus interface {
	WriteBytes(addr byte, value []byte) error
	ReadBytes(addr byte, num int) ([]byte, error)
}

// SHT31 reads temperature from a Sensirion SHT31 over I2C.
type SHT31 struct {
	bus  Bus
	addr byte
	mu   sync.Mutex
}

// NewSHT31 creates a driver for the sensor at addr.
func NewSHT31(bus Bus, addr byte) *SHT31 {
	return &SHT31{bus: bus, addr: addr}
}

func (s *SHT31) command(cmd uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], cmd)
	return s.bus.WriteBytes(s.addr, b[:])
}

// Reset issues a soft reset.
func (s *SHT31) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.command(sht31SoftReset)
}

// Celsius triggers a single-shot measurement and returns the temperature.
func (s *SHT31) Celsius(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.command(sht31MeasHighRep); err != nil {
		return 0, fmt.Errorf("sht31 measure: %w", err)
	}

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(sht31MeasureDelay):
	}

	frame, err := s.bus.ReadBytes(s.addr, 6)
	if err != nil {
		return 0, fmt.Errorf("sht31 read: %w", err)
	}
	return decodeSHT31(frame)
}

// decodeSHT31 validates a 6-byte measurement frame and converts the
// temperature word. The humidity word is checked but not used.
func decodeSHT31(frame []byte) (float64, error) {
	if len(frame) != 6 {
		return 0, fmt.Errorf("sht31: expected 6 bytes, got %d", len(frame))
	}
	if crc8.Checksum(frame[0:2], sht31CRC) != frame[2] {
		return 0, fmt.Errorf("%w: temperature", ErrCRC)
	}
	if crc8.Checksum(frame[3:5], sht31CRC) != frame[5] {
		return 0, fmt.Errorf("%w: humidity", ErrCRC)
	}
	raw := binary.BigEndian.Uint16(frame[0:2])
	return -45 + 175*float64(raw)/65535, nil
}
