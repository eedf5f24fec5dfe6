package latency

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// TimestampSize is the number of leading payload bytes that carry the send time.
const TimestampSize = 8

const (
	// EncodingUnixNano is a big-endian uint64 of nanoseconds since the Unix epoch.
	EncodingUnixNano = Encoding("unixnano")
	// EncodingTicks is a little-endian int64 of 100ns ticks since 0001-01-01T00:00:00 UTC.
	EncodingTicks = Encoding("ticks")
	// EncodingTicksLocal uses the ticks layout but counts local wall-clock time, as
	// producers stamping DateTime.Now do.
	EncodingTicksLocal = Encoding("ticks-local")

	defaultEncodingID = EncodingUnixNano
)

const (
	nanosPerTick   = 100
	ticksPerSecond = int64(time.Second) / nanosPerTick
	unixEpochTicks = 621355968000000000  // 1970-01-01T00:00:00Z
	maxTicks       = 3155378975999999999 // 9999-12-31T23:59:59.9999999Z
)

var (
	// ErrShortPayload is returned when a payload cannot hold a timestamp.
	ErrShortPayload = errors.New("payload shorter than 8 bytes")
	// ErrTickRange is returned when a tick value is outside the representable calendar.
	ErrTickRange = errors.New("tick timestamp out of range")
)

// Encoding names the layout of the 8-byte send timestamp at the head of every payload.
// Producer and consumer must agree on it; a mismatch is not detectable and produces
// meaningless latencies.
type Encoding string

// ParseEncoding resolves a command line encoding name. Empty selects the default.
func ParseEncoding(name string) (Encoding, error) {
	switch Encoding(name) {
	case "":
		return defaultEncodingID, nil
	case EncodingUnixNano, EncodingTicks, EncodingTicksLocal:
		return Encoding(name), nil
	default:
		return "", fmt.Errorf("unknown timestamp encoding %q (want %s, %s or %s)", name, EncodingUnixNano, EncodingTicks, EncodingTicksLocal)
	}
}

// Encode writes sendTime into a fresh 8-byte buffer.
func (e Encoding) Encode(sendTime time.Time) []byte {
	msg := make([]byte, TimestampSize)
	e.Put(msg, sendTime)
	return msg
}

// Put writes sendTime into the first 8 bytes of msg, which must be at least that long.
func (e Encoding) Put(msg []byte, sendTime time.Time) {
	switch e {
	case EncodingTicks:
		binary.LittleEndian.PutUint64(msg, uint64(toTicks(sendTime)))
	case EncodingTicksLocal:
		_, offset := sendTime.In(time.Local).Zone()
		wall := sendTime.Add(time.Duration(offset) * time.Second)
		binary.LittleEndian.PutUint64(msg, uint64(toTicks(wall)))
	default:
		binary.BigEndian.PutUint64(msg, uint64(sendTime.UnixNano()))
	}
}

// Decode extracts the send time from the first 8 bytes of data; the rest is padding.
func (e Encoding) Decode(data []byte) (time.Time, error) {
	if len(data) < TimestampSize {
		return time.Time{}, fmt.Errorf("%w: got %d", ErrShortPayload, len(data))
	}

	switch e {
	case EncodingTicks, EncodingTicksLocal:
		ticks := int64(binary.LittleEndian.Uint64(data[:TimestampSize]))
		if ticks < 0 || ticks > maxTicks {
			return time.Time{}, fmt.Errorf("%w: %d", ErrTickRange, ticks)
		}
		t := fromTicks(ticks)
		if e == EncodingTicksLocal {
			wall := t.UTC()
			t = time.Date(wall.Year(), wall.Month(), wall.Day(),
				wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), time.Local)
		}
		return t, nil
	default:
		nanos := binary.BigEndian.Uint64(data[:TimestampSize])
		return time.Unix(0, int64(nanos)), nil
	}
}

func toTicks(t time.Time) int64 {
	return t.UnixNano()/nanosPerTick + unixEpochTicks
}

func fromTicks(ticks int64) time.Time {
	// split into seconds first, a time.Duration cannot span the tick range
	sinceEpoch := ticks - unixEpochTicks
	return time.Unix(sinceEpoch/ticksPerSecond, (sinceEpoch%ticksPerSecond)*nanosPerTick)
}
