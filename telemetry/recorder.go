package telemetry

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// Recordings are a stream of documents. A schema document is the byte 0x01 followed by a JSON
// list of metric names and a newline. A frame document starts with a bit set of the metrics that
// changed since the previous frame, bit 0 being the frame marker (always 0). The bit set is
// followed by the big endian frame time in nanoseconds since the epoch and one big endian
// float32 per changed metric. The first frame after a schema is diffed against zeroes.

const (
	schemaMarker = 0x1
	diffEpsilon  = 1e-9
)

// Metrics are the names of the values in a recorded frame, in recording order.
var Metrics = []string{
	"velocity.actual",
	"velocity.commanded",
	"velocity.actualAngular",
	"velocity.commandedAngular",
	"inaccuracy",
	"currentPose.x",
	"currentPose.y",
	"currentPose.rotation",
	"targetPose.x",
	"targetPose.y",
	"targetPose.rotation",
	"path.points",
}

func (f Frame) values() []float32 {
	points := 0
	if f.Path != nil {
		points = f.Path.NumPoints()
	}
	return []float32{
		float32(f.ActualVelocity),
		float32(f.CommandedVelocity),
		float32(f.ActualAngularVelocity),
		float32(f.CommandedAngularVelocity),
		float32(f.Inaccuracy),
		float32(f.CurrentPose.X()),
		float32(f.CurrentPose.Y()),
		float32(f.CurrentPose.Rotation.Radians()),
		float32(f.TargetPose.X()),
		float32(f.TargetPose.Y()),
		float32(f.TargetPose.Rotation.Radians()),
		float32(points),
	}
}

// Recorder is a Publisher that appends each flushed frame to a compact binary recording. Values
// are stored as float32.
type Recorder struct {
	frameBuffer
	clk clock.Clock

	writeMu     sync.Mutex
	out         io.Writer
	wroteSchema bool
	prev        []float32
}

// NewRecorder returns a recorder writing to out, stamping frames with clk.
func NewRecorder(out io.Writer, clk clock.Clock) *Recorder {
	return &Recorder{out: out, clk: clk}
}

// Flush appends the buffered frame to the recording.
func (r *Recorder) Flush() error {
	curr := r.snapshot().values()

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if !r.wroteSchema {
		if err := writeSchema(Metrics, r.out); err != nil {
			return err
		}
		r.wroteSchema = true
	}
	if err := writeFrame(r.clk.Now().UnixNano(), r.prev, curr, r.out); err != nil {
		return err
	}
	r.prev = curr
	return nil
}

func writeSchema(fields []string, out io.Writer) error {
	if _, err := out.Write([]byte{schemaMarker}); err != nil {
		return errors.Wrap(err, "cannot write schema marker")
	}
	// Encode appends the newline that ends the schema document.
	if err := json.NewEncoder(out).Encode(fields); err != nil {
		return errors.Wrap(err, "cannot write schema")
	}
	return nil
}

// diffBytes is the size of the bit set of a frame with n metrics.
func diffBytes(n int) int {
	return 1 + n/8
}

func writeFrame(nanos int64, prev, curr []float32, out io.Writer) error {
	if len(prev) != 0 && len(prev) != len(curr) {
		return errors.Errorf("frame has %d values, previous frame had %d", len(curr), len(prev))
	}
	changed := make([]bool, len(curr))
	bits := make([]byte, diffBytes(len(curr)))
	for i, v := range curr {
		var before float32
		if len(prev) != 0 {
			before = prev[i]
		}
		if math.Abs(float64(v-before)) > diffEpsilon {
			changed[i] = true
			bit := i + 1
			bits[bit/8] |= 1 << (bit % 8)
		}
	}

	if _, err := out.Write(bits); err != nil {
		return errors.Wrap(err, "cannot write frame header")
	}
	if err := binary.Write(out, binary.BigEndian, nanos); err != nil {
		return errors.Wrap(err, "cannot write frame time")
	}
	for i, v := range curr {
		if !changed[i] {
			continue
		}
		if err := binary.Write(out, binary.BigEndian, v); err != nil {
			return errors.Wrap(err, "cannot write frame values")
		}
	}
	return nil
}

// RecordedFrame is one frame read back from a recording.
type RecordedFrame struct {
	Time   time.Time
	Values map[string]float32
}

// ReadRecording parses a recording. Frames read before an error are returned with it.
func ReadRecording(in io.Reader) ([]RecordedFrame, error) {
	var (
		frames []RecordedFrame
		fields []string
		prev   []float32
	)
	reader := bufio.NewReader(in)
	for {
		peek, err := reader.Peek(1)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return frames, nil
			}
			return frames, err
		}

		if peek[0] == schemaMarker {
			//nolint:errcheck
			reader.ReadByte()
			fields, reader, err = readSchema(reader)
			if err != nil {
				return frames, err
			}
			prev = nil
			continue
		}
		if fields == nil {
			return frames, errors.New("recording does not start with a schema")
		}

		bits := make([]byte, diffBytes(len(fields)))
		if _, err := io.ReadFull(reader, bits); err != nil {
			return frames, errors.Wrap(err, "truncated frame header")
		}
		var nanos int64
		if err := binary.Read(reader, binary.BigEndian, &nanos); err != nil {
			return frames, errors.Wrap(err, "truncated frame time")
		}

		values := make([]float32, len(fields))
		if prev != nil {
			copy(values, prev)
		}
		for i := range fields {
			bit := i + 1
			if bits[bit/8]&(1<<(bit%8)) == 0 {
				continue
			}
			if err := binary.Read(reader, binary.BigEndian, &values[i]); err != nil {
				return frames, errors.Wrap(err, "truncated frame values")
			}
		}
		prev = values

		frame := RecordedFrame{Time: time.Unix(0, nanos).UTC(), Values: make(map[string]float32, len(fields))}
		for i, name := range fields {
			frame.Values[name] = values[i]
		}
		frames = append(frames, frame)
	}
}

// readSchema reads the JSON list of a schema document and returns a reader positioned after its
// trailing newline.
func readSchema(reader *bufio.Reader) ([]string, *bufio.Reader, error) {
	decoder := json.NewDecoder(reader)
	var fields []string
	if err := decoder.Decode(&fields); err != nil {
		return nil, nil, errors.Wrap(err, "malformed schema")
	}
	rest := bufio.NewReader(io.MultiReader(decoder.Buffered(), reader))
	if ch, err := rest.ReadByte(); err != nil || ch != '\n' {
		return nil, nil, errors.New("schema is not terminated by a newline")
	}
	return fields, rest, nil
}
