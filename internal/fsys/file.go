package fsys

import (
	"bytes"
	"math"

	"github.com/google/uuid"

	"github.com/dshills/luafs/internal/engine"
)

// HandleKind says which backend serves a File. It is fixed at open.
type HandleKind int

const (
	HandleEngine HandleKind = iota
	HandleNative
)

func (k HandleKind) String() string {
	if k == HandleNative {
		return "native"
	}
	return "engine"
}

// File is an open handle owned by exactly one script object. After Close
// every method other than Close and IsValid fails with ErrInvalidHandle.
type File struct {
	id     uuid.UUID
	kind   HandleKind
	s      stream
	invert bool
}

func newFile(kind HandleKind, s stream) *File {
	return &File{id: uuid.New(), kind: kind, s: s}
}

// ID identifies the handle in logs.
func (f *File) ID() uuid.UUID { return f.id }

// Kind reports whether the handle is backed by the engine or the host.
func (f *File) Kind() HandleKind { return f.kind }

// IsValid reports whether the handle is still open.
func (f *File) IsValid() bool { return f.s != nil }

// Close releases the handle. Closing twice is a no-op.
func (f *File) Close() {
	if f.s == nil {
		return
	}
	f.s.close()
	f.s = nil
}

func (f *File) stream() (stream, error) {
	if f.s == nil {
		return nil, ErrInvalidHandle
	}
	return f.s, nil
}

// SetInvertBytes makes multi-byte reads and writes swap byte order.
func (f *File) SetInvertBytes(invert bool) error {
	if f.s == nil {
		return ErrInvalidHandle
	}
	f.invert = invert
	return nil
}

// InvertBytes reports whether multi-byte values are byte-swapped.
func (f *File) InvertBytes() bool { return f.invert }

// EndOfFile reports whether a read has hit end of file since the last seek.
func (f *File) EndOfFile() (bool, error) {
	s, err := f.stream()
	if err != nil {
		return false, err
	}
	return s.eof(), nil
}

// OK reports whether the stream has not seen a read, write or flush error.
func (f *File) OK() (bool, error) {
	s, err := f.stream()
	if err != nil {
		return false, err
	}
	return s.ok(), nil
}

// Size returns the file size in bytes.
func (f *File) Size() (int64, error) {
	s, err := f.stream()
	if err != nil {
		return 0, err
	}
	return s.size(), nil
}

// Tell returns the current position.
func (f *File) Tell() (int64, error) {
	s, err := f.stream()
	if err != nil {
		return 0, err
	}
	return s.tell(), nil
}

// SeekTo moves the position and reports whether it landed on the requested
// offset. An unknown whence seeks from the start. A failed seek leaves the
// position and the error state unchanged.
func (f *File) SeekTo(offset int64, whence engine.Whence) (bool, error) {
	s, err := f.stream()
	if err != nil {
		return false, err
	}
	if offset < math.MinInt32 || offset > math.MaxInt32 {
		return false, ErrSeekRange
	}
	if whence < engine.SeekStart || whence > engine.SeekEnd {
		whence = engine.SeekStart
	}
	return s.seek(offset, whence), nil
}

// Flush commits buffered writes to storage.
func (f *File) Flush() (bool, error) {
	s, err := f.stream()
	if err != nil {
		return false, err
	}
	return s.flush(), nil
}

// Read returns up to n bytes. A nil slice means nothing could be read.
func (f *File) Read(n int64) ([]byte, error) {
	s, err := f.stream()
	if err != nil {
		return nil, err
	}
	if n < 1 || n > math.MaxUint32 {
		return nil, ErrInvalidSize
	}
	if remaining := s.size() - s.tell(); remaining < n {
		n = max(remaining, 0)
	}
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	read := s.read(buf)
	if read <= 0 {
		return nil, nil
	}
	return buf[:read], nil
}

// ReadString reads up to the next NUL byte. When no NUL is found the
// position is restored and ok is false.
func (f *File) ReadString() (str string, ok bool, err error) {
	s, err := f.stream()
	if err != nil {
		return "", false, err
	}

	start := s.tell()
	var collected []byte
	chunk := make([]byte, 256)
	for !s.eof() {
		n := s.read(chunk)
		if n <= 0 {
			break
		}
		if i := bytes.IndexByte(chunk[:n], 0); i >= 0 {
			collected = append(collected, chunk[:i]...)
			s.seek(start+int64(len(collected))+1, engine.SeekStart)
			return string(collected), true, nil
		}
		collected = append(collected, chunk[:n]...)
	}

	s.seek(start, engine.SeekStart)
	return "", false, nil
}

// readFixed reads width bytes as an unsigned value. The read is refused
// unless at least one byte would remain after it, so a value ending exactly
// at end of file is never returned.
func (f *File) readFixed(width int) (uint64, bool, error) {
	s, err := f.stream()
	if err != nil {
		return 0, false, err
	}
	if s.tell()+int64(width) >= s.size() {
		return 0, false, nil
	}
	var buf [8]byte
	if s.read(buf[:width]) != width {
		return 0, false, nil
	}
	return decode(buf[:width], f.invert), true, nil
}

// ReadInt reads a signed integer. nbits is 8, 16, 32 or 64.
func (f *File) ReadInt(nbits int) (int64, bool, error) {
	if f.s == nil {
		return 0, false, ErrInvalidHandle
	}
	width, err := widthOf(nbits)
	if err != nil {
		return 0, false, err
	}
	v, ok, err := f.readFixed(width)
	if !ok || err != nil {
		return 0, false, err
	}
	return signExtend(v, width), true, nil
}

// ReadUInt reads an unsigned integer. nbits is 8, 16, 32 or 64.
func (f *File) ReadUInt(nbits int) (uint64, bool, error) {
	if f.s == nil {
		return 0, false, ErrInvalidHandle
	}
	width, err := widthOf(nbits)
	if err != nil {
		return 0, false, err
	}
	return f.readFixed(width)
}

// ReadFloat reads a 32-bit IEEE 754 value.
func (f *File) ReadFloat() (float32, bool, error) {
	v, ok, err := f.readFixed(4)
	if !ok || err != nil {
		return 0, false, err
	}
	return math.Float32frombits(uint32(v)), true, nil
}

// ReadDouble reads a 64-bit IEEE 754 value.
func (f *File) ReadDouble() (float64, bool, error) {
	v, ok, err := f.readFixed(8)
	if !ok || err != nil {
		return 0, false, err
	}
	return math.Float64frombits(v), true, nil
}

// Write writes p and returns the number of bytes written.
func (f *File) Write(p []byte) (int, error) {
	s, err := f.stream()
	if err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	return s.write(p), nil
}

// WriteString writes str followed by a NUL byte. An empty string writes
// nothing.
func (f *File) WriteString(str string) (int, error) {
	s, err := f.stream()
	if err != nil {
		return 0, err
	}
	if str == "" {
		return 0, nil
	}
	return s.write([]byte(str)) + s.write([]byte{0}), nil
}

func (f *File) writeFixed(v uint64, width int) (bool, error) {
	s, err := f.stream()
	if err != nil {
		return false, err
	}
	var buf [8]byte
	encode(buf[:width], v, f.invert)
	return s.write(buf[:width]) == width, nil
}

// WriteInt writes the low nbits bits of v. nbits is 8, 16, 32 or 64.
func (f *File) WriteInt(v int64, nbits int) (bool, error) {
	if f.s == nil {
		return false, ErrInvalidHandle
	}
	width, err := widthOf(nbits)
	if err != nil {
		return false, err
	}
	return f.writeFixed(uint64(v), width)
}

// WriteUInt writes the low nbits bits of v. nbits is 8, 16, 32 or 64.
func (f *File) WriteUInt(v uint64, nbits int) (bool, error) {
	if f.s == nil {
		return false, ErrInvalidHandle
	}
	width, err := widthOf(nbits)
	if err != nil {
		return false, err
	}
	return f.writeFixed(v, width)
}

// WriteFloat writes v as a 32-bit IEEE 754 value.
func (f *File) WriteFloat(v float32) (bool, error) {
	return f.writeFixed(uint64(math.Float32bits(v)), 4)
}

// WriteDouble writes v as a 64-bit IEEE 754 value.
func (f *File) WriteDouble(v float64) (bool, error) {
	return f.writeFixed(math.Float64bits(v), 8)
}
