// Package wire implements the concrete MessageIterator this binding
// hands to the argument model: a byte-exact D-Bus wire codec exposing
// the small reader/writer cursor surface the core marshalling engine
// is written against. It has no knowledge of argument trees, host
// values, or proxies — it only knows D-Bus wire framing.
package wire

import (
	"fmt"
	"io"
	"math"

	"github.com/darlinghq/libs-dbuskit/fragments"
)

// Iterator is a cursor over a DBus message payload, usable for either
// reading or writing depending on how it was constructed. A given
// Iterator is opened in one mode only; calling a method that belongs
// to the other mode returns an error.
type Iterator interface {
	// ArgType reports the DBus type code the iterator is currently
	// positioned at, or 0 if there is nothing left to read.
	ArgType() byte
	// GetBasic reads the scalar value at the current position. The
	// returned value is a uint8, bool, int16, uint16, int32, uint32,
	// int64, uint64, float64, string, [ObjectPathValue], or
	// [SignatureValue], matching ArgType.
	GetBasic() (any, error)
	// Recurse returns a sub-iterator over the contents of the
	// container type at the current position: the element type for an
	// array, the fields for a struct, the key and value for a
	// dict-entry, or the contained value for a variant.
	Recurse() (Iterator, error)
	// Next advances past the value most recently read via GetBasic or
	// Recurse, and reports whether another value follows at this
	// level.
	Next() (bool, error)

	// OpenContainer begins writing a container of the given kind ('a',
	// '(', '{', or 'v'). childSignature is the element signature for
	// an array, the contained type's signature for a variant, and
	// unused (pass "") for struct and dict-entry.
	OpenContainer(kind byte, childSignature string) (Iterator, error)
	// AppendBasic writes a scalar value, using the same Go type
	// mapping as GetBasic.
	AppendBasic(v any) error
	// CloseContainer ends writing to a sub-iterator previously
	// returned by OpenContainer, patching any length fields that
	// couldn't be known until the container's contents were written.
	CloseContainer(sub Iterator) error
}

// ObjectPathValue is the wire representation of a DBus object path
// ('o'). It's encoded identically to a string, but kept as a distinct
// Go type so GetBasic/AppendBasic can tell it apart from a plain 's'.
type ObjectPathValue string

// SignatureValue is the wire representation of a DBus signature
// value ('g'): length-prefixed with a single byte rather than a
// uint32, per the DBus wire format.
type SignatureValue string

var errWrongMode = fmt.Errorf("dbus/wire: method not valid for this iterator's mode")

// typeLen returns the length, in signature characters, of the single
// complete type at the front of sig. It trusts sig to already be
// well-formed, since by the time a signature reaches this package it
// has already been validated by the argument model.
func typeLen(sig string) int {
	if sig == "" {
		return 0
	}
	switch sig[0] {
	case 'a':
		return 1 + typeLen(sig[1:])
	case '(':
		return 2 + innerLen(sig, ')')
	case '{':
		return 2 + innerLen(sig, '}')
	default:
		return 1
	}
}

// innerLen returns the length of the signature text between sig[1]
// and the matching close delimiter (not counting either delimiter).
func innerLen(sig string, close byte) int {
	i := 1
	for sig[i] != close {
		i += typeLen(sig[i:])
	}
	return i - 1
}

func needsStructAlign(elemSig string) bool {
	return elemSig != "" && (elemSig[0] == '(' || elemSig[0] == '{')
}

// Reader reads a DBus message payload described by a signature.
type Reader struct {
	dec *fragments.Decoder
	// sig is the remaining sequence of complete types at this
	// iterator's level, for non-array containers and the top level.
	sig string

	// Array mode: arrayElemSig is the constant element type this
	// reader repeats; arrayLimit bounds how many bytes of payload
	// remain, and arrayOuterIn is the reader to restore into dec once
	// the array is exhausted.
	arrayElemSig string
	arrayLimit   *io.LimitedReader
	arrayOuterIn io.Reader
}

// NewReader returns a Reader positioned at the first type in sig,
// reading from data.
func NewReader(order fragments.ByteOrder, sig string, data []byte) *Reader {
	return &Reader{
		dec: &fragments.Decoder{Order: order, In: &sliceReader{data}},
		sig: sig,
	}
}

func (r *Reader) currentTypeSig() string {
	if r.arrayElemSig != "" {
		return r.arrayElemSig
	}
	return r.sig
}

func (r *Reader) ArgType() byte {
	if r.arrayElemSig != "" {
		if r.arrayLimit.N <= 0 {
			return 0
		}
		return r.arrayElemSig[0]
	}
	if r.sig == "" {
		return 0
	}
	return r.sig[0]
}

func (r *Reader) readSignatureValue() (string, error) {
	ln, err := r.dec.Uint8()
	if err != nil {
		return "", err
	}
	bs, err := r.dec.Read(int(ln) + 1)
	if err != nil {
		return "", err
	}
	return string(bs[:ln]), nil
}

func (r *Reader) GetBasic() (any, error) {
	switch c := r.ArgType(); c {
	case 0:
		return nil, fmt.Errorf("dbus/wire: no value to read")
	case 'y':
		return r.dec.Uint8()
	case 'b':
		v, err := r.dec.Uint32()
		return v != 0, err
	case 'n':
		v, err := r.dec.Uint16()
		return int16(v), err
	case 'q':
		return r.dec.Uint16()
	case 'i':
		v, err := r.dec.Uint32()
		return int32(v), err
	case 'u':
		return r.dec.Uint32()
	case 'x':
		v, err := r.dec.Uint64()
		return int64(v), err
	case 't':
		return r.dec.Uint64()
	case 'd':
		v, err := r.dec.Uint64()
		return math.Float64frombits(v), err
	case 's':
		return r.dec.String()
	case 'o':
		s, err := r.dec.String()
		return ObjectPathValue(s), err
	case 'g':
		s, err := r.readSignatureValue()
		return SignatureValue(s), err
	default:
		return nil, fmt.Errorf("dbus/wire: %q is not a basic type", string(c))
	}
}

func (r *Reader) Recurse() (Iterator, error) {
	cur := r.currentTypeSig()
	if cur == "" {
		return nil, fmt.Errorf("dbus/wire: no value to recurse into")
	}
	switch cur[0] {
	case 'a':
		ln, err := r.dec.Uint32()
		if err != nil {
			return nil, err
		}
		elemSig := cur[1 : 1+typeLen(cur[1:])]
		if needsStructAlign(elemSig) {
			if err := r.dec.Pad(8); err != nil {
				return nil, err
			}
		}
		outerIn := r.dec.In
		limit := &io.LimitedReader{R: outerIn, N: int64(ln)}
		r.dec.In = limit
		return &Reader{dec: r.dec, arrayElemSig: elemSig, arrayLimit: limit, arrayOuterIn: outerIn}, nil
	case '(':
		if err := r.dec.Pad(8); err != nil {
			return nil, err
		}
		inner := cur[1 : 1+innerLen(cur, ')')]
		return &Reader{dec: r.dec, sig: inner}, nil
	case '{':
		if err := r.dec.Pad(8); err != nil {
			return nil, err
		}
		inner := cur[1 : 1+innerLen(cur, '}')]
		return &Reader{dec: r.dec, sig: inner}, nil
	case 'v':
		sig, err := r.readSignatureValue()
		if err != nil {
			return nil, err
		}
		return &Reader{dec: r.dec, sig: sig}, nil
	default:
		return nil, fmt.Errorf("dbus/wire: type %q is not a container", string(cur[0]))
	}
}

func (r *Reader) Next() (bool, error) {
	if r.arrayElemSig != "" {
		if r.arrayLimit.N > 0 {
			return true, nil
		}
		r.dec.In = r.arrayOuterIn
		return false, nil
	}
	if r.sig == "" {
		return false, nil
	}
	r.sig = r.sig[typeLen(r.sig):]
	return r.sig != "", nil
}

// ContainedSignature returns the full signature text of the value at
// the reader's current position, rather than just its leading type
// code. It is meant for variant dispatch, where the embedded
// signature (already consumed off the wire by Recurse) describes a
// type too complex for ArgType's single byte to convey.
func (r *Reader) ContainedSignature() string { return r.currentTypeSig() }

func (*Reader) OpenContainer(byte, string) (Iterator, error) { return nil, errWrongMode }
func (*Reader) AppendBasic(any) error                        { return errWrongMode }
func (*Reader) CloseContainer(Iterator) error                { return errWrongMode }

// Writer writes a DBus message payload.
type Writer struct {
	enc *fragments.Encoder

	isArray           bool
	lengthPatchOffset int
	// arrayDataStart is where the array's counted content begins:
	// after the length placeholder and any struct/dict-entry alignment
	// padding that follows it, which the length field must not count.
	arrayDataStart int
}

// NewWriter returns a Writer with an empty payload.
func NewWriter(order fragments.ByteOrder) *Writer {
	return &Writer{enc: &fragments.Encoder{Order: order}}
}

// Bytes returns the payload written so far.
func (w *Writer) Bytes() []byte { return w.enc.Out }

func (w *Writer) writeSignatureValue(sig string) {
	w.enc.Uint8(uint8(len(sig)))
	w.enc.Write([]byte(sig))
	w.enc.Uint8(0)
}

func (w *Writer) AppendBasic(v any) error {
	switch val := v.(type) {
	case uint8:
		w.enc.Uint8(val)
	case bool:
		b := uint32(0)
		if val {
			b = 1
		}
		w.enc.Uint32(b)
	case int16:
		w.enc.Uint16(uint16(val))
	case uint16:
		w.enc.Uint16(val)
	case int32:
		w.enc.Uint32(uint32(val))
	case uint32:
		w.enc.Uint32(val)
	case int64:
		w.enc.Uint64(uint64(val))
	case uint64:
		w.enc.Uint64(val)
	case float64:
		w.enc.Uint64(math.Float64bits(val))
	case string:
		w.enc.String(val)
	case ObjectPathValue:
		w.enc.String(string(val))
	case SignatureValue:
		w.writeSignatureValue(string(val))
	default:
		return fmt.Errorf("dbus/wire: unsupported basic value %T", v)
	}
	return nil
}

func (w *Writer) OpenContainer(kind byte, childSignature string) (Iterator, error) {
	switch kind {
	case 'a':
		w.enc.Pad(4)
		offset := len(w.enc.Out)
		w.enc.Uint32(0)
		if needsStructAlign(childSignature) {
			w.enc.Pad(8)
		}
		start := len(w.enc.Out)
		return &Writer{enc: w.enc, isArray: true, lengthPatchOffset: offset, arrayDataStart: start}, nil
	case '(':
		w.enc.Pad(8)
		return &Writer{enc: w.enc}, nil
	case '{':
		w.enc.Pad(8)
		return &Writer{enc: w.enc}, nil
	case 'v':
		w.writeSignatureValue(childSignature)
		return &Writer{enc: w.enc}, nil
	default:
		return nil, fmt.Errorf("dbus/wire: type %q is not a container", string(kind))
	}
}

func (w *Writer) CloseContainer(sub Iterator) error {
	sw, ok := sub.(*Writer)
	if !ok {
		return fmt.Errorf("dbus/wire: CloseContainer given a foreign iterator")
	}
	if sw.isArray {
		length := len(w.enc.Out) - sw.arrayDataStart
		w.enc.Order.PutUint32(w.enc.Out[sw.lengthPatchOffset:], uint32(length))
	}
	return nil
}

func (*Writer) ArgType() byte               { return 0 }
func (*Writer) GetBasic() (any, error)      { return nil, errWrongMode }
func (*Writer) Recurse() (Iterator, error)  { return nil, errWrongMode }
func (*Writer) Next() (bool, error)         { return false, errWrongMode }

// sliceReader is a minimal io.Reader over a byte slice, used instead
// of bytes.NewReader so [fragments.Decoder.In] can be swapped for an
// *io.LimitedReader and swapped back without the package needing to
// depend on "bytes" for anything but this.
type sliceReader struct {
	b []byte
}

func (s *sliceReader) Read(p []byte) (int, error) {
	if len(s.b) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.b)
	s.b = s.b[n:]
	return n, nil
}
