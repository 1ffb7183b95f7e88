// internal/utils/binary/layout.go
package binary

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrSizeMismatch  = errors.New("record size mismatch")
	ErrInvalidLayout = errors.New("invalid layout")
)

// Kind is the wire type of a fixed-width field.
type Kind uint8

const (
	KindUint8 Kind = iota + 1
	KindUint64
	KindBool
	KindPubKey
)

// Width returns the encoded width of the kind in bytes.
func (k Kind) Width() int {
	switch k {
	case KindUint8, KindBool:
		return 1
	case KindUint64:
		return 8
	case KindPubKey:
		return solana.PublicKeyLength
	default:
		return 0
	}
}

func (k Kind) String() string {
	switch k {
	case KindUint8:
		return "u8"
	case KindUint64:
		return "u64"
	case KindBool:
		return "bool"
	case KindPubKey:
		return "pubkey"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Field describes one entry of a fixed layout.
type Field struct {
	Name   string
	Offset int
	Width  int
	Kind   Kind
}

// Layout is a declarative description of a fixed-size little-endian record.
// Fields must be listed in offset order and cover the record without gaps.
type Layout struct {
	name   string
	size   int
	fields []Field
	index  map[string]int
}

// NewLayout validates the field list against the record size.
func NewLayout(name string, size int, fields ...Field) (*Layout, error) {
	l := &Layout{
		name:   name,
		size:   size,
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	copy(l.fields, fields)

	next := 0
	for i, f := range l.fields {
		if f.Name == "" {
			return nil, fmt.Errorf("%w: %s: field %d has no name", ErrInvalidLayout, name, i)
		}
		if _, dup := l.index[f.Name]; dup {
			return nil, fmt.Errorf("%w: %s: duplicate field %q", ErrInvalidLayout, name, f.Name)
		}
		if f.Kind.Width() == 0 || f.Width != f.Kind.Width() {
			return nil, fmt.Errorf("%w: %s: field %q width %d does not match %s",
				ErrInvalidLayout, name, f.Name, f.Width, f.Kind)
		}
		if f.Offset != next {
			return nil, fmt.Errorf("%w: %s: field %q at offset %d, expected %d",
				ErrInvalidLayout, name, f.Name, f.Offset, next)
		}
		next = f.Offset + f.Width
		l.index[f.Name] = i
	}
	if next != size {
		return nil, fmt.Errorf("%w: %s: fields cover %d bytes, record is %d",
			ErrInvalidLayout, name, next, size)
	}
	return l, nil
}

// MustLayout is NewLayout for package-level descriptors.
func MustLayout(name string, size int, fields ...Field) *Layout {
	l, err := NewLayout(name, size, fields...)
	if err != nil {
		panic(err)
	}
	return l
}

// Sequential places fields back to back starting at offset zero.
func Sequential(fields ...Field) []Field {
	out := make([]Field, len(fields))
	offset := 0
	for i, f := range fields {
		f.Offset = offset
		f.Width = f.Kind.Width()
		offset += f.Width
		out[i] = f
	}
	return out
}

func (l *Layout) Name() string { return l.name }

func (l *Layout) Size() int { return l.size }

// Fields returns a copy of the field list.
func (l *Layout) Fields() []Field {
	out := make([]Field, len(l.fields))
	copy(out, l.fields)
	return out
}

// NewRecord returns a zeroed record ready for the setters.
func (l *Layout) NewRecord() *Record {
	return &Record{layout: l, data: make([]byte, l.size)}
}

// Decode checks the length of data and wraps a private copy of it.
func (l *Layout) Decode(data []byte) (*Record, error) {
	if len(data) != l.size {
		return nil, fmt.Errorf("%w: %s: expected %d bytes, got %d",
			ErrSizeMismatch, l.name, l.size, len(data))
	}
	r := l.NewRecord()
	copy(r.data, data)
	return r, nil
}

// Record is a byte buffer interpreted through a Layout. Accessors panic on
// unknown names or kind mismatches since both are programming errors.
type Record struct {
	layout *Layout
	data   []byte
}

func (r *Record) field(name string, kind Kind) Field {
	i, ok := r.layout.index[name]
	if !ok {
		panic(fmt.Sprintf("binary: %s has no field %q", r.layout.name, name))
	}
	f := r.layout.fields[i]
	if f.Kind != kind {
		panic(fmt.Sprintf("binary: %s.%s is %s, not %s", r.layout.name, name, f.Kind, kind))
	}
	return f
}

func (r *Record) Uint8(name string) uint8 {
	return r.data[r.field(name, KindUint8).Offset]
}

func (r *Record) Uint64(name string) uint64 {
	f := r.field(name, KindUint64)
	return binary.LittleEndian.Uint64(r.data[f.Offset : f.Offset+f.Width])
}

// Bool treats any non-zero byte as true.
func (r *Record) Bool(name string) bool {
	return r.data[r.field(name, KindBool).Offset] != 0
}

func (r *Record) PubKey(name string) solana.PublicKey {
	f := r.field(name, KindPubKey)
	return solana.PublicKeyFromBytes(r.data[f.Offset : f.Offset+f.Width])
}

func (r *Record) SetUint8(name string, v uint8) *Record {
	r.data[r.field(name, KindUint8).Offset] = v
	return r
}

func (r *Record) SetUint64(name string, v uint64) *Record {
	f := r.field(name, KindUint64)
	binary.LittleEndian.PutUint64(r.data[f.Offset:f.Offset+f.Width], v)
	return r
}

func (r *Record) SetBool(name string, v bool) *Record {
	var b byte
	if v {
		b = 1
	}
	r.data[r.field(name, KindBool).Offset] = b
	return r
}

func (r *Record) SetPubKey(name string, key solana.PublicKey) *Record {
	f := r.field(name, KindPubKey)
	copy(r.data[f.Offset:f.Offset+f.Width], key[:])
	return r
}

// Bytes returns a copy of the encoded record.
func (r *Record) Bytes() []byte {
	out := make([]byte, len(r.data))
	copy(out, r.data)
	return out
}
