// Package nvlist implements the self-describing property list carried in
// the first half of every device label: an ordered name-to-typed-value map
// with a canonical binary encoding. Names are unique within a list; adding
// an existing name replaces the value in place so that re-encoding a decoded
// list reproduces the original bytes.
package nvlist

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Type identifies the value stored in a pair.
type Type uint32

const (
	TypeUint64 Type = iota + 1
	TypeString
	TypeUint64Array
	TypeList
	TypeListArray
)

const encodeMagic = 0x4e564c31 // "NVL1"

var (
	ErrBadMagic  = errors.New("nvlist: bad magic")
	ErrTruncated = errors.New("nvlist: truncated encoding")
	ErrBadType   = errors.New("nvlist: unknown value type")
)

type pair struct {
	name  string
	typ   Type
	value any
}

// List is an ordered collection of uniquely named, typed values.
// The zero value is not usable; call New.
type List struct {
	pairs []pair
	index map[string]int
}

// New returns an empty list.
func New() *List {
	return &List{index: make(map[string]int)}
}

func (l *List) add(name string, typ Type, value any) {
	if i, ok := l.index[name]; ok {
		l.pairs[i] = pair{name, typ, value}
		return
	}
	l.index[name] = len(l.pairs)
	l.pairs = append(l.pairs, pair{name, typ, value})
}

func (l *List) AddUint64(name string, v uint64)        { l.add(name, TypeUint64, v) }
func (l *List) AddString(name, v string)               { l.add(name, TypeString, v) }
func (l *List) AddUint64Array(name string, v []uint64) { l.add(name, TypeUint64Array, v) }
func (l *List) AddList(name string, v *List)           { l.add(name, TypeList, v) }
func (l *List) AddListArray(name string, v []*List)    { l.add(name, TypeListArray, v) }

func (l *List) lookup(name string, typ Type) (any, bool) {
	i, ok := l.index[name]
	if !ok || l.pairs[i].typ != typ {
		return nil, false
	}
	return l.pairs[i].value, true
}

// LookupUint64 returns the named uint64 value.
func (l *List) LookupUint64(name string) (uint64, bool) {
	v, ok := l.lookup(name, TypeUint64)
	if !ok {
		return 0, false
	}
	return v.(uint64), true
}

// LookupString returns the named string value.
func (l *List) LookupString(name string) (string, bool) {
	v, ok := l.lookup(name, TypeString)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// LookupUint64Array returns the named uint64 array.
func (l *List) LookupUint64Array(name string) ([]uint64, bool) {
	v, ok := l.lookup(name, TypeUint64Array)
	if !ok {
		return nil, false
	}
	return v.([]uint64), true
}

// LookupList returns the named nested list.
func (l *List) LookupList(name string) (*List, bool) {
	v, ok := l.lookup(name, TypeList)
	if !ok {
		return nil, false
	}
	return v.(*List), true
}

// LookupListArray returns the named array of nested lists.
func (l *List) LookupListArray(name string) ([]*List, bool) {
	v, ok := l.lookup(name, TypeListArray)
	if !ok {
		return nil, false
	}
	return v.([]*List), true
}

// Has reports whether the list contains name, regardless of type.
func (l *List) Has(name string) bool {
	_, ok := l.index[name]
	return ok
}

// Len returns the number of pairs.
func (l *List) Len() int { return len(l.pairs) }

// Names returns the pair names in encoding order.
func (l *List) Names() []string {
	names := make([]string, len(l.pairs))
	for i, p := range l.pairs {
		names[i] = p.name
	}
	return names
}

// Equal reports deep equality including pair order.
func (l *List) Equal(other *List) bool {
	if other == nil || len(l.pairs) != len(other.pairs) {
		return false
	}
	for i, p := range l.pairs {
		q := other.pairs[i]
		if p.name != q.name || p.typ != q.typ {
			return false
		}
		switch p.typ {
		case TypeUint64:
			if p.value.(uint64) != q.value.(uint64) {
				return false
			}
		case TypeString:
			if p.value.(string) != q.value.(string) {
				return false
			}
		case TypeUint64Array:
			a, b := p.value.([]uint64), q.value.([]uint64)
			if len(a) != len(b) {
				return false
			}
			for j := range a {
				if a[j] != b[j] {
					return false
				}
			}
		case TypeList:
			if !p.value.(*List).Equal(q.value.(*List)) {
				return false
			}
		case TypeListArray:
			a, b := p.value.([]*List), q.value.([]*List)
			if len(a) != len(b) {
				return false
			}
			for j := range a {
				if !a[j].Equal(b[j]) {
					return false
				}
			}
		}
	}
	return true
}

// pad4 returns n rounded up to a multiple of 4.
func pad4(n int) int { return (n + 3) &^ 3 }

// Encode renders the list in its canonical binary form: a magic/count
// header followed by pairs in insertion order, every field 4-byte aligned,
// multi-byte integers big-endian.
func (l *List) Encode() []byte {
	var buf []byte
	buf = binary.BigEndian.AppendUint32(buf, encodeMagic)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(l.pairs)))
	for _, p := range l.pairs {
		buf = appendPadded(buf, []byte(p.name))
		buf = binary.BigEndian.AppendUint32(buf, uint32(p.typ))
		switch p.typ {
		case TypeUint64:
			buf = binary.BigEndian.AppendUint64(buf, p.value.(uint64))
		case TypeString:
			buf = appendPadded(buf, []byte(p.value.(string)))
		case TypeUint64Array:
			arr := p.value.([]uint64)
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(arr)))
			for _, v := range arr {
				buf = binary.BigEndian.AppendUint64(buf, v)
			}
		case TypeList:
			buf = appendPadded(buf, p.value.(*List).Encode())
		case TypeListArray:
			arr := p.value.([]*List)
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(arr)))
			for _, nested := range arr {
				buf = appendPadded(buf, nested.Encode())
			}
		}
	}
	return buf
}

func appendPadded(buf, b []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(b)))
	buf = append(buf, b...)
	for i := len(b); i < pad4(len(b)); i++ {
		buf = append(buf, 0)
	}
	return buf
}

type decoder struct {
	data []byte
	off  int
}

func (d *decoder) uint32() (uint32, error) {
	if d.off+4 > len(d.data) {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint32(d.data[d.off:])
	d.off += 4
	return v, nil
}

func (d *decoder) uint64() (uint64, error) {
	if d.off+8 > len(d.data) {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint64(d.data[d.off:])
	d.off += 8
	return v, nil
}

func (d *decoder) padded() ([]byte, error) {
	n, err := d.uint32()
	if err != nil {
		return nil, err
	}
	if d.off+pad4(int(n)) > len(d.data) {
		return nil, ErrTruncated
	}
	b := d.data[d.off : d.off+int(n)]
	d.off += pad4(int(n))
	return b, nil
}

// Decode parses a canonical encoding. Trailing bytes beyond the encoded
// list are ignored; label regions are zero-padded to their fixed size.
func Decode(data []byte) (*List, error) {
	d := &decoder{data: data}
	return d.list()
}

func (d *decoder) list() (*List, error) {
	magic, err := d.uint32()
	if err != nil {
		return nil, err
	}
	if magic != encodeMagic {
		return nil, ErrBadMagic
	}
	count, err := d.uint32()
	if err != nil {
		return nil, err
	}
	l := New()
	for i := uint32(0); i < count; i++ {
		name, err := d.padded()
		if err != nil {
			return nil, err
		}
		typ, err := d.uint32()
		if err != nil {
			return nil, err
		}
		switch Type(typ) {
		case TypeUint64:
			v, err := d.uint64()
			if err != nil {
				return nil, err
			}
			l.AddUint64(string(name), v)
		case TypeString:
			b, err := d.padded()
			if err != nil {
				return nil, err
			}
			l.AddString(string(name), string(b))
		case TypeUint64Array:
			n, err := d.uint32()
			if err != nil {
				return nil, err
			}
			if d.off+int(n)*8 > len(d.data) {
				return nil, ErrTruncated
			}
			arr := make([]uint64, n)
			for j := range arr {
				arr[j], _ = d.uint64()
			}
			l.AddUint64Array(string(name), arr)
		case TypeList:
			b, err := d.padded()
			if err != nil {
				return nil, err
			}
			nested, err := Decode(b)
			if err != nil {
				return nil, err
			}
			l.AddList(string(name), nested)
		case TypeListArray:
			n, err := d.uint32()
			if err != nil {
				return nil, err
			}
			arr := make([]*List, n)
			for j := range arr {
				b, err := d.padded()
				if err != nil {
					return nil, err
				}
				if arr[j], err = Decode(b); err != nil {
					return nil, err
				}
			}
			l.AddListArray(string(name), arr)
		default:
			return nil, ErrBadType
		}
	}
	return l, nil
}

// Dump renders the list as indented text for debugging tools.
func (l *List) Dump() string {
	var sb strings.Builder
	l.dump(&sb, 0)
	return sb.String()
}

func (l *List) dump(sb *strings.Builder, depth int) {
	indent := strings.Repeat("    ", depth)
	for _, p := range l.pairs {
		switch p.typ {
		case TypeUint64:
			fmt.Fprintf(sb, "%s%s: %d\n", indent, p.name, p.value.(uint64))
		case TypeString:
			fmt.Fprintf(sb, "%s%s: %q\n", indent, p.name, p.value.(string))
		case TypeUint64Array:
			fmt.Fprintf(sb, "%s%s: %v\n", indent, p.name, p.value.([]uint64))
		case TypeList:
			fmt.Fprintf(sb, "%s%s:\n", indent, p.name)
			p.value.(*List).dump(sb, depth+1)
		case TypeListArray:
			for i, nested := range p.value.([]*List) {
				fmt.Fprintf(sb, "%s%s[%d]:\n", indent, p.name, i)
				nested.dump(sb, depth+1)
			}
		}
	}
}
