// Package dmx models the 512-channel universe driven by the service and the
// table that places fixture slots inside it.
package dmx

import (
	"fmt"
	"os"
	"sort"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

// UniverseSize is the number of channels in a DMX universe.
const UniverseSize = 512

const (
	// ErrInvalidIndex is returned for a slot index with no configured range.
	ErrInvalidIndex = errors.ConstError("invalid fixture index")
	// ErrChannelLengthMismatch is returned when a value list does not match
	// the width of the slot's range.
	ErrChannelLengthMismatch = errors.ConstError("channel length mismatch")
)

// Range is the inclusive channel span owned by one fixture slot.
type Range struct {
	Index int `yaml:"index"`
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// Width is the number of channels in the range.
func (r Range) Width() int {
	return r.End - r.Start + 1
}

func (r Range) String() string {
	return fmt.Sprintf("slot %d [%d..%d]", r.Index, r.Start, r.End)
}

// Mapper maps fixture slot indexes onto universe ranges. It is immutable
// once built.
type Mapper struct {
	ranges map[int]Range
}

// DefaultSlots is the deployment table: eight six-channel fixtures patched
// back to back from channel 0.
func DefaultSlots() []Range {
	ranges := make([]Range, 8)
	for i := range ranges {
		ranges[i] = Range{Index: i, Start: i * 6, End: i*6 + 5}
	}
	return ranges
}

// NewMapper validates ranges and builds a Mapper. Indexes must be unique
// and ranges must lie inside the universe without overlapping.
func NewMapper(ranges []Range) (*Mapper, error) {
	if len(ranges) == 0 {
		return nil, errors.NotValidf("empty channel map")
	}
	m := &Mapper{ranges: make(map[int]Range, len(ranges))}
	for _, r := range ranges {
		if r.Index < 0 {
			return nil, errors.NotValidf("%s: negative index", r)
		}
		if r.Start < 0 || r.End >= UniverseSize || r.Start > r.End {
			return nil, errors.NotValidf("%s: outside universe of %d channels", r, UniverseSize)
		}
		if _, dup := m.ranges[r.Index]; dup {
			return nil, errors.NotValidf("%s: duplicate index", r)
		}
		m.ranges[r.Index] = r
	}

	sorted := append([]Range(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Start <= sorted[i-1].End {
			return nil, errors.NotValidf("%s overlaps %s", sorted[i], sorted[i-1])
		}
	}
	return m, nil
}

// DefaultMapper returns a Mapper over DefaultSlots.
func DefaultMapper() *Mapper {
	m, err := NewMapper(DefaultSlots())
	if err != nil {
		panic(err)
	}
	return m
}

type mapFile struct {
	Slots []Range `yaml:"slots"`
}

// ParseMapper reads a YAML channel map of the form
//
//	slots:
//	  - {index: 0, start: 0, end: 5}
func ParseMapper(b []byte) (*Mapper, error) {
	var f mapFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, errors.Annotate(err, "parsing channel map")
	}
	m, err := NewMapper(f.Slots)
	return m, errors.Trace(err)
}

// LoadMapper reads a channel map file. An empty path yields DefaultMapper.
func LoadMapper(path string) (*Mapper, error) {
	if path == "" {
		return DefaultMapper(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "reading channel map %q", path)
	}
	m, err := ParseMapper(b)
	return m, errors.Annotatef(err, "channel map %q", path)
}

// Range returns the range configured for index.
func (m *Mapper) Range(index int) (Range, error) {
	r, ok := m.ranges[index]
	if !ok {
		return Range{}, errors.Annotatef(ErrInvalidIndex, "slot %d", index)
	}
	return r, nil
}

// Indexes lists the configured slot indexes in ascending order.
func (m *Mapper) Indexes() []int {
	indexes := make([]int, 0, len(m.ranges))
	for index := range m.ranges {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)
	return indexes
}

// Validate checks values against the range of index without writing.
func (m *Mapper) Validate(index int, values []byte) (Range, error) {
	r, err := m.Range(index)
	if err != nil {
		return Range{}, err
	}
	if len(values) != r.Width() {
		return Range{}, errors.Annotatef(ErrChannelLengthMismatch, "%s takes %d values, got %d", r, r.Width(), len(values))
	}
	return r, nil
}

// MapAndWrite copies values into buf over the range of index. Nothing is
// written when validation fails.
func (m *Mapper) MapAndWrite(index int, values []byte, buf *[UniverseSize]byte) error {
	r, err := m.Validate(index, values)
	if err != nil {
		return err
	}
	copy(buf[r.Start:r.End+1], values)
	return nil
}
