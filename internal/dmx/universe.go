package dmx

import (
	"sync"

	"github.com/juju/errors"
)

// Patch is one fixture's contribution to a rendered universe.
type Patch struct {
	Slot   int
	Values []byte
}

// Render lays patches over a zeroed universe in order, so later patches win
// on a shared slot.
func Render(m *Mapper, patches []Patch) ([UniverseSize]byte, error) {
	var buf [UniverseSize]byte
	for _, p := range patches {
		if err := m.MapAndWrite(p.Slot, p.Values, &buf); err != nil {
			return [UniverseSize]byte{}, errors.Trace(err)
		}
	}
	return buf, nil
}

// Universe is the live channel buffer. It belongs to one owner at a time,
// the id of the current scene, and writes from anyone else are ignored.
type Universe struct {
	mapper *Mapper

	mu       sync.Mutex
	owner    int64
	channels [UniverseSize]byte
}

// NewUniverse returns a zeroed universe with no owner.
func NewUniverse(mapper *Mapper) *Universe {
	return &Universe{mapper: mapper}
}

// Mapper returns the channel map the universe writes through.
func (u *Universe) Mapper() *Mapper {
	return u.mapper
}

// Replace hands the universe to owner with channels already rendered.
func (u *Universe) Replace(owner int64, channels [UniverseSize]byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.owner = owner
	u.channels = channels
}

// WriteFixture writes values over slot if owner still owns the universe.
// It reports whether the write was applied.
func (u *Universe) WriteFixture(owner int64, slot int, values []byte) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if owner != u.owner {
		return false, nil
	}
	if err := u.mapper.MapAndWrite(slot, values, &u.channels); err != nil {
		return false, errors.Trace(err)
	}
	return true, nil
}

// Owner returns the id of the scene the universe is rendering, zero if none.
func (u *Universe) Owner() int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.owner
}

// Snapshot returns the owner and a copy of the channels.
func (u *Universe) Snapshot() (int64, [UniverseSize]byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.owner, u.channels
}

// SnapshotAndReset returns the channels, then zeroes them and clears the
// owner in the same critical section.
func (u *Universe) SnapshotAndReset() [UniverseSize]byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	channels := u.channels
	u.channels = [UniverseSize]byte{}
	u.owner = 0
	return channels
}
