package wire

import (
	"encoding/json"

	"github.com/juju/errors"
)

// Fixture is one addressable lighting unit. Slot selects the channel range it
// occupies in the universe.
type Fixture struct {
	ID       int64         `json:"id,omitempty"`
	Channels ChannelValues `json:"channels,omitempty"`
	Slot     int32         `json:"slot,omitempty"`
}

func (m *Fixture) Marshal() []byte {
	var e encoder
	e.int64(1, m.ID)
	e.bytes(2, m.Channels)
	e.int64(3, int64(m.Slot))
	return e
}

func (m *Fixture) Unmarshal(b []byte) error {
	*m = Fixture{}
	return eachField(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.ID, err = f.int64()
		case 2:
			m.Channels, err = f.raw()
		case 3:
			m.Slot, err = f.int32()
		}
		return err
	})
}

// Stage is the fixture content of a scene.
type Stage struct {
	Fixtures []*Fixture `json:"fixtures,omitempty"`
}

func (m *Stage) Marshal() []byte {
	var e encoder
	for _, fx := range m.Fixtures {
		e.message(1, fx)
	}
	return e
}

func (m *Stage) Unmarshal(b []byte) error {
	*m = Stage{}
	return eachField(b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		fx := new(Fixture)
		if err := f.message(fx); err != nil {
			return err
		}
		m.Fixtures = append(m.Fixtures, fx)
		return nil
	})
}

// UnmarshalJSON refuses null entries in the fixture list.
func (m *Stage) UnmarshalJSON(b []byte) error {
	type plain Stage
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	for i, fx := range p.Fixtures {
		if fx == nil {
			return errors.Annotatef(ErrDecode, "fixture %d is null", i)
		}
	}
	*m = Stage(p)
	return nil
}

// Scene is a named configuration of fixtures.
type Scene struct {
	ID       int64  `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	External bool   `json:"external,omitempty"`
	Stage    *Stage `json:"stage,omitempty"`
}

func (m *Scene) Marshal() []byte {
	var e encoder
	e.int64(1, m.ID)
	e.string(2, m.Name)
	e.bool(3, m.External)
	if m.Stage != nil {
		e.message(4, m.Stage)
	}
	return e
}

func (m *Scene) Unmarshal(b []byte) error {
	*m = Scene{}
	return eachField(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.ID, err = f.int64()
		case 2:
			m.Name, err = f.string()
		case 3:
			m.External, err = f.bool()
		case 4:
			m.Stage = new(Stage)
			err = f.message(m.Stage)
		}
		return err
	})
}

// FixtureIDs lists the ids of the fixtures on the scene's stage.
func (m *Scene) FixtureIDs() []int64 {
	if m.Stage == nil {
		return nil
	}
	ids := make([]int64, 0, len(m.Stage.Fixtures))
	for _, fx := range m.Stage.Fixtures {
		ids = append(ids, fx.ID)
	}
	return ids
}

// Error is the structured body of every failed operation.
type Error struct {
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

func (m *Error) Marshal() []byte {
	var e encoder
	e.string(1, m.Kind)
	e.string(2, m.Message)
	return e
}

func (m *Error) Unmarshal(b []byte) error {
	*m = Error{}
	return eachField(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.Kind, err = f.string()
		case 2:
			m.Message, err = f.string()
		}
		return err
	})
}

func (m *Error) Error() string {
	return m.Kind + ": " + m.Message
}
