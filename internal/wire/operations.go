package wire

import (
	"encoding/json"

	"github.com/juju/errors"
)

// Request and response pairs for every stage operation. Most responses carry
// a single scene, fixture or id in field 1; the helpers at the bottom of the
// file encode those shapes.

type GetSceneListRequest struct{}

func (m *GetSceneListRequest) Marshal() []byte { return nil }

func (m *GetSceneListRequest) Unmarshal(b []byte) error { return skipAll(b) }

type GetSceneListResponse struct {
	Scenes []*Scene `json:"scenes"`
}

func (m *GetSceneListResponse) Marshal() []byte {
	var e encoder
	for _, s := range m.Scenes {
		e.message(1, s)
	}
	return e
}

// UnmarshalJSON refuses null entries in the scene list.
func (m *GetSceneListResponse) UnmarshalJSON(b []byte) error {
	type plain GetSceneListResponse
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	for i, s := range p.Scenes {
		if s == nil {
			return errors.Annotatef(ErrDecode, "scene %d is null", i)
		}
	}
	*m = GetSceneListResponse(p)
	return nil
}

func (m *GetSceneListResponse) Unmarshal(b []byte) error {
	*m = GetSceneListResponse{}
	return eachField(b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		s := new(Scene)
		if err := f.message(s); err != nil {
			return err
		}
		m.Scenes = append(m.Scenes, s)
		return nil
	})
}

type GetSceneRequest struct {
	ID int64 `json:"id,omitempty"`
}

func (m *GetSceneRequest) Marshal() []byte { return marshalID(m.ID) }

func (m *GetSceneRequest) Unmarshal(b []byte) error { return unmarshalID(b, &m.ID) }

type GetSceneResponse struct {
	Scene *Scene `json:"scene,omitempty"`
}

func (m *GetSceneResponse) Marshal() []byte { return marshalScene(m.Scene) }

func (m *GetSceneResponse) Unmarshal(b []byte) error { return unmarshalScene(b, &m.Scene) }

// SetSceneRequest overwrites the scene identified by UUID. The field keeps
// its historical name; it carries the numeric scene id.
type SetSceneRequest struct {
	UUID  int64  `json:"uuid,omitempty"`
	Scene *Scene `json:"scene,omitempty"`
}

func (m *SetSceneRequest) Marshal() []byte {
	var e encoder
	e.int64(1, m.UUID)
	if m.Scene != nil {
		e.message(2, m.Scene)
	}
	return e
}

func (m *SetSceneRequest) Unmarshal(b []byte) error {
	*m = SetSceneRequest{}
	return eachField(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.UUID, err = f.int64()
		case 2:
			m.Scene = new(Scene)
			err = f.message(m.Scene)
		}
		return err
	})
}

type SetSceneResponse struct {
	Scene *Scene `json:"scene,omitempty"`
}

func (m *SetSceneResponse) Marshal() []byte { return marshalScene(m.Scene) }

func (m *SetSceneResponse) Unmarshal(b []byte) error { return unmarshalScene(b, &m.Scene) }

type GetCurrentSceneRequest struct{}

func (m *GetCurrentSceneRequest) Marshal() []byte { return nil }

func (m *GetCurrentSceneRequest) Unmarshal(b []byte) error { return skipAll(b) }

type GetCurrentSceneResponse struct {
	Scene *Scene `json:"scene,omitempty"`
}

func (m *GetCurrentSceneResponse) Marshal() []byte { return marshalScene(m.Scene) }

func (m *GetCurrentSceneResponse) Unmarshal(b []byte) error { return unmarshalScene(b, &m.Scene) }

// SetCurrentSceneRequest switches the live scene. It is also the body of the
// SetCurrentScene event pushed to the backend.
type SetCurrentSceneRequest struct {
	ID int64 `json:"id,omitempty"`
}

func (m *SetCurrentSceneRequest) Marshal() []byte { return marshalID(m.ID) }

func (m *SetCurrentSceneRequest) Unmarshal(b []byte) error { return unmarshalID(b, &m.ID) }

type SetCurrentSceneResponse struct {
	Scene *Scene `json:"scene,omitempty"`
}

func (m *SetCurrentSceneResponse) Marshal() []byte { return marshalScene(m.Scene) }

func (m *SetCurrentSceneResponse) Unmarshal(b []byte) error { return unmarshalScene(b, &m.Scene) }

type UpdateCurrentSceneRequest struct {
	NewSceneID int64 `json:"newSceneId,omitempty"`
}

func (m *UpdateCurrentSceneRequest) Marshal() []byte { return marshalID(m.NewSceneID) }

func (m *UpdateCurrentSceneRequest) Unmarshal(b []byte) error { return unmarshalID(b, &m.NewSceneID) }

type UpdateCurrentSceneResponse struct {
	Scene *Scene `json:"scene,omitempty"`
}

func (m *UpdateCurrentSceneResponse) Marshal() []byte { return marshalScene(m.Scene) }

func (m *UpdateCurrentSceneResponse) Unmarshal(b []byte) error { return unmarshalScene(b, &m.Scene) }

type GetStateRequest struct{}

func (m *GetStateRequest) Marshal() []byte { return nil }

func (m *GetStateRequest) Unmarshal(b []byte) error { return skipAll(b) }

// GetStateResponse reports the live universe and the scene that owns it.
type GetStateResponse struct {
	CurrentSceneID int64         `json:"currentSceneId,omitempty"`
	Universe       ChannelValues `json:"universe,omitempty"`
}

func (m *GetStateResponse) Marshal() []byte {
	var e encoder
	e.int64(1, m.CurrentSceneID)
	e.bytes(2, m.Universe)
	return e
}

func (m *GetStateResponse) Unmarshal(b []byte) error {
	*m = GetStateResponse{}
	return eachField(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.CurrentSceneID, err = f.int64()
		case 2:
			m.Universe, err = f.raw()
		}
		return err
	})
}

type SetFixtureRequest struct {
	Scene   int64    `json:"scene,omitempty"`
	Fixture *Fixture `json:"fixture,omitempty"`
}

func (m *SetFixtureRequest) Marshal() []byte { return marshalSceneFixture(m.Scene, m.Fixture) }

func (m *SetFixtureRequest) Unmarshal(b []byte) error {
	*m = SetFixtureRequest{}
	return unmarshalSceneFixture(b, &m.Scene, &m.Fixture)
}

type SetFixtureResponse struct {
	Fixture *Fixture `json:"fixture,omitempty"`
}

func (m *SetFixtureResponse) Marshal() []byte { return marshalFixture(m.Fixture) }

func (m *SetFixtureResponse) Unmarshal(b []byte) error { return unmarshalFixture(b, &m.Fixture) }

type CreateSceneRequest struct {
	Scene *Scene `json:"scene,omitempty"`
}

func (m *CreateSceneRequest) Marshal() []byte { return marshalScene(m.Scene) }

func (m *CreateSceneRequest) Unmarshal(b []byte) error { return unmarshalScene(b, &m.Scene) }

type CreateSceneResponse struct {
	Scene *Scene `json:"scene,omitempty"`
}

func (m *CreateSceneResponse) Marshal() []byte { return marshalScene(m.Scene) }

func (m *CreateSceneResponse) Unmarshal(b []byte) error { return unmarshalScene(b, &m.Scene) }

type DeleteSceneRequest struct {
	UUID int64 `json:"uuid,omitempty"`
}

func (m *DeleteSceneRequest) Marshal() []byte { return marshalID(m.UUID) }

func (m *DeleteSceneRequest) Unmarshal(b []byte) error { return unmarshalID(b, &m.UUID) }

type DeleteSceneResponse struct {
	UUID int64 `json:"uuid,omitempty"`
}

func (m *DeleteSceneResponse) Marshal() []byte { return marshalID(m.UUID) }

func (m *DeleteSceneResponse) Unmarshal(b []byte) error { return unmarshalID(b, &m.UUID) }

// CreateFixtureRequest creates a fixture and, when Scene is set, appends it
// to that scene.
type CreateFixtureRequest struct {
	Scene   int64    `json:"scene,omitempty"`
	Fixture *Fixture `json:"fixture,omitempty"`
}

func (m *CreateFixtureRequest) Marshal() []byte { return marshalSceneFixture(m.Scene, m.Fixture) }

func (m *CreateFixtureRequest) Unmarshal(b []byte) error {
	*m = CreateFixtureRequest{}
	return unmarshalSceneFixture(b, &m.Scene, &m.Fixture)
}

type CreateFixtureResponse struct {
	Fixture *Fixture `json:"fixture,omitempty"`
}

func (m *CreateFixtureResponse) Marshal() []byte { return marshalFixture(m.Fixture) }

func (m *CreateFixtureResponse) Unmarshal(b []byte) error { return unmarshalFixture(b, &m.Fixture) }

type DeleteFixtureRequest struct {
	ID int64 `json:"id,omitempty"`
}

func (m *DeleteFixtureRequest) Marshal() []byte { return marshalID(m.ID) }

func (m *DeleteFixtureRequest) Unmarshal(b []byte) error { return unmarshalID(b, &m.ID) }

type DeleteFixtureResponse struct {
	ID int64 `json:"id,omitempty"`
}

func (m *DeleteFixtureResponse) Marshal() []byte { return marshalID(m.ID) }

func (m *DeleteFixtureResponse) Unmarshal(b []byte) error { return unmarshalID(b, &m.ID) }

type AddFixturesToSceneRequest struct {
	SceneID    int64   `json:"sceneId,omitempty"`
	FixtureIDs []int64 `json:"fixtureIds,omitempty"`
}

func (m *AddFixturesToSceneRequest) Marshal() []byte {
	var e encoder
	e.int64(1, m.SceneID)
	e.packedInt64s(2, m.FixtureIDs)
	return e
}

func (m *AddFixturesToSceneRequest) Unmarshal(b []byte) error {
	*m = AddFixturesToSceneRequest{}
	return eachField(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.SceneID, err = f.int64()
		case 2:
			m.FixtureIDs, err = f.int64s(m.FixtureIDs)
		}
		return err
	})
}

type AddFixturesToSceneResponse struct {
	Scene *Scene `json:"scene,omitempty"`
}

func (m *AddFixturesToSceneResponse) Marshal() []byte { return marshalScene(m.Scene) }

func (m *AddFixturesToSceneResponse) Unmarshal(b []byte) error { return unmarshalScene(b, &m.Scene) }

type RemoveAllFixturesFromSceneRequest struct {
	SceneID int64 `json:"sceneId,omitempty"`
}

func (m *RemoveAllFixturesFromSceneRequest) Marshal() []byte { return marshalID(m.SceneID) }

func (m *RemoveAllFixturesFromSceneRequest) Unmarshal(b []byte) error {
	return unmarshalID(b, &m.SceneID)
}

type RemoveAllFixturesFromSceneResponse struct {
	Scene *Scene `json:"scene,omitempty"`
}

func (m *RemoveAllFixturesFromSceneResponse) Marshal() []byte { return marshalScene(m.Scene) }

func (m *RemoveAllFixturesFromSceneResponse) Unmarshal(b []byte) error {
	return unmarshalScene(b, &m.Scene)
}

func skipAll(b []byte) error {
	return eachField(b, func(field) error { return nil })
}

func marshalID(id int64) []byte {
	var e encoder
	e.int64(1, id)
	return e
}

func unmarshalID(b []byte, id *int64) error {
	*id = 0
	return eachField(b, func(f field) (err error) {
		if f.num == 1 {
			*id, err = f.int64()
		}
		return err
	})
}

func marshalScene(s *Scene) []byte {
	var e encoder
	if s != nil {
		e.message(1, s)
	}
	return e
}

func unmarshalScene(b []byte, s **Scene) error {
	*s = nil
	return eachField(b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		*s = new(Scene)
		return f.message(*s)
	})
}

func marshalFixture(fx *Fixture) []byte {
	var e encoder
	if fx != nil {
		e.message(1, fx)
	}
	return e
}

func unmarshalFixture(b []byte, fx **Fixture) error {
	*fx = nil
	return eachField(b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		*fx = new(Fixture)
		return f.message(*fx)
	})
}

func marshalSceneFixture(scene int64, fx *Fixture) []byte {
	var e encoder
	e.int64(1, scene)
	if fx != nil {
		e.message(2, fx)
	}
	return e
}

func unmarshalSceneFixture(b []byte, scene *int64, fx **Fixture) error {
	return eachField(b, func(f field) (err error) {
		switch f.num {
		case 1:
			*scene, err = f.int64()
		case 2:
			*fx = new(Fixture)
			err = f.message(*fx)
		}
		return err
	})
}
