package scenes

import (
	"context"

	"github.com/juju/errors"

	"github.com/Vasu1712/scenyx-stage/internal/models"
	"github.com/Vasu1712/scenyx-stage/internal/stage"
	"github.com/Vasu1712/scenyx-stage/internal/wire"
)

// operation is one entry of the method table shared by the HTTP routes and
// the RPC envelope.
type operation struct {
	newRequest func() wire.Message
	call       func(ctx context.Context, req wire.Message) (wire.Message, error)
}

// op adapts a typed handler method to an operation.
func op[Req any, PReq interface {
	*Req
	wire.Message
}](fn func(context.Context, PReq) (wire.Message, error)) operation {
	return operation{
		newRequest: func() wire.Message { return PReq(new(Req)) },
		call: func(ctx context.Context, req wire.Message) (wire.Message, error) {
			return fn(ctx, req.(PReq))
		},
	}
}

func (h *SceneHandler) operations() map[string]operation {
	return map[string]operation{
		wire.MethodGetSceneList:               op(h.getSceneList),
		wire.MethodGetScene:                   op(h.getScene),
		wire.MethodSetScene:                   op(h.setScene),
		wire.MethodGetCurrentScene:            op(h.getCurrentScene),
		wire.MethodSetCurrentScene:            op(h.setCurrentScene),
		wire.MethodUpdateCurrentScene:         op(h.updateCurrentScene),
		wire.MethodGetState:                   op(h.getState),
		wire.MethodSetFixture:                 op(h.setFixture),
		wire.MethodCreateScene:                op(h.createScene),
		wire.MethodDeleteScene:                op(h.deleteScene),
		wire.MethodCreateFixture:              op(h.createFixture),
		wire.MethodDeleteFixture:              op(h.deleteFixture),
		wire.MethodAddFixturesToScene:         op(h.addFixturesToScene),
		wire.MethodRemoveAllFixturesFromScene: op(h.removeAllFixturesFromScene),
	}
}

func toWireFixture(f *models.Fixture) *wire.Fixture {
	return &wire.Fixture{
		ID:       f.ID,
		Slot:     int32(f.Slot),
		Channels: append(wire.ChannelValues(nil), f.Channels...),
	}
}

func toWireScene(d *stage.SceneDetail) *wire.Scene {
	scene := &wire.Scene{
		ID:       d.ID,
		Name:     d.Name,
		External: d.External,
		Stage:    &wire.Stage{},
	}
	for i := range d.Fixtures {
		scene.Stage.Fixtures = append(scene.Stage.Fixtures, toWireFixture(&d.Fixtures[i]))
	}
	return scene
}

func (h *SceneHandler) getSceneList(ctx context.Context, _ *wire.GetSceneListRequest) (wire.Message, error) {
	details, err := h.Service.ListScenes(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	resp := &wire.GetSceneListResponse{Scenes: make([]*wire.Scene, 0, len(details))}
	for _, d := range details {
		resp.Scenes = append(resp.Scenes, toWireScene(d))
	}
	return resp, nil
}

func (h *SceneHandler) getScene(ctx context.Context, req *wire.GetSceneRequest) (wire.Message, error) {
	d, err := h.Service.GetScene(ctx, req.ID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &wire.GetSceneResponse{Scene: toWireScene(d)}, nil
}

// setScene addresses the scene by uuid, falling back to the id inside the
// scene body.
func (h *SceneHandler) setScene(ctx context.Context, req *wire.SetSceneRequest) (wire.Message, error) {
	if req.Scene == nil {
		return nil, errors.NotValidf("missing scene")
	}
	update := &stage.SceneDetail{Scene: models.Scene{
		ID:       req.UUID,
		Name:     req.Scene.Name,
		External: req.Scene.External,
	}}
	if update.ID == 0 {
		update.ID = req.Scene.ID
	}
	if req.Scene.Stage != nil {
		for _, f := range req.Scene.Stage.Fixtures {
			update.Fixtures = append(update.Fixtures, models.Fixture{ID: f.ID, Channels: f.Channels})
		}
	}
	d, err := h.Service.SetScene(ctx, update)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &wire.SetSceneResponse{Scene: toWireScene(d)}, nil
}

func (h *SceneHandler) getCurrentScene(ctx context.Context, _ *wire.GetCurrentSceneRequest) (wire.Message, error) {
	d, err := h.Service.CurrentScene(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &wire.GetCurrentSceneResponse{Scene: toWireScene(d)}, nil
}

func (h *SceneHandler) setCurrentScene(ctx context.Context, req *wire.SetCurrentSceneRequest) (wire.Message, error) {
	d, err := h.Service.SetCurrentScene(ctx, req.ID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &wire.SetCurrentSceneResponse{Scene: toWireScene(d)}, nil
}

func (h *SceneHandler) updateCurrentScene(ctx context.Context, req *wire.UpdateCurrentSceneRequest) (wire.Message, error) {
	d, err := h.Service.SetCurrentScene(ctx, req.NewSceneID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &wire.UpdateCurrentSceneResponse{Scene: toWireScene(d)}, nil
}

func (h *SceneHandler) getState(_ context.Context, _ *wire.GetStateRequest) (wire.Message, error) {
	id, universe := h.Service.State()
	return &wire.GetStateResponse{CurrentSceneID: id, Universe: universe[:]}, nil
}

func (h *SceneHandler) setFixture(ctx context.Context, req *wire.SetFixtureRequest) (wire.Message, error) {
	if req.Fixture == nil {
		return nil, errors.NotValidf("missing fixture")
	}
	f, err := h.Service.SetFixture(ctx, req.Scene, req.Fixture.ID, req.Fixture.Channels)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &wire.SetFixtureResponse{Fixture: toWireFixture(f)}, nil
}

// createScene always starts the scene with an empty stage; fixtures are
// attached with CreateFixture or AddFixturesToScene.
func (h *SceneHandler) createScene(ctx context.Context, req *wire.CreateSceneRequest) (wire.Message, error) {
	if req.Scene == nil {
		return nil, errors.NotValidf("missing scene")
	}
	if len(req.Scene.FixtureIDs()) > 0 {
		return nil, errors.NotValidf("fixtures on a new scene")
	}
	d, err := h.Service.CreateScene(ctx, req.Scene.Name, req.Scene.External)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &wire.CreateSceneResponse{Scene: toWireScene(d)}, nil
}

func (h *SceneHandler) deleteScene(ctx context.Context, req *wire.DeleteSceneRequest) (wire.Message, error) {
	if err := h.Service.DeleteScene(ctx, req.UUID); err != nil {
		return nil, errors.Trace(err)
	}
	return &wire.DeleteSceneResponse{UUID: req.UUID}, nil
}

func (h *SceneHandler) createFixture(ctx context.Context, req *wire.CreateFixtureRequest) (wire.Message, error) {
	if req.Fixture == nil {
		return nil, errors.NotValidf("missing fixture")
	}
	f, err := h.Service.CreateFixture(ctx, req.Scene, int(req.Fixture.Slot), req.Fixture.Channels)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &wire.CreateFixtureResponse{Fixture: toWireFixture(f)}, nil
}

func (h *SceneHandler) deleteFixture(ctx context.Context, req *wire.DeleteFixtureRequest) (wire.Message, error) {
	if err := h.Service.DeleteFixture(ctx, req.ID); err != nil {
		return nil, errors.Trace(err)
	}
	return &wire.DeleteFixtureResponse{ID: req.ID}, nil
}

func (h *SceneHandler) addFixturesToScene(ctx context.Context, req *wire.AddFixturesToSceneRequest) (wire.Message, error) {
	d, err := h.Service.AddFixturesToScene(ctx, req.SceneID, req.FixtureIDs)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &wire.AddFixturesToSceneResponse{Scene: toWireScene(d)}, nil
}

func (h *SceneHandler) removeAllFixturesFromScene(ctx context.Context, req *wire.RemoveAllFixturesFromSceneRequest) (wire.Message, error) {
	d, err := h.Service.RemoveAllFixturesFromScene(ctx, req.SceneID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &wire.RemoveAllFixturesFromSceneResponse{Scene: toWireScene(d)}, nil
}
