package stage

import (
	"bytes"
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/juju/errors"

	"github.com/Vasu1712/scenyx-stage/internal/dmx"
	"github.com/Vasu1712/scenyx-stage/internal/models"
	"github.com/Vasu1712/scenyx-stage/internal/storage"
	"github.com/Vasu1712/scenyx-stage/internal/storage/memory"
)

type event struct {
	kind     string
	sceneID  int64
	universe [dmx.UniverseSize]byte
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) SceneUpdate(sceneID int64, universe [dmx.UniverseSize]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{kind: "SceneUpdate", sceneID: sceneID, universe: universe})
}

func (r *recorder) SetCurrentScene(sceneID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{kind: "SetCurrentScene", sceneID: sceneID})
}

func (r *recorder) take() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

func newTestService(t *testing.T, store storage.Store, liveMode bool) (*Service, *recorder) {
	t.Helper()
	rec := &recorder{}
	svc, err := NewService(Config{
		Store:    store,
		Universe: dmx.NewUniverse(dmx.DefaultMapper()),
		Notifier: rec,
		LiveMode: liveMode,
	})
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return svc, rec
}

func mustCreateScene(t *testing.T, svc *Service, name string, external bool) int64 {
	t.Helper()
	scene, err := svc.CreateScene(context.Background(), name, external)
	if err != nil {
		t.Fatalf("CreateScene(%q) error: %v", name, err)
	}
	return scene.ID
}

func mustCreateFixture(t *testing.T, svc *Service, sceneID int64, slot int, channels []byte) int64 {
	t.Helper()
	fixture, err := svc.CreateFixture(context.Background(), sceneID, slot, channels)
	if err != nil {
		t.Fatalf("CreateFixture(scene %d, slot %d) error: %v", sceneID, slot, err)
	}
	return fixture.ID
}

// detailIn builds a SetScene argument.
func detailIn(id int64, name string, external bool, fixtures ...models.Fixture) *SceneDetail {
	return &SceneDetail{
		Scene:    models.Scene{ID: id, Name: name, External: external},
		Fixtures: fixtures,
	}
}

func TestNewServiceValidatesConfig(t *testing.T) {
	if _, err := NewService(Config{Universe: dmx.NewUniverse(dmx.DefaultMapper())}); !errors.Is(err, errors.NotValid) {
		t.Errorf("NewService() without store error = %v, want NotValid", err)
	}
	if _, err := NewService(Config{Store: memory.NewStore()}); !errors.Is(err, errors.NotValid) {
		t.Errorf("NewService() without universe error = %v, want NotValid", err)
	}
}

func TestWarmupSetFixture(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, memory.NewStore(), false)

	sceneID := mustCreateScene(t, svc, "Warmup", false)
	if sceneID != 1 {
		t.Fatalf("scene id = %d, want 1", sceneID)
	}
	fixtureID := mustCreateFixture(t, svc, sceneID, 0, nil)
	if fixtureID != 1 {
		t.Fatalf("fixture id = %d, want 1", fixtureID)
	}

	want := []byte{255, 0, 0, 0, 0, 0}
	if _, err := svc.SetFixture(ctx, sceneID, fixtureID, want); err != nil {
		t.Fatalf("SetFixture() error: %v", err)
	}
	scene, err := svc.GetScene(ctx, sceneID)
	if err != nil {
		t.Fatalf("GetScene() error: %v", err)
	}
	if len(scene.Fixtures) != 1 || !bytes.Equal(scene.Fixtures[0].Channels, want) {
		t.Errorf("GetScene() fixtures = %+v, want channels %v", scene.Fixtures, want)
	}
}

func TestCreateSceneDuplicateName(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, memory.NewStore(), false)

	mustCreateScene(t, svc, "Warmup", false)
	if _, err := svc.CreateScene(ctx, "Warmup", false); !errors.Is(err, errors.AlreadyExists) {
		t.Fatalf("second CreateScene() error = %v, want AlreadyExists", err)
	}
	scenes, err := svc.ListScenes(ctx)
	if err != nil {
		t.Fatalf("ListScenes() error: %v", err)
	}
	if len(scenes) != 1 || scenes[0].Name != "Warmup" {
		t.Errorf("ListScenes() = %+v, want one Warmup", scenes)
	}
}

func TestCreateSceneEmptyName(t *testing.T) {
	svc, _ := newTestService(t, memory.NewStore(), false)
	if _, err := svc.CreateScene(context.Background(), "", false); !errors.Is(err, errors.NotValid) {
		t.Errorf("CreateScene(\"\") error = %v, want NotValid", err)
	}
}

func TestIDsAreNeverReused(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc, _ := newTestService(t, store, false)

	a := mustCreateScene(t, svc, "a", false)
	b := mustCreateScene(t, svc, "b", false)
	if err := svc.DeleteScene(ctx, b); err != nil {
		t.Fatalf("DeleteScene() error: %v", err)
	}
	if err := svc.DeleteScene(ctx, a); err != nil {
		t.Fatalf("DeleteScene() error: %v", err)
	}
	if c := mustCreateScene(t, svc, "c", false); c != 3 {
		t.Errorf("scene id after deletes = %d, want 3", c)
	}

	f1 := mustCreateFixture(t, svc, 0, 0, nil)
	if err := svc.DeleteFixture(ctx, f1); err != nil {
		t.Fatalf("DeleteFixture() error: %v", err)
	}

	// A restart keeps the sequences.
	svc, _ = newTestService(t, store, false)
	if d := mustCreateScene(t, svc, "d", false); d != 4 {
		t.Errorf("scene id after restart = %d, want 4", d)
	}
	if f2 := mustCreateFixture(t, svc, 0, 0, nil); f2 != f1+1 {
		t.Errorf("fixture id after restart = %d, want %d", f2, f1+1)
	}
}

func TestExternalSceneIsReadOnly(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, memory.NewStore(), false)

	mustCreateScene(t, svc, "house", false)
	fixtureID := mustCreateFixture(t, svc, 0, 0, nil)
	extID := mustCreateScene(t, svc, "broadcast", true)
	if extID != 2 {
		t.Fatalf("external scene id = %d, want 2", extID)
	}
	before, err := svc.GetScene(ctx, extID)
	if err != nil {
		t.Fatalf("GetScene() error: %v", err)
	}

	tests := []struct {
		name string
		op   func() error
	}{{
		name: "SetScene",
		op: func() error {
			_, err := svc.SetScene(ctx, &SceneDetail{Scene: before.Scene})
			return err
		},
	}, {
		name: "SetSceneClearingExternal",
		op: func() error {
			update := &SceneDetail{Scene: before.Scene}
			update.External = false
			update.Name = "renamed"
			_, err := svc.SetScene(ctx, update)
			return err
		},
	}, {
		name: "DeleteScene",
		op:   func() error { return svc.DeleteScene(ctx, extID) },
	}, {
		name: "AddFixturesToScene",
		op: func() error {
			_, err := svc.AddFixturesToScene(ctx, extID, []int64{fixtureID})
			return err
		},
	}, {
		name: "RemoveAllFixturesFromScene",
		op: func() error {
			_, err := svc.RemoveAllFixturesFromScene(ctx, extID)
			return err
		},
	}, {
		name: "CreateFixture",
		op: func() error {
			_, err := svc.CreateFixture(ctx, extID, 1, nil)
			return err
		},
	}, {
		name: "SetFixture",
		op: func() error {
			_, err := svc.SetFixture(ctx, extID, fixtureID, make([]byte, 6))
			return err
		},
	}}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if err := test.op(); !errors.Is(err, ErrExternalScene) {
				t.Errorf("error = %v, want ErrExternalScene", err)
			}
		})
	}

	after, err := svc.GetScene(ctx, extID)
	if err != nil {
		t.Fatalf("GetScene() error: %v", err)
	}
	if after.Name != before.Name || !after.External || len(after.FixtureIDs) != 0 {
		t.Errorf("external scene changed: %+v", after)
	}
}

func TestDeleteFixtureUsedByExternalScene(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc, _ := newTestService(t, store, false)

	sceneID := mustCreateScene(t, svc, "show", false)
	fixtureID := mustCreateFixture(t, svc, sceneID, 0, nil)
	if _, err := svc.SetScene(ctx, detailIn(sceneID, "show", true, models.Fixture{ID: fixtureID})); err != nil {
		t.Fatalf("SetScene() error: %v", err)
	}
	if err := svc.DeleteFixture(ctx, fixtureID); !errors.Is(err, ErrExternalScene) {
		t.Fatalf("DeleteFixture() error = %v, want ErrExternalScene", err)
	}
	if _, err := store.Get(ctx, storage.Fixtures, idKey(fixtureID)); err != nil {
		t.Errorf("fixture gone after refused delete: %v", err)
	}
}

func TestDeleteFixtureLeavesScenes(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, memory.NewStore(), false)

	a := mustCreateScene(t, svc, "a", false)
	b := mustCreateScene(t, svc, "b", false)
	keep := mustCreateFixture(t, svc, a, 0, nil)
	drop := mustCreateFixture(t, svc, a, 1, nil)
	if _, err := svc.AddFixturesToScene(ctx, b, []int64{drop}); err != nil {
		t.Fatalf("AddFixturesToScene() error: %v", err)
	}
	if err := svc.DeleteFixture(ctx, drop); err != nil {
		t.Fatalf("DeleteFixture() error: %v", err)
	}
	if err := svc.DeleteFixture(ctx, drop); !errors.Is(err, errors.NotFound) {
		t.Errorf("second DeleteFixture() error = %v, want NotFound", err)
	}
	for id, want := range map[int64][]int64{a: {keep}, b: nil} {
		scene, err := svc.GetScene(ctx, id)
		if err != nil {
			t.Fatalf("GetScene(%d) error: %v", id, err)
		}
		if len(scene.FixtureIDs) != len(want) || (len(want) > 0 && scene.FixtureIDs[0] != want[0]) {
			t.Errorf("scene %d fixtures = %v, want %v", id, scene.FixtureIDs, want)
		}
	}
}

func TestSetFixtureErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, memory.NewStore(), false)

	sceneID := mustCreateScene(t, svc, "a", false)
	fixtureID := mustCreateFixture(t, svc, sceneID, 0, nil)
	loose := mustCreateFixture(t, svc, 0, 1, nil)

	if _, err := svc.SetFixture(ctx, 99, fixtureID, make([]byte, 6)); !errors.Is(err, errors.NotFound) {
		t.Errorf("SetFixture(missing scene) error = %v, want NotFound", err)
	}
	if _, err := svc.SetFixture(ctx, sceneID, 99, make([]byte, 6)); !errors.Is(err, errors.NotFound) {
		t.Errorf("SetFixture(missing fixture) error = %v, want NotFound", err)
	}
	if _, err := svc.SetFixture(ctx, sceneID, loose, make([]byte, 6)); !errors.Is(err, errors.NotFound) {
		t.Errorf("SetFixture(fixture not on scene) error = %v, want NotFound", err)
	}
	if _, err := svc.SetFixture(ctx, sceneID, fixtureID, make([]byte, 5)); !errors.Is(err, dmx.ErrChannelLengthMismatch) {
		t.Errorf("SetFixture(short) error = %v, want ErrChannelLengthMismatch", err)
	}
}

func TestCreateFixtureErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, memory.NewStore(), false)
	sceneID := mustCreateScene(t, svc, "a", false)
	mustCreateFixture(t, svc, sceneID, 0, nil)

	if _, err := svc.CreateFixture(ctx, 0, 42, nil); !errors.Is(err, dmx.ErrInvalidIndex) {
		t.Errorf("CreateFixture(bad slot) error = %v, want ErrInvalidIndex", err)
	}
	if _, err := svc.CreateFixture(ctx, 0, 1, []byte{1}); !errors.Is(err, dmx.ErrChannelLengthMismatch) {
		t.Errorf("CreateFixture(short) error = %v, want ErrChannelLengthMismatch", err)
	}
	if _, err := svc.CreateFixture(ctx, 99, 1, nil); !errors.Is(err, errors.NotFound) {
		t.Errorf("CreateFixture(missing scene) error = %v, want NotFound", err)
	}
	if _, err := svc.CreateFixture(ctx, sceneID, 0, nil); !errors.Is(err, errors.NotValid) {
		t.Errorf("CreateFixture(taken slot) error = %v, want NotValid", err)
	}
}

func TestAddFixturesSlotConflict(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, memory.NewStore(), false)
	sceneID := mustCreateScene(t, svc, "a", false)
	first := mustCreateFixture(t, svc, sceneID, 2, nil)
	other := mustCreateFixture(t, svc, 0, 2, nil)

	if _, err := svc.AddFixturesToScene(ctx, sceneID, []int64{other}); !errors.Is(err, errors.NotValid) {
		t.Fatalf("AddFixturesToScene() error = %v, want NotValid", err)
	}
	scene, err := svc.AddFixturesToScene(ctx, sceneID, []int64{first, first})
	if err != nil {
		t.Fatalf("AddFixturesToScene(existing) error: %v", err)
	}
	if len(scene.FixtureIDs) != 1 {
		t.Errorf("fixtures = %v, want [%d]", scene.FixtureIDs, first)
	}
	if _, err := svc.AddFixturesToScene(ctx, sceneID, []int64{99}); !errors.Is(err, errors.NotFound) {
		t.Errorf("AddFixturesToScene(missing) error = %v, want NotFound", err)
	}
}

func TestSetSceneOverwrites(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, memory.NewStore(), false)
	sceneID := mustCreateScene(t, svc, "a", false)
	mustCreateScene(t, svc, "taken", false)
	f1 := mustCreateFixture(t, svc, sceneID, 0, nil)
	f2 := mustCreateFixture(t, svc, 0, 1, nil)

	got, err := svc.SetScene(ctx, detailIn(sceneID, "renamed", false, models.Fixture{ID: f2, Channels: []byte{1, 2, 3, 4, 5, 6}}))
	if err != nil {
		t.Fatalf("SetScene() error: %v", err)
	}
	if got.Name != "renamed" || len(got.Fixtures) != 1 || got.Fixtures[0].ID != f2 {
		t.Fatalf("SetScene() = %+v, want only fixture %d (dropping %d)", got, f2, f1)
	}
	if !bytes.Equal(got.Fixtures[0].Channels, []byte{1, 2, 3, 4, 5, 6}) {
		t.Errorf("fixture %d channels = %v", f2, got.Fixtures[0].Channels)
	}

	if _, err := svc.SetScene(ctx, detailIn(sceneID, "taken", false)); !errors.Is(err, errors.AlreadyExists) {
		t.Errorf("SetScene(taken name) error = %v, want AlreadyExists", err)
	}
	if _, err := svc.SetScene(ctx, detailIn(sceneID, "renamed", false, models.Fixture{ID: f2, Channels: []byte{1}})); !errors.Is(err, dmx.ErrChannelLengthMismatch) {
		t.Errorf("SetScene(short channels) error = %v, want ErrChannelLengthMismatch", err)
	}
	if _, err := svc.SetScene(ctx, detailIn(99, "x", false)); !errors.Is(err, errors.NotFound) {
		t.Errorf("SetScene(missing) error = %v, want NotFound", err)
	}
}

func TestSetCurrentScene(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t, memory.NewStore(), false)

	if _, err := svc.SetCurrentScene(ctx, 7); !errors.Is(err, ErrInvalidSceneID) {
		t.Fatalf("SetCurrentScene(missing) error = %v, want ErrInvalidSceneID", err)
	}
	if _, err := svc.CurrentScene(ctx); !errors.Is(err, errors.NotFound) {
		t.Fatalf("CurrentScene() error = %v, want NotFound", err)
	}

	sceneID := mustCreateScene(t, svc, "a", false)
	mustCreateFixture(t, svc, sceneID, 1, []byte{10, 20, 30, 40, 50, 60})
	if _, err := svc.SetCurrentScene(ctx, sceneID); err != nil {
		t.Fatalf("SetCurrentScene() error: %v", err)
	}
	current, err := svc.CurrentScene(ctx)
	if err != nil || current.ID != sceneID {
		t.Fatalf("CurrentScene() = %+v, %v", current, err)
	}
	id, universe := svc.State()
	if id != sceneID {
		t.Errorf("State() id = %d, want %d", id, sceneID)
	}
	if !bytes.Equal(universe[6:12], []byte{10, 20, 30, 40, 50, 60}) || universe[0] != 0 {
		t.Errorf("State() universe = %v", universe[:16])
	}
	events := rec.take()
	if len(events) != 2 || events[0].kind != "SetCurrentScene" || events[1].kind != "SceneUpdate" || events[1].universe != universe {
		t.Errorf("notifications = %+v", events)
	}
}

func TestLiveModePushesFixtureWrites(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t, memory.NewStore(), true)

	live := mustCreateScene(t, svc, "live", false)
	idle := mustCreateScene(t, svc, "idle", false)
	liveFixture := mustCreateFixture(t, svc, live, 0, nil)
	idleFixture := mustCreateFixture(t, svc, idle, 0, nil)
	if _, err := svc.SetCurrentScene(ctx, live); err != nil {
		t.Fatalf("SetCurrentScene() error: %v", err)
	}
	rec.take()

	if _, err := svc.SetFixture(ctx, idle, idleFixture, []byte{9, 9, 9, 9, 9, 9}); err != nil {
		t.Fatalf("SetFixture(idle) error: %v", err)
	}
	if _, universe := svc.State(); universe[0] != 0 {
		t.Errorf("idle scene write reached the universe: %v", universe[:6])
	}
	if events := rec.take(); len(events) != 0 {
		t.Errorf("idle scene write notified: %+v", events)
	}

	if _, err := svc.SetFixture(ctx, live, liveFixture, []byte{1, 2, 3, 4, 5, 6}); err != nil {
		t.Fatalf("SetFixture(live) error: %v", err)
	}
	_, universe := svc.State()
	if !bytes.Equal(universe[:6], []byte{1, 2, 3, 4, 5, 6}) {
		t.Errorf("universe = %v", universe[:6])
	}
	events := rec.take()
	if len(events) != 1 || events[0].sceneID != live || events[0].universe != universe {
		t.Errorf("notifications = %+v", events)
	}
}

func TestSharedFixtureUpdatesLiveUniverse(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, memory.NewStore(), false)

	live := mustCreateScene(t, svc, "live", false)
	other := mustCreateScene(t, svc, "other", false)
	shared := mustCreateFixture(t, svc, live, 3, nil)
	if _, err := svc.AddFixturesToScene(ctx, other, []int64{shared}); err != nil {
		t.Fatalf("AddFixturesToScene() error: %v", err)
	}
	if _, err := svc.SetCurrentScene(ctx, live); err != nil {
		t.Fatalf("SetCurrentScene() error: %v", err)
	}
	if _, err := svc.SetFixture(ctx, other, shared, []byte{7, 7, 7, 7, 7, 7}); err != nil {
		t.Fatalf("SetFixture() error: %v", err)
	}
	if _, universe := svc.State(); !bytes.Equal(universe[18:24], []byte{7, 7, 7, 7, 7, 7}) {
		t.Errorf("universe = %v", universe[18:24])
	}
}

func TestSetSceneUpdatesSharedFixtureOnLiveUniverse(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t, memory.NewStore(), false)

	live := mustCreateScene(t, svc, "live", false)
	other := mustCreateScene(t, svc, "other", false)
	shared := mustCreateFixture(t, svc, live, 0, []byte{1, 1, 1, 1, 1, 1})
	if _, err := svc.AddFixturesToScene(ctx, other, []int64{shared}); err != nil {
		t.Fatalf("AddFixturesToScene() error: %v", err)
	}
	if _, err := svc.SetCurrentScene(ctx, live); err != nil {
		t.Fatalf("SetCurrentScene() error: %v", err)
	}
	rec.take()

	update := detailIn(other, "other", false, models.Fixture{ID: shared, Channels: []byte{9, 9, 9, 9, 9, 9}})
	if _, err := svc.SetScene(ctx, update); err != nil {
		t.Fatalf("SetScene() error: %v", err)
	}
	owner, universe := svc.State()
	if owner != live || !bytes.Equal(universe[0:6], []byte{9, 9, 9, 9, 9, 9}) {
		t.Errorf("State() = %d, %v", owner, universe[0:6])
	}
	events := rec.take()
	if len(events) != 1 || events[0].kind != "SceneUpdate" || events[0].sceneID != live || events[0].universe[0] != 9 {
		t.Errorf("events = %+v, want one SceneUpdate for scene %d", events, live)
	}

	// A rename that touches no shared values leaves the live scene alone.
	if _, err := svc.SetScene(ctx, detailIn(other, "renamed", false, models.Fixture{ID: shared})); err != nil {
		t.Fatalf("SetScene() error: %v", err)
	}
	if events := rec.take(); len(events) != 0 {
		t.Errorf("events after rename = %+v, want none", events)
	}
}

func TestDeleteCurrentScene(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc, rec := newTestService(t, store, false)

	sceneID := mustCreateScene(t, svc, "a", false)
	mustCreateFixture(t, svc, sceneID, 0, []byte{1, 1, 1, 1, 1, 1})
	if _, err := svc.SetCurrentScene(ctx, sceneID); err != nil {
		t.Fatalf("SetCurrentScene() error: %v", err)
	}
	rec.take()

	if err := svc.DeleteScene(ctx, sceneID); err != nil {
		t.Fatalf("DeleteScene() error: %v", err)
	}
	if _, err := svc.CurrentScene(ctx); !errors.Is(err, errors.NotFound) {
		t.Errorf("CurrentScene() error = %v, want NotFound", err)
	}
	id, universe := svc.State()
	if id != 0 || universe != [dmx.UniverseSize]byte{} {
		t.Errorf("State() = %d, %v", id, universe[:6])
	}
	events := rec.take()
	if len(events) != 2 || events[0].kind != "SetCurrentScene" || events[0].sceneID != 0 || events[1].sceneID != 0 {
		t.Errorf("notifications = %+v", events)
	}

	svc, _ = newTestService(t, store, false)
	if id := svc.CurrentSceneID(); id != 0 {
		t.Errorf("CurrentSceneID() after restart = %d, want 0", id)
	}
}

func TestLoadRestoresCurrentScene(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc, _ := newTestService(t, store, false)

	sceneID := mustCreateScene(t, svc, "a", false)
	mustCreateFixture(t, svc, sceneID, 7, []byte{4, 4, 4, 4, 4, 4})
	if _, err := svc.SetCurrentScene(ctx, sceneID); err != nil {
		t.Fatalf("SetCurrentScene() error: %v", err)
	}
	_, want := svc.State()

	restarted, _ := newTestService(t, store, false)
	id, got := restarted.State()
	if id != sceneID || got != want {
		t.Errorf("State() after restart = %d, %v", id, got[42:48])
	}
}

func TestLoadClearsDanglingCurrentScene(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	if err := store.Put(ctx, storage.State, currentSceneKey, []byte("5")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	svc, _ := newTestService(t, store, false)
	if id := svc.CurrentSceneID(); id != 0 {
		t.Errorf("CurrentSceneID() = %d, want 0", id)
	}
	doc, err := store.Get(ctx, storage.State, currentSceneKey)
	if err != nil || string(doc) != "0" {
		t.Errorf("stored pointer = %q, %v", doc, err)
	}
}

func TestConcurrentSetFixture(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, memory.NewStore(), true)
	sceneID := mustCreateScene(t, svc, "a", false)
	var fixtures []int64
	for slot := 0; slot < 4; slot++ {
		fixtures = append(fixtures, mustCreateFixture(t, svc, sceneID, slot, nil))
	}
	if _, err := svc.SetCurrentScene(ctx, sceneID); err != nil {
		t.Fatalf("SetCurrentScene() error: %v", err)
	}

	var wg sync.WaitGroup
	for i, id := range fixtures {
		wg.Add(1)
		go func(v byte, id int64) {
			defer wg.Done()
			for n := 0; n < 20; n++ {
				if _, err := svc.SetFixture(ctx, sceneID, id, bytes.Repeat([]byte{v}, 6)); err != nil {
					t.Errorf("SetFixture(%d) error: %v", id, err)
					return
				}
			}
		}(byte(i+1), id)
	}
	wg.Wait()

	_, universe := svc.State()
	for i := range fixtures {
		if got := universe[i*6]; got != byte(i+1) {
			t.Errorf("slot %d channel = %d, want %d", i, got, i+1)
		}
	}
}

func TestRemoveAllFixturesFromCurrentScene(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t, memory.NewStore(), false)
	sceneID := mustCreateScene(t, svc, "a", false)
	fixtureID := mustCreateFixture(t, svc, sceneID, 0, []byte{9, 9, 9, 9, 9, 9})
	if _, err := svc.SetCurrentScene(ctx, sceneID); err != nil {
		t.Fatalf("SetCurrentScene() error: %v", err)
	}
	rec.take()

	scene, err := svc.RemoveAllFixturesFromScene(ctx, sceneID)
	if err != nil {
		t.Fatalf("RemoveAllFixturesFromScene() error: %v", err)
	}
	if len(scene.FixtureIDs) != 0 {
		t.Errorf("fixtures = %v, want none", scene.FixtureIDs)
	}
	if _, universe := svc.State(); universe != ([dmx.UniverseSize]byte{}) {
		t.Error("live universe not cleared")
	}
	if events := rec.take(); len(events) != 1 || events[0].kind != "SceneUpdate" || events[0].sceneID != sceneID {
		t.Errorf("events = %+v, want one SceneUpdate", events)
	}

	// The fixture survives and can go back on the stage.
	scene, err = svc.AddFixturesToScene(ctx, sceneID, []int64{fixtureID})
	if err != nil {
		t.Fatalf("AddFixturesToScene() error: %v", err)
	}
	if len(scene.Fixtures) != 1 || !bytes.Equal(scene.Fixtures[0].Channels, []byte{9, 9, 9, 9, 9, 9}) {
		t.Errorf("scene after re-add = %+v", scene)
	}
	if _, universe := svc.State(); universe[0] != 9 {
		t.Errorf("live channel 0 = %d, want 9", universe[0])
	}
}

func TestConcurrentCreateScene(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, memory.NewStore(), false)
	const n = 16

	ids := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			scene, err := svc.CreateScene(ctx, "scene-"+strconv.Itoa(i), false)
			if err != nil {
				t.Errorf("CreateScene(%d) error: %v", i, err)
				return
			}
			ids[i] = scene.ID
		}(i)
	}
	wg.Wait()
	seen := make(map[int64]bool, n)
	for i, id := range ids {
		if id < 1 || id > n || seen[id] {
			t.Fatalf("scene %d got id %d; ids = %v", i, id, ids)
		}
		seen[id] = true
	}

	var (
		mu      sync.Mutex
		won     []int64
		refused int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scene, err := svc.CreateScene(ctx, "dup", false)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won = append(won, scene.ID)
			case errors.Is(err, errors.AlreadyExists):
				refused++
			default:
				t.Errorf("CreateScene(dup) error: %v", err)
			}
		}()
	}
	wg.Wait()
	if len(won) != 1 || refused != n-1 {
		t.Fatalf("CreateScene(dup): %d won %v, %d refused", len(won), won, refused)
	}
	if won[0] != n+1 {
		t.Errorf("dup id = %d, want %d", won[0], n+1)
	}
	scenes, err := svc.ListScenes(ctx)
	if err != nil {
		t.Fatalf("ListScenes() error: %v", err)
	}
	if len(scenes) != n+1 {
		t.Errorf("ListScenes() returned %d scenes, want %d", len(scenes), n+1)
	}
}

// faultyStore fails Put and Delete calls for which fail returns true.
type faultyStore struct {
	storage.Store
	mu   sync.Mutex
	fail func(op, collection, key string) bool
}

func (s *faultyStore) failing(op, collection, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fail != nil && s.fail(op, collection, key)
}

func (s *faultyStore) setFail(fail func(op, collection, key string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *faultyStore) Put(ctx context.Context, collection, key string, doc []byte) error {
	if s.failing("put", collection, key) {
		return errors.New("disk on fire")
	}
	return s.Store.Put(ctx, collection, key, doc)
}

func (s *faultyStore) Delete(ctx context.Context, collection, key string) error {
	if s.failing("delete", collection, key) {
		return errors.New("disk on fire")
	}
	return s.Store.Delete(ctx, collection, key)
}

func TestDeleteFixtureFailureRestoresScenes(t *testing.T) {
	ctx := context.Background()
	store := &faultyStore{Store: memory.NewStore()}
	svc, _ := newTestService(t, store, false)

	a := mustCreateScene(t, svc, "a", false)
	b := mustCreateScene(t, svc, "b", false)
	fixtureID := mustCreateFixture(t, svc, a, 0, nil)
	if _, err := svc.AddFixturesToScene(ctx, b, []int64{fixtureID}); err != nil {
		t.Fatalf("AddFixturesToScene() error: %v", err)
	}

	// The second scene write fails after the first went through.
	store.setFail(func(op, collection, key string) bool {
		return op == "put" && collection == storage.Scenes && key == strconv.FormatInt(b, 10)
	})
	if err := svc.DeleteFixture(ctx, fixtureID); err == nil {
		t.Fatal("DeleteFixture() succeeded with a failing store")
	}
	store.setFail(nil)

	for _, id := range []int64{a, b} {
		scene, err := svc.GetScene(ctx, id)
		if err != nil {
			t.Fatalf("GetScene(%d) error: %v", id, err)
		}
		if len(scene.FixtureIDs) != 1 || scene.FixtureIDs[0] != fixtureID {
			t.Errorf("scene %d fixtures = %v, want [%d]", id, scene.FixtureIDs, fixtureID)
		}
	}

	// Failing the final fixture delete also puts both scenes back.
	store.setFail(func(op, collection, _ string) bool {
		return op == "delete" && collection == storage.Fixtures
	})
	if err := svc.DeleteFixture(ctx, fixtureID); err == nil {
		t.Fatal("DeleteFixture() succeeded with a failing store")
	}
	store.setFail(nil)
	for _, id := range []int64{a, b} {
		scene, err := svc.GetScene(ctx, id)
		if err != nil {
			t.Fatalf("GetScene(%d) error: %v", id, err)
		}
		if len(scene.FixtureIDs) != 1 {
			t.Errorf("scene %d fixtures = %v after failed delete", id, scene.FixtureIDs)
		}
	}
}

func TestCreateFixtureFailureLeavesNoOrphan(t *testing.T) {
	ctx := context.Background()
	store := &faultyStore{Store: memory.NewStore()}
	svc, _ := newTestService(t, store, false)
	sceneID := mustCreateScene(t, svc, "a", false)

	store.setFail(func(op, collection, _ string) bool {
		return op == "put" && collection == storage.Scenes
	})
	if _, err := svc.CreateFixture(ctx, sceneID, 0, nil); err == nil {
		t.Fatal("CreateFixture() succeeded with a failing store")
	}
	store.setFail(nil)

	fixtures, err := store.List(ctx, storage.Fixtures)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(fixtures) != 0 {
		t.Errorf("fixtures after failed create = %d, want 0", len(fixtures))
	}
	scene, err := svc.GetScene(ctx, sceneID)
	if err != nil {
		t.Fatalf("GetScene() error: %v", err)
	}
	if len(scene.FixtureIDs) != 0 {
		t.Errorf("scene fixtures = %v, want none", scene.FixtureIDs)
	}
}
