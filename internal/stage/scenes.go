package stage

import (
	"context"

	"github.com/juju/errors"

	"github.com/Vasu1712/scenyx-stage/internal/dmx"
	"github.com/Vasu1712/scenyx-stage/internal/models"
	"github.com/Vasu1712/scenyx-stage/internal/storage"
)

// ListScenes returns every scene ordered by id, fixtures resolved.
func (s *Service) ListScenes(ctx context.Context) ([]*SceneDetail, error) {
	scenes, err := s.listScenes(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	out := make([]*SceneDetail, 0, len(scenes))
	for _, scene := range scenes {
		detail, err := s.resolve(ctx, scene)
		if err != nil {
			return nil, errors.Trace(err)
		}
		out = append(out, detail)
	}
	return out, nil
}

// GetScene returns the scene with the given id.
func (s *Service) GetScene(ctx context.Context, id int64) (*SceneDetail, error) {
	scene, err := s.readScene(ctx, id)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return s.resolve(ctx, scene)
}

// CreateScene adds an empty scene. Names must be unique.
func (s *Service) CreateScene(ctx context.Context, name string, external bool) (*SceneDetail, error) {
	if name == "" {
		return nil, errors.NotValidf("empty scene name")
	}
	s.catalog.Lock()
	defer s.catalog.Unlock()

	scenes, err := s.listScenes(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	ids := make([]int64, 0, len(scenes))
	for _, scene := range scenes {
		if scene.Name == name {
			return nil, errors.AlreadyExistsf("scene named %q", name)
		}
		ids = append(ids, scene.ID)
	}
	id, err := s.nextID(ctx, sceneSeqKey, ids)
	if err != nil {
		return nil, errors.Annotate(err, "allocating scene id")
	}
	scene := &models.Scene{ID: id, Name: name, External: external}
	if err := s.writeScene(ctx, scene); err != nil {
		return nil, errors.Trace(err)
	}
	logger.Infof("created scene %d (%q)", id, name)
	return &SceneDetail{Scene: *scene}, nil
}

// SetScene overwrites the name, external flag and fixture list of an
// existing scene. Fixtures carrying channel values have those values
// written; their slots stay as stored.
func (s *Service) SetScene(ctx context.Context, update *SceneDetail) (*SceneDetail, error) {
	if update.Name == "" {
		return nil, errors.NotValidf("empty scene name")
	}
	s.catalog.Lock()
	defer s.catalog.Unlock()
	// The owner cannot change while the catalog is held. Its scene is locked
	// too because changed fixtures may also be on its stage.
	owner := s.universe.Owner()
	if owner != 0 && owner != update.ID {
		defer s.lockScenes(update.ID, owner)()
	} else {
		defer s.lockScenes(update.ID)()
	}

	scene, err := s.readScene(ctx, update.ID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if scene.External {
		return nil, errors.Annotatef(ErrExternalScene, "scene %d", scene.ID)
	}
	scenes, err := s.listScenes(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	for _, other := range scenes {
		if other.ID != scene.ID && other.Name == update.Name {
			return nil, errors.AlreadyExistsf("scene named %q", update.Name)
		}
	}

	// Validate everything before the first write.
	var (
		ids      []int64
		fixtures []*models.Fixture
		changed  []*models.Fixture
	)
	for _, entry := range update.Fixtures {
		fixture, err := s.readFixture(ctx, entry.ID)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if containsID(ids, fixture.ID) {
			continue
		}
		if len(entry.Channels) > 0 {
			if _, err := s.mapper.Validate(fixture.Slot, entry.Channels); err != nil {
				return nil, errors.Annotatef(err, "fixture %d", fixture.ID)
			}
			fixture.Channels = append([]byte(nil), entry.Channels...)
			changed = append(changed, fixture)
		}
		ids = append(ids, fixture.ID)
		fixtures = append(fixtures, fixture)
	}
	if err := checkSlots(scene.ID, fixtures); err != nil {
		return nil, errors.Trace(err)
	}

	for _, fixture := range changed {
		s.fixtures.Lock(fixture.ID)
		err := s.writeFixture(ctx, fixture)
		s.fixtures.Unlock(fixture.ID)
		if err != nil {
			return nil, errors.Trace(err)
		}
	}
	scene.Name = update.Name
	scene.External = update.External
	scene.FixtureIDs = ids
	if err := s.writeScene(ctx, scene); err != nil {
		return nil, errors.Trace(err)
	}
	logger.Infof("set scene %d (%q) with %d fixtures", scene.ID, scene.Name, len(ids))

	live := scene
	if owner != 0 && owner != scene.ID {
		live = nil
		current, err := s.readScene(ctx, owner)
		if err != nil {
			logger.Errorf("reading current scene %d: %v", owner, err)
		} else if sharesAny(current, changed) {
			live = current
		}
	}
	if live != nil {
		if ok, universe, err := s.refreshLive(ctx, live); err != nil {
			logger.Errorf("refreshing live universe: %v", err)
		} else if ok {
			s.notifier.SceneUpdate(live.ID, universe)
		}
	}
	return s.resolve(ctx, scene)
}

// DeleteScene removes a scene. Deleting the current scene clears the
// pointer and blacks out the universe.
func (s *Service) DeleteScene(ctx context.Context, id int64) error {
	s.catalog.Lock()
	defer s.catalog.Unlock()
	defer s.lockScenes(id)()

	scene, err := s.readScene(ctx, id)
	if err != nil {
		return errors.Trace(err)
	}
	if scene.External {
		return errors.Annotatef(ErrExternalScene, "scene %d", id)
	}
	wasCurrent := s.current.Load() == id
	if wasCurrent {
		if err := s.writeCounter(ctx, currentSceneKey, 0); err != nil {
			return errors.Annotate(err, "clearing current scene")
		}
		s.current.Store(0)
	}
	if err := s.store.Delete(ctx, storage.Scenes, idKey(id)); err != nil {
		return errors.Trace(err)
	}
	logger.Infof("deleted scene %d (%q)", id, scene.Name)

	if wasCurrent {
		s.universe.SnapshotAndReset()
		logger.Infof("current scene %d deleted, universe cleared", id)
		s.notifier.SetCurrentScene(0)
		s.notifier.SceneUpdate(0, [dmx.UniverseSize]byte{})
	}
	return nil
}

// AddFixturesToScene appends existing fixtures to a scene's stage. Fixtures
// already on the stage are left where they are.
func (s *Service) AddFixturesToScene(ctx context.Context, sceneID int64, fixtureIDs []int64) (*SceneDetail, error) {
	s.catalog.Lock()
	defer s.catalog.Unlock()
	defer s.lockScenes(sceneID)()

	scene, err := s.readScene(ctx, sceneID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if scene.External {
		return nil, errors.Annotatef(ErrExternalScene, "scene %d", sceneID)
	}
	detail, err := s.resolve(ctx, scene)
	if err != nil {
		return nil, errors.Trace(err)
	}
	fixtures := make([]*models.Fixture, 0, len(detail.Fixtures)+len(fixtureIDs))
	for i := range detail.Fixtures {
		fixtures = append(fixtures, &detail.Fixtures[i])
	}
	added := 0
	for _, id := range fixtureIDs {
		if scene.HasFixture(id) {
			continue
		}
		fixture, err := s.readFixture(ctx, id)
		if err != nil {
			return nil, errors.Trace(err)
		}
		fixtures = append(fixtures, fixture)
		scene.FixtureIDs = append(scene.FixtureIDs, id)
		added++
	}
	if err := checkSlots(sceneID, fixtures); err != nil {
		return nil, errors.Trace(err)
	}
	if added == 0 {
		return detail, nil
	}
	if err := s.writeScene(ctx, scene); err != nil {
		return nil, errors.Trace(err)
	}
	logger.Infof("added %d fixtures to scene %d", added, sceneID)

	if live, universe, err := s.refreshLive(ctx, scene); err != nil {
		logger.Errorf("refreshing live universe: %v", err)
	} else if live {
		s.notifier.SceneUpdate(sceneID, universe)
	}
	return s.resolve(ctx, scene)
}

// RemoveAllFixturesFromScene empties a scene's stage. The fixtures
// themselves are kept.
func (s *Service) RemoveAllFixturesFromScene(ctx context.Context, sceneID int64) (*SceneDetail, error) {
	s.catalog.Lock()
	defer s.catalog.Unlock()
	defer s.lockScenes(sceneID)()

	scene, err := s.readScene(ctx, sceneID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if scene.External {
		return nil, errors.Annotatef(ErrExternalScene, "scene %d", sceneID)
	}
	scene.FixtureIDs = nil
	if err := s.writeScene(ctx, scene); err != nil {
		return nil, errors.Trace(err)
	}
	logger.Infof("removed all fixtures from scene %d", sceneID)

	if live, universe, err := s.refreshLive(ctx, scene); err != nil {
		logger.Errorf("refreshing live universe: %v", err)
	} else if live {
		s.notifier.SceneUpdate(sceneID, universe)
	}
	return &SceneDetail{Scene: *scene}, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// sharesAny reports whether any of fixtures is on scene's stage.
func sharesAny(scene *models.Scene, fixtures []*models.Fixture) bool {
	for _, f := range fixtures {
		if scene.HasFixture(f.ID) {
			return true
		}
	}
	return false
}
