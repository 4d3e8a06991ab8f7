package stage

import (
	"context"

	"github.com/juju/errors"

	"github.com/Vasu1712/scenyx-stage/internal/models"
	"github.com/Vasu1712/scenyx-stage/internal/storage"
)

// CreateFixture adds a fixture on slot. Empty channels start the fixture
// dark. A non-zero sceneID also puts the new fixture on that scene's stage.
func (s *Service) CreateFixture(ctx context.Context, sceneID int64, slot int, channels []byte) (*models.Fixture, error) {
	r, err := s.mapper.Range(slot)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(channels) == 0 {
		channels = make([]byte, r.Width())
	} else if _, err := s.mapper.Validate(slot, channels); err != nil {
		return nil, errors.Trace(err)
	}

	s.catalog.Lock()
	defer s.catalog.Unlock()

	var scene *models.Scene
	if sceneID != 0 {
		defer s.lockScenes(sceneID)()
		if scene, err = s.readScene(ctx, sceneID); err != nil {
			return nil, errors.Trace(err)
		}
		if scene.External {
			return nil, errors.Annotatef(ErrExternalScene, "scene %d", sceneID)
		}
		detail, err := s.resolve(ctx, scene)
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, other := range detail.Fixtures {
			if other.Slot == slot {
				return nil, errors.NotValidf("slot %d on scene %d: already used by fixture %d", slot, sceneID, other.ID)
			}
		}
	}

	existing, err := s.listFixtureIDs(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	id, err := s.nextID(ctx, fixtureSeqKey, existing)
	if err != nil {
		return nil, errors.Annotate(err, "allocating fixture id")
	}
	fixture := &models.Fixture{ID: id, Slot: slot, Channels: append([]byte(nil), channels...)}
	if err := s.writeFixture(ctx, fixture); err != nil {
		return nil, errors.Trace(err)
	}
	logger.Infof("created fixture %d on slot %d", id, slot)

	if scene == nil {
		return fixture, nil
	}
	scene.FixtureIDs = append(scene.FixtureIDs, id)
	if err := s.writeScene(ctx, scene); err != nil {
		// The request context may be what failed; the rollback must not be.
		if derr := s.store.Delete(context.WithoutCancel(ctx), storage.Fixtures, idKey(id)); derr != nil {
			logger.Errorf("fixture %d left without a scene: %v", id, derr)
		}
		return nil, errors.Annotatef(err, "adding fixture %d to scene %d", id, sceneID)
	}
	logger.Infof("added fixture %d to scene %d", id, sceneID)
	if applied, err := s.universe.WriteFixture(sceneID, slot, fixture.Channels); err != nil {
		logger.Errorf("writing fixture %d to live universe: %v", id, err)
	} else if applied && s.liveMode {
		_, universe := s.universe.Snapshot()
		s.notifier.SceneUpdate(sceneID, universe)
	}
	return fixture, nil
}

// DeleteFixture removes a fixture and takes it off every scene's stage. A
// fixture used by an external scene cannot be deleted.
func (s *Service) DeleteFixture(ctx context.Context, id int64) error {
	s.catalog.Lock()
	defer s.catalog.Unlock()

	if _, err := s.readFixture(ctx, id); err != nil {
		return errors.Trace(err)
	}
	scenes, err := s.listScenes(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	var users []*models.Scene
	var userIDs []int64
	for _, scene := range scenes {
		if !scene.HasFixture(id) {
			continue
		}
		if scene.External {
			return errors.Annotatef(ErrExternalScene, "fixture %d is used by scene %d", id, scene.ID)
		}
		users = append(users, scene)
		userIDs = append(userIDs, scene.ID)
	}
	defer s.lockScenes(userIDs...)()
	s.fixtures.Lock(id)
	defer s.fixtures.Unlock(id)

	// Scenes are rewritten first and the fixture deleted last. On failure
	// the scenes already rewritten get their old stage back.
	var written []*models.Scene
	restore := func() {
		ctx := context.WithoutCancel(ctx)
		for _, scene := range written {
			if err := s.writeScene(ctx, scene); err != nil {
				logger.Errorf("restoring scene %d after failed delete of fixture %d: %v", scene.ID, id, err)
			}
		}
	}
	for _, scene := range users {
		stripped := *scene
		stripped.FixtureIDs = removeID(scene.FixtureIDs, id)
		if err := s.writeScene(ctx, &stripped); err != nil {
			restore()
			return errors.Annotatef(err, "removing fixture %d from scene %d", id, scene.ID)
		}
		written = append(written, scene)
	}
	if err := s.store.Delete(ctx, storage.Fixtures, idKey(id)); err != nil {
		restore()
		return errors.Trace(err)
	}
	for _, scene := range users {
		scene.FixtureIDs = removeID(scene.FixtureIDs, id)
	}
	logger.Infof("deleted fixture %d, removed from %d scenes", id, len(users))

	for _, scene := range users {
		if live, universe, err := s.refreshLive(ctx, scene); err != nil {
			logger.Errorf("refreshing live universe: %v", err)
		} else if live {
			s.notifier.SceneUpdate(scene.ID, universe)
		}
	}
	return nil
}

// SetFixture writes new channel values for a fixture on a scene's stage.
// When the scene is current the values also land on the live universe, and
// in live mode the backend gets a SceneUpdate.
func (s *Service) SetFixture(ctx context.Context, sceneID int64, fixtureID int64, channels []byte) (*models.Fixture, error) {
	defer s.lockScenes(sceneID)()

	scene, err := s.readScene(ctx, sceneID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if scene.External {
		return nil, errors.Annotatef(ErrExternalScene, "scene %d", sceneID)
	}
	if !scene.HasFixture(fixtureID) {
		return nil, errors.NotFoundf("fixture %d on scene %d", fixtureID, sceneID)
	}

	s.fixtures.Lock(fixtureID)
	defer s.fixtures.Unlock(fixtureID)

	fixture, err := s.readFixture(ctx, fixtureID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if _, err := s.mapper.Validate(fixture.Slot, channels); err != nil {
		return nil, errors.Annotatef(err, "fixture %d", fixtureID)
	}
	fixture.Channels = append([]byte(nil), channels...)
	if err := s.writeFixture(ctx, fixture); err != nil {
		return nil, errors.Trace(err)
	}
	logger.Debugf("set fixture %d on scene %d to %v", fixtureID, sceneID, channels)

	// The fixture may be shared with the current scene even when sceneID
	// is not current.
	owner := s.universe.Owner()
	if owner == 0 {
		return fixture, nil
	}
	if owner != sceneID {
		current, err := s.readScene(ctx, owner)
		if err != nil || !current.HasFixture(fixtureID) {
			return fixture, nil
		}
	}
	applied, err := s.universe.WriteFixture(owner, fixture.Slot, fixture.Channels)
	if err != nil {
		logger.Errorf("writing fixture %d to live universe: %v", fixtureID, err)
		return fixture, nil
	}
	if applied && s.liveMode {
		_, universe := s.universe.Snapshot()
		s.notifier.SceneUpdate(owner, universe)
	}
	return fixture, nil
}

func removeID(ids []int64, id int64) []int64 {
	kept := make([]int64, 0, len(ids))
	for _, v := range ids {
		if v != id {
			kept = append(kept, v)
		}
	}
	return kept
}
