package stage

import (
	"context"

	"github.com/juju/errors"

	"github.com/Vasu1712/scenyx-stage/internal/dmx"
)

// CurrentSceneID returns the id of the current scene, zero if none.
func (s *Service) CurrentSceneID() int64 {
	return s.current.Load()
}

// CurrentScene returns the current scene.
func (s *Service) CurrentScene(ctx context.Context) (*SceneDetail, error) {
	id := s.current.Load()
	if id == 0 {
		return nil, errors.NotFoundf("current scene")
	}
	return s.GetScene(ctx, id)
}

// SetCurrentScene makes id the current scene and renders it into the live
// universe. The backend is told about the switch and the new contents.
func (s *Service) SetCurrentScene(ctx context.Context, id int64) (*SceneDetail, error) {
	if id <= 0 {
		return nil, errors.Annotatef(ErrInvalidSceneID, "scene %d", id)
	}
	s.catalog.Lock()
	defer s.catalog.Unlock()
	// Holding the scene lock keeps SetFixture on id from slipping between
	// the render and the ownership change.
	defer s.lockScenes(id)()

	scene, err := s.readScene(ctx, id)
	if errors.Is(err, errors.NotFound) {
		return nil, errors.Annotatef(ErrInvalidSceneID, "scene %d", id)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	universe, err := s.render(ctx, scene)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := s.writeCounter(ctx, currentSceneKey, id); err != nil {
		return nil, errors.Annotate(err, "saving current scene")
	}
	s.current.Store(id)
	s.universe.Replace(id, universe)
	logger.Infof("current scene is now %d (%q)", id, scene.Name)

	s.notifier.SetCurrentScene(id)
	s.notifier.SceneUpdate(id, universe)
	return s.resolve(ctx, scene)
}

// State returns the current scene id and a copy of the live universe.
func (s *Service) State() (int64, [dmx.UniverseSize]byte) {
	owner, universe := s.universe.Snapshot()
	return owner, universe
}
