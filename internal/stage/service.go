// Package stage owns the scene and fixture catalog, the current-scene
// pointer and the live universe, and keeps the three consistent.
//
// Locking: operations that change catalog-wide facts (names, id sequences,
// fixture membership, the current pointer) hold the catalog mutex. Writes to
// a single scene or fixture also hold that entity's key lock. Locks are
// always taken in the order catalog, scenes (ascending id), fixture.
package stage

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/im7mortal/kmutex"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/Vasu1712/scenyx-stage/internal/dmx"
	"github.com/Vasu1712/scenyx-stage/internal/models"
	"github.com/Vasu1712/scenyx-stage/internal/storage"
)

var logger = loggo.GetLogger("stage.service")

const (
	// ErrExternalScene is the cause of any mutation refused because the
	// scene is external.
	ErrExternalScene = errors.ConstError("external scene is read-only")
	// ErrInvalidSceneID is the cause of a current-scene switch to a scene
	// that does not exist.
	ErrInvalidSceneID = errors.ConstError("invalid scene id")
)

// Keys in the state collection.
const (
	currentSceneKey = "currentSceneId"
	sceneSeqKey     = "sceneSeq"
	fixtureSeqKey   = "fixtureSeq"
)

// Notifier receives live-state changes bound for the lighting backend.
// Implementations must not block.
type Notifier interface {
	SceneUpdate(sceneID int64, universe [dmx.UniverseSize]byte)
	SetCurrentScene(sceneID int64)
}

type nopNotifier struct{}

func (nopNotifier) SceneUpdate(int64, [dmx.UniverseSize]byte) {}
func (nopNotifier) SetCurrentScene(int64)                     {}

// Config holds the collaborators of a Service.
type Config struct {
	Store    storage.Store
	Universe *dmx.Universe
	Notifier Notifier
	// LiveMode pushes a SceneUpdate after every fixture write that lands on
	// the live universe.
	LiveMode bool
}

// Validate checks the config.
func (c Config) Validate() error {
	if c.Store == nil {
		return errors.NotValidf("nil Store")
	}
	if c.Universe == nil {
		return errors.NotValidf("nil Universe")
	}
	return nil
}

// Service implements the stage operations.
type Service struct {
	store    storage.Store
	universe *dmx.Universe // Live buffer, owned by the current scene
	mapper   *dmx.Mapper   // Same map the universe writes through
	notifier Notifier
	liveMode bool

	catalog  sync.Mutex     // Names, id sequences, membership and the current pointer
	scenes   *kmutex.Kmutex // Per-scene locks, keyed by scene id
	fixtures *kmutex.Kmutex // Per-fixture locks, keyed by fixture id
	current  atomic.Int64   // Cached current scene id, zero if none
}

// NewService returns a Service. Call Load before serving requests.
func NewService(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Service{
		store:    cfg.Store,
		universe: cfg.Universe,
		mapper:   cfg.Universe.Mapper(),
		notifier: notifier,
		liveMode: cfg.LiveMode,
		scenes:   kmutex.New(),
		fixtures: kmutex.New(),
	}, nil
}

// Load restores the current-scene pointer and renders its universe. A
// pointer to a scene that no longer exists is cleared.
func (s *Service) Load(ctx context.Context) error {
	s.catalog.Lock()
	defer s.catalog.Unlock()

	id, err := s.readCounter(ctx, currentSceneKey)
	if err != nil {
		return errors.Annotate(err, "reading current scene")
	}
	if id == 0 {
		logger.Infof("no current scene")
		return nil
	}
	scene, err := s.readScene(ctx, id)
	if errors.Is(err, errors.NotFound) {
		logger.Warningf("current scene %d no longer exists, clearing", id)
		return errors.Trace(s.writeCounter(ctx, currentSceneKey, 0))
	}
	if err != nil {
		return errors.Trace(err)
	}
	s.current.Store(id)
	universe, err := s.render(ctx, scene)
	if err != nil {
		logger.Errorf("rendering current scene %d: %v; starting dark", id, err)
		universe = [dmx.UniverseSize]byte{}
	}
	s.universe.Replace(id, universe)
	logger.Infof("current scene is %d (%q)", id, scene.Name)
	return nil
}

// SceneDetail is a scene with its fixtures resolved.
type SceneDetail struct {
	models.Scene
	Fixtures []models.Fixture
}

func idKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (s *Service) readScene(ctx context.Context, id int64) (*models.Scene, error) {
	doc, err := s.store.Get(ctx, storage.Scenes, idKey(id))
	if errors.Is(err, errors.NotFound) {
		return nil, errors.NotFoundf("scene %d", id)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	var scene models.Scene
	if err := json.Unmarshal(doc, &scene); err != nil {
		return nil, errors.Annotatef(err, "decoding scene %d", id)
	}
	return &scene, nil
}

func (s *Service) writeScene(ctx context.Context, scene *models.Scene) error {
	doc, err := json.Marshal(scene)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(s.store.Put(ctx, storage.Scenes, idKey(scene.ID), doc))
}

// listScenes returns every scene ordered by id.
func (s *Service) listScenes(ctx context.Context) ([]*models.Scene, error) {
	docs, err := s.store.List(ctx, storage.Scenes)
	if err != nil {
		return nil, errors.Trace(err)
	}
	scenes := make([]*models.Scene, 0, len(docs))
	for key, doc := range docs {
		var scene models.Scene
		if err := json.Unmarshal(doc, &scene); err != nil {
			return nil, errors.Annotatef(err, "decoding scene %s", key)
		}
		scenes = append(scenes, &scene)
	}
	sort.Slice(scenes, func(i, j int) bool { return scenes[i].ID < scenes[j].ID })
	return scenes, nil
}

func (s *Service) readFixture(ctx context.Context, id int64) (*models.Fixture, error) {
	doc, err := s.store.Get(ctx, storage.Fixtures, idKey(id))
	if errors.Is(err, errors.NotFound) {
		return nil, errors.NotFoundf("fixture %d", id)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	var fixture models.Fixture
	if err := json.Unmarshal(doc, &fixture); err != nil {
		return nil, errors.Annotatef(err, "decoding fixture %d", id)
	}
	return &fixture, nil
}

func (s *Service) writeFixture(ctx context.Context, fixture *models.Fixture) error {
	doc, err := json.Marshal(fixture)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(s.store.Put(ctx, storage.Fixtures, idKey(fixture.ID), doc))
}

func (s *Service) listFixtureIDs(ctx context.Context) ([]int64, error) {
	docs, err := s.store.List(ctx, storage.Fixtures)
	if err != nil {
		return nil, errors.Trace(err)
	}
	ids := make([]int64, 0, len(docs))
	for key := range docs {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, errors.Annotatef(err, "fixture key %q", key)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Service) readCounter(ctx context.Context, key string) (int64, error) {
	doc, err := s.store.Get(ctx, storage.State, key)
	if errors.Is(err, errors.NotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Trace(err)
	}
	var v int64
	if err := json.Unmarshal(doc, &v); err != nil {
		return 0, errors.Annotatef(err, "decoding %s", key)
	}
	return v, nil
}

func (s *Service) writeCounter(ctx context.Context, key string, v int64) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(s.store.Put(ctx, storage.State, key, doc))
}

// nextID allocates the id after both the persisted high-water mark and every
// existing id. Callers hold the catalog lock.
func (s *Service) nextID(ctx context.Context, seqKey string, existing []int64) (int64, error) {
	high, err := s.readCounter(ctx, seqKey)
	if err != nil {
		return 0, errors.Trace(err)
	}
	for _, id := range existing {
		if id > high {
			high = id
		}
	}
	next := high + 1
	if err := s.writeCounter(ctx, seqKey, next); err != nil {
		return 0, errors.Trace(err)
	}
	return next, nil
}

// lockScenes takes the key locks of ids in ascending order and returns the
// matching unlock.
func (s *Service) lockScenes(ids ...int64) func() {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var held []int64
	for i, id := range sorted {
		if i > 0 && id == sorted[i-1] {
			continue
		}
		s.scenes.Lock(id)
		held = append(held, id)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			s.scenes.Unlock(held[i])
		}
	}
}

// resolve loads the fixtures of scene in stage order.
func (s *Service) resolve(ctx context.Context, scene *models.Scene) (*SceneDetail, error) {
	detail := &SceneDetail{Scene: *scene}
	for _, id := range scene.FixtureIDs {
		fixture, err := s.readFixture(ctx, id)
		if err != nil {
			return nil, errors.Annotatef(err, "scene %d", scene.ID)
		}
		detail.Fixtures = append(detail.Fixtures, *fixture)
	}
	return detail, nil
}

// render draws the fixtures of scene over a dark universe.
func (s *Service) render(ctx context.Context, scene *models.Scene) ([dmx.UniverseSize]byte, error) {
	detail, err := s.resolve(ctx, scene)
	if err != nil {
		return [dmx.UniverseSize]byte{}, errors.Trace(err)
	}
	patches := make([]dmx.Patch, 0, len(detail.Fixtures))
	for _, fixture := range detail.Fixtures {
		patches = append(patches, dmx.Patch{Slot: fixture.Slot, Values: fixture.Channels})
	}
	universe, err := dmx.Render(s.mapper, patches)
	return universe, errors.Annotatef(err, "rendering scene %d", scene.ID)
}

// refreshLive re-renders scene into the live universe if it owns it, and
// reports the new contents.
func (s *Service) refreshLive(ctx context.Context, scene *models.Scene) (bool, [dmx.UniverseSize]byte, error) {
	if s.universe.Owner() != scene.ID {
		return false, [dmx.UniverseSize]byte{}, nil
	}
	universe, err := s.render(ctx, scene)
	if err != nil {
		return false, universe, errors.Trace(err)
	}
	s.universe.Replace(scene.ID, universe)
	return true, universe, nil
}

// checkSlots refuses a fixture list in which two fixtures share a slot.
func checkSlots(sceneID int64, fixtures []*models.Fixture) error {
	bySlot := make(map[int]int64, len(fixtures))
	for _, f := range fixtures {
		if other, ok := bySlot[f.Slot]; ok && other != f.ID {
			return errors.NotValidf("fixture %d on scene %d: slot %d already used by fixture %d", f.ID, sceneID, f.Slot, other)
		}
		bySlot[f.Slot] = f.ID
	}
	return nil
}
