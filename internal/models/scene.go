package models

// Scene is a named configuration of fixtures. Only the ids of its fixtures
// are stored here; channel values live on the Fixture records.
type Scene struct {
	ID         int64   `json:"id"`         // Unique, allocated from the scene sequence and never reused
	Name       string  `json:"name"`       // Unique among scenes
	External   bool    `json:"external"`   // Read-only when set
	FixtureIDs []int64 `json:"fixtureIds"` // Ordered; no two share a slot
}

// HasFixture reports whether id is on the scene's stage.
func (s *Scene) HasFixture(id int64) bool {
	for _, fid := range s.FixtureIDs {
		if fid == id {
			return true
		}
	}
	return false
}
