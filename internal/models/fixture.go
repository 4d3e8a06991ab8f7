package models

// Fixture is one addressable lighting unit.
type Fixture struct {
	ID       int64  `json:"id"`
	Slot     int    `json:"slot"`     // Channel map index placing the fixture in the universe
	Channels []byte `json:"channels"` // Exactly as many values as the slot is wide
}
