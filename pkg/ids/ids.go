// Package ids provides typed wrappers around the numeric identifiers used
// throughout the tracker, and a millisecond-resolution timestamp type.
package ids

import "fmt"

// CharacterID identifies a player character.
type CharacterID uint64

func (c CharacterID) String() string { return fmt.Sprintf("%d", uint64(c)) }

// SolarSystemID identifies a solar system.
type SolarSystemID int32

func (s SolarSystemID) String() string { return fmt.Sprintf("%d", int32(s)) }

// StationID identifies an NPC station.
type StationID int32

func (s StationID) String() string { return fmt.Sprintf("%d", int32(s)) }

// StructureID identifies a player-owned structure.
type StructureID int64

func (s StructureID) String() string { return fmt.Sprintf("%d", int64(s)) }

// CharacterStreamKey returns the stream key for a character's events.
func CharacterStreamKey(characterID CharacterID) string {
	return fmt.Sprintf("character:%d", uint64(characterID))
}

// SystemStreamKey returns the stream key for a system's events.
func SystemStreamKey(systemID SolarSystemID) string {
	return fmt.Sprintf("system:%d", int32(systemID))
}
