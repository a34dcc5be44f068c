package main

import (
	"strconv"
	"strings"

	"wormhole-tracker/pkg/ids"
)

// parseCharacterIDList parses a comma-separated list of character IDs,
// skipping blank entries. Malformed entries are dropped rather than
// failing the whole process: an operator fixing a typo in one ID
// shouldn't have to restart every other character's ingestion too.
func parseCharacterIDList(raw string) []ids.CharacterID {
	var parsed []ids.CharacterID
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		value, err := strconv.ParseUint(entry, 10, 64)
		if err != nil {
			continue
		}
		parsed = append(parsed, ids.CharacterID(value))
	}
	return parsed
}
