package entries

import (
	"encoding/json"
	"fmt"
)

// ApplyReadOnlyFields overwrites incoming's read-only fields (as named by
// incoming.ReadOnlyFields()) with the values from existing, in place.
// Used by store backends implementing Save(preserveReadOnly=true): a
// client's write merges with the stored copy rather than clobbering
// fields like last_sent_at that only the dispatch loop should advance.
func ApplyReadOnlyFields(existing, incoming Entry) error {
	existingRaw, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("entries: marshal existing entry: %w", err)
	}
	incomingRaw, err := json.Marshal(incoming)
	if err != nil {
		return fmt.Errorf("entries: marshal incoming entry: %w", err)
	}

	var existingMap, incomingMap map[string]json.RawMessage
	if err := json.Unmarshal(existingRaw, &existingMap); err != nil {
		return fmt.Errorf("entries: decode existing entry fields: %w", err)
	}
	if err := json.Unmarshal(incomingRaw, &incomingMap); err != nil {
		return fmt.Errorf("entries: decode incoming entry fields: %w", err)
	}

	for _, field := range incoming.ReadOnlyFields() {
		if v, ok := existingMap[field]; ok {
			incomingMap[field] = v
		}
	}

	merged, err := json.Marshal(incomingMap)
	if err != nil {
		return fmt.Errorf("entries: remarshal merged entry: %w", err)
	}
	if err := json.Unmarshal(merged, incoming); err != nil {
		return fmt.Errorf("entries: apply merged fields: %w", err)
	}
	return nil
}
