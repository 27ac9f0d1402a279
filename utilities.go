package presence

import (
	"bytes"
	"fmt"

	"github.com/WelcomerTeam/Presence-Kit/presencejson"
)

func unmarshalPayload(payload *LanyardPayload, out any) error {
	err := presencejson.Unmarshal(payload.Data, out)
	if err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return nil
}

// DecodeSnapshot decodes a presence. An empty or null document is an
// absent snapshot, not an error.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte("{}")) {
		return nil, nil
	}

	var snapshot Snapshot

	err := presencejson.Unmarshal(data, &snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}
