package store

import (
	"encoding/json"

	"github.com/prepdesk/attempt-engine/internal/models"
)

func marshalSnapshot(snap *models.Snapshot) ([]byte, error) {
	return json.Marshal(snap)
}

func unmarshalSnapshot(data []byte) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
