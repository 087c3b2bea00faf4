package config

import (
	"encoding/json"
	"fmt"
)

// MergedMetadata combines the metadata map with the metadata_json
// blob. Both sources are optional; a key present in both is a
// configuration error rather than a silent overwrite, and malformed
// JSON is rejected up front.
func (c *Config) MergedMetadata() (map[string]string, error) {
	merged := make(map[string]string, len(c.Metadata))
	for k, v := range c.Metadata {
		merged[k] = v
	}

	if c.MetadataJSON == "" {
		return merged, nil
	}

	var extra map[string]string
	if err := json.Unmarshal([]byte(c.MetadataJSON), &extra); err != nil {
		return nil, fmt.Errorf("metadata_json is not a valid JSON object of strings: %w", err)
	}
	for k, v := range extra {
		if _, exists := merged[k]; exists {
			return nil, fmt.Errorf("metadata key %q given both as an option and in metadata_json", k)
		}
		merged[k] = v
	}

	return merged, nil
}
