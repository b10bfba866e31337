// Package storage implements the on-disk resource layout: the resource
// configuration blob, the log-structured data file, the revisions file,
// the UberPage, and the page reader/writer that sit on top of the codec
// and segment allocator packages.
package storage

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/sirixgo/sirixgo/codec"
	"github.com/sirixgo/sirixgo/version"
)

// ResourceConfig is the resource configuration blob: versioning
// strategy, codec, dewey-id flag, and database id. Serialised as JSON.
type ResourceConfig struct {
	DatabaseID          string      `json:"database_id"`
	ResourceID          uint64      `json:"resource_id"`
	VersioningStrategy  string      `json:"versioning_strategy"`
	Codec               codec.Name  `json:"codec"`
	DeweyEnabled        bool        `json:"dewey_enabled"`
	RestoreWindow       int         `json:"restore_window"`
}

// NewResourceConfig builds a fresh config for a newly-opened resource,
// assigning a database id via google/uuid since none exists on disk yet.
func NewResourceConfig(resourceID uint64) *ResourceConfig {
	return &ResourceConfig{
		DatabaseID:         uuid.New().String(),
		ResourceID:         resourceID,
		VersioningStrategy: version.Full.String(),
		Codec:              codec.Identity,
		RestoreWindow:      1,
	}
}

// LoadResourceConfig parses a previously-persisted blob. An empty slice
// means no blob exists yet; callers should use NewResourceConfig instead.
func LoadResourceConfig(data []byte) (*ResourceConfig, error) {
	var c ResourceConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("storage: decode resource config: %w", err)
	}
	return &c, nil
}

// Marshal serialises the config for persistence.
func (c *ResourceConfig) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("storage: encode resource config: %w", err)
	}
	return data, nil
}

// Strategy parses the persisted strategy name into a version.Strategy.
func (c *ResourceConfig) Strategy() (version.Strategy, error) {
	switch c.VersioningStrategy {
	case version.Full.String():
		return version.Full, nil
	case version.Differential.String():
		return version.Differential, nil
	case version.Incremental.String():
		return version.Incremental, nil
	case version.SlidingSnapshot.String():
		return version.SlidingSnapshot, nil
	default:
		return 0, fmt.Errorf("storage: unknown versioning strategy %q", c.VersioningStrategy)
	}
}
