package mediatypes

import (
	"fmt"
	"sort"
	"time"
)

// Rendition is one stored file derived from an upload.
type Rendition struct {
	Name         string `json:"name"`
	RelativePath string `json:"relativePath"`
	ByteSize     int64  `json:"byteSize"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	// Mode is the layout mode used, or "original".
	Mode string `json:"mode"`
}

// Dimensions renders the size as WIDTHxHEIGHT.
func (r Rendition) Dimensions() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// IsFallback reports whether a named size was substituted with the original.
func (r Rendition) IsFallback() bool {
	return r.Name != OriginalName && r.Mode == ModeOriginal
}

// AssetManifest is the durable record of one ingested upload.
type AssetManifest struct {
	ID           int64                `json:"assetId"`
	OwnerID      int64                `json:"ownerUserId"`
	OriginalName string               `json:"originalName"`
	SourceType   ImageType            `json:"sourceType"`
	Renditions   map[string]Rendition `json:"renditions"`
	CreatedAt    time.Time            `json:"createdAt"`
}

// Original returns the original rendition and whether it is present.
func (m *AssetManifest) Original() (Rendition, bool) {
	r, ok := m.Renditions[OriginalName]
	return r, ok
}

// RenditionNames returns the rendition names sorted, original first.
func (m *AssetManifest) RenditionNames() []string {
	names := make([]string, 0, len(m.Renditions))
	for name := range m.Renditions {
		if name != OriginalName {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if _, ok := m.Renditions[OriginalName]; ok {
		names = append([]string{OriginalName}, names...)
	}
	return names
}
