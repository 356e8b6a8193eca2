package convert

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// PageMeta describes one rendered page image.
type PageMeta struct {
	// Page is the 1-based page number.
	Page int `json:"page"`

	// WidthPx / HeightPx are the rendered image dimensions.
	WidthPx  int `json:"width_px"`
	HeightPx int `json:"height_px"`

	// WidthPt / HeightPt are the page dimensions in PDF points. The editor
	// uses these to map image pixels back to document space.
	WidthPt  float64 `json:"width_pt"`
	HeightPt float64 `json:"height_pt"`

	// DPI the page was rendered at.
	DPI float64 `json:"dpi"`
}

// Cache is the on-disk page image cache: one directory per project holding
// page PNGs, a thumbnail and a metadata file. The metadata file is written
// last so its presence marks a complete conversion.
type Cache struct {
	root string
}

// NewCache creates the cache root directory.
func NewCache(root string) (*Cache, error) {
	if root == "" {
		return nil, fmt.Errorf("convert: cache root is required")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("convert: create cache root: %w", err)
	}
	return &Cache{root: root}, nil
}

func (c *Cache) projectDir(projectID string) string {
	return filepath.Join(c.root, projectID)
}

// PagePath returns the path of a rendered page PNG.
func (c *Cache) PagePath(projectID string, page int) string {
	return filepath.Join(c.projectDir(projectID), fmt.Sprintf("page_%04d.png", page))
}

// ThumbnailPath returns the path of the project thumbnail JPEG.
func (c *Cache) ThumbnailPath(projectID string) string {
	return filepath.Join(c.projectDir(projectID), "thumb.jpg")
}

func (c *Cache) metaPath(projectID string) string {
	return filepath.Join(c.projectDir(projectID), "meta.json")
}

// EnsureDir creates the project directory.
func (c *Cache) EnsureDir(projectID string) error {
	return os.MkdirAll(c.projectDir(projectID), 0o700)
}

// Meta returns the page metadata of a completed conversion, or nil if the
// project has not been converted.
func (c *Cache) Meta(projectID string) ([]PageMeta, error) {
	data, err := os.ReadFile(c.metaPath(projectID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("convert: read meta: %w", err)
	}
	var meta []PageMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("convert: decode meta: %w", err)
	}
	return meta, nil
}

// WriteMeta marks the conversion complete. Written atomically: the meta
// file only ever holds a full page list.
func (c *Cache) WriteMeta(projectID string, meta []PageMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("convert: marshal meta: %w", err)
	}
	tmp := c.metaPath(projectID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("convert: write meta: %w", err)
	}
	if err := os.Rename(tmp, c.metaPath(projectID)); err != nil {
		return fmt.Errorf("convert: rename meta: %w", err)
	}
	return nil
}

// Remove deletes all cached files of a project. Satisfies
// project.PageCache for the delete cascade.
func (c *Cache) Remove(projectID string) error {
	if err := os.RemoveAll(c.projectDir(projectID)); err != nil {
		return fmt.Errorf("convert: remove cache: %w", err)
	}
	return nil
}
