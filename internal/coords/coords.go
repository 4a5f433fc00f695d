// Package coords persists the coordinate cache: a JSON map from named UI
// targets to absolute screen positions. Entries are calibrated once per
// display configuration and trusted as-is on every automated click; there
// is no staleness detection, so a layout or resolution change means
// recalibrating by hand.
package coords

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Point is an absolute screen position in pixels.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Cache maps UI target names to screen positions.
type Cache struct {
	path   string
	points map[string]Point
}

// Load reads the cache at path. A missing file yields an empty cache; any
// click through an empty cache fails until targets are calibrated.
func Load(path string) (*Cache, error) {
	c := &Cache{path: path, points: map[string]Point{}}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading coordinate cache: %w", err)
	}
	if err := json.Unmarshal(raw, &c.points); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return c, nil
}

// Get resolves a named target. Missing names fail immediately: coordinates
// are trusted input and the pipeline never guesses positions.
func (c *Cache) Get(name string) (Point, error) {
	p, ok := c.points[name]
	if !ok {
		return Point{}, fmt.Errorf("coordinate %q not calibrated (known: %v)", name, c.Names())
	}
	return p, nil
}

// Set records a calibrated position. The cache is not saved until Save is
// called.
func (c *Cache) Set(name string, p Point) {
	c.points[name] = p
}

// Names returns the calibrated target names, sorted.
func (c *Cache) Names() []string {
	names := make([]string, 0, len(c.points))
	for name := range c.points {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Save writes the cache atomically to its path.
func (c *Cache) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(c.points, "", "  ")
	if err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}
