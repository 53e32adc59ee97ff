// Package images is the read side of the image cache (images.json): URL
// lookup for POIs and city covers, plus a worker-pool warm-up that fills
// misses through an external fetcher.
package images

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/wanderplan/wanderplan/internal/plandir"
	"github.com/wanderplan/wanderplan/internal/trip"
)

// gaodeURLPrefix matches the canonical search-result URL the normalizer
// writes; the trailing segment is the place ID.
const gaodeURLPrefix = "https://www.amap.com/place/"

// Cache is the images.json document: three flat name→URL maps.
type Cache struct {
	CityCovers map[string]string `json:"city_covers"`
	POIs       map[string]string `json:"pois"`
	Fallback   map[string]string `json:"fallback"`

	mu sync.Mutex
}

// NewCache returns an empty cache with all maps initialized.
func NewCache() *Cache {
	return &Cache{
		CityCovers: map[string]string{},
		POIs:       map[string]string{},
		Fallback:   map[string]string{},
	}
}

// Load reads images.json from the plan directory. A missing file yields an
// empty cache.
func Load(d *plandir.Dir) (*Cache, error) {
	raw, err := os.ReadFile(d.File(plandir.FileImages))
	if err != nil {
		if os.IsNotExist(err) {
			return NewCache(), nil
		}
		return nil, err
	}
	c := NewCache()
	if err := json.Unmarshal(raw, c); err != nil {
		return nil, trip.Wrap(trip.KindInvalidInput, err, "parse %s", plandir.FileImages)
	}
	if c.CityCovers == nil {
		c.CityCovers = map[string]string{}
	}
	if c.POIs == nil {
		c.POIs = map[string]string{}
	}
	if c.Fallback == nil {
		c.Fallback = map[string]string{}
	}
	return c, nil
}

// Save writes the cache back to images.json.
func (c *Cache) Save(d *plandir.Dir) error {
	return d.WriteReport(plandir.FileImages, c)
}

// Resolve finds an image URL for a POI: the gaode_{id} key first, then a
// name substring over the cache keys. Misses come back as the empty string.
func (c *Cache) Resolve(it *trip.Item) string {
	for _, sr := range it.SearchResults {
		if sr.Skill != "gaode-maps" {
			continue
		}
		id := strings.TrimPrefix(sr.URL, gaodeURLPrefix)
		if id == "" || id == sr.URL {
			continue
		}
		if url, ok := c.POIs["gaode_"+id]; ok && url != "" {
			return url
		}
	}

	keys := make([]string, 0, len(c.POIs))
	for key := range c.POIs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, name := range []string{it.NameBase, it.NameLocal} {
		if name == "" {
			continue
		}
		lower := strings.ToLower(name)
		for _, key := range keys {
			if strings.Contains(strings.ToLower(key), lower) {
				if url := c.POIs[key]; url != "" {
					return url
				}
			}
		}
	}
	return ""
}

// CityCover finds a cover image for a location, tolerating partial names
// ("Beijing" matches a "Beijing, China" key).
func (c *Cache) CityCover(location string) string {
	if url, ok := c.CityCovers[location]; ok {
		return url
	}
	lower := strings.ToLower(location)
	keys := make([]string, 0, len(c.CityCovers))
	for key := range c.CityCovers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		kl := strings.ToLower(key)
		if strings.Contains(kl, lower) || strings.Contains(lower, kl) {
			return c.CityCovers[key]
		}
	}
	return c.Fallback["city"]
}

// FallbackFor returns the type-level fallback image, or the default one.
func (c *Cache) FallbackFor(poiType string) string {
	if url, ok := c.Fallback[strings.ToLower(poiType)]; ok {
		return url
	}
	return c.Fallback["default"]
}

// Fetcher retrieves an image URL for a named POI in a city. An empty
// result with nil error means the collaborator found nothing.
type Fetcher interface {
	FetchImage(ctx context.Context, name, city string) (string, error)
}

// Target is one POI the warm-up should try to fill.
type Target struct {
	Name string
	City string
}

// Warm fills cache misses through the fetcher with a bounded worker pool.
// Errors are logged and skipped; the cache keeps whatever succeeded.
func (c *Cache) Warm(ctx context.Context, f Fetcher, targets []Target, workers int) int {
	if workers < 1 {
		workers = 4
	}
	logger := log.New(log.Writer(), "[IMAGES] ", log.LstdFlags)

	work := make(chan Target)
	var wg sync.WaitGroup
	var filled int
	var filledMu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range work {
				url, err := f.FetchImage(ctx, t.Name, t.City)
				if err != nil {
					logger.Printf("fetch %q: %v", t.Name, err)
					continue
				}
				if url == "" {
					continue
				}
				c.mu.Lock()
				c.POIs[t.Name] = url
				c.mu.Unlock()
				filledMu.Lock()
				filled++
				filledMu.Unlock()
			}
		}()
	}

	for _, t := range targets {
		if t.Name == "" {
			continue
		}
		c.mu.Lock()
		_, have := c.POIs[t.Name]
		c.mu.Unlock()
		if have {
			continue
		}
		select {
		case work <- t:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(work)
	wg.Wait()
	return filled
}
