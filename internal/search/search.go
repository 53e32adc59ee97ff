// Package search maintains a full-text index over merged POIs so plans
// can be queried by name, type, notes, or location.
package search

import (
	"fmt"
	"log"

	"github.com/blevesearch/bleve"

	"github.com/wanderplan/wanderplan/internal/merge"
	"github.com/wanderplan/wanderplan/internal/trip"
)

// Doc is the indexed shape of one POI.
type Doc struct {
	Slug      string  `json:"slug"`
	Day       int     `json:"day"`
	Kind      string  `json:"kind"`
	NameBase  string  `json:"name_base"`
	NameLocal string  `json:"name_local"`
	Location  string  `json:"location"`
	Type      string  `json:"type"`
	Notes     string  `json:"notes"`
	Cost      float64 `json:"cost"`
}

// Hit is one search result.
type Hit struct {
	ID     string         `json:"id"`
	Score  float64        `json:"score"`
	Fields map[string]any `json:"fields"`
}

// Index wraps a bleve index over merged plans.
type Index struct {
	idx bleve.Index
	log *log.Logger
}

// Open opens or creates the index at path; an empty path builds an
// in-memory index.
func Open(path string) (*Index, error) {
	logger := log.New(log.Writer(), "[SEARCH] ", log.LstdFlags)
	if path == "" {
		idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create in-memory index: %w", err)
		}
		return &Index{idx: idx, log: logger}, nil
	}
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, bleve.NewIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	return &Index{idx: idx, log: logger}, nil
}

// Close releases the index.
func (x *Index) Close() error { return x.idx.Close() }

// IndexPlan (re)indexes every POI of a merged plan under the plan's slug.
// Returns the number of documents written.
func (x *Index) IndexPlan(slug string, plan *merge.Plan) (int, error) {
	batch := x.idx.NewBatch()
	n := 0
	add := func(day *merge.Day, kind string, it *trip.Item) error {
		if it == nil || it.NameBase == "" {
			return nil
		}
		id := fmt.Sprintf("%s/%d/%s/%s", slug, day.Day, kind, it.NameBase)
		doc := Doc{
			Slug:      slug,
			Day:       day.Day,
			Kind:      kind,
			NameBase:  it.NameBase,
			NameLocal: it.NameLocal,
			Location:  day.Location,
			Type:      it.Type,
			Notes:     it.Notes,
			Cost:      float64(it.Cost),
		}
		n++
		return batch.Index(id, doc)
	}

	for di := range plan.Days {
		day := &plan.Days[di]
		for _, meal := range []struct {
			kind string
			it   *trip.Item
		}{
			{"breakfast", day.Breakfast}, {"lunch", day.Lunch}, {"dinner", day.Dinner},
			{"accommodation", day.Accommodation},
		} {
			if err := add(day, meal.kind, meal.it); err != nil {
				return 0, err
			}
		}
		for i := range day.Attractions {
			if err := add(day, "attraction", &day.Attractions[i]); err != nil {
				return 0, err
			}
		}
		for i := range day.Entertainment {
			if err := add(day, "entertainment", &day.Entertainment[i]); err != nil {
				return 0, err
			}
		}
		for i := range day.Shopping {
			if err := add(day, "shopping", &day.Shopping[i]); err != nil {
				return 0, err
			}
		}
	}

	if err := x.idx.Batch(batch); err != nil {
		return 0, fmt.Errorf("index %s: %w", slug, err)
	}
	x.log.Printf("%s: indexed %d POIs", slug, n)
	return n, nil
}

// Query runs a query-string search and returns up to limit hits with
// their stored fields.
func (x *Index) Query(q string, limit int) ([]Hit, error) {
	if limit < 1 {
		limit = 10
	}
	query := bleve.NewQueryStringQuery(q)
	req := bleve.NewSearchRequestOptions(query, limit, 0, false)
	req.Fields = []string{"*"}
	res, err := x.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{ID: h.ID, Score: h.Score, Fields: h.Fields})
	}
	return hits, nil
}
