package merge

import (
	"math"
	"sort"
)

// ViewFunc is a pure reduction over merged days. Views are recomputed on
// demand and never stored.
type ViewFunc func(days []Day) any

// defaultClusterRadiusKm groups POIs that are within easy walking range.
const defaultClusterRadiusKm = 2.0

// Views returns the registry of derived views exposed by the preview
// server and injected into the HTML shell.
func Views() map[string]ViewFunc {
	return map[string]ViewFunc{
		"per_city_budget": func(days []Day) any { return PerCityBudget(days) },
		"type_histogram":  func(days []Day) any { return TypeHistogram(days) },
		"geo_clusters":    func(days []Day) any { return GeoClusters(days, defaultClusterRadiusKm) },
	}
}

// PerCityBudget sums the day budget totals per location.
func PerCityBudget(days []Day) map[string]float64 {
	out := map[string]float64{}
	for _, day := range days {
		out[day.Location] = round2(out[day.Location] + day.Budget.Total)
	}
	return out
}

// TypeHistogram counts POI types across attractions, entertainment, and
// shopping.
func TypeHistogram(days []Day) map[string]int {
	out := map[string]int{}
	for _, day := range days {
		for _, it := range day.Attractions {
			count(out, it.Type)
		}
		for _, it := range day.Entertainment {
			count(out, it.Type)
		}
		for _, it := range day.Shopping {
			count(out, it.Type)
		}
	}
	return out
}

func count(m map[string]int, key string) {
	if key == "" {
		key = "Other"
	}
	m[key]++
}

// Cluster is one geographic group of POI names around a centroid.
type Cluster struct {
	Lat   float64  `json:"lat"`
	Lng   float64  `json:"lng"`
	Names []string `json:"names"`
}

// GeoClusters greedily groups POIs with coordinates: a POI joins the
// first cluster whose centroid is within radiusKm, else starts its own.
// Input order is day order, so clusters are stable between runs.
func GeoClusters(days []Day, radiusKm float64) []Cluster {
	if radiusKm <= 0 {
		radiusKm = defaultClusterRadiusKm
	}
	type point struct {
		name     string
		lat, lng float64
	}
	var points []point
	add := func(name string, lat, lng float64) {
		points = append(points, point{name: name, lat: lat, lng: lng})
	}
	for _, day := range days {
		for _, it := range day.Attractions {
			if it.Coordinates != nil && it.NameBase != "" {
				add(it.NameBase, it.Coordinates.Lat, it.Coordinates.Lng)
			}
		}
		for _, it := range day.Entertainment {
			if it.Coordinates != nil && it.NameBase != "" {
				add(it.NameBase, it.Coordinates.Lat, it.Coordinates.Lng)
			}
		}
		for _, it := range day.Shopping {
			if it.Coordinates != nil && it.NameBase != "" {
				add(it.NameBase, it.Coordinates.Lat, it.Coordinates.Lng)
			}
		}
	}

	var clusters []Cluster
	for _, p := range points {
		placed := false
		for i := range clusters {
			if haversineKm(clusters[i].Lat, clusters[i].Lng, p.lat, p.lng) <= radiusKm {
				c := &clusters[i]
				n := float64(len(c.Names))
				c.Lat = (c.Lat*n + p.lat) / (n + 1)
				c.Lng = (c.Lng*n + p.lng) / (n + 1)
				c.Names = append(c.Names, p.name)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, Cluster{Lat: p.lat, Lng: p.lng, Names: []string{p.name}})
		}
	}
	for i := range clusters {
		sort.Strings(clusters[i].Names)
	}
	return clusters
}

// haversineKm is the great-circle distance between two WGS-84 points.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371.0
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
