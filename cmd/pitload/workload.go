package main

import (
	"fmt"
	"math"
	"math/rand"
	"net/url"
)

type bbox struct{ MinLon, MinLat, MaxLon, MaxLat float64 }

func (b bbox) String() string {
	return fmt.Sprintf("%.5f,%.5f,%.5f,%.5f", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// probe is one precomputed search; hot probes sit at the low indexes so a
// Zipf draw favours them.
type probe struct {
	Name    string
	Type    string
	Dataset string
	Box     bbox
	Before  int
	After   int
}

func (p probe) values() url.Values {
	v := url.Values{}
	if p.Name != "" {
		v.Set("name", p.Name)
	}
	if p.Type != "" {
		v.Set("type", p.Type)
	}
	if p.Dataset != "" {
		v.Set("dataset", p.Dataset)
	}
	if p.Box != (bbox{}) {
		v.Set("intersects", p.Box.String())
	}
	if p.Before != 0 {
		v.Set("before", fmt.Sprint(p.Before))
	}
	if p.After != 0 {
		v.Set("after", fmt.Sprint(p.After))
	}
	return v
}

var (
	hotCenters = [][2]float64{
		{-73.9857, 40.7484}, // Midtown
		{-74.0060, 40.7128}, // Lower Manhattan
		{-73.9442, 40.6782}, // Brooklyn
		{-73.7949, 40.7282}, // Queens
	}
	hotNames = []string{"Broadway", "Bowery", "Canal", "Wall", "Fulton", "Bleecker"}
	pitTypes = []string{"hg:Street", "hg:Building", "hg:Place", "hg:Neighbourhood"}
)

// makeProbes builds count probes: a quarter (at least 8) hot ones around the
// busiest parts of the city and the rest scattered across the five boroughs.
func makeProbes(count int, datasets []string, r *rand.Rand) []probe {
	if count <= 0 {
		return nil
	}
	out := make([]probe, 0, count)
	hot := min(count, int(math.Max(8, float64(count/4))))

	pick := func(xs []string) string {
		if len(xs) == 0 {
			return ""
		}
		return xs[r.Intn(len(xs))]
	}

	for i := range hot {
		c := hotCenters[i%len(hotCenters)]
		dx, dy := (r.Float64()-0.5)*0.02, (r.Float64()-0.5)*0.02
		w, h := 0.01+r.Float64()*0.01, 0.01+r.Float64()*0.01
		lon, lat := c[0]+dx, c[1]+dy
		out = append(out, probe{
			Name:    hotNames[i%len(hotNames)],
			Dataset: pick(datasets),
			Box:     bbox{lon - w/2, lat - h/2, lon + w/2, lat + h/2},
		})
	}

	for len(out) < count {
		lon := -74.25 + r.Float64()*(-73.70+74.25)
		lat := 40.49 + r.Float64()*(40.92-40.49)
		w, h := 0.005+0.03*r.Float64(), 0.005+0.03*r.Float64()
		p := probe{
			Type: pitTypes[r.Intn(len(pitTypes))],
			Box:  bbox{lon - w/2, lat - h/2, lon + w/2, lat + h/2},
		}
		if r.Intn(2) == 0 {
			p.After = 1800 + r.Intn(100)
			p.Before = p.After + 10 + r.Intn(100)
		}
		out = append(out, p)
	}
	return out
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	k := (p / 100.0) * float64(len(sorted)-1)
	f := math.Floor(k)
	i := int(f)
	if i >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	d := k - f
	return sorted[i]*(1-d) + sorted[i+1]*d
}
