package series

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"
)

type memCollection struct {
	schema Schema
	labels map[string][]Point
}

// MemoryStore keeps every series in memory.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

// CreateCollection registers a collection, replacing the schema of an
// existing one.
func (m *MemoryStore) CreateCollection(name string, schema Schema) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.collections[name]; ok {
		c.schema = schema
		return
	}
	m.collections[name] = &memCollection{schema: schema, labels: make(map[string][]Point)}
}

// Append adds points to a series, keeping it ordered by time.
func (m *MemoryStore) Append(collection, label string, points ...Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[collection]
	if !ok {
		return collectionNotFound(collection)
	}
	rows := append(c.labels[label], points...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TS.Before(rows[j].TS) })
	c.labels[label] = rows
	return nil
}

func (m *MemoryStore) Collections(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.collections))
	for name := range m.collections {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) Labels(_ context.Context, collection string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[collection]
	if !ok {
		return nil, collectionNotFound(collection)
	}
	out := make([]string, 0, len(c.labels))
	for label := range c.labels {
		out = append(out, label)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) Schema(_ context.Context, collection string) (Schema, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[collection]
	if !ok {
		return Schema{}, collectionNotFound(collection)
	}
	return c.schema, nil
}

func (m *MemoryStore) Frame(_ context.Context, q FrameQuery) ([]Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[q.Collection]
	if !ok {
		return nil, collectionNotFound(q.Collection)
	}
	rows, ok := c.labels[q.Label]
	if !ok {
		return nil, labelNotFound(q.Collection, q.Label)
	}

	lo := 0
	if q.Start != nil {
		lo = sort.Search(len(rows), func(i int) bool { return !rows[i].TS.Before(*q.Start) })
	}
	hi := len(rows)
	if q.Stop != nil {
		hi = sort.Search(len(rows), func(i int) bool { return rows[i].TS.After(*q.Stop) })
	}
	if hi < lo {
		hi = lo
	}
	rows = rows[lo:hi]

	if q.Offset > 0 {
		if q.Offset >= len(rows) {
			return []Point{}, nil
		}
		rows = rows[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(rows) {
		rows = rows[:q.Limit]
	}
	out := make([]Point, len(rows))
	copy(out, rows)
	return out, nil
}

// SeedDemo fills the store with two small collections: "weather", indexed by
// time only, and "sales", indexed by time, region and product.
func (m *MemoryStore) SeedDemo() {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	m.CreateCollection("weather", Schema{TimeColumn: "ts", Columns: []string{"temperature", "humidity"}})
	for i, city := range []string{"brussels", "paris", "lisbon"} {
		pts := make([]Point, 0, 24*30)
		for h := 0; h < 24*30; h++ {
			phase := float64(h) * 2 * math.Pi / 24
			pts = append(pts, Point{
				TS: base.Add(time.Duration(h) * time.Hour),
				Values: map[string]float64{
					"temperature": round2(6 + 4*float64(i) + 5*math.Sin(phase)),
					"humidity":    round2(70 - 10*math.Cos(phase) - 3*float64(i)),
				},
			})
		}
		_ = m.Append("weather", city, pts...)
	}

	m.CreateCollection("sales", Schema{TimeColumn: "ts", Dims: []string{"region", "product"}, Columns: []string{"amount", "qty"}})
	var pts []Point
	for d := 0; d < 90; d++ {
		for ri, region := range []string{"east", "north", "west"} {
			for pi, product := range []string{"basic", "pro"} {
				qty := float64((d*7+ri*3+pi*5)%11 + 1)
				pts = append(pts, Point{
					TS:     base.AddDate(0, 0, d),
					Dims:   map[string]string{"region": region, "product": product},
					Values: map[string]float64{"qty": qty, "amount": qty * float64(10+pi*15)},
				})
			}
		}
	}
	_ = m.Append("sales", "web-shop", pts...)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
