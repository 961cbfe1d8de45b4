package catalog

import (
	"sort"
	"strings"
)

const (
	// MinConfidence is the exclusive lower bound for a search match.
	MinConfidence = 0.3
	// MaxMatches caps the number of search results.
	MaxMatches = 50
	// maxEditDistance is the largest edit distance that still scores.
	maxEditDistance = 2
)

// QueryService provides read-only query methods over a loaded catalog.
type QueryService struct {
	Catalog *Catalog
	Index   *CatalogIndex
}

// NewQueryService creates a QueryService from a validated catalog and its index.
func NewQueryService(cat *Catalog, idx *CatalogIndex) *QueryService {
	return &QueryService{Catalog: cat, Index: idx}
}

// LoadAndQuery loads a catalog from file and returns a ready-to-use QueryService.
func LoadAndQuery(path string) (*QueryService, error) {
	cat, idx, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	return NewQueryService(cat, idx), nil
}

// LoadAndQueryBytes loads a catalog from raw JSON bytes and returns a ready-to-use QueryService.
func LoadAndQueryBytes(data []byte) (*QueryService, error) {
	cat, idx, err := LoadFromBytes(data)
	if err != nil {
		return nil, err
	}
	return NewQueryService(cat, idx), nil
}

// ListCategories returns all categories in the catalog.
func (q *QueryService) ListCategories() []Category {
	return q.Catalog.Categories
}

// ListItems returns items filtered by category and/or keyword.
// Both filters are optional (pass "" to skip). When both are provided, they combine with AND logic.
// The keyword matches case-insensitively against item Path and Description.
func (q *QueryService) ListItems(category, keyword string) []Item {
	var candidates []*Item

	if category != "" {
		candidates = q.Index.ItemsByCategory[category]
	} else {
		candidates = make([]*Item, 0, len(q.Catalog.Items))
		for i := range q.Catalog.Items {
			candidates = append(candidates, &q.Catalog.Items[i])
		}
	}

	keyword = strings.ToLower(keyword)
	result := make([]Item, 0)

	for _, it := range candidates {
		if keyword != "" {
			pathLower := strings.ToLower(it.Path)
			descLower := strings.ToLower(it.Description)
			if !strings.Contains(pathLower, keyword) && !strings.Contains(descLower, keyword) {
				continue
			}
		}
		result = append(result, *it)
	}

	return result
}

// GetItem looks up an item by its full path.
func (q *QueryService) GetItem(path string) (*Item, bool) {
	it, ok := q.Index.ItemByPath[path]
	return it, ok
}

// Lookup returns every item whose bare name is exactly name.
func (q *QueryService) Lookup(name string) []*Item {
	return q.Index.ItemsByName[name]
}

// Search scores every item against name and returns the matches above
// MinConfidence, best first, at most MaxMatches of them. Ties keep
// catalog order.
func (q *QueryService) Search(name string) []Match {
	name = strings.TrimSpace(name)
	if name == "" {
		return []Match{}
	}

	matches := make([]Match, 0)
	for i := range q.Catalog.Items {
		if m, ok := Score(&q.Catalog.Items[i], name); ok {
			matches = append(matches, m)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
	if len(matches) > MaxMatches {
		matches = matches[:MaxMatches]
	}
	return matches
}

// Best returns the highest-scoring match for name when its confidence is
// at least min.
func (q *QueryService) Best(name string, min float64) (Match, bool) {
	matches := q.Search(name)
	if len(matches) == 0 || matches[0].Confidence < min {
		return Match{}, false
	}
	return matches[0], true
}

// Score rates how well item matches a searched name. The boolean is false
// when the confidence does not exceed MinConfidence.
func Score(item *Item, name string) (Match, bool) {
	m := Match{Item: item}

	switch {
	case item.Name == name:
		m.Confidence, m.MatchType = 1.0, MatchExact
	case strings.HasPrefix(item.Name, name):
		m.Confidence, m.MatchType = 0.8, MatchPrefix
	case strings.HasSuffix(item.Name, name):
		m.Confidence, m.MatchType = 0.7, MatchSuffix
	default:
		if d := EditDistance(item.Name, name); d <= maxEditDistance && len(item.Name) > 0 {
			m.Confidence = 0.6 * (1 - float64(d)/float64(len(item.Name)))
			m.MatchType = MatchEditDistance
			m.Distance = d
		} else if strings.Contains(strings.ToLower(item.Path), strings.ToLower(name)) {
			m.Confidence, m.MatchType = 0.4, MatchPath
		}
	}

	return m, m.Confidence > MinConfidence
}

// EditDistance is the Levenshtein distance between a and b, counted in
// runes.
func EditDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
