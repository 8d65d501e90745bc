package index

import (
	"sort"

	"github.com/coder/hnsw"
	"github.com/viterin/vek/vek32"
)

// DefaultDuplicateThreshold is the cosine similarity above which two
// images count as duplicates. 0.995 catches byte-identical and
// re-encoded copies without pulling in mere lookalikes.
const DefaultDuplicateThreshold = 0.995

// hnswMaxNeighbors is the graph connectivity parameter M.
const hnswMaxNeighbors = 16

// FindDuplicateClusters groups images whose pairwise cosine similarity
// exceeds threshold (<= 0 applies the default) and returns the
// connected components of that neighbor graph, each sorted, clusters
// ordered by their first member. Singletons are not reported. This is
// an offline diagnostic, not part of the query path.
func (e *Engine) FindDuplicateClusters(threshold float64) ([][]string, error) {
	view, err := e.cache.Open(e.path)
	if err != nil {
		return nil, err
	}
	if threshold <= 0 {
		threshold = DefaultDuplicateThreshold
	}
	n := view.Len()
	if n < 2 {
		return nil, nil
	}

	// The HNSW graph generates candidate neighbors; each candidate pair
	// is verified with the exact cosine score before linking.
	g := hnsw.NewGraph[int]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance
	for i := 0; i < n; i++ {
		g.Add(hnsw.MakeNode(i, view.Normed(i)))
	}

	uf := newUnionFind(n)
	k := hnswMaxNeighbors
	if k > n {
		k = n
	}
	for i := 0; i < n; i++ {
		for _, neighbor := range g.Search(view.Normed(i), k) {
			j := neighbor.Key
			if j == i {
				continue
			}
			if float64(vek32.Dot(view.Normed(i), view.Normed(j))) >= threshold {
				uf.union(i, j)
			}
		}
	}

	groups := map[int][]string{}
	for i := 0; i < n; i++ {
		root := uf.find(i)
		groups[root] = append(groups[root], view.Filepaths[i])
	}

	var clusters [][]string
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		sort.Strings(members)
		clusters = append(clusters, members)
	}
	sort.Slice(clusters, func(a, b int) bool {
		return clusters[a][0] < clusters[b][0]
	})
	return clusters, nil
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.rank[ra] < uf.rank[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	if uf.rank[ra] == uf.rank[rb] {
		uf.rank[ra]++
	}
}
