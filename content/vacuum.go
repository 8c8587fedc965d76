package content

import (
	"container/heap"
	"math"
	"time"

	"samizdat/hash"
	"samizdat/kv"
)

// Usefulness computes the byte-usefulness ranking score of spec §4.4 for an
// object with the given statistics observed at now. Higher is more useful;
// vacuum evicts in ascending order.
func Usefulness(st Statistics, now time.Time) float64 {
	totalTime := float64(st.LastTouchedAt-st.CreatedAt) + 24*3600
	if totalTime <= 0 {
		totalTime = 1
	}
	touches := float64(st.Touches)
	accessFreq := touches / totalTime
	timeIdle := float64(now.Unix() - st.LastTouchedAt)
	pFuture := touches / (1 + touches)

	var survival float64
	if touches == 0 || accessFreq == 0 {
		survival = 1
	} else {
		survival = math.Pow(1+timeIdle*touches/(accessFreq*touches), -touches)
	}

	denom := pFuture*survival + (1 - pFuture)
	var pUse float64
	if denom == 0 {
		pUse = 0
	} else {
		pUse = pFuture * survival / denom
	}

	return pUse * accessFreq / (float64(st.Size) + 8*1024)
}

// Outcome is Vacuum's result, matching spec §4.12's three-way result.
type Outcome int

const (
	Unnecessary Outcome = iota
	Done
	Insufficient
)

type candidate struct {
	usefulness float64
	size       int64
	hash       hash.Hash
}

type usefulnessHeap []candidate

func (h usefulnessHeap) Len() int            { return len(h) }
func (h usefulnessHeap) Less(i, j int) bool  { return h[i].usefulness < h[j].usefulness }
func (h usefulnessHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *usefulnessHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *usefulnessHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Vacuum scans object statistics, sums sizes, and evicts the least useful
// non-bookmarked objects until total size is at or below maxStorage.
func Vacuum(store *Store, bookmarks *Bookmarks, maxStorage int64) (Outcome, error) {
	lower, upper := kv.TablePrefix(kv.TableObjectStatistics)
	it := store.kv.NewIterator(lower, upper)
	defer it.Close()

	var total int64
	h := &usefulnessHeap{}
	heap.Init(h)
	now := store.now()

	for it.Next() {
		key := it.Key()
		raw := key[len(lower):]
		objHash, err := hash.FromBytes(raw)
		if err != nil {
			continue
		}
		st, err := UnmarshalStatistics(it.Value())
		if err != nil {
			continue
		}
		total += st.Size
		u := Usefulness(st, now)
		heap.Push(h, candidate{usefulness: u, size: st.Size, hash: objHash})
	}
	if err := it.Error(); err != nil {
		return Insufficient, err
	}

	if total <= maxStorage {
		return Unnecessary, nil
	}

	for total > maxStorage && h.Len() > 0 {
		c := heap.Pop(h).(candidate)
		bookmarked, err := bookmarks.IsBookmarked(c.hash)
		if err != nil {
			return Insufficient, err
		}
		if bookmarked {
			continue
		}
		if err := store.DropIfExists(c.hash); err != nil {
			return Insufficient, err
		}
		total -= c.size
	}

	if total > maxStorage {
		return Insufficient, nil
	}
	return Done, nil
}
