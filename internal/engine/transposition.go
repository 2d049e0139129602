package engine

import (
	"github.com/tcheran-engine/tcheran/internal/board"
)

// TTFlag indicates the type of bound stored in the transposition table.
type TTFlag uint8

const (
	TTExact      TTFlag = iota // Exact score
	TTLowerBound               // Failed high (beta cutoff)
	TTUpperBound               // Failed low
)

// TTEntry represents an entry in the transposition table.
type TTEntry struct {
	Key      uint32     // Upper 32 bits of Zobrist hash for verification
	BestMove board.Move // Best move found
	Score    int16      // Score (bounded by flag)
	Depth    int8       // Search depth
	Flag     TTFlag     // Type of bound
	Age      uint8      // Generation for replacement
	Occupied bool       // Distinguishes a real zero-depth entry from an empty slot
}

// TranspositionTable is a hash table for storing search results.
type TranspositionTable struct {
	entries []TTEntry
	size    uint64
	mask    uint64
	age     uint8

	hits   uint64
	probes uint64
}

// NewTranspositionTable creates a transposition table with the given size in MB.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	entrySize := uint64(16)
	numEntries := (uint64(sizeMB) * 1024 * 1024) / entrySize
	numEntries = roundDownToPowerOf2(numEntries)
	if numEntries == 0 {
		numEntries = 1
	}

	return &TranspositionTable{
		entries: make([]TTEntry, numEntries),
		size:    numEntries,
		mask:    numEntries - 1,
	}
}

// Resize reallocates the table to a new size in MB, discarding all entries.
// Callers must only invoke this between searches (isready/ucinewgame), never
// mid-search, since it is not safe for concurrent probes.
func (tt *TranspositionTable) Resize(sizeMB int) {
	*tt = *NewTranspositionTable(sizeMB)
}

func roundDownToPowerOf2(n uint64) uint64 {
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return (n + 1) >> 1
}

// Probe looks up a position in the transposition table.
func (tt *TranspositionTable) Probe(hash uint64) (TTEntry, bool) {
	tt.probes++

	idx := hash & tt.mask
	entry := tt.entries[idx]

	if entry.Occupied && entry.Key == uint32(hash>>32) {
		tt.hits++
		return entry, true
	}

	return TTEntry{}, false
}

// Store saves a position in the transposition table.
//
// Replacement priority, per slot: an empty slot always loses to a new entry;
// failing that, an entry from a previous search generation always loses;
// failing that, the shallower of the two depths loses. This keeps the table
// biased toward the current search's deepest lines without ever discarding
// a same-generation deep entry for a shallow one.
func (tt *TranspositionTable) Store(hash uint64, depth int, score int, flag TTFlag, bestMove board.Move) {
	idx := hash & tt.mask
	entry := &tt.entries[idx]

	replace := !entry.Occupied || entry.Age != tt.age || depth >= int(entry.Depth)
	if !replace {
		return
	}

	entry.Key = uint32(hash >> 32)
	entry.BestMove = bestMove
	entry.Score = int16(score)
	entry.Depth = int8(depth)
	entry.Flag = flag
	entry.Age = tt.age
	entry.Occupied = true
}

// NewSearch increments the age counter for a new search.
func (tt *TranspositionTable) NewSearch() {
	tt.age++
}

// Clear clears the transposition table.
func (tt *TranspositionTable) Clear() {
	for i := range tt.entries {
		tt.entries[i] = TTEntry{}
	}
	tt.age = 0
	tt.hits = 0
	tt.probes = 0
}

// HashFull returns the permille (parts per thousand) of the table that is used.
func (tt *TranspositionTable) HashFull() int {
	used := 0
	sampleSize := 1000
	if uint64(sampleSize) > tt.size {
		sampleSize = int(tt.size)
	}

	for i := 0; i < sampleSize; i++ {
		if tt.entries[i].Occupied && tt.entries[i].Age == tt.age {
			used++
		}
	}

	return (used * 1000) / sampleSize
}

// HitRate returns the cache hit rate as a percentage.
func (tt *TranspositionTable) HitRate() float64 {
	if tt.probes == 0 {
		return 0
	}
	return float64(tt.hits) / float64(tt.probes) * 100
}

// Size returns the number of entries in the table.
func (tt *TranspositionTable) Size() uint64 {
	return tt.size
}

// AdjustScoreFromTT adjusts a stored mate score back to the current ply's
// distance-to-mate before use in the live search.
func AdjustScoreFromTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score - ply
	}
	if score < -MateScore+MaxPly {
		return score + ply
	}
	return score
}

// AdjustScoreToTT adjusts a mate score for storage, making it ply-independent.
func AdjustScoreToTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score + ply
	}
	if score < -MateScore+MaxPly {
		return score - ply
	}
	return score
}
