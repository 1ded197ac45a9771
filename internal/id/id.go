// Package id generates ULIDs for trades and runs.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Source hands out ULIDs that are lexicographically increasing for
// non-decreasing timestamps.
type Source struct {
	mu   sync.Mutex
	mono io.Reader
}

// NewSource returns a Source whose entropy is derived from seed. Two
// sources with the same seed produce the same IDs for the same sequence of
// timestamps, which keeps replays byte-identical.
func NewSource(seed int64) *Source {
	return &Source{mono: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)}
}

// NewRandomSource seeds from crypto/rand.
func NewRandomSource() *Source {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return NewSource(seed)
}

// At returns a ULID stamped with t. Times before the Unix epoch are
// stamped 0 and times past the ULID range are stamped ulid.MaxTime; IDs
// from one source still sort in the order they were handed out.
func (s *Source) At(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := stamp(t)
	for {
		id, err := ulid.New(ms, s.mono)
		if err == nil {
			return id.String()
		}
		// entropy overflowed within this millisecond: move to the next one
		if ms >= ulid.MaxTime() {
			id, _ = ulid.New(ulid.MaxTime(), cryptoRand.Reader)
			return id.String()
		}
		ms++
	}
}

func stamp(t time.Time) uint64 {
	ms := t.UnixMilli()
	switch {
	case ms < 0:
		return 0
	case uint64(ms) > ulid.MaxTime():
		return ulid.MaxTime()
	}
	return uint64(ms)
}

var defaultSource = NewRandomSource()

// New returns a ULID stamped with the current time.
func New() string {
	return defaultSource.At(time.Now())
}
