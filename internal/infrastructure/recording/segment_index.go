package recording

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"liveclass/internal/core/domain"
)

// Segment is the metadata for one recorded slice of a track.
type Segment struct {
	ID          string
	SessionID   domain.SessionID
	Participant domain.UserID
	Kind        string
	Index       int
	StartTime   time.Time
	Duration    time.Duration
	FilePath    string
	Size        int64
}

// SegmentIndex tracks recorded segments in memory, bounded by a FIFO
// eviction on StartTime. The files themselves outlive the index.
type SegmentIndex struct {
	segments map[string]*Segment
	mu       sync.RWMutex
	maxSize  int
}

func NewSegmentIndex(maxSize int) *SegmentIndex {
	return &SegmentIndex{
		segments: make(map[string]*Segment),
		maxSize:  maxSize,
	}
}

// Add records a segment, evicting the oldest entry when full.
func (si *SegmentIndex) Add(segment *Segment) {
	si.mu.Lock()
	defer si.mu.Unlock()

	if len(si.segments) >= si.maxSize {
		var oldestKey string
		var oldestTime time.Time
		for key, seg := range si.segments {
			if oldestTime.IsZero() || seg.StartTime.Before(oldestTime) {
				oldestTime = seg.StartTime
				oldestKey = key
			}
		}
		if oldestKey != "" {
			delete(si.segments, oldestKey)
		}
	}

	si.segments[si.key(segment.Participant, segment.Kind, segment.Index)] = segment
}

// Get looks up one segment.
func (si *SegmentIndex) Get(participant domain.UserID, kind string, index int) (*Segment, bool) {
	si.mu.RLock()
	defer si.mu.RUnlock()

	segment, exists := si.segments[si.key(participant, kind, index)]
	return segment, exists
}

// List returns every indexed segment for a participant and kind.
func (si *SegmentIndex) List(participant domain.UserID, kind string) []*Segment {
	si.mu.RLock()
	defer si.mu.RUnlock()

	prefix := fmt.Sprintf("%s-%s-", participant, kind)

	var result []*Segment
	for key, segment := range si.segments {
		if strings.HasPrefix(key, prefix) {
			result = append(result, segment)
		}
	}

	return result
}

func (si *SegmentIndex) key(participant domain.UserID, kind string, index int) string {
	return fmt.Sprintf("%s-%s-%d", participant, kind, index)
}
