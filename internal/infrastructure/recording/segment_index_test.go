package recording

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentIndex_AddAndList(t *testing.T) {
	index := NewSegmentIndex(16)

	for i := 0; i < 3; i++ {
		index.Add(&Segment{
			SessionID:   "session-1",
			Participant: "student-1",
			Kind:        "video",
			Index:       i,
			StartTime:   time.Now().Add(time.Duration(i) * time.Second),
		})
	}
	index.Add(&Segment{
		SessionID:   "session-1",
		Participant: "student-1",
		Kind:        "audio",
		Index:       0,
		StartTime:   time.Now(),
	})

	video := index.List("student-1", "video")
	assert.Len(t, video, 3)

	audio := index.List("student-1", "audio")
	assert.Len(t, audio, 1)

	seg, ok := index.Get("student-1", "video", 2)
	require.True(t, ok)
	assert.Equal(t, 2, seg.Index)
}

func TestSegmentIndex_EvictsOldestWhenFull(t *testing.T) {
	index := NewSegmentIndex(2)

	base := time.Now()
	for i := 0; i < 3; i++ {
		index.Add(&Segment{
			Participant: "student-1",
			Kind:        "video",
			Index:       i,
			StartTime:   base.Add(time.Duration(i) * time.Minute),
		})
	}

	_, ok := index.Get("student-1", "video", 0)
	assert.False(t, ok, "oldest segment should be evicted")

	_, ok = index.Get("student-1", "video", 2)
	assert.True(t, ok)
}
