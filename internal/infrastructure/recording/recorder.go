package recording

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"liveclass/internal/core/domain"
	"liveclass/pkg/optimize"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// maxPacketSize bounds one RTP read; anything larger would not have
// survived the path MTU anyway.
const maxPacketSize = 1500

// SessionRecorder captures the inbound media of one live session to
// disk, one rotating segment file per remote track. Packets are stored
// length-prefixed so a replay tool can re-packetize them. The recorder
// plugs into the peer layer as a RemoteTrackSink; it owns every read
// loop it starts and drains them all on Close.
type SessionRecorder struct {
	sessionID       domain.SessionID
	baseDir         string
	segmentDuration time.Duration

	bufPool *optimize.BytePool
	index   *SegmentIndex

	wg        sync.WaitGroup
	closed    chan struct{}
	closeOnce sync.Once

	logger *zap.SugaredLogger
}

func NewSessionRecorder(sessionID domain.SessionID, outputPath string, segmentDuration time.Duration, logger *zap.SugaredLogger) (*SessionRecorder, error) {
	baseDir := filepath.Join(outputPath, string(sessionID))
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create recording directory: %w", err)
	}

	return &SessionRecorder{
		sessionID:       sessionID,
		baseDir:         baseDir,
		segmentDuration: segmentDuration,
		bufPool:         optimize.NewBytePool(maxPacketSize),
		index:           NewSegmentIndex(512),
		closed:          make(chan struct{}),
		logger:          logger,
	}, nil
}

// ConsumeTrack starts recording one remote track. Called from the peer
// layer's OnTrack path; returns immediately.
func (r *SessionRecorder) ConsumeTrack(remoteID domain.UserID, track *webrtc.TrackRemote) {
	select {
	case <-r.closed:
		return
	default:
	}

	r.wg.Add(1)
	go r.recordTrack(remoteID, track)
}

// Segments lists what has been recorded for one participant and kind.
func (r *SessionRecorder) Segments(participant domain.UserID, kind string) []*Segment {
	return r.index.List(participant, kind)
}

// Close stops every recording loop and waits for segment files to be
// flushed. Idempotent.
func (r *SessionRecorder) Close() {
	r.closeOnce.Do(func() {
		close(r.closed)
	})
	r.wg.Wait()
}

func (r *SessionRecorder) recordTrack(remoteID domain.UserID, track *webrtc.TrackRemote) {
	defer r.wg.Done()

	kind := track.Kind().String()
	index := 0

	for {
		select {
		case <-r.closed:
			return
		default:
		}

		segment, err := r.writeSegment(remoteID, track, kind, index)
		if segment != nil {
			r.index.Add(segment)
			r.logger.Debugw("recorded segment",
				"session_id", r.sessionID,
				"participant", remoteID,
				"kind", kind,
				"index", segment.Index,
				"size", segment.Size,
			)
		}
		if err != nil {
			// Track gone; a closed transport is the normal way out.
			return
		}
		index++
	}
}

// writeSegment fills one segment file until the rotation interval
// elapses. A read error ends the segment and the returned error tells
// the caller to stop.
func (r *SessionRecorder) writeSegment(remoteID domain.UserID, track *webrtc.TrackRemote, kind string, index int) (*Segment, error) {
	fileName := fmt.Sprintf("%s-%s-%d.rtp", remoteID, kind, index)
	filePath := filepath.Join(r.baseDir, fileName)

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create segment file: %w", err)
	}
	defer file.Close()

	start := time.Now()
	var size int64
	var prefix [2]byte

	for time.Since(start) < r.segmentDuration {
		select {
		case <-r.closed:
			return r.finishSegment(remoteID, kind, index, filePath, start, size), fmt.Errorf("recorder closed")
		default:
		}

		buf := r.bufPool.Get()
		n, _, err := track.Read(buf)
		if err != nil {
			r.bufPool.Put(buf)
			return r.finishSegment(remoteID, kind, index, filePath, start, size), fmt.Errorf("track read: %w", err)
		}

		binary.BigEndian.PutUint16(prefix[:], uint16(n))
		if _, err := file.Write(prefix[:]); err != nil {
			r.bufPool.Put(buf)
			return r.finishSegment(remoteID, kind, index, filePath, start, size), fmt.Errorf("segment write: %w", err)
		}
		if _, err := file.Write(buf[:n]); err != nil {
			r.bufPool.Put(buf)
			return r.finishSegment(remoteID, kind, index, filePath, start, size), fmt.Errorf("segment write: %w", err)
		}
		r.bufPool.Put(buf)
		size += int64(n) + 2
	}

	return r.finishSegment(remoteID, kind, index, filePath, start, size), nil
}

func (r *SessionRecorder) finishSegment(remoteID domain.UserID, kind string, index int, filePath string, start time.Time, size int64) *Segment {
	if size == 0 {
		os.Remove(filePath)
		return nil
	}
	return &Segment{
		ID:          fmt.Sprintf("segment-%d", index),
		SessionID:   r.sessionID,
		Participant: remoteID,
		Kind:        kind,
		Index:       index,
		StartTime:   start,
		Duration:    time.Since(start),
		FilePath:    filePath,
		Size:        size,
	}
}
