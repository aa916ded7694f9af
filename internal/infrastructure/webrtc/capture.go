package webrtc

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// PacketSource yields RTP packets from a capture device or encoder.
type PacketSource interface {
	ReadRTP() (*rtp.Packet, error)
	Close() error
}

// MediaConstraints describe the capture request for one acquisition
// attempt.
type MediaConstraints struct {
	Width     int
	Height    int
	Framerate int
}

// DefaultConstraints is the first-choice capture profile.
var DefaultConstraints = MediaConstraints{Width: 1280, Height: 720, Framerate: 30}

// FallbackConstraints is retried when the default profile is refused by
// the device.
var FallbackConstraints = MediaConstraints{Width: 640, Height: 480, Framerate: 15}

// DeviceOpener acquires a device with the given constraints. Platform
// bindings provide the implementation.
type DeviceOpener interface {
	OpenAudio() (PacketSource, error)
	OpenVideo(deviceID string, constraints MediaConstraints) (PacketSource, error)
}

var ErrMediaAcquisition = errors.New("media acquisition failed")

// CaptureSource owns the local audio and video tracks and the pump
// goroutines feeding them. Mute is local only: the pump drops packets
// while a kind is disabled, the tracks stay attached and negotiation is
// never re-run.
type CaptureSource struct {
	opener DeviceOpener
	logger *zap.SugaredLogger

	audioTrack *webrtc.TrackLocalStaticRTP
	videoTrack *webrtc.TrackLocalStaticRTP

	audioEnabled atomic.Bool
	videoEnabled atomic.Bool

	mu           sync.Mutex
	audioSource  PacketSource
	videoSource  PacketSource
	videoDevice  string
	onVideoSwap  func(webrtc.TrackLocal)
	closeOnce    sync.Once
	done         chan struct{}
}

// Acquire opens the devices and builds the local tracks. A refused video
// profile is retried once with relaxed constraints before giving up with
// ErrMediaAcquisition.
func Acquire(opener DeviceOpener, videoDevice string, logger *zap.SugaredLogger) (*CaptureSource, error) {
	audioSource, err := opener.OpenAudio()
	if err != nil {
		return nil, fmt.Errorf("%w: audio: %v", ErrMediaAcquisition, err)
	}

	videoSource, err := opener.OpenVideo(videoDevice, DefaultConstraints)
	if err != nil {
		logger.Warnw("video capture refused, retrying with relaxed constraints",
			"device", videoDevice, "error", err)
		videoSource, err = opener.OpenVideo(videoDevice, FallbackConstraints)
		if err != nil {
			_ = audioSource.Close()
			return nil, fmt.Errorf("%w: video: %v", ErrMediaAcquisition, err)
		}
	}

	audioTrack, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "liveclass-"+uuid.NewString(),
	)
	if err != nil {
		_ = audioSource.Close()
		_ = videoSource.Close()
		return nil, fmt.Errorf("failed to create audio track: %w", err)
	}

	videoTrack, err := newVideoTrack()
	if err != nil {
		_ = audioSource.Close()
		_ = videoSource.Close()
		return nil, err
	}

	c := &CaptureSource{
		opener:      opener,
		logger:      logger,
		audioTrack:  audioTrack,
		videoTrack:  videoTrack,
		audioSource: audioSource,
		videoSource: videoSource,
		videoDevice: videoDevice,
		done:        make(chan struct{}),
	}
	c.audioEnabled.Store(true)
	c.videoEnabled.Store(true)

	go c.pump(audioSource, audioTrack, &c.audioEnabled, "audio")
	go c.pump(videoSource, videoTrack, &c.videoEnabled, "video")

	return c, nil
}

func newVideoTrack() (*webrtc.TrackLocalStaticRTP, error) {
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video", "liveclass-"+uuid.NewString(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create video track: %w", err)
	}
	return track, nil
}

func (c *CaptureSource) AudioTrack() webrtc.TrackLocal { return c.audioTrack }
func (c *CaptureSource) VideoTrack() webrtc.TrackLocal { return c.videoTrack }

// OnVideoSwap registers the callback fired after SwitchVideoDevice
// builds a replacement track, so the owner can push it into every
// active sender.
func (c *CaptureSource) OnVideoSwap(fn func(webrtc.TrackLocal)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onVideoSwap = fn
}

// SetAudioEnabled toggles the outgoing audio without signaling.
func (c *CaptureSource) SetAudioEnabled(enabled bool) { c.audioEnabled.Store(enabled) }

// SetVideoEnabled toggles the outgoing video without signaling.
func (c *CaptureSource) SetVideoEnabled(enabled bool) { c.videoEnabled.Store(enabled) }

func (c *CaptureSource) AudioEnabled() bool { return c.audioEnabled.Load() }
func (c *CaptureSource) VideoEnabled() bool { return c.videoEnabled.Load() }

// SwitchVideoDevice opens the new device, builds a fresh video track,
// and hands it to the swap callback. The old source is closed only after
// the new one is live, so a failed open leaves capture untouched.
func (c *CaptureSource) SwitchVideoDevice(deviceID string) error {
	source, err := c.opener.OpenVideo(deviceID, DefaultConstraints)
	if err != nil {
		source, err = c.opener.OpenVideo(deviceID, FallbackConstraints)
		if err != nil {
			return fmt.Errorf("%w: video: %v", ErrMediaAcquisition, err)
		}
	}

	track, err := newVideoTrack()
	if err != nil {
		_ = source.Close()
		return err
	}

	c.mu.Lock()
	old := c.videoSource
	c.videoSource = source
	c.videoTrack = track
	c.videoDevice = deviceID
	swap := c.onVideoSwap
	c.mu.Unlock()

	go c.pump(source, track, &c.videoEnabled, "video")
	if old != nil {
		_ = old.Close()
	}
	if swap != nil {
		swap(track)
	}

	c.logger.Infow("video device switched", "device", deviceID)
	return nil
}

// Close releases the devices. Idempotent.
func (c *CaptureSource) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.audioSource != nil {
			_ = c.audioSource.Close()
		}
		if c.videoSource != nil {
			_ = c.videoSource.Close()
		}
	})
}

func (c *CaptureSource) pump(source PacketSource, track *webrtc.TrackLocalStaticRTP, enabled *atomic.Bool, kind string) {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		packet, err := source.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.logger.Debugw("capture read stopped", "kind", kind, "error", err)
			}
			return
		}
		if !enabled.Load() {
			continue
		}
		if err := track.WriteRTP(packet); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			c.logger.Debugw("track write failed", "kind", kind, "error", err)
		}
	}
}
