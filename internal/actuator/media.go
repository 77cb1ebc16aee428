package actuator

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-hub/internal/entity"
	"github.com/nerrad567/gray-logic-hub/internal/service"
)

// MediaValue is the playback state of a media receiver.
type MediaValue string

// Media receiver values.
const (
	MediaUnknown MediaValue = "unknown"
	MediaOff     MediaValue = "off"
	MediaIdle    MediaValue = "idle"
	MediaPlaying MediaValue = "playing"
	MediaPaused  MediaValue = "paused"
)

const mediaPlayerDomain = "media_player"

// Media player services.
const (
	serviceVolumeMute = "volume_mute"
	serviceVolumeSet  = "volume_set"
	serviceMediaSeek  = "media_seek"
	serviceMediaPlay  = "media_play"
	serviceMediaPause = "media_pause"
)

// Media player attributes and service data keys.
const (
	attrVolumeLevel    = "volume_level"
	attrIsVolumeMuted  = "is_volume_muted"
	attrMediaPosition  = "media_position"
	attrSeekPosition   = "seek_position"
	attrMediaTitle     = "media_title"
	attrMediaArtist    = "media_artist"
	attrMediaContentID = "media_content_id"
)

// MediaDelta holds the optional settings of a media receiver desired state.
type MediaDelta struct {
	VolumeLevel *float64
	Muted       *bool
	Position    *float64
}

// ParseMedia maps a raw state value. Unrecognised values are unknown.
func ParseMedia(s entity.State) MediaValue {
	switch v := MediaValue(s.Value); v {
	case MediaOff, MediaIdle, MediaPlaying, MediaPaused:
		return v
	default:
		return MediaUnknown
	}
}

var (
	muteRule = service.When(serviceVolumeMute, func(d MediaDelta) (map[string]any, bool) {
		if d.Muted == nil {
			return nil, false
		}
		return map[string]any{attrIsVolumeMuted: *d.Muted}, true
	})
	volumeRule = service.When(serviceVolumeSet, func(d MediaDelta) (map[string]any, bool) {
		if d.VolumeLevel == nil {
			return nil, false
		}
		return map[string]any{attrVolumeLevel: *d.VolumeLevel}, true
	})
	seekRule = service.When(serviceMediaSeek, func(d MediaDelta) (map[string]any, bool) {
		if d.Position == nil {
			return nil, false
		}
		return map[string]any{attrSeekPosition: *d.Position}, true
	})
)

// MediaResolver returns the media receiver rule table. The order of the
// rules in each case is the priority when several deltas are present.
func MediaResolver() *service.Resolver[MediaValue, MediaDelta] {
	return service.NewResolver[MediaValue, MediaDelta](mediaPlayerDomain).
		Terminal(MediaUnknown).
		Case(MediaIdle, service.TurnOn, muteRule, volumeRule).
		Case(MediaPaused, serviceMediaPause, volumeRule, seekRule, muteRule).
		Case(MediaPlaying, serviceMediaPlay, seekRule, muteRule, volumeRule).
		Case(MediaOff, service.TurnOff)
}

// MediaReceiver is a media_player entity.
type MediaReceiver struct {
	*Actuator[MediaValue, MediaDelta]
}

// NewMediaReceiver creates a media receiver facade for media_player.objectID.
func NewMediaReceiver(objectID string, deps Deps) *MediaReceiver {
	id := entity.NewID(mediaPlayerDomain, objectID)
	return &MediaReceiver{New(id, ParseMedia, MediaResolver(), deps)}
}

type mediaDesired = service.Desired[MediaValue, MediaDelta]

// TurnOn requests the idle state.
func (m *MediaReceiver) TurnOn(ctx context.Context) (int64, error) {
	return m.SetDesiredState(ctx, mediaDesired{Value: MediaIdle})
}

// TurnOff requests the off state.
func (m *MediaReceiver) TurnOff(ctx context.Context) (int64, error) {
	return m.SetDesiredState(ctx, mediaDesired{Value: MediaOff})
}

// Play requests playback.
func (m *MediaReceiver) Play(ctx context.Context) (int64, error) {
	return m.SetDesiredState(ctx, mediaDesired{Value: MediaPlaying})
}

// Pause requests the paused state.
func (m *MediaReceiver) Pause(ctx context.Context) (int64, error) {
	return m.SetDesiredState(ctx, mediaDesired{Value: MediaPaused})
}

// SetVolume sets the volume level (0..1) keeping the current playback
// state. Not allowed while the receiver is off or unknown.
func (m *MediaReceiver) SetVolume(ctx context.Context, level float64) (int64, error) {
	return m.withCurrent(ctx, "set volume", MediaDelta{VolumeLevel: &level})
}

// Mute mutes the receiver keeping the current playback state.
func (m *MediaReceiver) Mute(ctx context.Context) (int64, error) {
	muted := true
	return m.withCurrent(ctx, "mute", MediaDelta{Muted: &muted})
}

// Unmute unmutes the receiver keeping the current playback state.
func (m *MediaReceiver) Unmute(ctx context.Context) (int64, error) {
	muted := false
	return m.withCurrent(ctx, "unmute", MediaDelta{Muted: &muted})
}

// Seek jumps to position (seconds). Only allowed while playing or paused.
func (m *MediaReceiver) Seek(ctx context.Context, position float64) (int64, error) {
	snap, ok := m.ActualState()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoState, m.ID())
	}
	if snap.Value != MediaPlaying && snap.Value != MediaPaused {
		return 0, fmt.Errorf("%w: cannot seek %s while %s", ErrNotAllowed, m.ID(), snap.Value)
	}
	return m.SetDesiredState(ctx, mediaDesired{Value: snap.Value, Delta: MediaDelta{Position: &position}})
}

// withCurrent submits delta with the current value as the desired value.
func (m *MediaReceiver) withCurrent(ctx context.Context, what string, delta MediaDelta) (int64, error) {
	snap, ok := m.ActualState()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoState, m.ID())
	}
	if snap.Value == MediaOff || snap.Value == MediaUnknown {
		return 0, fmt.Errorf("%w: cannot %s %s while %s", ErrNotAllowed, what, m.ID(), snap.Value)
	}
	return m.SetDesiredState(ctx, mediaDesired{Value: snap.Value, Delta: delta})
}

// IsOn reports whether the receiver is neither off nor unknown.
func (m *MediaReceiver) IsOn() bool {
	snap, ok := m.ActualState()
	return ok && snap.Value != MediaOff && snap.Value != MediaUnknown
}

// IsPlaying reports whether the receiver is playing.
func (m *MediaReceiver) IsPlaying() bool {
	return m.is(MediaPlaying)
}

// IsPaused reports whether the receiver is paused.
func (m *MediaReceiver) IsPaused() bool {
	return m.is(MediaPaused)
}

// IsIdle reports whether the receiver is idle.
func (m *MediaReceiver) IsIdle() bool {
	return m.is(MediaIdle)
}

func (m *MediaReceiver) is(v MediaValue) bool {
	snap, ok := m.ActualState()
	return ok && snap.Value == v
}

// VolumeLevel returns the reported volume level.
func VolumeLevel(s Snapshot[MediaValue]) (float64, bool) {
	return s.State.Float(attrVolumeLevel)
}

// IsMuted returns the reported mute flag.
func IsMuted(s Snapshot[MediaValue]) (bool, bool) {
	return s.State.Bool(attrIsVolumeMuted)
}

// MediaPosition returns the reported playback position in seconds.
func MediaPosition(s Snapshot[MediaValue]) (float64, bool) {
	return s.State.Float(attrMediaPosition)
}

// NowPlaying returns the reported title, artist and content id.
func NowPlaying(s Snapshot[MediaValue]) (title, artist, contentID string) {
	title, _ = s.State.Text(attrMediaTitle)
	artist, _ = s.State.Text(attrMediaArtist)
	contentID, _ = s.State.Text(attrMediaContentID)
	return title, artist, contentID
}

func playbackStarted(c Change[MediaValue]) bool {
	return c.ChangedFrom(MediaIdle, MediaPlaying)
}

func playbackStopped(c Change[MediaValue]) bool {
	return c.ChangedFrom(MediaPlaying, MediaIdle) ||
		c.ChangedFrom(MediaPlaying, MediaOff) ||
		c.ChangedFrom(MediaPaused, MediaOff) ||
		c.ChangedFrom(MediaPaused, MediaIdle)
}

func playbackPaused(c Change[MediaValue]) bool {
	return c.ChangedFrom(MediaPlaying, MediaPaused)
}

func playbackResumed(c Change[MediaValue]) bool {
	return c.ChangedFrom(MediaPaused, MediaPlaying)
}

// volumeTrend compares the previous volume level with the current one.
// increasing selects the direction; threshold, when
// non-nil, must also be crossed by the current level.
func volumeTrend(increasing bool, threshold *float64) func(Change[MediaValue]) bool {
	return func(c Change[MediaValue]) bool {
		prev, ok := c.Previous(1)
		if !ok {
			return false
		}
		before, ok := VolumeLevel(prev)
		if !ok {
			return false
		}
		now, ok := VolumeLevel(c.New)
		if !ok {
			return false
		}
		if increasing {
			return before < now && (threshold == nil || now > *threshold)
		}
		return before > now && (threshold == nil || now < *threshold)
	}
}

// OnPlaybackStarted calls fn when playback starts from idle.
func (m *MediaReceiver) OnPlaybackStarted(fn func(Change[MediaValue]) error) Handle {
	return m.Observe(when(playbackStarted, fn))
}

// OnPlaybackStartedAsync is the asynchronous form of OnPlaybackStarted.
func (m *MediaReceiver) OnPlaybackStartedAsync(fn func(context.Context, Change[MediaValue]) error) Handle {
	return m.ObserveAsync(whenAsync(playbackStarted, fn))
}

// OnPlaybackStopped calls fn when playing or paused media stops (idle or off).
func (m *MediaReceiver) OnPlaybackStopped(fn func(Change[MediaValue]) error) Handle {
	return m.Observe(when(playbackStopped, fn))
}

// OnPlaybackStoppedAsync is the asynchronous form of OnPlaybackStopped.
func (m *MediaReceiver) OnPlaybackStoppedAsync(fn func(context.Context, Change[MediaValue]) error) Handle {
	return m.ObserveAsync(whenAsync(playbackStopped, fn))
}

// OnPlaybackPaused calls fn when playback is paused.
func (m *MediaReceiver) OnPlaybackPaused(fn func(Change[MediaValue]) error) Handle {
	return m.Observe(when(playbackPaused, fn))
}

// OnPlaybackPausedAsync is the asynchronous form of OnPlaybackPaused.
func (m *MediaReceiver) OnPlaybackPausedAsync(fn func(context.Context, Change[MediaValue]) error) Handle {
	return m.ObserveAsync(whenAsync(playbackPaused, fn))
}

// OnPlaybackResumed calls fn when paused playback resumes.
func (m *MediaReceiver) OnPlaybackResumed(fn func(Change[MediaValue]) error) Handle {
	return m.Observe(when(playbackResumed, fn))
}

// OnPlaybackResumedAsync is the asynchronous form of OnPlaybackResumed.
func (m *MediaReceiver) OnPlaybackResumedAsync(fn func(context.Context, Change[MediaValue]) error) Handle {
	return m.ObserveAsync(whenAsync(playbackResumed, fn))
}

// OnVolumeIncreasing calls fn when the volume rises compared with the
// previous state. With a threshold, the new level must also exceed it.
func (m *MediaReceiver) OnVolumeIncreasing(threshold *float64, fn func(Change[MediaValue]) error) Handle {
	return m.Observe(when(volumeTrend(true, threshold), fn))
}

// OnVolumeIncreasingAsync is the asynchronous form of OnVolumeIncreasing.
func (m *MediaReceiver) OnVolumeIncreasingAsync(threshold *float64, fn func(context.Context, Change[MediaValue]) error) Handle {
	return m.ObserveAsync(whenAsync(volumeTrend(true, threshold), fn))
}

// OnVolumeDecreasing calls fn when the volume drops compared with the
// previous state. With a threshold, the new level must also be below it.
func (m *MediaReceiver) OnVolumeDecreasing(threshold *float64, fn func(Change[MediaValue]) error) Handle {
	return m.Observe(when(volumeTrend(false, threshold), fn))
}

// OnVolumeDecreasingAsync is the asynchronous form of OnVolumeDecreasing.
func (m *MediaReceiver) OnVolumeDecreasingAsync(threshold *float64, fn func(context.Context, Change[MediaValue]) error) Handle {
	return m.ObserveAsync(whenAsync(volumeTrend(false, threshold), fn))
}
