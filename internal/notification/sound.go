package notification

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"turnero-desk/internal/events"
	"turnero-desk/internal/model"
)

// Tone is one sine tone with an attack/decay volume envelope: gain rises
// linearly from 0 to Peak during Attack, then decays exponentially to
// Floor at Duration, where the tone stops.
type Tone struct {
	Frequency float64       `json:"frequency"`
	Duration  time.Duration `json:"duration"`
	Attack    time.Duration `json:"attack"`
	Peak      float64       `json:"peak"`
	Floor     float64       `json:"floor"`
}

// Gain returns the envelope value at offset at from the tone start.
func (t Tone) Gain(at time.Duration) float64 {
	switch {
	case at < 0 || at >= t.Duration:
		return 0
	case at < t.Attack:
		return t.Peak * float64(at) / float64(t.Attack)
	}
	decay := t.Duration - t.Attack
	if decay <= 0 || t.Floor <= 0 {
		return t.Peak
	}
	frac := float64(at-t.Attack) / float64(decay)
	return t.Peak * math.Pow(t.Floor/t.Peak, frac)
}

// Chime is a sequence of tones whose starts are Gap apart.
type Chime struct {
	Tones []Tone        `json:"tones"`
	Gap   time.Duration `json:"gap"`
}

// DefaultChime is the two-tone new-visitor cue.
var DefaultChime = Chime{
	Tones: []Tone{
		{Frequency: 800, Duration: 300 * time.Millisecond, Attack: 10 * time.Millisecond, Peak: 0.3, Floor: 0.01},
		{Frequency: 1000, Duration: 300 * time.Millisecond, Attack: 10 * time.Millisecond, Peak: 0.3, Floor: 0.01},
	},
	Gap: 150 * time.Millisecond,
}

// Length is the time from the first tone start to the last tone end.
func (c Chime) Length() time.Duration {
	var end time.Duration
	for i, t := range c.Tones {
		if e := time.Duration(i)*c.Gap + t.Duration; e > end {
			end = e
		}
	}
	return end
}

// Sample mixes every tone at offset at.
func (c Chime) Sample(at time.Duration) float64 {
	var v float64
	for i, t := range c.Tones {
		local := at - time.Duration(i)*c.Gap
		g := t.Gain(local)
		if g == 0 {
			continue
		}
		v += g * math.Sin(2*math.Pi*t.Frequency*local.Seconds())
	}
	return v
}

// WAV renders the chime as a mono 16-bit PCM RIFF file.
func (c Chime) WAV(sampleRate int) []byte {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	n := int(int64(c.Length()) * int64(sampleRate) / int64(time.Second))
	dataSize := uint32(n * 2)

	var buf bytes.Buffer
	buf.Grow(44 + int(dataSize))
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, 36+dataSize)
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(&buf, binary.LittleEndian, struct {
		ChunkSize     uint32
		Format        uint16
		Channels      uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
	}{16, 1, 1, uint32(sampleRate), uint32(sampleRate * 2), 2, 16})
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, dataSize)

	step := time.Second / time.Duration(sampleRate)
	for i := 0; i < n; i++ {
		v := c.Sample(time.Duration(i) * step)
		v = math.Max(-1, math.Min(1, v))
		_ = binary.Write(&buf, binary.LittleEndian, int16(v*math.MaxInt16))
	}
	return buf.Bytes()
}

// Speaker starts playing a tone. It must not wait for the tone to end.
type Speaker interface {
	PlayTone(ctx context.Context, turn model.Turn, index int, tone Tone) error
}

// EventSpeaker hands tones to the browser over the event hub, which
// renders them with Web Audio.
type EventSpeaker struct {
	Publisher Publisher
}

// PlayTone publishes a sound event.
func (s EventSpeaker) PlayTone(_ context.Context, turn model.Turn, index int, tone Tone) error {
	s.Publisher.Publish(events.Event{
		Stream: events.StreamReceived,
		Type:   events.TypeSound,
		TurnID: turn.ID,
		Data:   map[string]any{"index": index, "tone": tone},
	})
	return nil
}

// Sound plays the chime for a new turn unless the user muted it. The
// enabled flag is read once, right before the first tone: muting after
// that does not cut a chime already playing.
type Sound struct {
	chime   Chime
	speaker Speaker
	clock   clockwork.Clock
	enabled atomic.Bool
}

// NewSound creates a Sound alerter.
func NewSound(speaker Speaker, clock clockwork.Clock, enabled bool) *Sound {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Sound{chime: DefaultChime, speaker: speaker, clock: clock}
	s.enabled.Store(enabled)
	return s
}

// Chime returns the chime being played.
func (s *Sound) Chime() Chime { return s.chime }

// Enabled reports whether new chimes will play.
func (s *Sound) Enabled() bool { return s.enabled.Load() }

// SetEnabled turns the chime on or off.
func (s *Sound) SetEnabled(on bool) { s.enabled.Store(on) }

// Toggle flips the chime and returns the new state.
func (s *Sound) Toggle() bool {
	for {
		old := s.enabled.Load()
		if s.enabled.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Alert plays the chime for turn.
func (s *Sound) Alert(ctx context.Context, turn model.Turn) error {
	if !s.enabled.Load() {
		log.Debug().Int64("turn_id", turn.ID).Msg("sound disabled; skipping chime")
		return nil
	}

	for i, tone := range s.chime.Tones {
		if i > 0 {
			select {
			case <-s.clock.After(s.chime.Gap):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := s.speaker.PlayTone(ctx, turn, i, tone); err != nil {
			return err
		}
	}
	return nil
}
