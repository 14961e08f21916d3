package audio_utils

import (
	"math"
	"time"
)

// Note is one tone of a Melody; a zero Frequency is a rest.
type Note struct {
	Frequency float64
	Duration  time.Duration
}

// SineWave generates a mono 16-bit sine tone at the given amplitude (0..1).
func SineWave(frequency float64, duration time.Duration, sampleRate int, amplitude float64) []int16 {
	n := int(duration.Seconds() * float64(sampleRate))
	samples := make([]int16, n)
	if frequency <= 0 {
		return samples
	}
	for i := range samples {
		v := amplitude * math.Sin(2*math.Pi*frequency*float64(i)/float64(sampleRate))
		samples[i] = int16(v * math.MaxInt16)
	}
	return samples
}

// Melody concatenates the notes into one buffer.
func Melody(notes []Note, sampleRate int, amplitude float64) []int16 {
	var res []int16
	for _, n := range notes {
		res = append(res, SineWave(n.Frequency, n.Duration, sampleRate, amplitude)...)
	}
	return res
}

// Scale is the C major scale from C4 to C5, a quarter second each.
func Scale() []Note {
	freqs := []float64{261.63, 293.66, 329.63, 349.23, 392.00, 440.00, 493.88, 523.25}
	notes := make([]Note, len(freqs))
	for i, f := range freqs {
		notes[i] = Note{Frequency: f, Duration: 250 * time.Millisecond}
	}
	return notes
}
