package audio_utils

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const wavFormatPCM = 1

func dbg(err error) {
	if err != nil {
		log.Debug().Err(err).Msg("sth non-essential failed")
	}
}

// Float32Samples reinterprets a captured frame (interleaved float32 in native
// byte order) as samples. A trailing partial sample is ignored.
func Float32Samples(frame []byte) []float32 {
	samples := make([]float32, len(frame)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.NativeEndian.Uint32(frame[i*4:]))
	}
	return samples
}

// FloatToInt16 converts [-1, 1] float samples to 16-bit PCM, clipping anything outside.
func FloatToInt16(samples []float32) []int16 {
	res := make([]int16, len(samples))
	for i, s := range samples {
		switch {
		case s >= 1:
			res[i] = math.MaxInt16
		case s <= -1:
			res[i] = -math.MaxInt16
		default:
			res[i] = int16(s * math.MaxInt16)
		}
	}
	return res
}

// Int16ToBytes encodes samples as S16 little endian, the wire and WAV layout.
func Int16ToBytes(samples []int16) []byte {
	res := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(res[i*2:], uint16(s))
	}
	return res
}

// BytesToInt16 decodes S16 little endian bytes. A trailing odd byte is ignored.
func BytesToInt16(data []byte) []int16 {
	res := make([]int16, len(data)/2)
	for i := range res {
		res[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return res
}

// Downmix averages interleaved channels into mono.
func Downmix(samples []int, channels int) []int16 {
	if channels <= 1 {
		res := make([]int16, len(samples))
		for i, s := range samples {
			res[i] = clampInt16(s)
		}
		return res
	}
	res := make([]int16, len(samples)/channels)
	for i := range res {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		res[i] = clampInt16(sum / channels)
	}
	return res
}

func clampInt16(v int) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}

// ConvertTwoByteSamplesToWav assumes S16 encoding (or two bytes per value)
func ConvertTwoByteSamplesToWav(byteData []byte, sampleRate uint32, numChannels uint32) (result []byte, err error) {
	intData := twoByteDataToIntSlice(byteData)

	inputBuffer := &audio.IntBuffer{
		Data: intData,
		Format: &audio.Format{
			SampleRate:  int(sampleRate),
			NumChannels: int(numChannels),
		},
		SourceBitDepth: 16,
	}
	return EncodeToWav(inputBuffer)
}

// ConvertFloat32FramesToWav encodes captured float32 frames as a 16-bit PCM wav.
func ConvertFloat32FramesToWav(frames []byte, sampleRate uint32, numChannels uint32) ([]byte, error) {
	return ConvertTwoByteSamplesToWav(Int16ToBytes(FloatToInt16(Float32Samples(frames))), sampleRate, numChannels)
}

// EncodeToWav encodes a 16-bit buffer as a PCM wav file in memory.
func EncodeToWav(inputBuffer *audio.IntBuffer) (result []byte, err error) {
	if len(inputBuffer.Data) == 0 {
		return // Nothing to do
	}

	// wav.NewEncoder needs an io.WriteSeeker to finalize the headers.
	fs := afero.NewMemMapFs()
	inMemoryFilename := "in-memory-output.wav"
	if err = WriteWavFile(fs, inMemoryFilename, inputBuffer); err != nil {
		return
	}

	result, err = afero.ReadFile(fs, inMemoryFilename)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read in-memory wav")
	}
	if len(result) == 0 {
		err = errors.New("wav output is empty when input was not")
	}
	return
}

// WriteWavFile encodes inputBuffer as a 16-bit PCM wav at path on fs.
func WriteWavFile(fs afero.Fs, path string, inputBuffer *audio.IntBuffer) error {
	f, err := fs.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot create %s", path)
	}
	defer func() { dbg(f.Close()) }()

	outputBitDepth := 16
	sampleRate := inputBuffer.Format.SampleRate
	numChannels := inputBuffer.Format.NumChannels
	wavEncoder := wav.NewEncoder(f, sampleRate, outputBitDepth, numChannels, wavFormatPCM)
	log.Debug().Int("int_data_length", len(inputBuffer.Data)).Int("sample_rate", sampleRate).
		Int("source_bit_depth", inputBuffer.SourceBitDepth).Int("num_channels", numChannels).
		Str("path", path).Msg("encoding int stream output as a wav")

	if err := wavEncoder.Write(inputBuffer); err != nil {
		return errors.Wrap(err, "cannot encode byte output as wav")
	}
	// Close flushes remaining data and finalizes the header.
	if err := wavEncoder.Close(); err != nil {
		return errors.Wrap(err, "cannot finish wav encoding")
	}
	return nil
}

func twoByteDataToIntSlice(audioData []byte) []int {
	intData := make([]int, len(audioData)/2)
	for i := range intData {
		intData[i] = int(int16(binary.LittleEndian.Uint16(audioData[i*2:])))
	}
	return intData
}

func readAll(r io.Reader, what string) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", what)
	}
	return data, nil
}
