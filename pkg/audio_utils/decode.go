package audio_utils

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// ErrSampleRate is returned when decoded audio does not have the rate the
// caller needs. Nothing is resampled.
var ErrSampleRate = errors.New("unsupported sample rate")

// DecodeFile decodes a wav, mp3 or flac file, picked by extension, into a
// 16-bit buffer.
func DecodeFile(fs afero.Fs, path string) (*audio.IntBuffer, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %s", path)
	}
	defer func() { dbg(f.Close()) }()

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	var buf *audio.IntBuffer
	switch ext {
	case "wav":
		buf, err = DecodeFromWav(f)
	case "mp3":
		buf, err = DecodeFromMp3(f)
	case "flac":
		buf, err = DecodeFromFlac(f)
	default:
		return nil, errors.Errorf("unknown file format %q", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode %s", path)
	}
	log.Debug().Str("path", path).Int("samples", len(buf.Data)).Int("sample_rate", buf.Format.SampleRate).
		Int("num_channels", buf.Format.NumChannels).Msg("decoded audio file")
	return buf, nil
}

// DecodeFromWav decodes a PCM wav stream.
func DecodeFromWav(r io.ReadSeeker) (*audio.IntBuffer, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, errors.New("not a valid wav file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "cannot read wav samples")
	}
	to16Bit(buf.Data, int(d.BitDepth))
	buf.SourceBitDepth = 16
	return buf, nil
}

// DecodeFromMp3 decodes an mp3 stream. go-mp3 always yields 16-bit stereo.
func DecodeFromMp3(r io.Reader) (*audio.IntBuffer, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, errors.Wrap(err, "mp3.NewDecoder")
	}
	data, err := readAll(d, "mp3 samples")
	if err != nil {
		return nil, err
	}
	return &audio.IntBuffer{
		Data:           twoByteDataToIntSlice(data),
		Format:         &audio.Format{SampleRate: d.SampleRate(), NumChannels: 2},
		SourceBitDepth: 16,
	}, nil
}

// DecodeFromFlac decodes a flac stream, interleaving its channels.
func DecodeFromFlac(r io.Reader) (*audio.IntBuffer, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, errors.Wrap(err, "flac.New")
	}
	defer func() { dbg(stream.Close()) }()

	channels := int(stream.Info.NChannels)
	var data []int
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "cannot parse flac frame")
		}
		if len(frame.Subframes) != channels {
			return nil, errors.Errorf("flac frame has %d channels, want %d", len(frame.Subframes), channels)
		}
		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			for _, sub := range frame.Subframes {
				data = append(data, int(sub.Samples[i]))
			}
		}
	}
	to16Bit(data, int(stream.Info.BitsPerSample))
	return &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: int(stream.Info.SampleRate), NumChannels: channels},
		SourceBitDepth: 16,
	}, nil
}

// DecodeBytes decodes an in-memory file of the given format.
func DecodeBytes(data []byte, format string) (*audio.IntBuffer, error) {
	switch format {
	case "wav":
		return DecodeFromWav(bytes.NewReader(data))
	case "mp3":
		return DecodeFromMp3(bytes.NewReader(data))
	case "flac":
		return DecodeFromFlac(bytes.NewReader(data))
	default:
		return nil, errors.Errorf("unknown file format %q", format)
	}
}

// SniffFormat names the container of an in-memory file by its magic bytes:
// "wav", "flac" or an ID3 tagged "mp3". Anything else, raw PCM included,
// is "".
func SniffFormat(data []byte) string {
	switch {
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return "wav"
	case bytes.HasPrefix(data, []byte("fLaC")):
		return "flac"
	case bytes.HasPrefix(data, []byte("ID3")):
		return "mp3"
	}
	return ""
}

// to16Bit rescales samples of the given bit depth to 16 bits in place.
func to16Bit(data []int, bitDepth int) {
	switch {
	case bitDepth == 8:
		// 8-bit PCM is unsigned.
		for i, v := range data {
			data[i] = (v - 128) << 8
		}
	case bitDepth > 16:
		shift := bitDepth - 16
		for i, v := range data {
			data[i] = v >> shift
		}
	}
}

// PlaybackSamples turns buf into mono samples at sampleRate, downmixing
// multichannel audio. It fails with ErrSampleRate on any other rate.
func PlaybackSamples(buf *audio.IntBuffer, sampleRate int) ([]int16, error) {
	if buf.Format == nil {
		return nil, errors.New("audio buffer has no format")
	}
	if buf.Format.SampleRate != sampleRate {
		return nil, errors.Wrapf(ErrSampleRate, "audio is %d Hz, need %d Hz", buf.Format.SampleRate, sampleRate)
	}
	return Downmix(buf.Data, buf.Format.NumChannels), nil
}
