package commands

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/petrzlen/saira-audio/internal/config"
	"github.com/petrzlen/saira-audio/pkg/audio_utils"
	"github.com/spf13/afero"
)

func TestCaptureFlagsConfig(t *testing.T) {
	saved := cfg
	defer func() { cfg = saved }()
	cfg = config.Default()
	cfg.DeviceID = "in:abc"

	f := captureFlags{}
	c := f.config()
	if c.SampleRate != 44100 || c.ChannelCount != 1 || c.DeviceID != "in:abc" {
		t.Fatalf("unexpected config %+v", c)
	}

	f = captureFlags{sampleRate: 16000, channels: 2, deviceID: "in:def"}
	c = f.config()
	if c.SampleRate != 16000 || c.ChannelCount != 2 || c.DeviceID != "in:def" {
		t.Fatalf("unexpected config %+v", c)
	}
}

func TestRecorderSaveWav(t *testing.T) {
	saved := osFs
	defer func() { osFs = saved }()
	osFs = afero.NewMemMapFs()

	frame := make([]byte, 8)
	binary.NativeEndian.PutUint32(frame[0:], math.Float32bits(0.5))
	binary.NativeEndian.PutUint32(frame[4:], math.Float32bits(-0.5))
	rec := &recorder{}
	rec.onFrame(frame)
	rec.onFrame(frame)

	if err := saveWav("output/take.wav", rec.Samples(), 16000, 1); err != nil {
		t.Fatal(err)
	}
	buf, err := audio_utils.DecodeFile(osFs, "output/take.wav")
	if err != nil {
		t.Fatal(err)
	}
	if len(buf.Data) != 4 || buf.Data[0] != 16383 || buf.Data[1] != -16383 {
		t.Fatalf("unexpected samples %v", buf.Data)
	}
}

func TestRootCommandTree(t *testing.T) {
	want := []string{"devices", "record", "play", "tone", "loopback", "transcribe", "serve"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("command %q not registered", name)
		}
	}
}
