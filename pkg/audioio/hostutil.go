package audioio

import (
	"bytes"
	"encoding/hex"

	"github.com/pkg/errors"
)

// encodeHostDeviceID turns a raw host device id into a printable id that is
// stable across enumerations. Trailing zero padding is not part of the id.
func encodeHostDeviceID(raw []byte) string {
	return hex.EncodeToString(bytes.TrimRight(raw, "\x00"))
}

// decodeHostDeviceID reverses encodeHostDeviceID into dst, which must be
// zeroed and sized like the host's id type.
func decodeHostDeviceID(id string, dst []byte) error {
	raw, err := hex.DecodeString(id)
	if err != nil {
		return errors.Wrapf(err, "malformed device id %q", id)
	}
	if len(raw) > len(dst) {
		return errors.Errorf("device id %q is too long", id)
	}
	copy(dst, raw)
	return nil
}

// renderReader turns a pull-based player's Read into DataProc calls. Reads
// always cover whole frames; a buffer too short for one frame is silence.
type renderReader struct {
	proc      DataProc
	frameSize int
}

func (r *renderReader) Read(p []byte) (int, error) {
	frames := len(p) / r.frameSize
	if frames == 0 {
		clear(p)
		return len(p), nil
	}
	n := frames * r.frameSize
	r.proc(p[:n], nil, uint32(frames))
	return n, nil
}
