package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// EncodeRLE encodes a sequence of palette ids into base64(varint pairs).
// The pairs are (palette_id, run_len) repeated. Grid snapshots use it for the
// cell matrix, where long runs of the same tag set are the norm.
func EncodeRLE(ids []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(ids) {
		b := ids[i]
		run := 1
		for j := i + 1; j < len(ids) && ids[j] == b && run < 1<<31; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(b))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeRLE decodes the output of EncodeRLE. If want is positive the decoded
// length must match it exactly, and ids must be below paletteLen when that is
// positive.
func DecodeRLE(b64 string, want, paletteLen int) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	out := make([]uint16, 0, max(want, 0))
	for i := 0; i < len(raw); {
		b, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if b > 0xFFFF {
			return nil, fmt.Errorf("palette id too large: %d", b)
		}
		if paletteLen > 0 && int(b) >= paletteLen {
			return nil, fmt.Errorf("palette id %d outside palette of %d", b, paletteLen)
		}
		if run == 0 {
			return nil, fmt.Errorf("zero run at %d", i)
		}
		if want > 0 && uint64(len(out))+run > uint64(want) {
			return nil, fmt.Errorf("run overflows %d cells", want)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint16(b))
		}
	}
	if want > 0 && len(out) != want {
		return nil, fmt.Errorf("decoded %d cells, want %d", len(out), want)
	}
	return out, nil
}
