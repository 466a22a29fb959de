package media

import (
	"encoding/binary"
	"fmt"
)

// PCM16ToFloat32 converts little-endian signed 16-bit samples to float32
// samples normalized to [-1, 1] by dividing by 32768.
func PCM16ToFloat32(pcm []byte) ([]float32, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm payload has odd length %d", len(pcm))
	}
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		samples[i] = float32(v) / 32768.0
	}
	return samples, nil
}

// Float32ToPCM16 is the inverse of PCM16ToFloat32. Values outside [-1, 1) are
// clipped.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := s * 32768.0
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v)))
	}
	return out
}
