package audio

import (
	"bytes"
	"fmt"
	"io"

	shine "github.com/braheezy/shine-mp3/pkg/mp3"
	gomp3 "github.com/hajimehoshi/go-mp3"
)

// decodeMP3 decodes an MP3 stream to PCM. go-mp3 always produces 16-bit
// stereo at the stream's sample rate.
func decodeMP3(data []byte) (PCM, error) {
	dec, err := gomp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return PCM{}, fmt.Errorf("audio: mp3 decode: %w", err)
	}

	out := make([]byte, 0, dec.Length())
	buf := make([]byte, 32*1024)
	for {
		n, err := dec.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return PCM{}, fmt.Errorf("audio: mp3 decode: %w", err)
		}
	}

	return PCM{Data: out, SampleRate: dec.SampleRate(), Channels: 2}, nil
}

// encodeMP3 encodes PCM to MP3 using shine (pure Go, no ffmpeg). Shine
// consumes whole 1152-samples-per-channel granules, so the tail is
// zero-padded to a granule boundary; the padding is inaudible and shorter
// than one MP3 frame.
func encodeMP3(p PCM) ([]byte, error) {
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return nil, fmt.Errorf("audio: mp3 encode: invalid PCM format %d Hz / %d ch", p.SampleRate, p.Channels)
	}

	samples := make([]int16, 0, len(p.Data)/2)
	for i := 0; i+1 < len(p.Data); i += 2 {
		samples = append(samples, int16(p.Data[i])|int16(p.Data[i+1])<<8)
	}

	granule := 1152 * p.Channels
	if rem := len(samples) % granule; rem != 0 {
		samples = append(samples, make([]int16, granule-rem)...)
	}

	var out bytes.Buffer
	enc := shine.NewEncoder(p.SampleRate, p.Channels)
	enc.Write(&out, samples)
	if out.Len() == 0 {
		return nil, fmt.Errorf("audio: mp3 encode produced no frames (%d samples)", len(samples))
	}
	return out.Bytes(), nil
}
