// Package audio provides the minimal audio handling the transcription driver
// needs: probing encoded clips, decoding them to PCM, slicing them into
// time-contiguous chunks, and re-encoding each chunk in the source format.
//
// Only MP3 (via go-mp3 / shine-mp3, pure Go) and 16-bit PCM WAV are
// supported — the recorder hands the core exactly these two formats. No
// other re-encoding is performed.
package audio

import (
	"errors"
	"fmt"
	"time"
)

// Format identifies the container format of an encoded clip.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatWAV Format = "wav"
)

// IsValid reports whether f is a supported format.
func (f Format) IsValid() bool {
	return f == FormatMP3 || f == FormatWAV
}

// Clip is a finite encoded audio blob handed to the core by the recorder.
type Clip struct {
	// Data is the encoded audio payload.
	Data []byte

	// Format is the container format of Data.
	Format Format
}

// Size returns the encoded payload size in bytes.
func (c Clip) Size() int64 { return int64(len(c.Data)) }

// Filename returns a synthetic file name carrying the right extension, used
// by HTTP providers that sniff the container format from the name.
func (c Clip) Filename(prefix string) string {
	return fmt.Sprintf("%s.%s", prefix, c.Format)
}

// PCM is decoded 16-bit little-endian interleaved audio.
type PCM struct {
	Data       []byte
	SampleRate int
	Channels   int
}

// Duration returns the play time of the decoded audio.
func (p PCM) Duration() time.Duration {
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return 0
	}
	frames := len(p.Data) / (2 * p.Channels)
	return time.Duration(frames) * time.Second / time.Duration(p.SampleRate)
}

// Decode decodes a clip to PCM. MP3 always decodes to 44.1/48 kHz stereo
// (whatever the stream carries); WAV is returned as stored.
func Decode(c Clip) (PCM, error) {
	switch c.Format {
	case FormatMP3:
		return decodeMP3(c.Data)
	case FormatWAV:
		return decodeWAV(c.Data)
	default:
		return PCM{}, fmt.Errorf("audio: unsupported format %q", c.Format)
	}
}

// Probe returns the play time of an encoded clip without keeping the decoded
// audio around.
func Probe(c Clip) (time.Duration, error) {
	pcm, err := Decode(c)
	if err != nil {
		return 0, err
	}
	return pcm.Duration(), nil
}

// Encode re-encodes PCM audio into the given container format.
func Encode(p PCM, f Format) (Clip, error) {
	if len(p.Data) == 0 {
		return Clip{}, errors.New("audio: empty PCM data")
	}
	switch f {
	case FormatMP3:
		data, err := encodeMP3(p)
		if err != nil {
			return Clip{}, err
		}
		return Clip{Data: data, Format: FormatMP3}, nil
	case FormatWAV:
		return Clip{Data: encodeWAV(p), Format: FormatWAV}, nil
	default:
		return Clip{}, fmt.Errorf("audio: unsupported format %q", f)
	}
}

// Split cuts a clip into time-contiguous chunks of chunkDur each (the last
// chunk may be shorter) and re-encodes every chunk in the clip's own format.
// The clip is decoded exactly once.
func Split(c Clip, chunkDur time.Duration) ([]Clip, error) {
	if chunkDur <= 0 {
		return nil, fmt.Errorf("audio: chunk duration must be positive, got %v", chunkDur)
	}
	pcm, err := Decode(c)
	if err != nil {
		return nil, fmt.Errorf("audio: split: %w", err)
	}

	frameBytes := 2 * pcm.Channels
	framesPerChunk := int(int64(chunkDur) * int64(pcm.SampleRate) / int64(time.Second))
	if framesPerChunk <= 0 {
		return nil, fmt.Errorf("audio: chunk duration %v shorter than one frame", chunkDur)
	}
	bytesPerChunk := framesPerChunk * frameBytes

	var chunks []Clip
	for off := 0; off < len(pcm.Data); off += bytesPerChunk {
		end := min(off+bytesPerChunk, len(pcm.Data))
		part := PCM{Data: pcm.Data[off:end], SampleRate: pcm.SampleRate, Channels: pcm.Channels}
		chunk, err := Encode(part, c.Format)
		if err != nil {
			return nil, fmt.Errorf("audio: encode chunk %d: %w", len(chunks), err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}
