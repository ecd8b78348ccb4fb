package audio

import (
	"encoding/binary"
	"fmt"
)

// decodeWAV parses a RIFF/WAVE container holding 16-bit PCM. Chunks other
// than "fmt " and "data" are skipped.
func decodeWAV(data []byte) (PCM, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return PCM{}, fmt.Errorf("audio: not a RIFF/WAVE stream")
	}

	var (
		sampleRate    int
		channels      int
		bitsPerSample int
		pcmData       []byte
	)

	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return PCM{}, fmt.Errorf("audio: wav fmt chunk too short (%d bytes)", size)
			}
			audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
			if audioFormat != 1 {
				return PCM{}, fmt.Errorf("audio: unsupported wav audio format %d (want PCM)", audioFormat)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			pcmData = data[body : body+size]
		}

		// Chunks are word-aligned.
		off = body + size + size%2
	}

	if sampleRate == 0 || channels == 0 {
		return PCM{}, fmt.Errorf("audio: wav stream has no fmt chunk")
	}
	if bitsPerSample != 16 {
		return PCM{}, fmt.Errorf("audio: unsupported wav bit depth %d (want 16)", bitsPerSample)
	}
	if len(pcmData) == 0 {
		return PCM{}, fmt.Errorf("audio: wav stream has no data chunk")
	}

	return PCM{Data: pcmData, SampleRate: sampleRate, Channels: channels}, nil
}

// encodeWAV wraps 16-bit PCM in a minimal RIFF/WAVE container.
func encodeWAV(p PCM) []byte {
	const headerSize = 44
	dataLen := len(p.Data)
	out := make([]byte, headerSize+dataLen)

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataLen))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(p.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(p.SampleRate))
	byteRate := p.SampleRate * p.Channels * 2
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(p.Channels*2))
	binary.LittleEndian.PutUint16(out[34:36], 16)

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataLen))
	copy(out[44:], p.Data)

	return out
}
