// Package stt defines the Provider interface for batch Speech-to-Text backends.
//
// An STT provider wraps a transcription service (e.g., the OpenAI Whisper API,
// Deepgram's pre-recorded API, or a local whisper.cpp model) and exposes a
// uniform one-shot interface: a finite audio blob in, a verbose transcription
// result out. Providers differ in what detail they return — some attach
// per-word timings and opaque speaker labels, others only segment timings —
// and the Result type carries whichever detail is available.
//
// Implementations must be safe for concurrent use: the chunked transcription
// driver may issue several Transcribe calls in flight at once.
package stt

import (
	"context"

	"github.com/MrWong99/meetscribe/pkg/types"
)

// Request carries one audio blob to be transcribed.
type Request struct {
	// Audio is the encoded audio payload. Must not be empty.
	Audio []byte

	// Filename hints the container format to HTTP providers that sniff the
	// extension (e.g. "chunk_0.mp3"). Optional.
	Filename string

	// Language is the ISO-639-1 language hint (e.g. "en", "ru"). An empty
	// string lets the provider auto-detect, if supported.
	Language string

	// Prompt optionally guides the model's style or continues a previous
	// audio segment. Ignored by providers without prompt support.
	Prompt string
}

// Result is a verbose transcription response reduced to the fields the core
// depends on. Segments and Words may each be nil depending on provider
// capability; Text is always present.
type Result struct {
	// Text is the full transcript text as returned by the provider.
	Text string

	// Segments holds segment-level timings, when available.
	Segments []types.Segment

	// Words holds word-level timings and optional speaker labels, when
	// available. Providers that diarize set Word.SpeakerID.
	Words []types.Word
}

// Provider is the abstraction over any batch STT backend.
//
// Implementations must be safe for concurrent use and must honour ctx
// cancellation: when ctx is done, Transcribe returns promptly with ctx.Err()
// (possibly wrapped).
type Provider interface {
	// Transcribe sends one audio blob and waits for the full result.
	//
	// Error classification: network failures and 5xx responses wrap
	// types.ErrProviderUnavailable; responses missing required fields wrap
	// types.ErrProviderContract.
	Transcribe(ctx context.Context, req Request) (*Result, error)

	// MaxRequestBytes is the provider's per-request payload cap in bytes.
	// Audio larger than this must be chunked by the caller. Zero means no
	// known cap.
	MaxRequestBytes() int64
}
