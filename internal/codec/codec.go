// Package codec translates between the native acontext parts[] message
// representation and the wire shapes named in the format field of the
// message endpoints: acontext (pass-through), openai (role + content /
// tool_calls), and anthropic (role + content blocks). The core always
// stores the native representation; codecs only run at the HTTP boundary.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/acontext-run/runtime/pkg/types"
)

// Format selects a wire codec.
type Format string

const (
	FormatAcontext  Format = "acontext"
	FormatOpenAI    Format = "openai"
	FormatAnthropic Format = "anthropic"
)

// Codec is the encode/decode pair for one wire format. Encode renders
// stored messages for a GET response; Decode parses an inbound POST body
// into native parts.
type Codec interface {
	Encode(messages []types.Message) (json.RawMessage, error)
	Decode(raw json.RawMessage) ([]types.Part, error)
}

// For looks up the Codec for name, erroring on anything outside the three
// supported variants.
func For(f Format) (Codec, error) {
	switch f {
	case FormatAcontext:
		return acontextCodec{}, nil
	case FormatOpenAI:
		return openAICodec{}, nil
	case FormatAnthropic:
		return anthropicCodec{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown format %q", f)
	}
}

// acontextCodec is the identity codec: parts[] in, parts[] out.
type acontextCodec struct{}

func (acontextCodec) Encode(messages []types.Message) (json.RawMessage, error) {
	return json.Marshal(messages)
}

func (acontextCodec) Decode(raw json.RawMessage) ([]types.Part, error) {
	var parts []types.Part
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, fmt.Errorf("codec: decode acontext parts: %w", err)
	}
	return parts, nil
}
