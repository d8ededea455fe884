package temporal

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/converter"
)

// MetadataEncodingMsgpack is the payload encoding tag for MessagePack.
const MetadataEncodingMsgpack = "binary/msgpack"

// NewMsgpackDataConverter returns a DataConverter that encodes application
// payloads with MessagePack instead of JSON. MessagePack is denser on the
// wire and preserves more type information (it distinguishes integers from
// floats). Nil, byte-slice, and proto payloads keep the SDK's standard
// converters so system payloads stay interoperable.
//
// Install it on a dialed client via WithDataConverter. Workers and clients
// must agree on the converter.
func NewMsgpackDataConverter() converter.DataConverter {
	return converter.NewCompositeDataConverter(
		converter.NewNilPayloadConverter(),
		converter.NewByteSlicePayloadConverter(),
		converter.NewProtoJSONPayloadConverter(),
		converter.NewProtoPayloadConverter(),
		NewMsgpackPayloadConverter(),
	)
}

// NewMsgpackPayloadConverter returns the MessagePack PayloadConverter used by
// NewMsgpackDataConverter.
func NewMsgpackPayloadConverter() converter.PayloadConverter {
	return &msgpackPayloadConverter{}
}

type msgpackPayloadConverter struct{}

// ToPayload encodes value as a MessagePack payload.
func (c *msgpackPayloadConverter) ToPayload(value any) (*commonpb.Payload, error) {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode msgpack payload: %w", err)
	}
	return &commonpb.Payload{
		Metadata: map[string][]byte{
			converter.MetadataEncoding: []byte(MetadataEncodingMsgpack),
		},
		Data: data,
	}, nil
}

// FromPayload decodes a MessagePack payload into valuePtr.
func (c *msgpackPayloadConverter) FromPayload(payload *commonpb.Payload, valuePtr any) error {
	if err := msgpack.Unmarshal(payload.GetData(), valuePtr); err != nil {
		return fmt.Errorf("decode msgpack payload: %w", err)
	}
	return nil
}

// ToString renders the decoded payload for history display.
func (c *msgpackPayloadConverter) ToString(payload *commonpb.Payload) string {
	var value any
	if err := msgpack.Unmarshal(payload.GetData(), &value); err != nil {
		return fmt.Sprintf("<invalid msgpack payload: %v>", err)
	}
	return fmt.Sprintf("%v", value)
}

// Encoding returns the metadata encoding tag this converter handles.
func (c *msgpackPayloadConverter) Encoding() string {
	return MetadataEncodingMsgpack
}
