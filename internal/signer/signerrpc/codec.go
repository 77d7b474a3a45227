/**
 * @description
 * Package signerrpc is the wire contract between the gas station API and the remote
 * fee payer signer. Messages are plain Go structs carried over gRPC with a JSON codec,
 * so no generated protobuf code is involved.
 *
 * @notes
 * - Clients must select the codec per call with `grpc.CallContentSubtype(CodecName)`;
 *   `NewFeePayerClient` does this for every method.
 */

package signerrpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content subtype for this service.
const CodecName = "json"

// JSONCodec marshals gRPC messages as JSON.
type JSONCodec struct{}

func (JSONCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (JSONCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(JSONCodec{})
}
