package attestation

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protowire"

	whgrpc "github.com/wormhole-foundation/wormhole-connect-go/internal/grpc"
)

// GetSignedVAAMethod is the full method name of the guardian public RPC lookup.
const GetSignedVAAMethod = "/publicrpc.v1.PublicRPCService/GetSignedVAA"

// Field numbers of publicrpc.v1 GetSignedVAARequest, MessageID and GetSignedVAAResponse.
const (
	fieldRequestMessageID protowire.Number = 1
	fieldMessageChain     protowire.Number = 1
	fieldMessageEmitter   protowire.Number = 2
	fieldMessageSequence  protowire.Number = 3
	fieldResponseVAABytes protowire.Number = 1
)

// GRPCTransport looks VAAs up through the gRPC public RPC service of a guardian.
type GRPCTransport struct {
	conn grpc.ClientConnInterface
}

var _ Transport = (*GRPCTransport)(nil)

// NewGRPCTransport creates a transport over an established connection.
func NewGRPCTransport(conn grpc.ClientConnInterface) *GRPCTransport {
	return &GRPCTransport{conn: conn}
}

// DialConfig configures Dial.
type DialConfig struct {
	// Optional: plaintext is used when nil.
	Credentials credentials.TransportCredentials
	// Optional: sent in the x-api-key header of every call.
	APIKey string
}

// Dial opens a client connection to a guardian public RPC endpoint.
func Dial(endpoint string, cfg DialConfig, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	creds := cfg.Credentials
	if creds == nil {
		creds = insecure.NewCredentials()
	}
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, opts...)
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithChainUnaryInterceptor(whgrpc.HeaderInterceptor("x-api-key", cfg.APIKey)))
	}

	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to guardian %s: %w", endpoint, err)
	}

	return conn, nil
}

// GetSignedVAA implements Transport. A NotFound status maps to ErrVAANotFound.
func (t *GRPCTransport) GetSignedVAA(ctx context.Context, id MessageID) ([]byte, error) {
	req := whgrpc.RawMessage(EncodeGetSignedVAARequest(id))
	var resp whgrpc.RawMessage

	if err := t.conn.Invoke(ctx, GetSignedVAAMethod, &req, &resp, grpc.ForceCodec(whgrpc.RawCodec{})); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrVAANotFound, status.Convert(err).Message())
		}

		return nil, err
	}

	return DecodeGetSignedVAAResponse(resp)
}

// EncodeGetSignedVAARequest encodes a GetSignedVAARequest for id.
func EncodeGetSignedVAARequest(id MessageID) []byte {
	var msg []byte
	msg = protowire.AppendTag(msg, fieldMessageChain, protowire.VarintType)
	msg = protowire.AppendVarint(msg, uint64(id.EmitterChain))
	msg = protowire.AppendTag(msg, fieldMessageEmitter, protowire.BytesType)
	msg = protowire.AppendString(msg, id.EmitterAddress)
	msg = protowire.AppendTag(msg, fieldMessageSequence, protowire.VarintType)
	msg = protowire.AppendVarint(msg, id.Sequence)

	req := protowire.AppendTag(nil, fieldRequestMessageID, protowire.BytesType)

	return protowire.AppendBytes(req, msg)
}

var errNoVAABytes = errors.New("response carries no vaa_bytes")

// DecodeGetSignedVAAResponse returns the vaa_bytes field of a GetSignedVAAResponse. Unknown
// fields are skipped.
func DecodeGetSignedVAAResponse(b []byte) ([]byte, error) {
	var vaa []byte
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("invalid response: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if num == fieldResponseVAABytes && typ == protowire.BytesType {
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, fmt.Errorf("invalid vaa_bytes: %w", protowire.ParseError(m))
			}
			vaa = append([]byte(nil), v...)
			b = b[m:]

			continue
		}

		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return nil, fmt.Errorf("invalid field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	if len(vaa) == 0 {
		return nil, errNoVAABytes
	}

	return vaa, nil
}
