package attestation_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/wormhole-foundation/wormhole-connect-go/attestation"
	whgrpc "github.com/wormhole-foundation/wormhole-connect-go/internal/grpc"
	"github.com/wormhole-foundation/wormhole-connect-go/pkg/logger"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

// decodeRequest is the server side of EncodeGetSignedVAARequest.
func decodeRequest(t *testing.T, b []byte) attestation.MessageID {
	t.Helper()

	num, typ, n := protowire.ConsumeTag(b)
	require.Positive(t, n)
	require.Equal(t, protowire.Number(1), num)
	require.Equal(t, protowire.BytesType, typ)
	msg, n := protowire.ConsumeBytes(b[n:])
	require.Positive(t, n)

	var id attestation.MessageID
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		require.Positive(t, n)
		msg = msg[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(msg)
			id.EmitterChain = registry.ChainID(v)
			msg = msg[m:]
		case num == 2 && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(msg)
			id.EmitterAddress = v
			msg = msg[m:]
		case num == 3 && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(msg)
			id.Sequence = v
			msg = msg[m:]
		default:
			t.Fatalf("unexpected field %d", num)
		}
	}

	return id
}

type publicRPC struct {
	t       *testing.T
	signed  map[uint64][]byte
	apiKeys []string
}

func (p *publicRPC) handle(_ any, stream grpc.ServerStream) error {
	method, _ := grpc.MethodFromServerStream(stream)
	if method != attestation.GetSignedVAAMethod {
		return status.Errorf(codes.Unimplemented, "unknown method %s", method)
	}
	if md, ok := metadata.FromIncomingContext(stream.Context()); ok {
		p.apiKeys = append(p.apiKeys, md.Get("x-api-key")...)
	}

	var req whgrpc.RawMessage
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}
	id := decodeRequest(p.t, req)
	vaa, ok := p.signed[id.Sequence]
	if !ok {
		return status.Error(codes.NotFound, "requested VAA not found in store")
	}

	// an unknown field first, as newer servers may send
	resp := protowire.AppendTag(nil, 9, protowire.VarintType)
	resp = protowire.AppendVarint(resp, 1)
	resp = protowire.AppendTag(resp, 1, protowire.BytesType)
	resp = protowire.AppendBytes(resp, vaa)
	out := whgrpc.RawMessage(resp)

	return stream.SendMsg(&out)
}

func newPublicRPC(t *testing.T, p *publicRPC, cfg attestation.DialConfig) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ForceServerCodec(whgrpc.RawCodec{}), grpc.UnknownServiceHandler(p.handle))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := attestation.Dial("passthrough:///bufnet", cfg,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func TestGRPCTransport_GetSignedVAA(t *testing.T) {
	t.Parallel()

	p := &publicRPC{t: t, signed: map[uint64][]byte{7: {0x01, 0xaa}}}
	transport := attestation.NewGRPCTransport(newPublicRPC(t, p, attestation.DialConfig{APIKey: "k1"}))

	vaa, err := attestation.GetSignedVAABySequence(t.Context(), transport, 2, "0x"+testEmitter, "7")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0xaa}, vaa)
	assert.Equal(t, []string{"k1"}, p.apiKeys)

	_, err = attestation.GetSignedVAABySequence(t.Context(), transport, 2, testEmitter, "8")
	require.ErrorIs(t, err, attestation.ErrVAANotFound)
	require.ErrorContains(t, err, "requested VAA not found in store")
}

func TestGRPCTransport_WithRetriever(t *testing.T) {
	t.Parallel()

	p := &publicRPC{t: t, signed: map[uint64][]byte{}}
	transport := attestation.NewGRPCTransport(newPublicRPC(t, p, attestation.DialConfig{}))
	r := attestation.NewRetriever(transport, logger.Test(t), attestation.WithTimer(&fakeTimer{}))

	_, err := r.GetSignedVAAWithRetry(t.Context(), 2, testEmitter, "1", time.Second, 2)
	require.ErrorIs(t, err, attestation.ErrVAANotFound)
	assert.Empty(t, p.apiKeys)
}

func TestDecodeGetSignedVAAResponse(t *testing.T) {
	t.Parallel()

	_, err := attestation.DecodeGetSignedVAAResponse(nil)
	require.ErrorContains(t, err, "response carries no vaa_bytes")

	_, err = attestation.DecodeGetSignedVAAResponse([]byte{0x0a, 0x05, 0x01})
	require.ErrorContains(t, err, "invalid vaa_bytes")

	id := attestation.MessageID{EmitterChain: 21, EmitterAddress: testEmitter, Sequence: 300}
	assert.Equal(t, id, decodeRequest(t, attestation.EncodeGetSignedVAARequest(id)))
}
