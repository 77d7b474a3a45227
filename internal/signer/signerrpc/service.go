package signerrpc

import (
	"context"

	"github.com/poly-pro/gas-station/internal/chain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ServiceName           = "gasstation.FeePayer"
	FeePayerCosignMethod  = "/" + ServiceName + "/Cosign"
	FeePayerAddressMethod = "/" + ServiceName + "/Address"
)

type CosignRequest struct {
	Transaction chain.SponsoredTransaction `json:"transaction"`
}

type CosignResponse struct {
	FeePayer  string `json:"feePayer"`
	Signature string `json:"signature"`
	Digest    string `json:"digest"`
}

type AddressRequest struct{}

type AddressResponse struct {
	Address string `json:"address"`
}

// FeePayerServer is the server API for the FeePayer service.
type FeePayerServer interface {
	Cosign(context.Context, *CosignRequest) (*CosignResponse, error)
	Address(context.Context, *AddressRequest) (*AddressResponse, error)
}

// UnimplementedFeePayerServer can be embedded for forward compatibility.
type UnimplementedFeePayerServer struct{}

func (UnimplementedFeePayerServer) Cosign(context.Context, *CosignRequest) (*CosignResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Cosign not implemented")
}

func (UnimplementedFeePayerServer) Address(context.Context, *AddressRequest) (*AddressResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Address not implemented")
}

// RegisterFeePayerServer registers srv on s.
func RegisterFeePayerServer(s grpc.ServiceRegistrar, srv FeePayerServer) {
	s.RegisterService(&FeePayerServiceDesc, srv)
}

func cosignHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CosignRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FeePayerServer).Cosign(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FeePayerCosignMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FeePayerServer).Cosign(ctx, req.(*CosignRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func addressHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(AddressRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FeePayerServer).Address(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FeePayerAddressMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FeePayerServer).Address(ctx, req.(*AddressRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// FeePayerServiceDesc describes the FeePayer service.
var FeePayerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FeePayerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Cosign", Handler: cosignHandler},
		{MethodName: "Address", Handler: addressHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "signerrpc/service.go",
}

// FeePayerClient is the client API for the FeePayer service.
type FeePayerClient interface {
	Cosign(ctx context.Context, in *CosignRequest, opts ...grpc.CallOption) (*CosignResponse, error)
	Address(ctx context.Context, in *AddressRequest, opts ...grpc.CallOption) (*AddressResponse, error)
}

type feePayerClient struct {
	cc grpc.ClientConnInterface
}

func NewFeePayerClient(cc grpc.ClientConnInterface) FeePayerClient {
	return &feePayerClient{cc: cc}
}

func (c *feePayerClient) Cosign(ctx context.Context, in *CosignRequest, opts ...grpc.CallOption) (*CosignResponse, error) {
	out := new(CosignResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, FeePayerCosignMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *feePayerClient) Address(ctx context.Context, in *AddressRequest, opts ...grpc.CallOption) (*AddressResponse, error) {
	out := new(AddressResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, FeePayerAddressMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
