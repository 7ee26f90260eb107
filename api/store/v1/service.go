// Package storev1 описывает gRPC-сервис store.v1.StoreService.
//
// Запросы и ответы передаются как google.protobuf.Struct: поля именуются в
// snake_case, деньги передаются строками с двумя знаками после точки.
package storev1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName: полное имя сервиса.
const ServiceName = "store.v1.StoreService"

const (
	StoreService_GetCartView_FullMethodName           = "/store.v1.StoreService/GetCartView"
	StoreService_UpdateCart_FullMethodName            = "/store.v1.StoreService/UpdateCart"
	StoreService_ClearCart_FullMethodName             = "/store.v1.StoreService/ClearCart"
	StoreService_Checkout_FullMethodName              = "/store.v1.StoreService/Checkout"
	StoreService_GetOrder_FullMethodName              = "/store.v1.StoreService/GetOrder"
	StoreService_ListOrders_FullMethodName            = "/store.v1.StoreService/ListOrders"
	StoreService_TransitionOrderStatus_FullMethodName = "/store.v1.StoreService/TransitionOrderStatus"
	StoreService_CreateAddress_FullMethodName         = "/store.v1.StoreService/CreateAddress"
	StoreService_UpdateAddress_FullMethodName         = "/store.v1.StoreService/UpdateAddress"
	StoreService_ListAddresses_FullMethodName         = "/store.v1.StoreService/ListAddresses"
	StoreService_SetDefaultAddress_FullMethodName     = "/store.v1.StoreService/SetDefaultAddress"
	StoreService_DeleteAddress_FullMethodName         = "/store.v1.StoreService/DeleteAddress"
	StoreService_AddProductImage_FullMethodName       = "/store.v1.StoreService/AddProductImage"
	StoreService_SetMainImage_FullMethodName          = "/store.v1.StoreService/SetMainImage"
	StoreService_DeleteProductImage_FullMethodName    = "/store.v1.StoreService/DeleteProductImage"
	StoreService_ListProductImages_FullMethodName     = "/store.v1.StoreService/ListProductImages"
)

// StoreServiceServer: серверная сторона StoreService.
type StoreServiceServer interface {
	GetCartView(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateCart(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ClearCart(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Checkout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListOrders(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TransitionOrderStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateAddress(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateAddress(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAddresses(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetDefaultAddress(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteAddress(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddProductImage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetMainImage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteProductImage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListProductImages(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedStoreServiceServer отвечает Unimplemented на все методы.
type UnimplementedStoreServiceServer struct{}

func (UnimplementedStoreServiceServer) GetCartView(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetCartView not implemented")
}
func (UnimplementedStoreServiceServer) UpdateCart(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateCart not implemented")
}
func (UnimplementedStoreServiceServer) ClearCart(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ClearCart not implemented")
}
func (UnimplementedStoreServiceServer) Checkout(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Checkout not implemented")
}
func (UnimplementedStoreServiceServer) GetOrder(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetOrder not implemented")
}
func (UnimplementedStoreServiceServer) ListOrders(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListOrders not implemented")
}
func (UnimplementedStoreServiceServer) TransitionOrderStatus(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method TransitionOrderStatus not implemented")
}
func (UnimplementedStoreServiceServer) CreateAddress(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateAddress not implemented")
}
func (UnimplementedStoreServiceServer) UpdateAddress(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateAddress not implemented")
}
func (UnimplementedStoreServiceServer) ListAddresses(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListAddresses not implemented")
}
func (UnimplementedStoreServiceServer) SetDefaultAddress(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method SetDefaultAddress not implemented")
}
func (UnimplementedStoreServiceServer) DeleteAddress(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteAddress not implemented")
}
func (UnimplementedStoreServiceServer) AddProductImage(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method AddProductImage not implemented")
}
func (UnimplementedStoreServiceServer) SetMainImage(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method SetMainImage not implemented")
}
func (UnimplementedStoreServiceServer) DeleteProductImage(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteProductImage not implemented")
}
func (UnimplementedStoreServiceServer) ListProductImages(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListProductImages not implemented")
}

// RegisterStoreServiceServer регистрирует реализацию на gRPC-сервере.
func RegisterStoreServiceServer(s grpc.ServiceRegistrar, srv StoreServiceServer) {
	s.RegisterService(&StoreService_ServiceDesc, srv)
}

type unaryCall func(StoreServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unaryHandler строит grpc.MethodHandler для метода с Struct на входе и выходе.
func unaryHandler(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(StoreServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(StoreServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// StoreService_ServiceDesc: описание сервиса для grpc.Server.
var StoreService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StoreServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetCartView", Handler: unaryHandler(StoreService_GetCartView_FullMethodName, StoreServiceServer.GetCartView)},
		{MethodName: "UpdateCart", Handler: unaryHandler(StoreService_UpdateCart_FullMethodName, StoreServiceServer.UpdateCart)},
		{MethodName: "ClearCart", Handler: unaryHandler(StoreService_ClearCart_FullMethodName, StoreServiceServer.ClearCart)},
		{MethodName: "Checkout", Handler: unaryHandler(StoreService_Checkout_FullMethodName, StoreServiceServer.Checkout)},
		{MethodName: "GetOrder", Handler: unaryHandler(StoreService_GetOrder_FullMethodName, StoreServiceServer.GetOrder)},
		{MethodName: "ListOrders", Handler: unaryHandler(StoreService_ListOrders_FullMethodName, StoreServiceServer.ListOrders)},
		{MethodName: "TransitionOrderStatus", Handler: unaryHandler(StoreService_TransitionOrderStatus_FullMethodName, StoreServiceServer.TransitionOrderStatus)},
		{MethodName: "CreateAddress", Handler: unaryHandler(StoreService_CreateAddress_FullMethodName, StoreServiceServer.CreateAddress)},
		{MethodName: "UpdateAddress", Handler: unaryHandler(StoreService_UpdateAddress_FullMethodName, StoreServiceServer.UpdateAddress)},
		{MethodName: "ListAddresses", Handler: unaryHandler(StoreService_ListAddresses_FullMethodName, StoreServiceServer.ListAddresses)},
		{MethodName: "SetDefaultAddress", Handler: unaryHandler(StoreService_SetDefaultAddress_FullMethodName, StoreServiceServer.SetDefaultAddress)},
		{MethodName: "DeleteAddress", Handler: unaryHandler(StoreService_DeleteAddress_FullMethodName, StoreServiceServer.DeleteAddress)},
		{MethodName: "AddProductImage", Handler: unaryHandler(StoreService_AddProductImage_FullMethodName, StoreServiceServer.AddProductImage)},
		{MethodName: "SetMainImage", Handler: unaryHandler(StoreService_SetMainImage_FullMethodName, StoreServiceServer.SetMainImage)},
		{MethodName: "DeleteProductImage", Handler: unaryHandler(StoreService_DeleteProductImage_FullMethodName, StoreServiceServer.DeleteProductImage)},
		{MethodName: "ListProductImages", Handler: unaryHandler(StoreService_ListProductImages_FullMethodName, StoreServiceServer.ListProductImages)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "store/v1/store.proto",
}

// StoreServiceClient: клиентская сторона StoreService.
type StoreServiceClient interface {
	GetCartView(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	UpdateCart(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ClearCart(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Checkout(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetOrder(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListOrders(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	TransitionOrderStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	CreateAddress(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	UpdateAddress(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListAddresses(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	SetDefaultAddress(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	DeleteAddress(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	AddProductImage(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	SetMainImage(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	DeleteProductImage(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListProductImages(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type storeServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewStoreServiceClient создаёт клиента поверх соединения.
func NewStoreServiceClient(cc grpc.ClientConnInterface) StoreServiceClient {
	return &storeServiceClient{cc: cc}
}

func (c *storeServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storeServiceClient) GetCartView(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, StoreService_GetCartView_FullMethodName, in, opts...)
}

func (c *storeServiceClient) UpdateCart(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, StoreService_UpdateCart_FullMethodName, in, opts...)
}

func (c *storeServiceClient) ClearCart(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, StoreService_ClearCart_FullMethodName, in, opts...)
}

func (c *storeServiceClient) Checkout(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, StoreService_Checkout_FullMethodName, in, opts...)
}

func (c *storeServiceClient) GetOrder(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, StoreService_GetOrder_FullMethodName, in, opts...)
}

func (c *storeServiceClient) ListOrders(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, StoreService_ListOrders_FullMethodName, in, opts...)
}

func (c *storeServiceClient) TransitionOrderStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, StoreService_TransitionOrderStatus_FullMethodName, in, opts...)
}

func (c *storeServiceClient) CreateAddress(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, StoreService_CreateAddress_FullMethodName, in, opts...)
}

func (c *storeServiceClient) UpdateAddress(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, StoreService_UpdateAddress_FullMethodName, in, opts...)
}

func (c *storeServiceClient) ListAddresses(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, StoreService_ListAddresses_FullMethodName, in, opts...)
}

func (c *storeServiceClient) SetDefaultAddress(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, StoreService_SetDefaultAddress_FullMethodName, in, opts...)
}

func (c *storeServiceClient) DeleteAddress(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, StoreService_DeleteAddress_FullMethodName, in, opts...)
}

func (c *storeServiceClient) AddProductImage(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, StoreService_AddProductImage_FullMethodName, in, opts...)
}

func (c *storeServiceClient) SetMainImage(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, StoreService_SetMainImage_FullMethodName, in, opts...)
}

func (c *storeServiceClient) DeleteProductImage(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, StoreService_DeleteProductImage_FullMethodName, in, opts...)
}

func (c *storeServiceClient) ListProductImages(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, StoreService_ListProductImages_FullMethodName, in, opts...)
}
