package v1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "vectord.grpc.VectorService"

// Method names, one per database verb.
const (
	MethodCreateCollection   = "CreateCollection"
	MethodHasCollection      = "HasCollection"
	MethodDescribeCollection = "DescribeCollection"
	MethodCountCollection    = "CountCollection"
	MethodShowCollections    = "ShowCollections"
	MethodShowCollectionInfo = "ShowCollectionInfo"
	MethodDropCollection     = "DropCollection"
	MethodCreateIndex        = "CreateIndex"
	MethodDescribeIndex      = "DescribeIndex"
	MethodDropIndex          = "DropIndex"
	MethodCreatePartition    = "CreatePartition"
	MethodHasPartition       = "HasPartition"
	MethodShowPartitions     = "ShowPartitions"
	MethodDropPartition      = "DropPartition"
	MethodInsert             = "Insert"
	MethodGetEntityByID      = "GetEntityByID"
	MethodGetEntityIDs       = "GetEntityIDs"
	MethodSearch             = "Search"
	MethodCmd                = "Cmd"
	MethodDeleteByID         = "DeleteByID"
	MethodPreloadCollection  = "PreloadCollection"
	MethodFlush              = "Flush"
	MethodCompact            = "Compact"
)

// FullMethod returns the gRPC path of a method, e.g. "/vectord.grpc.VectorService/Insert".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// VectorServiceServer is implemented by the vectord request handler.
type VectorServiceServer interface {
	CreateCollection(context.Context, *Mapping) (*Status, error)
	HasCollection(context.Context, *CollectionName) (*BoolReply, error)
	DescribeCollection(context.Context, *CollectionName) (*Mapping, error)
	CountCollection(context.Context, *CollectionName) (*CollectionRowCount, error)
	ShowCollections(context.Context, *Command) (*CollectionNameList, error)
	ShowCollectionInfo(context.Context, *CollectionName) (*CollectionInfo, error)
	DropCollection(context.Context, *CollectionName) (*Status, error)
	CreateIndex(context.Context, *IndexParam) (*Status, error)
	DescribeIndex(context.Context, *IndexParam) (*IndexParam, error)
	DropIndex(context.Context, *IndexParam) (*Status, error)
	CreatePartition(context.Context, *PartitionParam) (*Status, error)
	HasPartition(context.Context, *PartitionParam) (*BoolReply, error)
	ShowPartitions(context.Context, *CollectionName) (*PartitionList, error)
	DropPartition(context.Context, *PartitionParam) (*Status, error)
	Insert(context.Context, *InsertParam) (*EntityIDs, error)
	GetEntityByID(context.Context, *EntityIdentity) (*Entities, error)
	GetEntityIDs(context.Context, *GetEntityIDsParam) (*EntityIDs, error)
	Search(context.Context, *SearchParam) (*QueryResult, error)
	Cmd(context.Context, *Command) (*StringReply, error)
	DeleteByID(context.Context, *DeleteByIDParam) (*Status, error)
	PreloadCollection(context.Context, *CollectionName) (*Status, error)
	Flush(context.Context, *FlushParam) (*Status, error)
	Compact(context.Context, *CompactParam) (*Status, error)
}

// UnimplementedVectorServiceServer can be embedded to satisfy
// VectorServiceServer partially, e.g. in tests.
type UnimplementedVectorServiceServer struct{}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func (UnimplementedVectorServiceServer) CreateCollection(context.Context, *Mapping) (*Status, error) {
	return nil, unimplemented(MethodCreateCollection)
}
func (UnimplementedVectorServiceServer) HasCollection(context.Context, *CollectionName) (*BoolReply, error) {
	return nil, unimplemented(MethodHasCollection)
}
func (UnimplementedVectorServiceServer) DescribeCollection(context.Context, *CollectionName) (*Mapping, error) {
	return nil, unimplemented(MethodDescribeCollection)
}
func (UnimplementedVectorServiceServer) CountCollection(context.Context, *CollectionName) (*CollectionRowCount, error) {
	return nil, unimplemented(MethodCountCollection)
}
func (UnimplementedVectorServiceServer) ShowCollections(context.Context, *Command) (*CollectionNameList, error) {
	return nil, unimplemented(MethodShowCollections)
}
func (UnimplementedVectorServiceServer) ShowCollectionInfo(context.Context, *CollectionName) (*CollectionInfo, error) {
	return nil, unimplemented(MethodShowCollectionInfo)
}
func (UnimplementedVectorServiceServer) DropCollection(context.Context, *CollectionName) (*Status, error) {
	return nil, unimplemented(MethodDropCollection)
}
func (UnimplementedVectorServiceServer) CreateIndex(context.Context, *IndexParam) (*Status, error) {
	return nil, unimplemented(MethodCreateIndex)
}
func (UnimplementedVectorServiceServer) DescribeIndex(context.Context, *IndexParam) (*IndexParam, error) {
	return nil, unimplemented(MethodDescribeIndex)
}
func (UnimplementedVectorServiceServer) DropIndex(context.Context, *IndexParam) (*Status, error) {
	return nil, unimplemented(MethodDropIndex)
}
func (UnimplementedVectorServiceServer) CreatePartition(context.Context, *PartitionParam) (*Status, error) {
	return nil, unimplemented(MethodCreatePartition)
}
func (UnimplementedVectorServiceServer) HasPartition(context.Context, *PartitionParam) (*BoolReply, error) {
	return nil, unimplemented(MethodHasPartition)
}
func (UnimplementedVectorServiceServer) ShowPartitions(context.Context, *CollectionName) (*PartitionList, error) {
	return nil, unimplemented(MethodShowPartitions)
}
func (UnimplementedVectorServiceServer) DropPartition(context.Context, *PartitionParam) (*Status, error) {
	return nil, unimplemented(MethodDropPartition)
}
func (UnimplementedVectorServiceServer) Insert(context.Context, *InsertParam) (*EntityIDs, error) {
	return nil, unimplemented(MethodInsert)
}
func (UnimplementedVectorServiceServer) GetEntityByID(context.Context, *EntityIdentity) (*Entities, error) {
	return nil, unimplemented(MethodGetEntityByID)
}
func (UnimplementedVectorServiceServer) GetEntityIDs(context.Context, *GetEntityIDsParam) (*EntityIDs, error) {
	return nil, unimplemented(MethodGetEntityIDs)
}
func (UnimplementedVectorServiceServer) Search(context.Context, *SearchParam) (*QueryResult, error) {
	return nil, unimplemented(MethodSearch)
}
func (UnimplementedVectorServiceServer) Cmd(context.Context, *Command) (*StringReply, error) {
	return nil, unimplemented(MethodCmd)
}
func (UnimplementedVectorServiceServer) DeleteByID(context.Context, *DeleteByIDParam) (*Status, error) {
	return nil, unimplemented(MethodDeleteByID)
}
func (UnimplementedVectorServiceServer) PreloadCollection(context.Context, *CollectionName) (*Status, error) {
	return nil, unimplemented(MethodPreloadCollection)
}
func (UnimplementedVectorServiceServer) Flush(context.Context, *FlushParam) (*Status, error) {
	return nil, unimplemented(MethodFlush)
}
func (UnimplementedVectorServiceServer) Compact(context.Context, *CompactParam) (*Status, error) {
	return nil, unimplemented(MethodCompact)
}

// unary builds a MethodDesc that decodes Req, runs the interceptor chain
// and dispatches to call.
func unary[Req, Resp any](method string, call func(VectorServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(VectorServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(VectorServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// VectorServiceDesc describes the service for grpc.Server registration.
var VectorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VectorServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodCreateCollection, VectorServiceServer.CreateCollection),
		unary(MethodHasCollection, VectorServiceServer.HasCollection),
		unary(MethodDescribeCollection, VectorServiceServer.DescribeCollection),
		unary(MethodCountCollection, VectorServiceServer.CountCollection),
		unary(MethodShowCollections, VectorServiceServer.ShowCollections),
		unary(MethodShowCollectionInfo, VectorServiceServer.ShowCollectionInfo),
		unary(MethodDropCollection, VectorServiceServer.DropCollection),
		unary(MethodCreateIndex, VectorServiceServer.CreateIndex),
		unary(MethodDescribeIndex, VectorServiceServer.DescribeIndex),
		unary(MethodDropIndex, VectorServiceServer.DropIndex),
		unary(MethodCreatePartition, VectorServiceServer.CreatePartition),
		unary(MethodHasPartition, VectorServiceServer.HasPartition),
		unary(MethodShowPartitions, VectorServiceServer.ShowPartitions),
		unary(MethodDropPartition, VectorServiceServer.DropPartition),
		unary(MethodInsert, VectorServiceServer.Insert),
		unary(MethodGetEntityByID, VectorServiceServer.GetEntityByID),
		unary(MethodGetEntityIDs, VectorServiceServer.GetEntityIDs),
		unary(MethodSearch, VectorServiceServer.Search),
		unary(MethodCmd, VectorServiceServer.Cmd),
		unary(MethodDeleteByID, VectorServiceServer.DeleteByID),
		unary(MethodPreloadCollection, VectorServiceServer.PreloadCollection),
		unary(MethodFlush, VectorServiceServer.Flush),
		unary(MethodCompact, VectorServiceServer.Compact),
	},
	Metadata: "vectord/api/v1",
}

// RegisterVectorServiceServer registers srv with s.
func RegisterVectorServiceServer(s grpc.ServiceRegistrar, srv VectorServiceServer) {
	s.RegisterService(&VectorServiceDesc, srv)
}
