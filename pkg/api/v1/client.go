package v1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// RequestIDKey is the metadata key carrying the request id in both directions.
const RequestIDKey = "request_id"

// Client is a typed VectorService client. Responses are returned as-is;
// callers inspect the embedded Status.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// WithRequestID attaches a client-chosen request id to outgoing metadata.
func WithRequestID(ctx context.Context, id string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, RequestIDKey, id)
}

func invoke[Req, Resp any](ctx context.Context, c *Client, method string, in *Req, opts []grpc.CallOption) (*Resp, error) {
	if c == nil || c.cc == nil {
		return nil, ErrNotConnected
	}
	if in == nil {
		return nil, ErrNilRequest
	}
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateCollection(ctx context.Context, in *Mapping, opts ...grpc.CallOption) (*Status, error) {
	return invoke[Mapping, Status](ctx, c, MethodCreateCollection, in, opts)
}

func (c *Client) HasCollection(ctx context.Context, in *CollectionName, opts ...grpc.CallOption) (*BoolReply, error) {
	return invoke[CollectionName, BoolReply](ctx, c, MethodHasCollection, in, opts)
}

func (c *Client) DescribeCollection(ctx context.Context, in *CollectionName, opts ...grpc.CallOption) (*Mapping, error) {
	return invoke[CollectionName, Mapping](ctx, c, MethodDescribeCollection, in, opts)
}

func (c *Client) CountCollection(ctx context.Context, in *CollectionName, opts ...grpc.CallOption) (*CollectionRowCount, error) {
	return invoke[CollectionName, CollectionRowCount](ctx, c, MethodCountCollection, in, opts)
}

func (c *Client) ShowCollections(ctx context.Context, in *Command, opts ...grpc.CallOption) (*CollectionNameList, error) {
	return invoke[Command, CollectionNameList](ctx, c, MethodShowCollections, in, opts)
}

func (c *Client) ShowCollectionInfo(ctx context.Context, in *CollectionName, opts ...grpc.CallOption) (*CollectionInfo, error) {
	return invoke[CollectionName, CollectionInfo](ctx, c, MethodShowCollectionInfo, in, opts)
}

func (c *Client) DropCollection(ctx context.Context, in *CollectionName, opts ...grpc.CallOption) (*Status, error) {
	return invoke[CollectionName, Status](ctx, c, MethodDropCollection, in, opts)
}

func (c *Client) CreateIndex(ctx context.Context, in *IndexParam, opts ...grpc.CallOption) (*Status, error) {
	return invoke[IndexParam, Status](ctx, c, MethodCreateIndex, in, opts)
}

func (c *Client) DescribeIndex(ctx context.Context, in *IndexParam, opts ...grpc.CallOption) (*IndexParam, error) {
	return invoke[IndexParam, IndexParam](ctx, c, MethodDescribeIndex, in, opts)
}

func (c *Client) DropIndex(ctx context.Context, in *IndexParam, opts ...grpc.CallOption) (*Status, error) {
	return invoke[IndexParam, Status](ctx, c, MethodDropIndex, in, opts)
}

func (c *Client) CreatePartition(ctx context.Context, in *PartitionParam, opts ...grpc.CallOption) (*Status, error) {
	return invoke[PartitionParam, Status](ctx, c, MethodCreatePartition, in, opts)
}

func (c *Client) HasPartition(ctx context.Context, in *PartitionParam, opts ...grpc.CallOption) (*BoolReply, error) {
	return invoke[PartitionParam, BoolReply](ctx, c, MethodHasPartition, in, opts)
}

func (c *Client) ShowPartitions(ctx context.Context, in *CollectionName, opts ...grpc.CallOption) (*PartitionList, error) {
	return invoke[CollectionName, PartitionList](ctx, c, MethodShowPartitions, in, opts)
}

func (c *Client) DropPartition(ctx context.Context, in *PartitionParam, opts ...grpc.CallOption) (*Status, error) {
	return invoke[PartitionParam, Status](ctx, c, MethodDropPartition, in, opts)
}

func (c *Client) Insert(ctx context.Context, in *InsertParam, opts ...grpc.CallOption) (*EntityIDs, error) {
	return invoke[InsertParam, EntityIDs](ctx, c, MethodInsert, in, opts)
}

func (c *Client) GetEntityByID(ctx context.Context, in *EntityIdentity, opts ...grpc.CallOption) (*Entities, error) {
	return invoke[EntityIdentity, Entities](ctx, c, MethodGetEntityByID, in, opts)
}

func (c *Client) GetEntityIDs(ctx context.Context, in *GetEntityIDsParam, opts ...grpc.CallOption) (*EntityIDs, error) {
	return invoke[GetEntityIDsParam, EntityIDs](ctx, c, MethodGetEntityIDs, in, opts)
}

func (c *Client) Search(ctx context.Context, in *SearchParam, opts ...grpc.CallOption) (*QueryResult, error) {
	return invoke[SearchParam, QueryResult](ctx, c, MethodSearch, in, opts)
}

func (c *Client) Cmd(ctx context.Context, in *Command, opts ...grpc.CallOption) (*StringReply, error) {
	return invoke[Command, StringReply](ctx, c, MethodCmd, in, opts)
}

func (c *Client) DeleteByID(ctx context.Context, in *DeleteByIDParam, opts ...grpc.CallOption) (*Status, error) {
	return invoke[DeleteByIDParam, Status](ctx, c, MethodDeleteByID, in, opts)
}

func (c *Client) PreloadCollection(ctx context.Context, in *CollectionName, opts ...grpc.CallOption) (*Status, error) {
	return invoke[CollectionName, Status](ctx, c, MethodPreloadCollection, in, opts)
}

func (c *Client) Flush(ctx context.Context, in *FlushParam, opts ...grpc.CallOption) (*Status, error) {
	return invoke[FlushParam, Status](ctx, c, MethodFlush, in, opts)
}

func (c *Client) Compact(ctx context.Context, in *CompactParam, opts ...grpc.CallOption) (*Status, error) {
	return invoke[CompactParam, Status](ctx, c, MethodCompact, in, opts)
}
