// Package grpcapi serves the VectorService verbs over gRPC.
//
// Every verb answers with a nil transport error and reports failures in
// the Status embedded in its response. The request context, span and
// request id of each call are set up by the interceptors in
// interceptor.go before a Handler method runs.
package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/admission"
	"github.com/fyrsmithlabs/vectord/internal/codec"
	"github.com/fyrsmithlabs/vectord/internal/engine"
	"github.com/fyrsmithlabs/vectord/internal/errdefs"
	"github.com/fyrsmithlabs/vectord/internal/logging"
	"github.com/fyrsmithlabs/vectord/internal/query"
	"github.com/fyrsmithlabs/vectord/internal/reqctx"
	apiv1 "github.com/fyrsmithlabs/vectord/pkg/api/v1"
)

// Config wires a Handler.
type Config struct {
	Engine    engine.Engine
	Registry  *reqctx.Registry
	Admission *admission.Controller // nil disables insert admission
	Logger    *logging.Logger

	// PartialEgress drops corrupt result fields instead of failing the
	// whole response.
	PartialEgress bool
}

// Handler implements apiv1.VectorServiceServer on top of an engine.
type Handler struct {
	engine    engine.Engine
	registry  *reqctx.Registry
	admission *admission.Controller
	logger    *logging.Logger
	egress    codec.Options
}

var _ apiv1.VectorServiceServer = (*Handler)(nil)

// NewHandler creates a handler.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("request registry is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	return &Handler{
		engine:    cfg.Engine,
		registry:  cfg.Registry,
		admission: cfg.Admission,
		logger:    cfg.Logger.Named("grpcapi"),
		egress:    codec.Options{AllowPartial: cfg.PartialEgress},
	}, nil
}

// request returns the registered context of the call, or nil when the
// call did not pass through the registry interceptor.
func (h *Handler) request(ctx context.Context) *reqctx.Context {
	return h.registry.Get(logging.RequestIDFromContext(ctx))
}

// status converts err into the embedded status and records it on the
// call's span.
func (h *Handler) status(ctx context.Context, err error) *apiv1.Status {
	if err != nil {
		h.request(ctx).RecordError(err)
		h.logger.Debug(ctx, "request failed",
			zap.Stringer("error_code", errdefs.Code(err)),
			zap.Error(err))
	}
	return errdefs.Status(err)
}

func collectionNotExists(name string) error {
	return errdefs.NotFound(apiv1.ErrorCodeCollectionNotExists, "Collection %s does not exist", name)
}

// encode marshals result rows and logs the fields dropped under partial
// egress.
func (h *Handler) encode(ctx context.Context, chunk codec.Chunk, fields []codec.Field, validRows int) ([]*apiv1.FieldValue, error) {
	if err := errdefs.Cancelled(ctx); err != nil {
		return nil, err
	}
	out, corrupt, err := codec.Encode(chunk, fields, validRows, h.egress)
	if err != nil {
		return nil, err
	}
	for _, c := range corrupt {
		h.logger.Warn(ctx, "dropped corrupt result field",
			zap.String("field", c.Name),
			zap.String("reason", c.Reason))
	}
	return out, nil
}

func (h *Handler) CreateCollection(ctx context.Context, req *apiv1.Mapping) (*apiv1.Status, error) {
	ctx = logging.WithCollection(ctx, req.CollectionName)
	schema, err := toSchema(req)
	if err == nil {
		err = h.engine.CreateCollection(ctx, schema)
	}
	return h.status(ctx, err), nil
}

func (h *Handler) HasCollection(ctx context.Context, req *apiv1.CollectionName) (*apiv1.BoolReply, error) {
	ok, err := h.engine.HasCollection(ctx, req.CollectionName)
	return &apiv1.BoolReply{Status: h.status(ctx, err), BoolReply: ok}, nil
}

func (h *Handler) DescribeCollection(ctx context.Context, req *apiv1.CollectionName) (*apiv1.Mapping, error) {
	schema, err := h.engine.DescribeCollection(ctx, req.CollectionName)
	if err != nil {
		return &apiv1.Mapping{Status: h.status(ctx, err)}, nil
	}
	reply := fromSchema(schema)
	reply.Status = h.status(ctx, nil)
	return reply, nil
}

func (h *Handler) CountCollection(ctx context.Context, req *apiv1.CollectionName) (*apiv1.CollectionRowCount, error) {
	n, err := h.engine.CountEntities(ctx, req.CollectionName)
	return &apiv1.CollectionRowCount{Status: h.status(ctx, err), CollectionRowCount: n}, nil
}

func (h *Handler) ShowCollections(ctx context.Context, _ *apiv1.Command) (*apiv1.CollectionNameList, error) {
	names, err := h.engine.ListCollections(ctx)
	return &apiv1.CollectionNameList{Status: h.status(ctx, err), CollectionNames: names}, nil
}

func (h *Handler) ShowCollectionInfo(ctx context.Context, req *apiv1.CollectionName) (*apiv1.CollectionInfo, error) {
	info, err := h.engine.CollectionStats(ctx, req.CollectionName)
	return &apiv1.CollectionInfo{Status: h.status(ctx, err), JSONInfo: info}, nil
}

func (h *Handler) DropCollection(ctx context.Context, req *apiv1.CollectionName) (*apiv1.Status, error) {
	ctx = logging.WithCollection(ctx, req.CollectionName)
	return h.status(ctx, h.engine.DropCollection(ctx, req.CollectionName)), nil
}

func (h *Handler) CreateIndex(ctx context.Context, req *apiv1.IndexParam) (*apiv1.Status, error) {
	ctx = logging.WithCollection(ctx, req.CollectionName)
	spec, err := toIndexSpec(req)
	if err == nil {
		err = h.engine.CreateIndex(ctx, spec)
	}
	return h.status(ctx, err), nil
}

func (h *Handler) DescribeIndex(ctx context.Context, req *apiv1.IndexParam) (*apiv1.IndexParam, error) {
	spec, err := h.engine.DescribeIndex(ctx, req.CollectionName, req.FieldName)
	if err != nil {
		return &apiv1.IndexParam{
			Status:         h.status(ctx, err),
			CollectionName: req.CollectionName,
			FieldName:      req.FieldName,
		}, nil
	}
	reply, err := fromIndexSpec(req.CollectionName, req.FieldName, spec)
	if err != nil {
		return &apiv1.IndexParam{Status: h.status(ctx, err)}, nil
	}
	reply.Status = h.status(ctx, nil)
	return reply, nil
}

func (h *Handler) DropIndex(ctx context.Context, req *apiv1.IndexParam) (*apiv1.Status, error) {
	return h.status(ctx, h.engine.DropIndex(ctx, req.CollectionName, req.FieldName, req.IndexName)), nil
}

func (h *Handler) CreatePartition(ctx context.Context, req *apiv1.PartitionParam) (*apiv1.Status, error) {
	return h.status(ctx, h.engine.CreatePartition(ctx, req.CollectionName, req.Tag)), nil
}

func (h *Handler) HasPartition(ctx context.Context, req *apiv1.PartitionParam) (*apiv1.BoolReply, error) {
	ok, err := h.engine.HasPartition(ctx, req.CollectionName, req.Tag)
	return &apiv1.BoolReply{Status: h.status(ctx, err), BoolReply: ok}, nil
}

func (h *Handler) ShowPartitions(ctx context.Context, req *apiv1.CollectionName) (*apiv1.PartitionList, error) {
	tags, err := h.engine.ListPartitions(ctx, req.CollectionName)
	return &apiv1.PartitionList{Status: h.status(ctx, err), PartitionTagArray: tags}, nil
}

func (h *Handler) DropPartition(ctx context.Context, req *apiv1.PartitionParam) (*apiv1.Status, error) {
	return h.status(ctx, h.engine.DropPartition(ctx, req.CollectionName, req.Tag)), nil
}

// Insert holds the request's encoded size against the admission budget
// for the whole call.
func (h *Handler) Insert(ctx context.Context, req *apiv1.InsertParam) (*apiv1.EntityIDs, error) {
	ctx = logging.WithCollection(ctx, req.CollectionName)
	if h.admission != nil {
		release, err := h.admission.Admit(ctx, h.request(ctx).RequestID(), req.ByteSize())
		if err != nil {
			return &apiv1.EntityIDs{Status: h.status(ctx, err)}, nil
		}
		defer release()
	}

	batch, err := codec.Ingest(req.Fields, req.EntityIDArray)
	if err != nil {
		return &apiv1.EntityIDs{Status: h.status(ctx, err)}, nil
	}
	if err := errdefs.Cancelled(ctx); err != nil {
		return &apiv1.EntityIDs{Status: h.status(ctx, err)}, nil
	}

	ids, err := h.engine.Insert(ctx, req.CollectionName, req.PartitionTag, batch)
	if err != nil {
		return &apiv1.EntityIDs{Status: h.status(ctx, err)}, nil
	}
	h.logger.Debug(ctx, "insert done", zap.Int("rows", batch.Rows), zap.Int("fields", len(batch.Columns)))
	return &apiv1.EntityIDs{Status: h.status(ctx, nil), EntityIDArray: ids}, nil
}

func (h *Handler) GetEntityByID(ctx context.Context, req *apiv1.EntityIdentity) (*apiv1.Entities, error) {
	res, err := h.engine.GetEntityByID(ctx, req.CollectionName, req.IDArray, req.FieldNames)
	if err != nil {
		return &apiv1.Entities{Status: h.status(ctx, err), IDs: req.IDArray}, nil
	}
	fields, err := h.encode(ctx, res.Chunk, res.Fields, res.Valid.Count())
	if err != nil {
		return &apiv1.Entities{Status: h.status(ctx, err), IDs: res.IDs}, nil
	}
	return &apiv1.Entities{
		Status:   h.status(ctx, nil),
		IDs:      res.IDs,
		ValidRow: res.Valid.Flags(),
		Fields:   fields,
	}, nil
}

func (h *Handler) GetEntityIDs(ctx context.Context, req *apiv1.GetEntityIDsParam) (*apiv1.EntityIDs, error) {
	ids, err := h.engine.GetEntityIDs(ctx, req.CollectionName, req.SegmentID)
	return &apiv1.EntityIDs{Status: h.status(ctx, err), EntityIDArray: ids}, nil
}

// Search compiles the DSL, runs it and encodes the valid hits. Cancellation
// is observed after compiling and before marshalling the result.
func (h *Handler) Search(ctx context.Context, req *apiv1.SearchParam) (*apiv1.QueryResult, error) {
	ctx = logging.WithCollection(ctx, req.CollectionName)
	fail := func(err error) (*apiv1.QueryResult, error) {
		return &apiv1.QueryResult{Status: h.status(ctx, err)}, nil
	}

	has, err := h.engine.HasCollection(ctx, req.CollectionName)
	if err != nil {
		return fail(err)
	}
	if !has {
		return fail(collectionNotExists(req.CollectionName))
	}
	fields, err := searchFields(req.ExtraParams)
	if err != nil {
		return fail(err)
	}

	q, err := query.Compile(req.DSL, req.VectorParam, h.engine)
	if err != nil {
		return fail(err)
	}
	q.Collection = req.CollectionName
	q.Partitions = req.PartitionTagArray
	if err := errdefs.Cancelled(ctx); err != nil {
		return fail(err)
	}

	res, err := h.engine.Search(ctx, q, fields)
	if err != nil {
		return fail(err)
	}
	if err := checkDistances(res.Distances); err != nil {
		return fail(err)
	}
	valid := codec.ValidRowsFromIDs(res.IDs)
	out, err := h.encode(ctx, res.Chunk, res.Fields, valid.Count())
	if err != nil {
		return fail(err)
	}

	h.logger.Debug(ctx, "search done",
		zap.Int("nq", res.NQ),
		zap.Int("topk", res.Topk),
		zap.Int("hits", valid.Count()))
	return &apiv1.QueryResult{
		Status: h.status(ctx, nil),
		Entities: &apiv1.Entities{
			IDs:      res.IDs,
			ValidRow: valid.Flags(),
			Fields:   out,
		},
		RowNum:    int64(res.NQ),
		Distances: res.Distances,
	}, nil
}

// checkDistances rejects distances the wire codec cannot carry.
func checkDistances(ds []float32) error {
	for i, d := range ds {
		if math.IsNaN(float64(d)) || math.IsInf(float64(d), 0) {
			return errdefs.Internal(apiv1.ErrorCodeIllegalSearchResult, "Search result has non-finite distance at position %d", i)
		}
	}
	return nil
}

// CmdRequests lists the live requests of the server.
const CmdRequests = "requests"

// Cmd answers "requests" from the registry and passes every other
// command to the engine.
func (h *Handler) Cmd(ctx context.Context, req *apiv1.Command) (*apiv1.StringReply, error) {
	if strings.TrimSpace(req.Cmd) != CmdRequests {
		reply, err := h.engine.Cmd(ctx, req.Cmd)
		return &apiv1.StringReply{Status: h.status(ctx, err), StringReply: reply}, nil
	}

	list := h.registry.Requests(h.request(ctx).RequestID())
	raw, err := json.Marshal(struct {
		Requests []string `json:"requests"`
	}{list})
	if err != nil {
		return &apiv1.StringReply{Status: h.status(ctx, fmt.Errorf("marshal requests: %w", err))}, nil
	}
	return &apiv1.StringReply{Status: h.status(ctx, nil), StringReply: string(raw)}, nil
}

func (h *Handler) DeleteByID(ctx context.Context, req *apiv1.DeleteByIDParam) (*apiv1.Status, error) {
	return h.status(ctx, h.engine.DeleteByID(ctx, req.CollectionName, req.IDArray)), nil
}

func (h *Handler) PreloadCollection(ctx context.Context, req *apiv1.CollectionName) (*apiv1.Status, error) {
	return h.status(ctx, h.engine.LoadCollection(ctx, req.CollectionName)), nil
}

func (h *Handler) Flush(ctx context.Context, req *apiv1.FlushParam) (*apiv1.Status, error) {
	return h.status(ctx, h.engine.Flush(ctx, req.CollectionNameArray)), nil
}

func (h *Handler) Compact(ctx context.Context, req *apiv1.CompactParam) (*apiv1.Status, error) {
	return h.status(ctx, h.engine.Compact(ctx, req.CollectionName, req.Threshold)), nil
}
