package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/codec"
	"github.com/fyrsmithlabs/vectord/internal/errdefs"
	"github.com/fyrsmithlabs/vectord/internal/logging"
	"github.com/fyrsmithlabs/vectord/internal/query"
	vqdrant "github.com/fyrsmithlabs/vectord/internal/qdrant"
	apiv1 "github.com/fyrsmithlabs/vectord/pkg/api/v1"
	"github.com/fyrsmithlabs/vectord/pkg/collections"
)

const (
	providerQdrant = "qdrant"

	// CatalogCollection holds one point per vectord collection carrying
	// its schema, partitions and indexes.
	CatalogCollection = "vectord_catalog"

	upsertBatchSize = 512
)

// catalogNamespace derives stable catalog point ids from collection names.
var catalogNamespace = uuid.MustParse("0d6c3c4e-5a3b-4f0e-9a51-7c1e2b8f4d10")

// QdrantConfig configures the Qdrant-backed engine.
type QdrantConfig struct {
	MaxTopK int64
	Version string
}

// Qdrant runs collections on a Qdrant server. Each collection maps to one
// Qdrant collection with a single dense vector; scalar fields and the
// partition tag live in the point payload. Schemas, partitions and index
// metadata are kept in CatalogCollection.
//
// Binary vectors and segment listing have no Qdrant equivalent and are
// reported as unsupported.
type Qdrant struct {
	client vqdrant.Client
	cfg    QdrantConfig
	logger *logging.Logger

	// mu serializes catalog read-modify-write cycles.
	mu sync.Mutex
}

type catalogEntry struct {
	Schema     *CollectionSchema     `json:"schema"`
	Partitions []string              `json:"partitions"`
	Indexes    map[string]*IndexSpec `json:"indexes"`
	Metric     string                `json:"metric"`
	NextID     int64                 `json:"next_id"`
}

var _ Engine = (*Qdrant)(nil)

// NewQdrant wraps client and makes sure the catalog collection exists.
func NewQdrant(ctx context.Context, client vqdrant.Client, cfg QdrantConfig, logger *logging.Logger) (*Qdrant, error) {
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = 16384
	}
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	e := &Qdrant{client: client, cfg: cfg, logger: logger.Named("engine.qdrant")}

	exists, err := client.CollectionExists(ctx, CatalogCollection)
	if err != nil {
		return nil, fmt.Errorf("check catalog collection: %w", err)
	}
	if !exists {
		if err := client.CreateCollection(ctx, CatalogCollection, 1, qdrant.Distance_Dot); err != nil {
			return nil, fmt.Errorf("create catalog collection: %w", err)
		}
		e.logger.Info(ctx, "catalog collection created", zap.String("collection", CatalogCollection))
	}
	return e, nil
}

// backendErr classifies a Qdrant failure. Context errors pass through so
// the edge reports them as a closed connection.
func backendErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errdefs.Internal(apiv1.ErrorCodeUnexpectedError, "qdrant %s failed: %v", op, err)
}

func catalogID(name string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(catalogNamespace, []byte(name)).String())
}

func (e *Qdrant) loadEntry(ctx context.Context, name string) (*catalogEntry, error) {
	points, err := e.client.Get(ctx, CatalogCollection, []*qdrant.PointId{catalogID(name)})
	if err != nil {
		return nil, backendErr("catalog get", err)
	}
	if len(points) == 0 {
		return nil, collectionNotFound(name)
	}
	raw, _ := points[0].Payload["entry"].(string)
	var entry catalogEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, errdefs.Internal(apiv1.ErrorCodeMetaFailed, "catalog entry of %s is corrupt: %v", name, err)
	}
	if entry.Indexes == nil {
		entry.Indexes = make(map[string]*IndexSpec)
	}
	return &entry, nil
}

func (e *Qdrant) saveEntry(ctx context.Context, entry *catalogEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal catalog entry: %w", err)
	}
	name := entry.Schema.Name
	err = e.client.Upsert(ctx, CatalogCollection, []*vqdrant.Point{{
		ID:      catalogID(name),
		Vector:  []float32{0},
		Payload: map[string]any{"name": name, "entry": string(raw)},
	}})
	if err != nil {
		return backendErr("catalog upsert", err)
	}
	return nil
}

func qdrantDistance(m metric) qdrant.Distance {
	if m.name == MetricIP {
		return qdrant.Distance_Dot
	}
	return qdrant.Distance_Euclid
}

// CreateCollection creates the Qdrant collection, its payload indexes and
// the catalog entry. The collection metric comes from the vector field's
// metric_type index param and defaults to L2.
func (e *Qdrant) CreateCollection(ctx context.Context, schema *CollectionSchema) (err error) {
	defer func(start time.Time) { observe(providerQdrant, "create_collection", start, err) }(time.Now())

	if schema == nil {
		return illegal("Collection schema is null")
	}
	normalized, err := normalizeSchema(schema)
	if err != nil {
		return err
	}

	var vf *FieldSchema
	for i := range normalized.Fields {
		f := &normalized.Fields[i]
		if f.Type == apiv1.DataTypeVectorBinary {
			return errdefs.Unsupported("binary vector field %s is not supported by the qdrant engine", f.Name)
		}
		if f.Type.IsVector() {
			if vf != nil {
				return errdefs.Unsupported("the qdrant engine supports one vector field per collection")
			}
			vf = f
		}
	}
	if vf == nil {
		return errdefs.Unsupported("the qdrant engine needs a vector field")
	}
	met, err := resolveMetric(vf.IndexParams["metric_type"], vf.Type)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.loadEntry(ctx, normalized.Name); err == nil {
		return illegal("Collection %s already exists", normalized.Name)
	} else if !errdefs.IsNotFound(err) {
		return err
	}

	if err := e.client.CreateCollection(ctx, normalized.Name, uint64(vf.Dim), qdrantDistance(met)); err != nil {
		return backendErr("create collection", err)
	}
	if err := e.client.CreateFieldIndex(ctx, normalized.Name, partitionKey, qdrant.FieldType_FieldTypeKeyword); err != nil {
		return backendErr("create payload index", err)
	}
	for _, f := range normalized.Fields {
		var ft qdrant.FieldType
		switch f.Type {
		case apiv1.DataTypeInt32, apiv1.DataTypeInt64:
			ft = qdrant.FieldType_FieldTypeInteger
		case apiv1.DataTypeFloat, apiv1.DataTypeDouble:
			ft = qdrant.FieldType_FieldTypeFloat
		default:
			continue
		}
		if err := e.client.CreateFieldIndex(ctx, normalized.Name, f.Name, ft); err != nil {
			return backendErr("create payload index", err)
		}
	}

	entry := &catalogEntry{
		Schema:     normalized,
		Partitions: []string{DefaultPartition},
		Indexes:    make(map[string]*IndexSpec),
		Metric:     met.name,
	}
	if err := e.saveEntry(ctx, entry); err != nil {
		return err
	}
	e.logger.Info(ctx, "collection created",
		zap.String("collection", normalized.Name),
		zap.String("metric", met.name),
		zap.Int("dim", vf.Dim))
	return nil
}

// DropCollection deletes the Qdrant collection and its catalog entry.
func (e *Qdrant) DropCollection(ctx context.Context, name string) (err error) {
	defer func(start time.Time) { observe(providerQdrant, "drop_collection", start, err) }(time.Now())

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.loadEntry(ctx, name); err != nil {
		return err
	}
	if err := e.client.DeleteCollection(ctx, name); err != nil {
		return backendErr("delete collection", err)
	}
	if err := e.client.Delete(ctx, CatalogCollection, []*qdrant.PointId{catalogID(name)}); err != nil {
		return backendErr("catalog delete", err)
	}
	e.logger.Info(ctx, "collection dropped", zap.String("collection", name))
	return nil
}

// HasCollection reports whether name has a catalog entry.
func (e *Qdrant) HasCollection(ctx context.Context, name string) (bool, error) {
	_, err := e.loadEntry(ctx, name)
	switch {
	case err == nil:
		return true, nil
	case errdefs.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// DescribeCollection returns the stored schema.
func (e *Qdrant) DescribeCollection(ctx context.Context, name string) (*CollectionSchema, error) {
	entry, err := e.loadEntry(ctx, name)
	if err != nil {
		return nil, err
	}
	return entry.Schema, nil
}

// ListCollections returns every Qdrant collection that has a catalog
// entry, sorted.
func (e *Qdrant) ListCollections(ctx context.Context) ([]string, error) {
	all, err := e.client.ListCollections(ctx)
	if err != nil {
		return nil, backendErr("list collections", err)
	}
	ids := make([]*qdrant.PointId, 0, len(all))
	for _, name := range all {
		if name != CatalogCollection {
			ids = append(ids, catalogID(name))
		}
	}
	if len(ids) == 0 {
		return []string{}, nil
	}
	points, err := e.client.Get(ctx, CatalogCollection, ids)
	if err != nil {
		return nil, backendErr("catalog get", err)
	}
	names := make([]string, 0, len(points))
	for _, p := range points {
		if n, ok := p.Payload["name"].(string); ok {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}

func partitionFilter(tag string) *qdrant.Filter {
	return &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatchKeyword(partitionKey, tag)}}
}

// CollectionStats returns row counts per partition as JSON.
func (e *Qdrant) CollectionStats(ctx context.Context, name string) (string, error) {
	entry, err := e.loadEntry(ctx, name)
	if err != nil {
		return "", err
	}
	stats := collectionStats{Loaded: true}
	tags := append([]string(nil), entry.Partitions...)
	sort.Strings(tags)
	for _, tag := range tags {
		n, err := e.client.Count(ctx, name, partitionFilter(tag))
		if err != nil {
			return "", backendErr("count", err)
		}
		stats.RowCount += int(n)
		stats.Partitions = append(stats.Partitions, partitionStats{Tag: tag, RowCount: int(n), Segments: []segmentStats{}})
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return "", fmt.Errorf("marshal collection stats: %w", err)
	}
	return string(raw), nil
}

// CountEntities returns the number of points in the collection.
func (e *Qdrant) CountEntities(ctx context.Context, name string) (int64, error) {
	if _, err := e.loadEntry(ctx, name); err != nil {
		return 0, err
	}
	n, err := e.client.Count(ctx, name, nil)
	if err != nil {
		return 0, backendErr("count", err)
	}
	return int64(n), nil
}

// LoadCollection checks the collection exists. Qdrant serves every
// collection without an explicit load.
func (e *Qdrant) LoadCollection(ctx context.Context, name string) error {
	_, err := e.loadEntry(ctx, name)
	return err
}

// CreateIndex records index metadata. Qdrant builds its own HNSW index;
// the metric is fixed when the collection is created.
func (e *Qdrant) CreateIndex(ctx context.Context, spec *IndexSpec) (err error) {
	defer func(start time.Time) { observe(providerQdrant, "create_index", start, err) }(time.Now())

	if spec == nil {
		return illegal("Index param is null")
	}
	if err := collections.ValidateIndexName(spec.Name); err != nil {
		return illegal("%v", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	entry, err := e.loadEntry(ctx, spec.Collection)
	if err != nil {
		return err
	}
	f := entry.Schema.Field(spec.Field)
	if f == nil {
		return illegal("Field %s not found in collection %s", spec.Field, spec.Collection)
	}
	if mt := spec.MetricType(); mt != "" && f.Type.IsVector() {
		met, err := resolveMetric(mt, f.Type)
		if err != nil {
			return err
		}
		if met.name != entry.Metric {
			return errdefs.InvalidArgument(apiv1.ErrorCodeIllegalMetricType, "Collection %s is bound to metric %s", spec.Collection, entry.Metric)
		}
	}

	stored := &IndexSpec{Collection: spec.Collection, Field: spec.Field, Name: spec.Name, Params: spec.Params}
	if stored.Name == "" {
		stored.Name = spec.Field + "_index"
	}
	entry.Indexes[spec.Field] = stored
	return e.saveEntry(ctx, entry)
}

// DescribeIndex returns the index recorded for field.
func (e *Qdrant) DescribeIndex(ctx context.Context, collection, field string) (*IndexSpec, error) {
	entry, err := e.loadEntry(ctx, collection)
	if err != nil {
		return nil, err
	}
	idx, ok := entry.Indexes[field]
	if !ok {
		return nil, errdefs.NotFound(apiv1.ErrorCodeIllegalArgument, "Index of field %s not found in collection %s", field, collection)
	}
	return idx, nil
}

// DropIndex forgets the index on field. A non-empty name must match.
func (e *Qdrant) DropIndex(ctx context.Context, collection, field, name string) (err error) {
	defer func(start time.Time) { observe(providerQdrant, "drop_index", start, err) }(time.Now())

	e.mu.Lock()
	defer e.mu.Unlock()
	entry, err := e.loadEntry(ctx, collection)
	if err != nil {
		return err
	}
	idx, ok := entry.Indexes[field]
	if !ok || (name != "" && idx.Name != name) {
		return errdefs.NotFound(apiv1.ErrorCodeIllegalArgument, "Index %s of field %s not found in collection %s", name, field, collection)
	}
	delete(entry.Indexes, field)
	return e.saveEntry(ctx, entry)
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// CreatePartition adds a partition tag to the catalog.
func (e *Qdrant) CreatePartition(ctx context.Context, collection, tag string) (err error) {
	defer func(start time.Time) { observe(providerQdrant, "create_partition", start, err) }(time.Now())

	tag, err = collections.NormalizePartitionTag(tag)
	if err != nil {
		return illegal("%v", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, err := e.loadEntry(ctx, collection)
	if err != nil {
		return err
	}
	if hasTag(entry.Partitions, tag) {
		return illegal("Partition tag %s already exists in collection %s", tag, collection)
	}
	entry.Partitions = append(entry.Partitions, tag)
	return e.saveEntry(ctx, entry)
}

// DropPartition deletes the points of a partition and forgets its tag.
func (e *Qdrant) DropPartition(ctx context.Context, collection, tag string) (err error) {
	defer func(start time.Time) { observe(providerQdrant, "drop_partition", start, err) }(time.Now())

	tag, err = collections.NormalizePartitionTag(tag)
	if err != nil {
		return illegal("%v", err)
	}
	if tag == DefaultPartition {
		return illegal("Default partition cannot be dropped")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, err := e.loadEntry(ctx, collection)
	if err != nil {
		return err
	}
	if !hasTag(entry.Partitions, tag) {
		return errdefs.NotFound(apiv1.ErrorCodeIllegalArgument, "Partition tag %s not found in collection %s", tag, collection)
	}
	if err := e.client.DeleteByFilter(ctx, collection, partitionFilter(tag)); err != nil {
		return backendErr("delete partition points", err)
	}
	kept := entry.Partitions[:0]
	for _, t := range entry.Partitions {
		if t != tag {
			kept = append(kept, t)
		}
	}
	entry.Partitions = kept
	return e.saveEntry(ctx, entry)
}

// HasPartition reports whether tag exists in collection.
func (e *Qdrant) HasPartition(ctx context.Context, collection, tag string) (bool, error) {
	entry, err := e.loadEntry(ctx, collection)
	if err != nil {
		return false, err
	}
	return hasTag(entry.Partitions, strings.TrimSpace(tag)), nil
}

// ListPartitions returns the partition tags of collection, sorted.
func (e *Qdrant) ListPartitions(ctx context.Context, collection string) ([]string, error) {
	entry, err := e.loadEntry(ctx, collection)
	if err != nil {
		return nil, err
	}
	tags := append([]string(nil), entry.Partitions...)
	sort.Strings(tags)
	return tags, nil
}

// Insert upserts one point per row. Generated ids continue from the
// catalog's id counter.
func (e *Qdrant) Insert(ctx context.Context, collection, partition string, batch *codec.Batch) (ids []int64, err error) {
	defer func(start time.Time) { observe(providerQdrant, "insert", start, err) }(time.Now())

	if batch == nil || batch.Rows == 0 {
		return nil, errdefs.InvalidArgument(apiv1.ErrorCodeIllegalRowRecord, "Insert has no row")
	}
	partition = strings.TrimSpace(partition)
	if partition == "" {
		partition = DefaultPartition
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	entry, err := e.loadEntry(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !hasTag(entry.Partitions, partition) {
		return nil, errdefs.NotFound(apiv1.ErrorCodeIllegalArgument, "Partition tag %s not found in collection %s", partition, collection)
	}
	if err := checkBatch(entry.Schema, batch); err != nil {
		return nil, err
	}

	ids = batch.IDs
	if ids == nil {
		ids = make([]int64, batch.Rows)
		for i := range ids {
			ids[i] = entry.NextID + int64(i)
		}
	}
	for _, id := range ids {
		entry.NextID = max(entry.NextID, id+1)
	}

	vector := entry.Schema.VectorField().Name
	points := make([]*vqdrant.Point, 0, min(batch.Rows, upsertBatchSize))
	for row := 0; row < batch.Rows; row++ {
		p := &vqdrant.Point{
			ID:      qdrant.NewIDNum(uint64(ids[row])),
			Payload: map[string]any{partitionKey: partition},
		}
		for _, col := range batch.Columns {
			if col.Name == vector {
				p.Vector = col.FloatRow(row)
				continue
			}
			if v, ok := col.Int64At(row); ok {
				p.Payload[col.Name] = v
			} else if v, ok := col.Float64At(row); ok {
				p.Payload[col.Name] = v
			}
		}
		points = append(points, p)
		if len(points) == upsertBatchSize || row == batch.Rows-1 {
			if err := e.client.Upsert(ctx, collection, points); err != nil {
				return nil, backendErr("upsert", err)
			}
			points = points[:0]
		}
	}

	if err := e.saveEntry(ctx, entry); err != nil {
		return nil, err
	}
	e.logger.Debug(ctx, "rows inserted",
		zap.String("collection", collection),
		zap.String("partition", partition),
		zap.Int("rows", batch.Rows))
	return ids, nil
}

// pointsChunk packs the requested fields of points into field bytes.
func pointsChunk(schema *CollectionSchema, fields []codec.Field, points []*vqdrant.Point) codec.Chunk {
	chunk := codec.Chunk{}
	for _, f := range fields {
		fs := schema.Field(f.Name)
		col := codec.NewColumn(f.Name, f.Type, fs.Dim)
		for _, p := range points {
			switch f.Type {
			case apiv1.DataTypeInt32:
				col.Int32 = append(col.Int32, int32(payloadInt(p.Payload[f.Name])))
			case apiv1.DataTypeInt64:
				col.Int64 = append(col.Int64, payloadInt(p.Payload[f.Name]))
			case apiv1.DataTypeFloat:
				col.Float = append(col.Float, float32(payloadFloat(p.Payload[f.Name])))
			case apiv1.DataTypeDouble:
				col.Double = append(col.Double, payloadFloat(p.Payload[f.Name]))
			case apiv1.DataTypeVectorFloat:
				vec := make([]float32, fs.Dim)
				copy(vec, p.Vector)
				col.FloatVector = append(col.FloatVector, vec...)
			}
			col.Rows++
		}
		chunk[f.Name] = col.Bytes()
	}
	return chunk
}

func payloadInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

func payloadFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}

func pointIDs(ids []int64) []*qdrant.PointId {
	out := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		if id >= 0 {
			out = append(out, qdrant.NewIDNum(uint64(id)))
		}
	}
	return out
}

// GetEntityByID fetches points by id and returns the requested fields of
// those found, in request order.
func (e *Qdrant) GetEntityByID(ctx context.Context, collection string, ids []int64, fields []string) (res *EntityResult, err error) {
	defer func(start time.Time) { observe(providerQdrant, "get_entity_by_id", start, err) }(time.Now())

	entry, err := e.loadEntry(ctx, collection)
	if err != nil {
		return nil, err
	}
	mappings, err := outputFields(entry.Schema, fields)
	if err != nil {
		return nil, err
	}

	res = &EntityResult{IDs: ids, Valid: codec.NewValidRows(len(ids)), Chunk: codec.Chunk{}, Fields: mappings}
	if len(ids) == 0 {
		return res, nil
	}
	points, err := e.client.Get(ctx, collection, pointIDs(ids))
	if err != nil {
		return nil, backendErr("get", err)
	}
	byID := make(map[int64]*vqdrant.Point, len(points))
	for _, p := range points {
		if n, ok := vqdrant.NumericID(p.ID); ok {
			byID[int64(n)] = p
		}
	}

	found := make([]*vqdrant.Point, 0, len(points))
	for i, id := range ids {
		if p, ok := byID[id]; ok {
			res.Valid.Set(i)
			found = append(found, p)
		}
	}
	res.Chunk = pointsChunk(entry.Schema, mappings, found)
	return res, nil
}

// GetEntityIDs is unsupported: Qdrant does not expose its segments.
func (e *Qdrant) GetEntityIDs(context.Context, string, int64) ([]int64, error) {
	return nil, errdefs.Unsupported("segment listing is not supported by the qdrant engine")
}

// DeleteByID deletes points by id.
func (e *Qdrant) DeleteByID(ctx context.Context, collection string, ids []int64) (err error) {
	defer func(start time.Time) { observe(providerQdrant, "delete_by_id", start, err) }(time.Now())

	if _, err := e.loadEntry(ctx, collection); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := e.client.Delete(ctx, collection, pointIDs(ids)); err != nil {
		return backendErr("delete", err)
	}
	return nil
}

// Search pushes the filter down to Qdrant and runs one query per query
// vector. Qdrant scores are returned as distances unchanged.
func (e *Qdrant) Search(ctx context.Context, q *query.Query, fields []string) (res *SearchResult, err error) {
	defer func(start time.Time) { observe(providerQdrant, "search", start, err) }(time.Now())

	vq := q.Vector()
	if vq == nil {
		return nil, illegal("Search has no vector query")
	}
	if err := e.ValidateTopk(vq.Topk); err != nil {
		return nil, err
	}
	entry, err := e.loadEntry(ctx, q.Collection)
	if err != nil {
		return nil, err
	}
	met, err := checkQuery(entry.Schema, entry.Indexes, q, vq)
	if err != nil {
		return nil, err
	}
	if q.MetricTypes[vq.Field] != "" && met.name != entry.Metric {
		return nil, errdefs.InvalidArgument(apiv1.ErrorCodeIllegalMetricType, "Collection %s is bound to metric %s", q.Collection, entry.Metric)
	}
	mappings, err := outputFields(entry.Schema, fields)
	if err != nil {
		return nil, err
	}

	tags := make([]string, 0, len(q.Partitions))
	for _, tag := range q.Partitions {
		tag = strings.TrimSpace(tag)
		if !hasTag(entry.Partitions, tag) {
			return nil, errdefs.NotFound(apiv1.ErrorCodeIllegalArgument, "Partition tag %s not found in collection %s", tag, q.Collection)
		}
		tags = append(tags, tag)
	}
	filter, err := buildFilter(entry.Schema, q.Binary, tags)
	if err != nil {
		return nil, err
	}

	topk := int(vq.Topk)
	res = &SearchResult{
		NQ:        vq.Count,
		Topk:      topk,
		IDs:       make([]int64, vq.Count*topk),
		Distances: make([]float32, vq.Count*topk),
		Fields:    mappings,
	}
	var hits []*vqdrant.Point
	for qi := 0; qi < vq.Count; qi++ {
		if err := errdefs.Cancelled(ctx); err != nil {
			return nil, err
		}
		scored, err := e.client.Query(ctx, q.Collection, vq.RowFloat(qi), uint64(topk), filter)
		if err != nil {
			return nil, backendErr("query", err)
		}
		for k := 0; k < topk; k++ {
			pos := qi*topk + k
			if k >= len(scored) {
				res.IDs[pos] = -1
				continue
			}
			n, _ := vqdrant.NumericID(scored[k].ID)
			res.IDs[pos] = int64(n)
			res.Distances[pos] = scored[k].Score
			hits = append(hits, &scored[k].Point)
		}
	}
	res.Chunk = pointsChunk(entry.Schema, mappings, hits)
	return res, nil
}

func (e *Qdrant) checkCollections(ctx context.Context, names []string) error {
	for _, n := range names {
		if _, err := e.loadEntry(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// Flush checks the named collections exist. Upserts already wait for
// Qdrant to apply them.
func (e *Qdrant) Flush(ctx context.Context, names []string) (err error) {
	defer func(start time.Time) { observe(providerQdrant, "flush", start, err) }(time.Now())
	return e.checkCollections(ctx, names)
}

// Compact checks its arguments. Qdrant vacuums deleted points in its own
// optimizer.
func (e *Qdrant) Compact(ctx context.Context, collection string, threshold float64) (err error) {
	defer func(start time.Time) { observe(providerQdrant, "compact", start, err) }(time.Now())

	if threshold < 0 || threshold > 1 {
		return illegal("Compact threshold %g is outside [0, 1]", threshold)
	}
	if err := e.checkCollections(ctx, []string{collection}); err != nil {
		return err
	}
	e.logger.Debug(ctx, "compaction delegated to qdrant optimizer", zap.String("collection", collection))
	return nil
}

// Cmd answers "version", "status" and "mode".
func (e *Qdrant) Cmd(ctx context.Context, cmd string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(cmd)) {
	case "version":
		return e.cfg.Version, nil
	case "status":
		if _, err := e.client.Health(ctx); err != nil {
			return "", backendErr("health check", err)
		}
		return "OK", nil
	case "mode":
		return "qdrant", nil
	default:
		return "", illegal("Unknown command: %s", cmd)
	}
}

// ValidateTopk rejects k outside [1, MaxTopK].
func (e *Qdrant) ValidateTopk(k int64) error {
	return validateTopk(k, e.cfg.MaxTopK)
}

// Close closes the Qdrant connection.
func (e *Qdrant) Close() error {
	return e.client.Close()
}
