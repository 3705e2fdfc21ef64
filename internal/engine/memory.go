package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/codec"
	"github.com/fyrsmithlabs/vectord/internal/errdefs"
	"github.com/fyrsmithlabs/vectord/internal/logging"
	"github.com/fyrsmithlabs/vectord/internal/query"
	apiv1 "github.com/fyrsmithlabs/vectord/pkg/api/v1"
	"github.com/fyrsmithlabs/vectord/pkg/collections"
)

const providerMemory = "memory"

// MemoryConfig configures the in-process engine.
type MemoryConfig struct {
	// MaxTopK bounds the top-k of a search.
	MaxTopK int64

	// SegmentRowLimit seals a segment once it holds this many rows.
	SegmentRowLimit int

	// Version is reported by Cmd "version".
	Version string
}

// Memory is the in-process reference engine. Rows live in per-partition
// segments of typed columns; deletes are tombstones in a roaring bitmap
// until Compact rewrites the segment. Search is exhaustive.
type Memory struct {
	cfg    MemoryConfig
	logger *logging.Logger

	mu          sync.RWMutex
	collections map[string]*memCollection

	nextID      atomic.Int64
	nextSegment atomic.Int64
}

type memCollection struct {
	schema     *CollectionSchema
	partitions map[string]*memPartition
	indexes    map[string]*IndexSpec
	rows       map[int64]rowRef
	loaded     bool
}

type memPartition struct {
	tag      string
	segments []*memSegment
}

type memSegment struct {
	id      int64
	ids     []int64
	columns map[string]*codec.Column
	deleted *roaring.Bitmap
	sealed  bool
}

type rowRef struct {
	seg *memSegment
	row int
}

func (s *memSegment) rows() int { return len(s.ids) }

func (s *memSegment) live(row int) bool { return !s.deleted.Contains(uint32(row)) }

func (s *memSegment) liveRows() int { return s.rows() - int(s.deleted.GetCardinality()) }

var _ Engine = (*Memory)(nil)

// NewMemory creates an empty in-process engine.
func NewMemory(cfg MemoryConfig, logger *logging.Logger) *Memory {
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = 16384
	}
	if cfg.SegmentRowLimit <= 0 {
		cfg.SegmentRowLimit = 4096
	}
	if logger == nil {
		logger = logging.FromContext(context.Background())
	}
	return &Memory{
		cfg:         cfg,
		logger:      logger.Named("engine.memory"),
		collections: make(map[string]*memCollection),
	}
}

func collectionNotFound(name string) error {
	return errdefs.NotFound(apiv1.ErrorCodeCollectionNotExists, "Collection %s does not exist", name)
}

func illegal(format string, args ...any) error {
	return errdefs.InvalidArgument(apiv1.ErrorCodeIllegalArgument, format, args...)
}

// collectionLocked returns the named collection; the caller holds mu.
func (m *Memory) collectionLocked(name string) (*memCollection, error) {
	c, ok := m.collections[name]
	if !ok {
		return nil, collectionNotFound(name)
	}
	return c, nil
}

// CreateCollection validates schema and registers an empty collection
// with the default partition.
func (m *Memory) CreateCollection(ctx context.Context, schema *CollectionSchema) (err error) {
	defer func(start time.Time) { observe(providerMemory, "create_collection", start, err) }(time.Now())

	if schema == nil {
		return illegal("Collection schema is null")
	}
	normalized, err := normalizeSchema(schema)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.collections[normalized.Name]; exists {
		return illegal("Collection %s already exists", normalized.Name)
	}
	m.collections[normalized.Name] = &memCollection{
		schema:     normalized,
		partitions: map[string]*memPartition{DefaultPartition: {tag: DefaultPartition}},
		indexes:    make(map[string]*IndexSpec),
		rows:       make(map[int64]rowRef),
	}
	m.logger.Info(ctx, "collection created",
		zap.String("collection", normalized.Name),
		zap.Int("fields", len(normalized.Fields)))
	return nil
}

// normalizeSchema checks names, types and dimensions and returns a copy
// with vector dimensions resolved from the field params.
func normalizeSchema(schema *CollectionSchema) (*CollectionSchema, error) {
	if err := collections.ValidateCollectionName(schema.Name); err != nil {
		return nil, errdefs.InvalidArgument(apiv1.ErrorCodeIllegalCollectionName, "%v", err)
	}
	if len(schema.Fields) == 0 {
		return nil, illegal("Collection %s declares no field", schema.Name)
	}
	if len(schema.Fields) > MaxFieldNum {
		return nil, illegal("Collection %s declares %d fields, maximum is %d", schema.Name, len(schema.Fields), MaxFieldNum)
	}

	out := &CollectionSchema{Name: schema.Name, Params: schema.Params, Fields: make([]FieldSchema, len(schema.Fields))}
	seen := make(map[string]struct{}, len(schema.Fields))
	for i, f := range schema.Fields {
		if err := collections.ValidateFieldName(f.Name); err != nil {
			return nil, illegal("%v", err)
		}
		if _, dup := seen[f.Name]; dup {
			return nil, illegal("Field name conflict")
		}
		seen[f.Name] = struct{}{}

		switch f.Type {
		case apiv1.DataTypeInt32, apiv1.DataTypeInt64, apiv1.DataTypeFloat, apiv1.DataTypeDouble:
		case apiv1.DataTypeVectorFloat, apiv1.DataTypeVectorBinary:
			if f.Dim == 0 && len(f.Params) > 0 {
				f.Dim = int(gjson.GetBytes(f.Params, "dim").Int())
			}
			if f.Dim <= 0 {
				return nil, errdefs.InvalidArgument(apiv1.ErrorCodeIllegalDimension, "Field %s needs a positive dim", f.Name)
			}
			if f.Type == apiv1.DataTypeVectorBinary && f.Dim%8 != 0 {
				return nil, errdefs.InvalidArgument(apiv1.ErrorCodeIllegalDimension, "Binary field %s dim %d is not a multiple of 8", f.Name, f.Dim)
			}
		default:
			return nil, illegal("Field %s has unsupported type %s", f.Name, f.Type)
		}

		f.IndexParams = cloneStrings(f.IndexParams)
		out.Fields[i] = f
	}
	return out, nil
}

// DropCollection removes a collection and its rows.
func (m *Memory) DropCollection(ctx context.Context, name string) (err error) {
	defer func(start time.Time) { observe(providerMemory, "drop_collection", start, err) }(time.Now())

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.collectionLocked(name); err != nil {
		return err
	}
	delete(m.collections, name)
	Entities.DeleteLabelValues(name)
	m.logger.Info(ctx, "collection dropped", zap.String("collection", name))
	return nil
}

// HasCollection reports whether name exists.
func (m *Memory) HasCollection(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.collections[name]
	return ok, nil
}

// DescribeCollection returns a copy of the collection schema.
func (m *Memory) DescribeCollection(_ context.Context, name string) (*CollectionSchema, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.collectionLocked(name)
	if err != nil {
		return nil, err
	}
	return cloneSchema(c.schema), nil
}

// ListCollections returns every collection name, sorted.
func (m *Memory) ListCollections(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.collections))
	for n := range m.collections {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

type segmentStats struct {
	ID       int64 `json:"id"`
	RowCount int   `json:"row_count"`
	Deleted  int   `json:"deleted_count"`
	Sealed   bool  `json:"sealed"`
}

type partitionStats struct {
	Tag      string         `json:"tag"`
	RowCount int            `json:"row_count"`
	Segments []segmentStats `json:"segments"`
}

type collectionStats struct {
	RowCount   int              `json:"row_count"`
	Loaded     bool             `json:"loaded"`
	Partitions []partitionStats `json:"partitions"`
}

// CollectionStats returns row counts per partition and segment as JSON.
func (m *Memory) CollectionStats(_ context.Context, name string) (string, error) {
	m.mu.RLock()
	c, err := m.collectionLocked(name)
	if err != nil {
		m.mu.RUnlock()
		return "", err
	}
	stats := collectionStats{Loaded: c.loaded}
	for _, tag := range sortedTags(c) {
		p := c.partitions[tag]
		ps := partitionStats{Tag: tag, Segments: []segmentStats{}}
		for _, s := range p.segments {
			live := s.liveRows()
			ps.RowCount += live
			ps.Segments = append(ps.Segments, segmentStats{ID: s.id, RowCount: live, Deleted: s.rows() - live, Sealed: s.sealed})
		}
		stats.RowCount += ps.RowCount
		stats.Partitions = append(stats.Partitions, ps)
	}
	m.mu.RUnlock()

	raw, err := json.Marshal(stats)
	if err != nil {
		return "", fmt.Errorf("marshal collection stats: %w", err)
	}
	return string(raw), nil
}

// CountEntities returns the number of live rows.
func (m *Memory) CountEntities(_ context.Context, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.collectionLocked(name)
	if err != nil {
		return 0, err
	}
	return int64(len(c.rows)), nil
}

// LoadCollection marks a collection loaded. All data is resident already.
func (m *Memory) LoadCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.collectionLocked(name)
	if err != nil {
		return err
	}
	c.loaded = true
	return nil
}

// CreateIndex records index metadata for a field. Search stays
// exhaustive; the index metric becomes the field's default metric.
func (m *Memory) CreateIndex(ctx context.Context, spec *IndexSpec) (err error) {
	defer func(start time.Time) { observe(providerMemory, "create_index", start, err) }(time.Now())

	if spec == nil {
		return illegal("Index param is null")
	}
	if err := collections.ValidateIndexName(spec.Name); err != nil {
		return illegal("%v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.collectionLocked(spec.Collection)
	if err != nil {
		return err
	}
	f := c.schema.Field(spec.Field)
	if f == nil {
		return illegal("Field %s not found in collection %s", spec.Field, spec.Collection)
	}
	if mt := spec.MetricType(); mt != "" && f.Type.IsVector() {
		if _, err := resolveMetric(mt, f.Type); err != nil {
			return err
		}
	}

	stored := &IndexSpec{Collection: spec.Collection, Field: spec.Field, Name: spec.Name, Params: make(map[string]any, len(spec.Params))}
	if stored.Name == "" {
		stored.Name = spec.Field + "_index"
	}
	for k, v := range spec.Params {
		stored.Params[k] = v
	}
	c.indexes[spec.Field] = stored
	m.logger.Info(ctx, "index created",
		zap.String("collection", spec.Collection),
		zap.String("field", spec.Field),
		zap.String("index", stored.Name))
	return nil
}

// DescribeIndex returns the index on field.
func (m *Memory) DescribeIndex(_ context.Context, collection, field string) (*IndexSpec, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.collectionLocked(collection)
	if err != nil {
		return nil, err
	}
	idx, ok := c.indexes[field]
	if !ok {
		return nil, errdefs.NotFound(apiv1.ErrorCodeIllegalArgument, "Index of field %s not found in collection %s", field, collection)
	}
	out := *idx
	out.Params = make(map[string]any, len(idx.Params))
	for k, v := range idx.Params {
		out.Params[k] = v
	}
	return &out, nil
}

// DropIndex removes the index on field. A non-empty name must match.
func (m *Memory) DropIndex(_ context.Context, collection, field, name string) (err error) {
	defer func(start time.Time) { observe(providerMemory, "drop_index", start, err) }(time.Now())

	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.collectionLocked(collection)
	if err != nil {
		return err
	}
	idx, ok := c.indexes[field]
	if !ok || (name != "" && idx.Name != name) {
		return errdefs.NotFound(apiv1.ErrorCodeIllegalArgument, "Index %s of field %s not found in collection %s", name, field, collection)
	}
	delete(c.indexes, field)
	return nil
}

// CreatePartition adds an empty partition.
func (m *Memory) CreatePartition(_ context.Context, collection, tag string) (err error) {
	defer func(start time.Time) { observe(providerMemory, "create_partition", start, err) }(time.Now())

	tag, err = collections.NormalizePartitionTag(tag)
	if err != nil {
		return illegal("%v", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.collectionLocked(collection)
	if err != nil {
		return err
	}
	if _, exists := c.partitions[tag]; exists {
		return illegal("Partition tag %s already exists in collection %s", tag, collection)
	}
	c.partitions[tag] = &memPartition{tag: tag}
	return nil
}

// DropPartition removes a partition and its rows. The default partition
// cannot be dropped.
func (m *Memory) DropPartition(_ context.Context, collection, tag string) (err error) {
	defer func(start time.Time) { observe(providerMemory, "drop_partition", start, err) }(time.Now())

	tag, err = collections.NormalizePartitionTag(tag)
	if err != nil {
		return illegal("%v", err)
	}
	if tag == DefaultPartition {
		return illegal("Default partition cannot be dropped")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.collectionLocked(collection)
	if err != nil {
		return err
	}
	p, ok := c.partitions[tag]
	if !ok {
		return errdefs.NotFound(apiv1.ErrorCodeIllegalArgument, "Partition tag %s not found in collection %s", tag, collection)
	}
	for _, s := range p.segments {
		for row, id := range s.ids {
			if ref, ok := c.rows[id]; ok && ref.seg == s && ref.row == row {
				delete(c.rows, id)
			}
		}
	}
	delete(c.partitions, tag)
	Entities.WithLabelValues(collection).Set(float64(len(c.rows)))
	return nil
}

// HasPartition reports whether tag exists in collection.
func (m *Memory) HasPartition(_ context.Context, collection, tag string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.collectionLocked(collection)
	if err != nil {
		return false, err
	}
	_, ok := c.partitions[strings.TrimSpace(tag)]
	return ok, nil
}

// ListPartitions returns the partition tags of collection, sorted.
func (m *Memory) ListPartitions(_ context.Context, collection string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.collectionLocked(collection)
	if err != nil {
		return nil, err
	}
	return sortedTags(c), nil
}

// Insert appends batch to partition and returns the row ids. Rows whose
// id already exists replace the older row.
func (m *Memory) Insert(ctx context.Context, collection, partition string, batch *codec.Batch) (ids []int64, err error) {
	defer func(start time.Time) { observe(providerMemory, "insert", start, err) }(time.Now())

	if batch == nil || batch.Rows == 0 {
		return nil, errdefs.InvalidArgument(apiv1.ErrorCodeIllegalRowRecord, "Insert has no row")
	}
	if partition == "" {
		partition = DefaultPartition
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.collectionLocked(collection)
	if err != nil {
		return nil, err
	}
	p, ok := c.partitions[strings.TrimSpace(partition)]
	if !ok {
		return nil, errdefs.NotFound(apiv1.ErrorCodeIllegalArgument, "Partition tag %s not found in collection %s", partition, collection)
	}
	if err := checkBatch(c.schema, batch); err != nil {
		return nil, err
	}

	ids = batch.IDs
	if ids == nil {
		n := int64(batch.Rows)
		first := m.nextID.Add(n) - n
		ids = make([]int64, batch.Rows)
		for i := range ids {
			ids[i] = first + int64(i)
		}
	} else {
		m.reserveIDs(ids)
	}

	m.appendRows(c, p, batch, ids)
	Entities.WithLabelValues(collection).Set(float64(len(c.rows)))
	m.logger.Debug(ctx, "rows inserted",
		zap.String("collection", collection),
		zap.String("partition", p.tag),
		zap.Int("rows", batch.Rows))
	return ids, nil
}

// reserveIDs moves the id generator past every client-supplied id.
func (m *Memory) reserveIDs(ids []int64) {
	var hi int64 = -1
	for _, id := range ids {
		hi = max(hi, id)
	}
	for {
		cur := m.nextID.Load()
		if cur > hi || m.nextID.CompareAndSwap(cur, hi+1) {
			return
		}
	}
}

func checkBatch(schema *CollectionSchema, batch *codec.Batch) error {
	for _, col := range batch.Columns {
		f := schema.Field(col.Name)
		if f == nil {
			return illegal("Field %s not found in collection %s", col.Name, schema.Name)
		}
		if f.Type != col.Type {
			return illegal("Field %s expects %s, got %s", col.Name, f.Type, col.Type)
		}
		if f.Type.IsVector() && f.Dim != col.Dim {
			return errdefs.InvalidArgument(apiv1.ErrorCodeIllegalDimension, "Field %s expects dimension %d, got %d", col.Name, f.Dim, col.Dim)
		}
	}
	for _, f := range schema.Fields {
		if batch.Column(f.Name) == nil {
			return illegal("Field %s is missing from insert", f.Name)
		}
	}
	return nil
}

func (m *Memory) appendRows(c *memCollection, p *memPartition, batch *codec.Batch, ids []int64) {
	limit := m.cfg.SegmentRowLimit
	for start := 0; start < batch.Rows; {
		seg := m.activeSegment(c, p)
		end := min(batch.Rows, start+limit-seg.rows())
		base := seg.rows()
		for _, col := range batch.Columns {
			part := col
			if start != 0 || end != col.Rows {
				lo, hi := start, end
				part = col.Keep(func(row int) bool { return row >= lo && row < hi })
			}
			// Types were checked against the schema.
			_ = seg.columns[col.Name].Append(part)
		}
		for i, id := range ids[start:end] {
			if old, ok := c.rows[id]; ok {
				old.seg.deleted.Add(uint32(old.row))
			}
			seg.ids = append(seg.ids, id)
			c.rows[id] = rowRef{seg: seg, row: base + i}
		}
		if seg.rows() >= limit {
			seg.sealed = true
		}
		start = end
	}
}

// activeSegment returns the partition's open segment, opening one if
// needed.
func (m *Memory) activeSegment(c *memCollection, p *memPartition) *memSegment {
	if n := len(p.segments); n > 0 {
		if s := p.segments[n-1]; !s.sealed && s.rows() < m.cfg.SegmentRowLimit {
			return s
		}
	}
	s := &memSegment{
		id:      m.nextSegment.Add(1),
		columns: make(map[string]*codec.Column, len(c.schema.Fields)),
		deleted: roaring.New(),
	}
	for _, f := range c.schema.Fields {
		s.columns[f.Name] = codec.NewColumn(f.Name, f.Type, f.Dim)
	}
	p.segments = append(p.segments, s)
	return s
}

// GetEntityByID looks up ids and returns the requested fields of the rows
// found, in request order.
func (m *Memory) GetEntityByID(_ context.Context, collection string, ids []int64, fields []string) (res *EntityResult, err error) {
	defer func(start time.Time) { observe(providerMemory, "get_entity_by_id", start, err) }(time.Now())

	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.collectionLocked(collection)
	if err != nil {
		return nil, err
	}
	mappings, err := outputFields(c.schema, fields)
	if err != nil {
		return nil, err
	}

	res = &EntityResult{IDs: ids, Valid: codec.NewValidRows(len(ids)), Chunk: codec.Chunk{}, Fields: mappings}
	for i, id := range ids {
		ref, ok := c.rows[id]
		if !ok {
			continue
		}
		res.Valid.Set(i)
		gather(res.Chunk, mappings, ref)
	}
	return res, nil
}

func outputFields(schema *CollectionSchema, names []string) ([]codec.Field, error) {
	for _, n := range names {
		if schema.Field(n) == nil {
			return nil, illegal("Field %s not found in collection %s", n, schema.Name)
		}
	}
	return schema.Mappings(names), nil
}

func gather(chunk codec.Chunk, fields []codec.Field, ref rowRef) {
	for _, f := range fields {
		chunk[f.Name] = append(chunk[f.Name], ref.seg.columns[f.Name].Gather([]int{ref.row})...)
	}
}

// GetEntityIDs returns the live ids of a segment.
func (m *Memory) GetEntityIDs(_ context.Context, collection string, segmentID int64) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.collectionLocked(collection)
	if err != nil {
		return nil, err
	}
	for _, p := range c.partitions {
		for _, s := range p.segments {
			if s.id != segmentID {
				continue
			}
			out := make([]int64, 0, s.liveRows())
			for row, id := range s.ids {
				if s.live(row) {
					out = append(out, id)
				}
			}
			return out, nil
		}
	}
	return nil, errdefs.NotFound(apiv1.ErrorCodeIllegalArgument, "Segment %d not found in collection %s", segmentID, collection)
}

// DeleteByID tombstones the rows with the given ids. Unknown ids are
// ignored.
func (m *Memory) DeleteByID(ctx context.Context, collection string, ids []int64) (err error) {
	defer func(start time.Time) { observe(providerMemory, "delete_by_id", start, err) }(time.Now())

	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.collectionLocked(collection)
	if err != nil {
		return err
	}
	deleted := 0
	for _, id := range ids {
		ref, ok := c.rows[id]
		if !ok {
			continue
		}
		ref.seg.deleted.Add(uint32(ref.row))
		delete(c.rows, id)
		deleted++
	}
	Entities.WithLabelValues(collection).Set(float64(len(c.rows)))
	m.logger.Debug(ctx, "rows deleted", zap.String("collection", collection), zap.Int("rows", deleted))
	return nil
}

type hit struct {
	id    int64
	score float32
	ref   rowRef
}

// Search runs q exhaustively over the selected partitions.
func (m *Memory) Search(_ context.Context, q *query.Query, fields []string) (res *SearchResult, err error) {
	defer func(start time.Time) { observe(providerMemory, "search", start, err) }(time.Now())

	vq := q.Vector()
	if vq == nil {
		return nil, illegal("Search has no vector query")
	}
	if err := m.ValidateTopk(vq.Topk); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.collectionLocked(q.Collection)
	if err != nil {
		return nil, err
	}
	met, err := checkQuery(c.schema, c.indexes, q, vq)
	if err != nil {
		return nil, err
	}
	mappings, err := outputFields(c.schema, fields)
	if err != nil {
		return nil, err
	}
	partitions, err := selectPartitions(c, q.Partitions)
	if err != nil {
		return nil, err
	}

	var candidates []rowRef
	for _, p := range partitions {
		for _, s := range p.segments {
			for row := 0; row < s.rows(); row++ {
				if s.live(row) && matches(q.Binary, s, row) {
					candidates = append(candidates, rowRef{seg: s, row: row})
				}
			}
		}
	}

	topk := int(vq.Topk)
	res = &SearchResult{
		NQ:        vq.Count,
		Topk:      topk,
		IDs:       make([]int64, vq.Count*topk),
		Distances: make([]float32, vq.Count*topk),
		Chunk:     codec.Chunk{},
		Fields:    mappings,
	}
	hits := make([]hit, len(candidates))
	for qi := 0; qi < vq.Count; qi++ {
		for i, ref := range candidates {
			col := ref.seg.columns[vq.Field]
			var score float32
			if met.binary {
				score = met.bitwise(col.BinaryRow(ref.row), vq.RowBinary(qi))
			} else {
				score = met.float(col.FloatRow(ref.row), vq.RowFloat(qi))
			}
			hits[i] = hit{id: ref.seg.ids[ref.row], score: score, ref: ref}
		}
		sort.SliceStable(hits, func(a, b int) bool { return met.better(hits[a].score, hits[b].score) })

		for k := 0; k < topk; k++ {
			pos := qi*topk + k
			if k >= len(hits) {
				res.IDs[pos] = -1
				continue
			}
			res.IDs[pos] = hits[k].id
			res.Distances[pos] = hits[k].score
			gather(res.Chunk, mappings, hits[k].ref)
		}
	}
	return res, nil
}

// checkQuery validates q against schema and resolves its metric. An
// explicit metric wins over the metric_type of the field's index.
func checkQuery(schema *CollectionSchema, indexes map[string]*IndexSpec, q *query.Query, vq *query.VectorQuery) (metric, error) {
	for _, name := range q.Fields {
		if schema.Field(name) == nil {
			return metric{}, illegal("Field %s not found in collection %s", name, schema.Name)
		}
	}
	for _, l := range q.Binary.Leaves() {
		if f := schema.Field(l.Field); f != nil && l.Kind != query.LeafVector && f.Type.IsVector() {
			return metric{}, illegal("Vector field %s cannot be used in a %s filter", l.Field, l.Kind)
		}
	}

	f := schema.Field(vq.Field)
	if f == nil || !f.Type.IsVector() {
		return metric{}, illegal("Field %s is not a vector field", vq.Field)
	}
	if vq.IsBinary() != (f.Type == apiv1.DataTypeVectorBinary) {
		return metric{}, illegal("Query vectors do not match the type of field %s", vq.Field)
	}
	if vq.Dim != f.Dim {
		return metric{}, errdefs.InvalidArgument(apiv1.ErrorCodeIllegalDimension, "Query dimension %d does not match field %s dimension %d", vq.Dim, vq.Field, f.Dim)
	}

	name := q.MetricTypes[vq.Field]
	if name == "" {
		name = indexes[vq.Field].MetricType()
	}
	return resolveMetric(name, f.Type)
}

func selectPartitions(c *memCollection, tags []string) ([]*memPartition, error) {
	if len(tags) == 0 {
		out := make([]*memPartition, 0, len(c.partitions))
		for _, tag := range sortedTags(c) {
			out = append(out, c.partitions[tag])
		}
		return out, nil
	}
	out := make([]*memPartition, 0, len(tags))
	for _, tag := range tags {
		p, ok := c.partitions[strings.TrimSpace(tag)]
		if !ok {
			return nil, errdefs.NotFound(apiv1.ErrorCodeIllegalArgument, "Partition tag %s not found in collection %s", tag, c.schema.Name)
		}
		out = append(out, p)
	}
	return out, nil
}

// matches evaluates a binary filter on one row. Vector leaves always hold.
func matches(b *query.BinaryQuery, s *memSegment, row int) bool {
	if b == nil {
		return true
	}
	var ok bool
	switch {
	case b.Leaf != nil:
		ok = matchLeaf(b.Leaf, s, row)
	case b.Relation == query.RelationAnd:
		ok = matches(b.Left, s, row) && matches(b.Right, s, row)
	default:
		ok = matches(b.Left, s, row) || matches(b.Right, s, row)
	}
	if b.Not {
		return !ok
	}
	return ok
}

func matchLeaf(l *query.LeafQuery, s *memSegment, row int) bool {
	if l.Kind == query.LeafVector {
		return true
	}
	col := s.columns[l.Field]
	if col == nil {
		return false
	}
	if v, ok := col.Int64At(row); ok {
		if l.Term != nil {
			return l.Term.MatchInt(v)
		}
		return l.Range != nil && l.Range.MatchInt(v)
	}
	if v, ok := col.Float64At(row); ok {
		if l.Term != nil {
			return l.Term.MatchFloat(v)
		}
		return l.Range != nil && l.Range.MatchFloat(v)
	}
	return false
}

// Flush seals the open segments of the named collections, or of every
// collection when names is empty.
func (m *Memory) Flush(ctx context.Context, names []string) (err error) {
	defer func(start time.Time) { observe(providerMemory, "flush", start, err) }(time.Now())

	m.mu.Lock()
	defer m.mu.Unlock()
	targets := make([]*memCollection, 0, len(names))
	if len(names) == 0 {
		for _, c := range m.collections {
			targets = append(targets, c)
		}
	}
	for _, n := range names {
		c, err := m.collectionLocked(n)
		if err != nil {
			return err
		}
		targets = append(targets, c)
	}

	sealed := 0
	for _, c := range targets {
		for _, p := range c.partitions {
			for _, s := range p.segments {
				if !s.sealed && s.rows() > 0 {
					s.sealed = true
					sealed++
				}
			}
		}
	}
	m.logger.Debug(ctx, "flushed", zap.Strings("collections", names), zap.Int("segments_sealed", sealed))
	return nil
}

// Compact rewrites every segment whose deleted ratio exceeds threshold
// without its tombstoned rows. Segments left empty are removed.
func (m *Memory) Compact(ctx context.Context, collection string, threshold float64) (err error) {
	defer func(start time.Time) { observe(providerMemory, "compact", start, err) }(time.Now())

	if threshold < 0 || threshold > 1 {
		return illegal("Compact threshold %g is outside [0, 1]", threshold)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.collectionLocked(collection)
	if err != nil {
		return err
	}

	rewritten := 0
	for _, p := range c.partitions {
		kept := p.segments[:0]
		for _, s := range p.segments {
			deleted := int(s.deleted.GetCardinality())
			if deleted > 0 && float64(deleted)/float64(s.rows()) > threshold {
				compactSegment(c, s)
				rewritten++
			}
			if s.rows() > 0 || !s.sealed {
				kept = append(kept, s)
			}
		}
		p.segments = kept
	}
	m.logger.Info(ctx, "collection compacted",
		zap.String("collection", collection),
		zap.Float64("threshold", threshold),
		zap.Int("segments_rewritten", rewritten))
	return nil
}

func compactSegment(c *memCollection, s *memSegment) {
	live := func(row int) bool { return s.live(row) }
	for name, col := range s.columns {
		s.columns[name] = col.Keep(live)
	}
	ids := make([]int64, 0, s.liveRows())
	for row, id := range s.ids {
		if s.live(row) {
			c.rows[id] = rowRef{seg: s, row: len(ids)}
			ids = append(ids, id)
		}
	}
	s.ids = ids
	s.deleted = roaring.New()
}

// Cmd answers "version", "status" and "mode".
func (m *Memory) Cmd(_ context.Context, cmd string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(cmd)) {
	case "version":
		return m.cfg.Version, nil
	case "status":
		return "OK", nil
	case "mode":
		return "CPU", nil
	default:
		return "", illegal("Unknown command: %s", cmd)
	}
}

// ValidateTopk rejects k outside [1, MaxTopK].
func (m *Memory) ValidateTopk(k int64) error {
	return validateTopk(k, m.cfg.MaxTopK)
}

func validateTopk(k, limit int64) error {
	if k <= 0 || k > limit {
		return errdefs.InvalidArgument(apiv1.ErrorCodeIllegalTopk, "Invalid topk: %d, should be in range [1, %d]", k, limit)
	}
	return nil
}

// Close releases nothing; the engine holds no external resources.
func (m *Memory) Close() error {
	return nil
}

func sortedTags(c *memCollection) []string {
	tags := make([]string, 0, len(c.partitions))
	for t := range c.partitions {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

func cloneStrings(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneSchema(s *CollectionSchema) *CollectionSchema {
	out := &CollectionSchema{Name: s.Name, Params: s.Params, Fields: make([]FieldSchema, len(s.Fields))}
	for i, f := range s.Fields {
		f.IndexParams = cloneStrings(f.IndexParams)
		out.Fields[i] = f
	}
	return out
}
