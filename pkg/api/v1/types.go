// Package v1 defines the vectord wire API: request and response messages,
// the gRPC service description and a typed client.
//
// Messages are plain Go structs carried by the JSON codec registered in
// codec.go, so no generated code is required on either side.
package v1

// DataType tags the element type of a field.
type DataType int32

// Field data types.
const (
	DataTypeNone         DataType = 0
	DataTypeBool         DataType = 1
	DataTypeInt8         DataType = 2
	DataTypeInt16        DataType = 3
	DataTypeInt32        DataType = 4
	DataTypeInt64        DataType = 5
	DataTypeFloat        DataType = 10
	DataTypeDouble       DataType = 11
	DataTypeString       DataType = 20
	DataTypeVectorBinary DataType = 100
	DataTypeVectorFloat  DataType = 101
)

var dataTypeNames = map[DataType]string{
	DataTypeNone:         "NONE",
	DataTypeBool:         "BOOL",
	DataTypeInt8:         "INT8",
	DataTypeInt16:        "INT16",
	DataTypeInt32:        "INT32",
	DataTypeInt64:        "INT64",
	DataTypeFloat:        "FLOAT",
	DataTypeDouble:       "DOUBLE",
	DataTypeString:       "STRING",
	DataTypeVectorBinary: "VECTOR_BINARY",
	DataTypeVectorFloat:  "VECTOR_FLOAT",
}

func (t DataType) String() string {
	if name, ok := dataTypeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsVector reports whether t is a vector type.
func (t DataType) IsVector() bool {
	return t == DataTypeVectorBinary || t == DataTypeVectorFloat
}

// ReservedParamsKey is the extra-params key whose value is a JSON object.
const ReservedParamsKey = "params"

// KeyValuePair is a generic extra parameter.
type KeyValuePair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CollectionName identifies a collection.
type CollectionName struct {
	CollectionName string `json:"collection_name"`
}

// FieldParam describes one field of a collection schema.
type FieldParam struct {
	ID          int64           `json:"id,omitempty"`
	Name        string          `json:"name"`
	Type        DataType        `json:"type"`
	IndexParams []*KeyValuePair `json:"index_params,omitempty"`
	ExtraParams []*KeyValuePair `json:"extra_params,omitempty"`
}

// Mapping is a collection schema, used both to create and to describe.
type Mapping struct {
	Status         *Status         `json:"status,omitempty"`
	CollectionName string          `json:"collection_name"`
	Fields         []*FieldParam   `json:"fields,omitempty"`
	ExtraParams    []*KeyValuePair `json:"extra_params,omitempty"`
}

// BoolReply answers Has* verbs.
type BoolReply struct {
	Status    *Status `json:"status"`
	BoolReply bool    `json:"bool_reply"`
}

// CollectionRowCount answers CountCollection.
type CollectionRowCount struct {
	Status             *Status `json:"status"`
	CollectionRowCount int64   `json:"collection_row_count"`
}

// Command is the Cmd request.
type Command struct {
	Cmd string `json:"cmd"`
}

// StringReply answers Cmd.
type StringReply struct {
	Status      *Status `json:"status"`
	StringReply string  `json:"string_reply"`
}

// CollectionNameList answers ShowCollections.
type CollectionNameList struct {
	Status          *Status  `json:"status"`
	CollectionNames []string `json:"collection_names,omitempty"`
}

// CollectionInfo answers ShowCollectionInfo with a JSON statistics document.
type CollectionInfo struct {
	Status   *Status `json:"status"`
	JSONInfo string  `json:"json_info"`
}

// IndexParam creates, describes or drops an index on a field.
type IndexParam struct {
	Status         *Status         `json:"status,omitempty"`
	CollectionName string          `json:"collection_name"`
	FieldName      string          `json:"field_name"`
	IndexName      string          `json:"index_name,omitempty"`
	ExtraParams    []*KeyValuePair `json:"extra_params,omitempty"`
}

// PartitionParam identifies a partition by tag.
type PartitionParam struct {
	CollectionName string `json:"collection_name"`
	Tag            string `json:"tag"`
}

// PartitionList answers ShowPartitions.
type PartitionList struct {
	Status            *Status  `json:"status"`
	PartitionTagArray []string `json:"partition_tag_array,omitempty"`
}

// AttrRecord holds scalar values for one field; only one slice is populated.
type AttrRecord struct {
	Int32Value  []int32   `json:"int32_value,omitempty"`
	Int64Value  []int64   `json:"int64_value,omitempty"`
	FloatValue  []float32 `json:"float_value,omitempty"`
	DoubleValue []float64 `json:"double_value,omitempty"`
}

// VectorRowRecord is one vector; FloatData and BinaryData are exclusive.
type VectorRowRecord struct {
	FloatData  []float32 `json:"float_data,omitempty"`
	BinaryData []byte    `json:"binary_data,omitempty"`
}

// VectorRecord holds the vectors of one field, one record per row.
type VectorRecord struct {
	Records []*VectorRowRecord `json:"records,omitempty"`
}

// FieldValue carries the values of one field for a batch of rows.
type FieldValue struct {
	FieldName    string        `json:"field_name"`
	Type         DataType      `json:"type"`
	AttrRecord   *AttrRecord   `json:"attr_record,omitempty"`
	VectorRecord *VectorRecord `json:"vector_record,omitempty"`
}

// Entities is a row-oriented result set.
type Entities struct {
	Status   *Status       `json:"status,omitempty"`
	IDs      []int64       `json:"ids,omitempty"`
	ValidRow []bool        `json:"valid_row,omitempty"`
	Fields   []*FieldValue `json:"fields,omitempty"`
}

// InsertParam inserts a batch of rows.
type InsertParam struct {
	CollectionName string          `json:"collection_name"`
	Fields         []*FieldValue   `json:"fields,omitempty"`
	EntityIDArray  []int64         `json:"entity_id_array,omitempty"`
	PartitionTag   string          `json:"partition_tag,omitempty"`
	ExtraParams    []*KeyValuePair `json:"extra_params,omitempty"`
}

// ByteSize approximates the encoded payload size. It is used as the
// admission weight of an insert.
func (m *InsertParam) ByteSize() int64 {
	if m == nil {
		return 0
	}
	size := int64(len(m.CollectionName) + len(m.PartitionTag))
	size += int64(len(m.EntityIDArray)) * 8
	for _, kv := range m.ExtraParams {
		if kv != nil {
			size += int64(len(kv.Key) + len(kv.Value))
		}
	}
	for _, f := range m.Fields {
		if f == nil {
			continue
		}
		size += int64(len(f.FieldName)) + 4
		if a := f.AttrRecord; a != nil {
			size += int64(len(a.Int32Value))*4 + int64(len(a.Int64Value))*8 +
				int64(len(a.FloatValue))*4 + int64(len(a.DoubleValue))*8
		}
		if v := f.VectorRecord; v != nil {
			for _, r := range v.Records {
				if r != nil {
					size += int64(len(r.FloatData))*4 + int64(len(r.BinaryData))
				}
			}
		}
	}
	return size
}

// EntityIDs answers Insert and GetEntityIDs.
type EntityIDs struct {
	Status        *Status `json:"status"`
	EntityIDArray []int64 `json:"entity_id_array,omitempty"`
}

// VectorParam pairs a vector-query JSON block with its query vectors.
type VectorParam struct {
	JSON      string        `json:"json"`
	RowRecord *VectorRecord `json:"row_record,omitempty"`
}

// SearchParam is the Search request.
type SearchParam struct {
	CollectionName    string          `json:"collection_name"`
	PartitionTagArray []string        `json:"partition_tag_array,omitempty"`
	VectorParam       []*VectorParam  `json:"vector_param,omitempty"`
	DSL               string          `json:"dsl"`
	ExtraParams       []*KeyValuePair `json:"extra_params,omitempty"`
}

// QueryResult answers Search. Entities.IDs holds RowNum*topk ids with -1
// marking empty slots; Distances is aligned with it.
type QueryResult struct {
	Status      *Status         `json:"status"`
	Entities    *Entities       `json:"entities,omitempty"`
	RowNum      int64           `json:"row_num"`
	Distances   []float32       `json:"distances,omitempty"`
	ExtraParams []*KeyValuePair `json:"extra_params,omitempty"`
}

// EntityIdentity is the GetEntityByID request.
type EntityIdentity struct {
	CollectionName string   `json:"collection_name"`
	IDArray        []int64  `json:"id_array,omitempty"`
	FieldNames     []string `json:"field_names,omitempty"`
}

// GetEntityIDsParam lists the ids stored in one segment.
type GetEntityIDsParam struct {
	CollectionName string `json:"collection_name"`
	SegmentID      int64  `json:"segment_id"`
}

// DeleteByIDParam deletes entities by id.
type DeleteByIDParam struct {
	CollectionName string  `json:"collection_name"`
	IDArray        []int64 `json:"id_array,omitempty"`
}

// FlushParam flushes one or more collections; empty means all.
type FlushParam struct {
	CollectionNameArray []string `json:"collection_name_array,omitempty"`
}

// CompactParam compacts a collection when its deleted ratio exceeds Threshold.
type CompactParam struct {
	CollectionName string  `json:"collection_name"`
	Threshold      float64 `json:"threshold"`
}

// GetFloatData returns the float components, nil-safe.
func (m *VectorRowRecord) GetFloatData() []float32 {
	if m == nil {
		return nil
	}
	return m.FloatData
}

// GetBinaryData returns the packed bits, nil-safe.
func (m *VectorRowRecord) GetBinaryData() []byte {
	if m == nil {
		return nil
	}
	return m.BinaryData
}

// GetRecords returns the rows, nil-safe.
func (m *VectorRecord) GetRecords() []*VectorRowRecord {
	if m == nil {
		return nil
	}
	return m.Records
}

// GetAttrRecord returns the scalar payload, nil-safe.
func (m *FieldValue) GetAttrRecord() *AttrRecord {
	if m == nil {
		return nil
	}
	return m.AttrRecord
}

// GetVectorRecord returns the vector payload, nil-safe.
func (m *FieldValue) GetVectorRecord() *VectorRecord {
	if m == nil {
		return nil
	}
	return m.VectorRecord
}

// GetInt32Value returns the int32 column, nil-safe.
func (m *AttrRecord) GetInt32Value() []int32 {
	if m == nil {
		return nil
	}
	return m.Int32Value
}

// GetInt64Value returns the int64 column, nil-safe.
func (m *AttrRecord) GetInt64Value() []int64 {
	if m == nil {
		return nil
	}
	return m.Int64Value
}

// GetFloatValue returns the float column, nil-safe.
func (m *AttrRecord) GetFloatValue() []float32 {
	if m == nil {
		return nil
	}
	return m.FloatValue
}

// GetDoubleValue returns the double column, nil-safe.
func (m *AttrRecord) GetDoubleValue() []float64 {
	if m == nil {
		return nil
	}
	return m.DoubleValue
}

// StatusReply is implemented by every response that embeds a Status.
type StatusReply interface {
	GetStatus() *Status
}

// GetStatus returns s itself so a bare Status satisfies StatusReply.
func (s *Status) GetStatus() *Status { return s }

// GetStatus returns the embedded status, nil-safe.
func (m *Mapping) GetStatus() *Status {
	if m == nil {
		return nil
	}
	return m.Status
}

// GetStatus returns the embedded status, nil-safe.
func (m *BoolReply) GetStatus() *Status {
	if m == nil {
		return nil
	}
	return m.Status
}

// GetStatus returns the embedded status, nil-safe.
func (m *CollectionRowCount) GetStatus() *Status {
	if m == nil {
		return nil
	}
	return m.Status
}

// GetStatus returns the embedded status, nil-safe.
func (m *StringReply) GetStatus() *Status {
	if m == nil {
		return nil
	}
	return m.Status
}

// GetStatus returns the embedded status, nil-safe.
func (m *CollectionNameList) GetStatus() *Status {
	if m == nil {
		return nil
	}
	return m.Status
}

// GetStatus returns the embedded status, nil-safe.
func (m *CollectionInfo) GetStatus() *Status {
	if m == nil {
		return nil
	}
	return m.Status
}

// GetStatus returns the embedded status, nil-safe.
func (m *IndexParam) GetStatus() *Status {
	if m == nil {
		return nil
	}
	return m.Status
}

// GetStatus returns the embedded status, nil-safe.
func (m *PartitionList) GetStatus() *Status {
	if m == nil {
		return nil
	}
	return m.Status
}

// GetStatus returns the embedded status, nil-safe.
func (m *Entities) GetStatus() *Status {
	if m == nil {
		return nil
	}
	return m.Status
}

// GetStatus returns the embedded status, nil-safe.
func (m *EntityIDs) GetStatus() *Status {
	if m == nil {
		return nil
	}
	return m.Status
}

// GetStatus returns the embedded status, nil-safe.
func (m *QueryResult) GetStatus() *Status {
	if m == nil {
		return nil
	}
	return m.Status
}
