package grpcapi

import (
	"encoding/json"
	"sort"

	"github.com/tidwall/gjson"

	"github.com/fyrsmithlabs/vectord/internal/engine"
	"github.com/fyrsmithlabs/vectord/internal/errdefs"
	apiv1 "github.com/fyrsmithlabs/vectord/pkg/api/v1"
)

func invalidParams(format string, args ...any) error {
	return errdefs.InvalidArgument(apiv1.ErrorCodeIllegalArgument, format, args...)
}

// reservedParams returns the JSON value of the "params" entry of kvs, or
// nil when there is none.
func reservedParams(kvs []*apiv1.KeyValuePair) (json.RawMessage, error) {
	for _, kv := range kvs {
		if kv == nil || kv.Key != apiv1.ReservedParamsKey || kv.Value == "" {
			continue
		}
		if !gjson.Valid(kv.Value) {
			return nil, invalidParams("Extra param %s is not valid json", kv.Key)
		}
		return json.RawMessage(kv.Value), nil
	}
	return nil, nil
}

// toSchema converts a CreateCollection mapping. A field's first extra
// param holds its JSON parameters; index params are kept as strings.
func toSchema(m *apiv1.Mapping) (*engine.CollectionSchema, error) {
	if len(m.Fields) > engine.MaxFieldNum {
		return nil, invalidParams("Maximum field's number should be limited to %d", engine.MaxFieldNum)
	}

	schema := &engine.CollectionSchema{Name: m.CollectionName}
	for _, f := range m.Fields {
		if f == nil {
			return nil, invalidParams("Collection mapping has a null field")
		}
		fs := engine.FieldSchema{Name: f.Name, Type: f.Type}
		if len(f.ExtraParams) > 0 && f.ExtraParams[0] != nil && f.ExtraParams[0].Value != "" {
			raw := f.ExtraParams[0].Value
			if !gjson.Valid(raw) {
				return nil, invalidParams("Extra params of field %s is not valid json", f.Name)
			}
			fs.Params = json.RawMessage(raw)
		}
		if len(f.IndexParams) > 0 {
			fs.IndexParams = make(map[string]string, len(f.IndexParams))
			for _, kv := range f.IndexParams {
				if kv != nil {
					fs.IndexParams[kv.Key] = kv.Value
				}
			}
		}
		schema.Fields = append(schema.Fields, fs)
	}

	params, err := reservedParams(m.ExtraParams)
	if err != nil {
		return nil, err
	}
	schema.Params = params
	return schema, nil
}

// fromSchema renders a stored schema as a DescribeCollection mapping.
func fromSchema(s *engine.CollectionSchema) *apiv1.Mapping {
	m := &apiv1.Mapping{CollectionName: s.Name}
	for _, f := range s.Fields {
		fp := &apiv1.FieldParam{Name: f.Name, Type: f.Type}
		fp.ExtraParams = []*apiv1.KeyValuePair{{Key: apiv1.ReservedParamsKey, Value: jsonOrEmpty(f.Params)}}
		keys := make([]string, 0, len(f.IndexParams))
		for k := range f.IndexParams {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fp.IndexParams = append(fp.IndexParams, &apiv1.KeyValuePair{Key: k, Value: f.IndexParams[k]})
		}
		m.Fields = append(m.Fields, fp)
	}
	m.ExtraParams = []*apiv1.KeyValuePair{{Key: apiv1.ReservedParamsKey, Value: jsonOrEmpty(s.Params)}}
	return m
}

func jsonOrEmpty(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

// toIndexSpec collects CreateIndex extra params. The reserved "params"
// entry is parsed as JSON; every other entry stays a string.
func toIndexSpec(p *apiv1.IndexParam) (*engine.IndexSpec, error) {
	spec := &engine.IndexSpec{
		Collection: p.CollectionName,
		Field:      p.FieldName,
		Name:       p.IndexName,
		Params:     make(map[string]any, len(p.ExtraParams)),
	}
	for _, kv := range p.ExtraParams {
		if kv == nil {
			continue
		}
		if kv.Key != apiv1.ReservedParamsKey {
			spec.Params[kv.Key] = kv.Value
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(kv.Value), &v); err != nil {
			return nil, invalidParams("Index params is not valid json: %v", err)
		}
		spec.Params[kv.Key] = v
	}
	return spec, nil
}

// fromIndexSpec renders an index as a DescribeIndex reply: its name and
// one "params" entry holding the JSON dump of every parameter.
func fromIndexSpec(collection, field string, spec *engine.IndexSpec) (*apiv1.IndexParam, error) {
	reply := &apiv1.IndexParam{CollectionName: collection, FieldName: field}
	params := map[string]any{}
	if spec != nil {
		reply.IndexName = spec.Name
		if spec.Params != nil {
			params = spec.Params
		}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, errdefs.Internal(apiv1.ErrorCodeUnexpectedError, "Parsing json string wrong: %v", err)
	}
	reply.ExtraParams = []*apiv1.KeyValuePair{{Key: apiv1.ReservedParamsKey, Value: string(raw)}}
	return reply, nil
}

// searchFields returns the output field names requested by a Search in
// its reserved params, e.g. {"fields":["age","price"]}.
func searchFields(kvs []*apiv1.KeyValuePair) ([]string, error) {
	params, err := reservedParams(kvs)
	if err != nil || params == nil {
		return nil, err
	}
	fields := gjson.GetBytes(params, "fields")
	if !fields.Exists() {
		return nil, nil
	}
	if !fields.IsArray() {
		return nil, invalidParams("Search params fields is not an array")
	}
	var names []string
	for _, f := range fields.Array() {
		if f.Type != gjson.String {
			return nil, invalidParams("Search params fields holds a non-string value")
		}
		names = append(names, f.String())
	}
	return names, nil
}
