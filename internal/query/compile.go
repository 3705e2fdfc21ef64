package query

import (
	"encoding/json"
	"sort"

	"github.com/tidwall/gjson"

	"github.com/fyrsmithlabs/vectord/internal/errdefs"
	apiv1 "github.com/fyrsmithlabs/vectord/pkg/api/v1"
)

const boolKey = "bool"

var occurKeys = map[string]Occur{
	"must":     OccurMust,
	"should":   OccurShould,
	"must_not": OccurMustNot,
}

var notArrayMsg = map[Occur]string{
	OccurMust:    "Must json string is not an array",
	OccurShould:  "Should json string is not an array",
	OccurMustNot: "Must_not json string is not an array",
}

func invalid(format string, args ...any) error {
	return errdefs.InvalidArgument(apiv1.ErrorCodeIllegalArgument, format, args...)
}

// Compile parses dsl and params into a validated Query. It is pure: on
// failure no partial query is returned. Malformed input yields an
// InvalidArgument error; a malformed binary tree yields an Internal one.
func Compile(dsl string, params []*apiv1.VectorParam, v TopkValidator) (*Query, error) {
	if !gjson.Valid(dsl) {
		return nil, invalid("Query dsl is not a valid json string")
	}
	root := gjson.Parse(dsl)
	if !root.IsObject() || len(root.Map()) == 0 {
		return nil, invalid("Query dsl is null")
	}
	if keys := objectKeys(root); len(keys) != 1 || keys[0] != boolKey {
		return nil, invalid("BoolQuery json string does not include bool query")
	}
	if len(params) != 1 {
		return nil, invalid("There should only be one vector query")
	}

	placeholder, vq, err := parseVectorParam(params[0], v)
	if err != nil {
		return nil, err
	}
	vectors := map[string]*VectorQuery{placeholder: vq}

	tree, fields, err := parseBool(root.Get(boolKey), vectors)
	if err != nil {
		return nil, err
	}
	if err := validateBoolean(tree, false); err != nil {
		return nil, err
	}

	q := &Query{
		Root:        tree,
		Fields:      mergeFields(fields, []string{vq.Field}),
		Vectors:     vectors,
		MetricTypes: map[string]string{},
	}
	if vq.MetricType != "" {
		q.MetricTypes[vq.Field] = vq.MetricType
	}

	q.Binary = ToBinary(tree)
	if !ValidBinary(q.Binary) {
		return nil, errdefs.Internal(apiv1.ErrorCodeUnexpectedError, "Generate wrong binary query tree")
	}
	return q, nil
}

// parseBool compiles one bool object into a node and returns the fields
// referenced by it and its descendants.
func parseBool(obj gjson.Result, vectors map[string]*VectorQuery) (*BooleanQuery, []string, error) {
	if !obj.IsObject() || len(obj.Map()) == 0 {
		return nil, nil, invalid("BoolQuery is null")
	}

	node := &BooleanQuery{}
	var fields []string
	for _, key := range objectKeys(obj) {
		occur, ok := occurKeys[key]
		if !ok {
			return nil, nil, invalid("BoolQuery json string does not include bool query")
		}
		if node.Occur != OccurInvalid {
			return nil, nil, invalid("BoolQuery holds more than one of must, should and must_not")
		}
		node.Occur = occur

		clauses := obj.Get(gjson.Escape(key))
		if !clauses.IsArray() {
			return nil, nil, invalid("%s", notArrayMsg[occur])
		}
		for _, clause := range clauses.Array() {
			if nested, ok := nestedBool(clause); ok {
				child, childFields, err := parseBool(nested, vectors)
				if err != nil {
					return nil, nil, err
				}
				node.Children = append(node.Children, child)
				fields = append(fields, childFields...)
				continue
			}
			leaf, err := parseLeaf(clause, vectors)
			if err != nil {
				return nil, nil, err
			}
			node.Children = append(node.Children, leaf)
			fields = append(fields, leaf.Field)
		}
	}
	return node, fields, nil
}

// nestedBool reports whether clause is a bool object, either bare or
// wrapped as {"bool": {...}}.
func nestedBool(clause gjson.Result) (gjson.Result, bool) {
	if !clause.IsObject() {
		return gjson.Result{}, false
	}
	keys := objectKeys(clause)
	if len(keys) == 1 && keys[0] == boolKey {
		return clause.Get(boolKey), true
	}
	for _, k := range keys {
		if _, ok := occurKeys[k]; ok {
			return clause, true
		}
	}
	return gjson.Result{}, false
}

func parseLeaf(clause gjson.Result, vectors map[string]*VectorQuery) (*LeafQuery, error) {
	if !clause.IsObject() {
		return nil, invalid("Leaf query get wrong key")
	}
	keys := objectKeys(clause)
	if len(keys) != 1 {
		return nil, invalid("Leaf query get wrong key")
	}
	body := clause.Get(gjson.Escape(keys[0]))

	switch keys[0] {
	case "term", "range":
		kind := LeafTerm
		if keys[0] == "range" {
			kind = LeafRange
		}
		if !body.IsObject() {
			return nil, invalid("%s query is not an object", kind)
		}
		fieldKeys := objectKeys(body)
		if len(fieldKeys) != 1 {
			return nil, invalid("%s query must name exactly one field", kind)
		}
		field := fieldKeys[0]
		fieldBody := body.Get(gjson.Escape(field))
		leaf := &LeafQuery{Kind: kind, Field: field, Raw: json.RawMessage(fieldBody.Raw)}

		var err error
		if kind == LeafTerm {
			leaf.Term, err = parseTerm(field, fieldBody)
		} else {
			leaf.Range, err = parseRange(field, fieldBody)
		}
		if err != nil {
			return nil, err
		}
		return leaf, nil

	case "vector":
		if body.Type != gjson.String {
			return nil, invalid("Vector query placeholder is not a string")
		}
		placeholder := body.String()
		vq, ok := vectors[placeholder]
		if !ok {
			return nil, invalid("Vector placeholder %s not found in vector params", placeholder)
		}
		return &LeafQuery{Kind: LeafVector, Field: vq.Field, Placeholder: placeholder, Vector: vq}, nil

	default:
		return nil, invalid("Leaf query get wrong key")
	}
}

// parseVectorParam decodes {"<placeholder>":{"<field>":{"topk":N,
// "metric_type":"L2","params":{...}}}} and the param's row records.
func parseVectorParam(p *apiv1.VectorParam, v TopkValidator) (string, *VectorQuery, error) {
	if p == nil {
		return "", nil, invalid("Vector param is null")
	}
	if !gjson.Valid(p.JSON) {
		return "", nil, invalid("Vector param is not a valid json string")
	}
	obj := gjson.Parse(p.JSON)
	phKeys := objectKeys(obj)
	if !obj.IsObject() || len(phKeys) != 1 {
		return "", nil, invalid("Vector param must hold exactly one placeholder")
	}
	placeholder := phKeys[0]
	body := obj.Get(gjson.Escape(placeholder))
	fieldKeys := objectKeys(body)
	if !body.IsObject() || len(fieldKeys) != 1 {
		return "", nil, invalid("Vector param %s must name exactly one field", placeholder)
	}
	field := fieldKeys[0]
	fp := body.Get(gjson.Escape(field))
	if !fp.IsObject() {
		return "", nil, invalid("Vector param of field %s is not an object", field)
	}

	topk := fp.Get("topk")
	k, ok := parseNumber(topk)
	if !ok || !k.IsInt {
		return "", nil, errdefs.InvalidArgument(apiv1.ErrorCodeIllegalTopk, "Vector param of field %s has no integer topk", field)
	}
	if k.Int <= 0 {
		return "", nil, errdefs.InvalidArgument(apiv1.ErrorCodeIllegalTopk, "Invalid topk: %d", k.Int)
	}
	if v != nil {
		if err := v.ValidateTopk(k.Int); err != nil {
			return "", nil, err
		}
	}

	vq := &VectorQuery{Field: field, Topk: k.Int}
	if mt := fp.Get("metric_type"); mt.Exists() {
		if mt.Type != gjson.String {
			return "", nil, errdefs.InvalidArgument(apiv1.ErrorCodeIllegalMetricType, "metric_type of field %s is not a string", field)
		}
		vq.MetricType = mt.String()
	}
	if extra := fp.Get("params"); extra.Exists() && extra.Raw != "{}" && extra.Type != gjson.Null {
		vq.ExtraParams = json.RawMessage(extra.Raw)
	}

	if err := copyRows(vq, p.RowRecord); err != nil {
		return "", nil, err
	}
	return placeholder, vq, nil
}

// copyRows flattens the query rows into one contiguous buffer.
func copyRows(vq *VectorQuery, rec *apiv1.VectorRecord) error {
	if rec == nil || len(rec.Records) == 0 {
		return errdefs.InvalidArgument(apiv1.ErrorCodeIllegalRowRecord, "Vector param has no row record")
	}
	binary := len(rec.Records[0].GetBinaryData()) > 0
	width := len(rec.Records[0].GetFloatData())
	if binary {
		width = len(rec.Records[0].GetBinaryData())
	}
	if width == 0 {
		return errdefs.InvalidArgument(apiv1.ErrorCodeIllegalRowRecord, "Vector row record is empty")
	}

	if binary {
		vq.Binary = make([]byte, 0, width*len(rec.Records))
		vq.Dim = width * 8
	} else {
		vq.Float = make([]float32, 0, width*len(rec.Records))
		vq.Dim = width
	}
	for i, row := range rec.Records {
		if binary {
			if len(row.GetBinaryData()) != width || len(row.GetFloatData()) > 0 {
				return errdefs.InvalidArgument(apiv1.ErrorCodeIllegalDimension, "Vector row %d does not match dimension of row 0", i)
			}
			vq.Binary = append(vq.Binary, row.BinaryData...)
		} else {
			if len(row.GetFloatData()) != width || len(row.GetBinaryData()) > 0 {
				return errdefs.InvalidArgument(apiv1.ErrorCodeIllegalDimension, "Vector row %d does not match dimension of row 0", i)
			}
			vq.Float = append(vq.Float, row.FloatData...)
		}
	}
	vq.Count = len(rec.Records)
	return nil
}

// validateBoolean checks node structure. A vector leaf may not sit under
// must_not at any depth: a negated nearest-neighbour query has no result set.
func validateBoolean(node *BooleanQuery, negated bool) error {
	if node.Occur == OccurInvalid {
		return invalid("BoolQuery has no occur")
	}
	if len(node.Children) == 0 {
		return invalid("BoolQuery %s has no clause", node.Occur)
	}
	negated = negated || node.Occur == OccurMustNot
	for _, c := range node.Children {
		switch child := c.(type) {
		case *BooleanQuery:
			if err := validateBoolean(child, negated); err != nil {
				return err
			}
		case *LeafQuery:
			if negated && child.Kind == LeafVector {
				return invalid("Vector query %s cannot be placed under must_not", child.Placeholder)
			}
		}
	}
	return nil
}

func objectKeys(obj gjson.Result) []string {
	if !obj.IsObject() {
		return nil
	}
	var keys []string
	obj.ForEach(func(k, _ gjson.Result) bool {
		keys = append(keys, k.String())
		return true
	})
	return keys
}

func mergeFields(sets ...[]string) []string {
	seen := make(map[string]struct{})
	for _, set := range sets {
		for _, f := range set {
			if f != "" {
				seen[f] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
