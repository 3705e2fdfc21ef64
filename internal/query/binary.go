package query

// ToBinary converts a validated boolean tree into its binary execution
// form. Must folds into AND, Should into OR, and MustNot into a negated OR.
// Vector leaves are moved behind the filters of an AND so that scalar
// filtering runs first.
func ToBinary(node *BooleanQuery) *BinaryQuery {
	if node == nil || len(node.Children) == 0 {
		return nil
	}

	children := make([]*BinaryQuery, 0, len(node.Children))
	for _, c := range node.Children {
		switch c := c.(type) {
		case *BooleanQuery:
			children = append(children, ToBinary(c))
		case *LeafQuery:
			children = append(children, &BinaryQuery{Leaf: c})
		}
	}

	switch node.Occur {
	case OccurMust:
		return fold(RelationAnd, vectorsLast(children))
	case OccurShould:
		return fold(RelationOr, children)
	case OccurMustNot:
		b := fold(RelationOr, children)
		if b != nil {
			b.Not = !b.Not
		}
		return b
	default:
		return nil
	}
}

// fold joins xs right-deep: x0 REL (x1 REL (... REL xn)).
func fold(rel Relation, xs []*BinaryQuery) *BinaryQuery {
	switch len(xs) {
	case 0:
		return nil
	case 1:
		return xs[0]
	}
	return &BinaryQuery{Relation: rel, Left: xs[0], Right: fold(rel, xs[1:])}
}

func vectorsLast(xs []*BinaryQuery) []*BinaryQuery {
	out := make([]*BinaryQuery, 0, len(xs))
	var vectors []*BinaryQuery
	for _, x := range xs {
		if x.IsLeaf() && x.Leaf.Kind == LeafVector {
			vectors = append(vectors, x)
			continue
		}
		out = append(out, x)
	}
	return append(out, vectors...)
}

// ValidBinary reports whether b is structurally sound: leaves hold a
// leaf query and no children, inner nodes hold a relation and two valid
// children.
func ValidBinary(b *BinaryQuery) bool {
	if b == nil {
		return false
	}
	if b.Leaf != nil {
		return b.Left == nil && b.Right == nil && b.Relation == RelationNone
	}
	if b.Relation != RelationAnd && b.Relation != RelationOr {
		return false
	}
	return ValidBinary(b.Left) && ValidBinary(b.Right)
}
