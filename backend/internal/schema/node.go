package schema

// Node is a map view of a stored or pending node. Scalar properties are
// stored under their field names; single-valued relationships hold a nested
// Node under the relationship field name.
type Node map[string]interface{}

// ID returns the node's identifier, or "" when unset.
func (n Node) ID() string {
	id, _ := n["id"].(string)
	return id
}

// Lookup walks a field path through nested nodes.
func (n Node) Lookup(path ...string) (interface{}, bool) {
	var cur interface{} = n
	for _, key := range path {
		var m map[string]interface{}
		switch v := cur.(type) {
		case Node:
			m = v
		case map[string]interface{}:
			m = v
		default:
			return nil, false
		}
		next, ok := m[key]
		if !ok || next == nil {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// String returns the string stored at key, or "".
func (n Node) String(key string) string {
	s, _ := n[key].(string)
	return s
}

// Float returns the numeric value stored at key as float64.
func (n Node) Float(key string) float64 {
	switch v := n[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

// Bool returns the bool stored at key.
func (n Node) Bool(key string) bool {
	b, _ := n[key].(bool)
	return b
}

// Strings returns the string list stored at key.
func (n Node) Strings(key string) []string {
	switch v := n[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}

// Clone returns a shallow copy.
func (n Node) Clone() Node {
	out := make(Node, len(n))
	for k, v := range n {
		out[k] = v
	}
	return out
}
