package model

import "strings"

// Row is one opaque record of a table. Derived collections hold the same
// Row values the caller handed in, never copies.
type Row interface {
	Get(path string) any
}

// MapRow is the stock Row. Dotted paths walk nested maps.
type MapRow map[string]any

func (m MapRow) Get(path string) any {
	if v, ok := m[path]; ok {
		return v
	}
	if !strings.Contains(path, ".") {
		return nil
	}
	var cur any = map[string]any(m)
	for _, key := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			cur = node[key]
		case MapRow:
			cur = node[key]
		default:
			return nil
		}
	}
	return cur
}

// Set stores v under path, creating intermediate maps as needed.
func (m MapRow) Set(path string, v any) {
	keys := strings.Split(path, ".")
	cur := map[string]any(m)
	for _, key := range keys[:len(keys)-1] {
		next, ok := cur[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[key] = next
		}
		cur = next
	}
	cur[keys[len(keys)-1]] = v
}

// Keys returns the top level keys in no particular order.
func (m MapRow) Keys() []string {
	res := make([]string, 0, len(m))
	for k := range m {
		res = append(res, k)
	}
	return res
}
