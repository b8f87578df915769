package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/samber/lo"
)

// Transform is a field write computed from the current value.
type Transform struct {
	kind  string
	delta float64
	floor *float64
	items []any
}

// Inc adds delta to a numeric field (missing counts as 0).
func Inc(delta int) Transform { return Transform{kind: "inc", delta: float64(delta)} }

// AtLeast clamps an increment result from below.
func (t Transform) AtLeast(floor int) Transform {
	f := float64(floor)
	t.floor = &f
	return t
}

// Union appends the items missing from an array field.
func Union(items ...any) Transform {
	norm := lo.Map(items, func(v any, _ int) any {
		n, err := normalize(v)
		if err != nil {
			return v
		}
		return n
	})
	return Transform{kind: "union", items: norm}
}

func (t Transform) apply(cur any) any {
	switch t.kind {
	case "inc":
		n, _ := toNumber(cur)
		n += t.delta
		if t.floor != nil && n < *t.floor {
			n = *t.floor
		}
		return n
	case "union":
		arr, _ := cur.([]any)
		out := append([]any{}, arr...)
		for _, it := range t.items {
			if !lo.ContainsBy(out, func(v any) bool { return equal(v, it) }) {
				out = append(out, it)
			}
		}
		return out
	}
	return cur
}

func (t Transform) String() string {
	switch t.kind {
	case "inc":
		if t.floor != nil {
			return fmt.Sprintf("increment(%g, min %g)", t.delta, *t.floor)
		}
		return fmt.Sprintf("increment(%g)", t.delta)
	case "union":
		return fmt.Sprintf("arrayUnion(%v)", t.items)
	}
	return "transform"
}

// Delta returns the increment carried by t, if it is one.
func (t Transform) Delta() (float64, bool) { return t.delta, t.kind == "inc" }

// toDoc converts a struct or map into its JSON object form.
func toDoc(v any) (Doc, error) {
	n, err := normalize(v)
	if err != nil {
		return nil, err
	}
	m, ok := n.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document must be a JSON object, got %T", v)
	}
	return Doc(m), nil
}

// normalize round-trips v through JSON so stored values only use JSON types.
func normalize(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, float64:
		return v, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return out, nil
}

func clone(d Doc) Doc {
	if d == nil {
		return nil
	}
	return Doc(cloneValue(map[string]any(d)).(map[string]any))
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = cloneValue(x)
		}
		return out
	case Doc:
		return cloneValue(map[string]any(t))
	case []any:
		return lo.Map(t, func(x any, _ int) any { return cloneValue(x) })
	}
	return v
}

// mergeInto deep-merges src into dst: objects merge, everything else replaces.
func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		sm, sok := v.(map[string]any)
		dm, dok := dst[k].(map[string]any)
		if sok && dok {
			mergeInto(dm, sm)
			continue
		}
		dst[k] = cloneValue(v)
	}
}

func lookup(d Doc, path string) any {
	var cur any = map[string]any(d)
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[seg]
	}
	return cur
}

// assign writes v at path, creating intermediate objects.
func assign(d Doc, path string, v any) {
	segs := strings.Split(path, ".")
	m := map[string]any(d)
	for _, seg := range segs[:len(segs)-1] {
		next, ok := m[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[seg] = next
		}
		m = next
	}
	m[segs[len(segs)-1]] = v
}

func equal(a, b any) bool { return reflect.DeepEqual(a, b) }

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// compare orders numbers numerically, strings lexically, missing values first.
func compare(a, b any) int {
	if an, ok := toNumber(a); ok {
		if bn, ok := toNumber(b); ok {
			switch {
			case an < bn:
				return -1
			case an > bn:
				return 1
			}
			return 0
		}
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case a == nil && b != nil:
		return -1
	case b == nil && a != nil:
		return 1
	}
	return strings.Compare(as, bs)
}
