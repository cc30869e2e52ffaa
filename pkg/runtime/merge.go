package runtime

// Merge overlays the parameter tree b onto the tree a and returns the
// combined tree. Keys found on both sides are merged recursively if
// both values are mappings, otherwise the value of b wins outright.
// This holds for sequences, too, they are replaced as a whole and
// never merged element wise. Neither input is modified.
func Merge(a, b Value) Value {
	if b.IsEmpty() {
		return Value{copyTree(a.data)}
	}
	am, aok := a.data.(map[string]any)
	bm, bok := b.data.(map[string]any)
	if !aok || !bok {
		return Value{copyTree(b.data)}
	}
	return Value{mergeMaps(am, bm)}
}

func mergeMaps(a, b map[string]any) map[string]any {
	r := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		r[k] = copyTree(v)
	}
	for k, bv := range b {
		if av, ok := a[k]; ok {
			if am, ok := av.(map[string]any); ok {
				if bm, ok := bv.(map[string]any); ok {
					r[k] = mergeMaps(am, bm)
					continue
				}
			}
		}
		r[k] = copyTree(bv)
	}
	return r
}
