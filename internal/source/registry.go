package source

// Registry は名前で引けるシステムソースの集合。登録順を保持する。
type Registry struct {
	sources []SystemSource
	byName  map[string]SystemSource
}

// NewRegistry は指定順でシステムソースを登録したRegistryを生成する。
// 同名のソースは後から渡したもので置き換える。
func NewRegistry(sources ...SystemSource) *Registry {
	r := &Registry{byName: make(map[string]SystemSource, len(sources))}
	for _, s := range sources {
		if _, exists := r.byName[s.Name()]; exists {
			for i := range r.sources {
				if r.sources[i].Name() == s.Name() {
					r.sources[i] = s
				}
			}
		} else {
			r.sources = append(r.sources, s)
		}
		r.byName[s.Name()] = s
	}
	return r
}

// All は登録順のシステムソースを返す。
func (r *Registry) All() []SystemSource {
	out := make([]SystemSource, len(r.sources))
	copy(out, r.sources)
	return out
}

// Get は名前に対応するシステムソースを返す。
func (r *Registry) Get(name string) (SystemSource, bool) {
	s, ok := r.byName[name]
	return s, ok
}
