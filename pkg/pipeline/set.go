package pipeline

// Set is a read-only view of the plugins taking part in a run. Plugins use
// it at ReadPlugins time to find the collaborators they depend on.
type Set struct {
	plugins []Plugin
}

// NewSet returns a Set over a copy of plugins.
func NewSet(plugins ...Plugin) Set {
	return Set{plugins: append([]Plugin(nil), plugins...)}
}

func (s Set) Len() int { return len(s.plugins) }

// All returns the plugins in the order the set was built with.
func (s Set) All() []Plugin {
	return append([]Plugin(nil), s.plugins...)
}

// ByName returns the first plugin called name.
func (s Set) ByName(name string) (Plugin, bool) {
	for _, p := range s.plugins {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Find returns the first plugin in s that is a T. T is usually a concrete
// plugin pointer type, but may be any interface a plugin implements.
func Find[T any](s Set) (T, bool) {
	for _, p := range s.plugins {
		if v, ok := p.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}
