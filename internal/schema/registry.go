package schema

// NameRegistry tracks which location first declared each entity name. One
// registry serves exactly one validation pass.
type NameRegistry struct {
	seen map[string]string
}

func NewNameRegistry() *NameRegistry {
	return &NameRegistry{seen: make(map[string]string)}
}

// Claim records name at location. If the name was already claimed it returns
// the earlier location and false.
func (r *NameRegistry) Claim(name, location string) (string, bool) {
	if prev, ok := r.seen[name]; ok {
		return prev, false
	}
	r.seen[name] = location
	return "", true
}

func (r *NameRegistry) Len() int { return len(r.seen) }
