package serializer

// NewDefaultRegistry returns a registry serving plain JSON by default and
// HAL when negotiated.
func NewDefaultRegistry() *Registry {
	r := NewRegistry(JSONType)
	RegisterJSON(r)
	RegisterHAL(r)
	return r
}
