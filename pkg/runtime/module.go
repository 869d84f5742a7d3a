package runtime

// Module is a loaded module object. Attributes hold the runtime's
// native strings; the bootstrap uses them to record the main module's
// display filename.
type Module struct {
	Name  string
	Attrs map[string]string
}

func newModule(name string) *Module {
	return &Module{Name: name, Attrs: make(map[string]string)}
}

// SetAttr sets a module attribute.
func (m *Module) SetAttr(key, val string) {
	m.Attrs[key] = val
}

// Attr returns a module attribute.
func (m *Module) Attr(key string) (string, bool) {
	v, ok := m.Attrs[key]
	return v, ok
}
