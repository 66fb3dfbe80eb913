package kvstore

// Namespaced prefixes every key before delegating, giving each widget device
// an isolated slice of one shared store, the way browser localStorage is
// isolated per device.
type Namespaced struct {
	inner  Store
	prefix string
}

func NewNamespaced(inner Store, prefix string) *Namespaced {
	return &Namespaced{inner: inner, prefix: prefix}
}

func (n *Namespaced) Get(key string) (string, bool) {
	return n.inner.Get(n.prefix + key)
}

func (n *Namespaced) Set(key, value string) error {
	return n.inner.Set(n.prefix+key, value)
}

func (n *Namespaced) Delete(key string) error {
	return n.inner.Delete(n.prefix + key)
}

func (n *Namespaced) DeleteAll(prefix string) error {
	return n.inner.DeleteAll(n.prefix + prefix)
}
