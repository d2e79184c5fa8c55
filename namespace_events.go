package wiremux

type NamespaceConnectionFunc func(socket *Socket)

// OnConnect registers f for newly admitted sockets. "connect" handlers
// run before "connection" handlers. The returned handle identifies the
// registration for OffConnect.
func (n *Namespace) OnConnect(f NamespaceConnectionFunc) *NamespaceConnectionFunc {
	n.connectHandlers.on(&f)
	return &f
}

func (n *Namespace) OnceConnect(f NamespaceConnectionFunc) *NamespaceConnectionFunc {
	n.connectHandlers.once(&f)
	return &f
}

func (n *Namespace) OffConnect(handle ...*NamespaceConnectionFunc) {
	n.connectHandlers.off(handle...)
}

func (n *Namespace) OnConnection(f NamespaceConnectionFunc) *NamespaceConnectionFunc {
	n.connectionHandlers.on(&f)
	return &f
}

func (n *Namespace) OnceConnection(f NamespaceConnectionFunc) *NamespaceConnectionFunc {
	n.connectionHandlers.once(&f)
	return &f
}

func (n *Namespace) OffConnection(handle ...*NamespaceConnectionFunc) {
	n.connectionHandlers.off(handle...)
}

func (n *Namespace) OffAll() {
	n.connectHandlers.offAll()
	n.connectionHandlers.offAll()
}
