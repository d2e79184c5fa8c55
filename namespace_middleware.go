package wiremux

// MiddlewareFunc gatekeeps admission to a namespace. It receives the
// candidate socket and a continuation: calling next(nil) proceeds to the
// following function (or admits, if this was the last), calling it with
// an error aborts the chain and rejects the connection. next may be
// called from another goroutine, but the chain itself is sequential:
// no two functions of one admission run concurrently.
type MiddlewareFunc func(socket *Socket, next func(err error))

func (n *Namespace) Use(f MiddlewareFunc) {
	n.middlewareFuncsMu.Lock()
	defer n.middlewareFuncsMu.Unlock()
	n.middlewareFuncs = append(n.middlewareFuncs, f)
}

func (n *Namespace) runMiddlewares(socket *Socket, done func(err error)) {
	n.middlewareFuncsMu.RLock()
	funcs := make([]MiddlewareFunc, len(n.middlewareFuncs))
	copy(funcs, n.middlewareFuncs)
	n.middlewareFuncsMu.RUnlock()

	var run func(i int)
	run = func(i int) {
		if i >= len(funcs) {
			done(nil)
			return
		}
		funcs[i](socket, func(err error) {
			if err != nil {
				done(err)
				return
			}
			run(i + 1)
		})
	}
	go run(0)
}
