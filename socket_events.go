package wiremux

type (
	SocketDisconnectingFunc func(reason Reason)
	SocketDisconnectFunc    func(reason Reason)
	SocketErrorFunc         func(err error)
)

// OnEvent registers a listener for an application event. The returned
// handle identifies the registration for OffEvent.
func (s *Socket) OnEvent(eventName string, f EventHandlerFunc) *EventHandlerFunc {
	if IsEventReserved(eventName) {
		panic("wiremux: OnEvent: attempted to register a reserved event: `" + eventName + "`")
	}
	s.eventHandlers.on(eventName, &f)
	return &f
}

func (s *Socket) OnceEvent(eventName string, f EventHandlerFunc) *EventHandlerFunc {
	if IsEventReserved(eventName) {
		panic("wiremux: OnceEvent: attempted to register a reserved event: `" + eventName + "`")
	}
	s.eventHandlers.once(eventName, &f)
	return &f
}

// OffEvent removes the given registrations, or every listener of the
// event when no handle is given.
func (s *Socket) OffEvent(eventName string, handle ...*EventHandlerFunc) {
	s.eventHandlers.off(eventName, handle...)
}

func (s *Socket) OffAll() {
	s.eventHandlers.offAll()
	s.errorHandlers.offAll()
	s.disconnectingHandlers.offAll()
	s.disconnectHandlers.offAll()
}

func (s *Socket) OnError(f SocketErrorFunc) *SocketErrorFunc {
	s.errorHandlers.on(&f)
	return &f
}

func (s *Socket) OnceError(f SocketErrorFunc) *SocketErrorFunc {
	s.errorHandlers.once(&f)
	return &f
}

func (s *Socket) OffError(handle ...*SocketErrorFunc) {
	s.errorHandlers.off(handle...)
}

func (s *Socket) OnDisconnecting(f SocketDisconnectingFunc) *SocketDisconnectingFunc {
	s.disconnectingHandlers.on(&f)
	return &f
}

func (s *Socket) OnceDisconnecting(f SocketDisconnectingFunc) *SocketDisconnectingFunc {
	s.disconnectingHandlers.once(&f)
	return &f
}

func (s *Socket) OffDisconnecting(handle ...*SocketDisconnectingFunc) {
	s.disconnectingHandlers.off(handle...)
}

func (s *Socket) OnDisconnect(f SocketDisconnectFunc) *SocketDisconnectFunc {
	s.disconnectHandlers.on(&f)
	return &f
}

func (s *Socket) OnceDisconnect(f SocketDisconnectFunc) *SocketDisconnectFunc {
	s.disconnectHandlers.once(&f)
	return &f
}

func (s *Socket) OffDisconnect(handle ...*SocketDisconnectFunc) {
	s.disconnectHandlers.off(handle...)
}
