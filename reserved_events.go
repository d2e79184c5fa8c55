package wiremux

var reservedEvents = map[string]struct{}{
	"connect":         {},
	"connection":      {},
	"disconnect":      {},
	"disconnecting":   {},
	"error":           {},
	"new_listener":    {},
	"remove_listener": {},
}

func IsEventReserved(eventName string) bool {
	_, ok := reservedEvents[eventName]
	return ok
}
