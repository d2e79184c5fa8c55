package wiremux

import (
	"net/http"
	"net/url"
	"time"
)

type Handshake struct {
	// Date of creation.
	Time time.Time

	// Authentication payload sent with the connect packet. Can be nil.
	Auth any

	// Query and headers of the request the transport was established with.
	Query   url.Values
	Headers http.Header
}
