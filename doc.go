// Package wiremux multiplexes a single transport connection into many
// logical namespaces. Within a namespace, each connection is represented
// by a Socket that can emit events, join rooms and correlate emits with
// asynchronous acknowledgements. Room membership and broadcast fan-out
// are delegated to a pluggable Adapter.
package wiremux
