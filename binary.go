package wiremux

import "github.com/wiremux/wiremux/parser"

// Binary marks a byte slice as an out-of-band binary attachment.
// Use this instead of []byte when emitting binary data.
type Binary = parser.Binary
