package parser

type (
	Creator func() Parser

	// Finish is called once for every fully reconstructed packet.
	Finish func(packet *Packet)
)

// Parser is the wire codec boundary. Encode turns one packet into one
// header frame plus zero or more binary attachment frames. Add appends
// one inbound frame; a non-nil error means the frame was malformed and
// the connection should be torn down.
type Parser interface {
	Encode(packet *Packet) (frames [][]byte, err error)
	Add(data []byte, finish Finish) error
	Reset()
}
