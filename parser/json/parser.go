package jsonparser

import (
	"fmt"
	"strconv"

	"github.com/wiremux/wiremux/parser"
)

// maxAttachments is the maximum number of binary attachments to accept.
// If maxAttachments is 0, there is no limit.
func NewCreator(maxAttachments int) parser.Creator {
	return func() parser.Parser {
		return &Parser{
			maxAttachments: maxAttachments,
			json:           defaultJSONAPI(),
		}
	}
}

type Parser struct {
	r              *reconstructor
	maxAttachments int
	json           JSONAPI
}

var (
	errEmptyFrame        = fmt.Errorf("parser/json: empty frame")
	errInvalidNamespace  = fmt.Errorf("parser/json: invalid namespace section")
	errInvalidAckID      = fmt.Errorf("parser/json: invalid ack ID")
	errInvalidData       = fmt.Errorf("parser/json: data must be a JSON array")
	errAttachmentsFormat = fmt.Errorf("parser/json: invalid attachment count")
	errTooManyBuffers    = fmt.Errorf("parser/json: too many binary attachments")
)

func (p *Parser) Encode(packet *parser.Packet) (frames [][]byte, err error) {
	data := packet.Data
	var attachments [][]byte

	if packet.IsBinary() {
		data, attachments, err = deconstruct(data)
		if err != nil {
			return nil, err
		}
		if p.maxAttachments != 0 && len(attachments) > p.maxAttachments {
			return nil, errTooManyBuffers
		}
	}

	header := make([]byte, 0, 16)
	header = append(header, packet.Type.ToChar())

	if packet.IsBinary() {
		header = strconv.AppendInt(header, int64(len(attachments)), 10)
		header = append(header, '-')
	}

	if packet.Namespace != "" && packet.Namespace != "/" {
		header = append(header, packet.Namespace...)
		header = append(header, ',')
	}

	if packet.ID != nil {
		header = strconv.AppendUint(header, *packet.ID, 10)
	}

	if len(data) != 0 {
		body, err := p.json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("parser/json: %w", err)
		}
		header = append(header, body...)
	}

	frames = make([][]byte, 0, 1+len(attachments))
	frames = append(frames, header)
	frames = append(frames, attachments...)
	return frames, nil
}

func (p *Parser) Add(data []byte, finish parser.Finish) error {
	if p.r != nil {
		// A binary packet is in flight. This frame is one of its attachments.
		packet, done, err := p.r.addAttachment(data)
		if err != nil {
			p.r = nil
			return err
		}
		if done {
			p.r = nil
			finish(packet)
		}
		return nil
	}

	packet, err := p.decodeHeader(data)
	if err != nil {
		return err
	}

	if packet.IsBinary() && packet.Attachments > 0 {
		if p.maxAttachments != 0 && packet.Attachments > p.maxAttachments {
			return errTooManyBuffers
		}
		p.r = newReconstructor(packet)
		return nil
	}

	finish(packet)
	return nil
}

func (p *Parser) decodeHeader(data []byte) (*parser.Packet, error) {
	if len(data) == 0 {
		return nil, errEmptyFrame
	}

	packet := &parser.Packet{Namespace: "/"}
	pos := 0

	err := packet.Type.FromChar(data[pos])
	if err != nil {
		return nil, err
	}
	pos++

	if packet.IsBinary() {
		start := pos
		for pos < len(data) && data[pos] >= '0' && data[pos] <= '9' {
			pos++
		}
		if pos == start || pos >= len(data) || data[pos] != '-' {
			return nil, errAttachmentsFormat
		}
		n, err := strconv.Atoi(string(data[start:pos]))
		if err != nil {
			return nil, errAttachmentsFormat
		}
		packet.Attachments = n
		pos++
	}

	if pos < len(data) && data[pos] == '/' {
		start := pos
		for pos < len(data) && data[pos] != ',' {
			pos++
		}
		if pos >= len(data) {
			return nil, errInvalidNamespace
		}
		packet.Namespace = string(data[start:pos])
		pos++
	}

	if pos < len(data) && data[pos] >= '0' && data[pos] <= '9' {
		start := pos
		for pos < len(data) && data[pos] >= '0' && data[pos] <= '9' {
			pos++
		}
		id, err := strconv.ParseUint(string(data[start:pos]), 10, 64)
		if err != nil {
			return nil, errInvalidAckID
		}
		packet.ID = &id
	}

	if pos < len(data) {
		if data[pos] != '[' {
			return nil, errInvalidData
		}
		err := p.json.Unmarshal(data[pos:], &packet.Data)
		if err != nil {
			return nil, fmt.Errorf("parser/json: %w", err)
		}
	}

	return packet, nil
}

func (p *Parser) Reset() {
	p.r = nil
}
