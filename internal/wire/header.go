// Package wire implements the component wire protocol: a framed stream of
// (messageCode, activityId, messageNumber, timestamp, dataLength) headers
// followed by a typed body, integers in network byte order.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/sonata-sse/sse-core/internal/domain"
)

// HeaderSize is the marshalled size of a Header in bytes:
// code(4) + activityId(4) + messageNumber(4) + timestamp(8) + dataLength(4).
const HeaderSize = 4 + 4 + 4 + 8 + 4

// MaxBodySize bounds a single message body. A declared length beyond this
// closes the connection rather than being read.
const MaxBodySize = 16 * 1024 * 1024

// NoActivityId marks a message not associated with any running activity.
const NoActivityId int32 = 0

// Header is the fixed-size frame preceding every message body.
type Header struct {
	Code          MessageCode
	ActivityId    int32
	MessageNumber uint32
	Timestamp     time.Time
	DataLength    int32
}

// Marshal encodes h into its wire representation.
func (h Header) Marshal() []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], uint32(h.Code))
	binary.BigEndian.PutUint32(buf[4:8], uint32(h.ActivityId))
	binary.BigEndian.PutUint32(buf[8:12], h.MessageNumber)
	binary.BigEndian.PutUint64(buf[12:20], uint64(h.Timestamp.Unix()))
	binary.BigEndian.PutUint32(buf[20:24], uint32(h.DataLength))
	return buf
}

// UnmarshalHeader decodes a Header from exactly HeaderSize bytes.
func UnmarshalHeader(buf []byte) (Header, error) {
	if len(buf) != HeaderSize {
		return Header{}, fmt.Errorf("wire: %w", domain.ErrMalformedHeader)
	}
	h := Header{
		Code:          MessageCode(binary.BigEndian.Uint32(buf[0:4])),
		ActivityId:    int32(binary.BigEndian.Uint32(buf[4:8])),
		MessageNumber: binary.BigEndian.Uint32(buf[8:12]),
		Timestamp:     time.Unix(int64(binary.BigEndian.Uint64(buf[12:20])), 0).UTC(),
		DataLength:    int32(binary.BigEndian.Uint32(buf[20:24])),
	}
	if h.DataLength < 0 || h.DataLength > MaxBodySize {
		return Header{}, fmt.Errorf("wire: %w", domain.ErrOversizedBody)
	}
	return h, nil
}

// ReadMessage reads one framed message (header + body) from r.
func ReadMessage(r io.Reader) (Header, []byte, error) {
	hdrBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, hdrBuf); err != nil {
		return Header{}, nil, err
	}
	hdr, err := UnmarshalHeader(hdrBuf)
	if err != nil {
		return Header{}, nil, err
	}
	if hdr.DataLength == 0 {
		return hdr, nil, nil
	}
	body := make([]byte, hdr.DataLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return Header{}, nil, err
	}
	return hdr, body, nil
}

// WriteMessage frames and writes one message to w.
func WriteMessage(w io.Writer, hdr Header, body []byte) error {
	hdr.DataLength = int32(len(body))
	if _, err := w.Write(hdr.Marshal()); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return err
		}
	}
	return nil
}
