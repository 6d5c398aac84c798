package wire

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/sonata-sse/sse-core/internal/domain"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Code:          DxTune,
		ActivityId:    42,
		MessageNumber: 7,
		Timestamp:     time.Unix(1700000000, 0).UTC(),
		DataLength:    3,
	}
	buf := h.Marshal()
	got, err := UnmarshalHeader(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}

	buf2 := got.Marshal()
	if !bytes.Equal(buf, buf2) {
		t.Fatalf("marshal not byte-identical on round trip")
	}
}

func TestUnmarshalHeader_RejectsOversizedBody(t *testing.T) {
	h := Header{DataLength: MaxBodySize + 1}
	buf := h.Marshal()
	_, err := UnmarshalHeader(buf)
	if !errors.Is(err, domain.ErrOversizedBody) {
		t.Fatalf("expected ErrOversizedBody, got %v", err)
	}
}

func TestUnmarshalHeader_RejectsWrongLength(t *testing.T) {
	if _, err := UnmarshalHeader([]byte{1, 2, 3}); !errors.Is(err, domain.ErrMalformedHeader) {
		t.Fatalf("expected ErrMalformedHeader, got %v", err)
	}
}

func TestReadWriteMessage_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	hdr := Header{Code: CtlStart, ActivityId: 1, MessageNumber: 1, Timestamp: time.Unix(1, 0).UTC()}
	body := []byte("hello")

	if err := WriteMessage(&buf, hdr, body); err != nil {
		t.Fatalf("write: %v", err)
	}

	gotHdr, gotBody, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if gotHdr.Code != hdr.Code || gotHdr.ActivityId != hdr.ActivityId {
		t.Errorf("header mismatch: %+v", gotHdr)
	}
	if !bytes.Equal(gotBody, body) {
		t.Errorf("body mismatch: got %q want %q", gotBody, body)
	}
}

func TestMessageCodeString_ClosedTables(t *testing.T) {
	cases := map[MessageCode]string{
		TscopePoint:  "point",
		IfcAttn:      "attn",
		TestgenPulse: "pulse",
		DxTune:       "tune",
		CtlShutdown:  "shutdown",
	}
	for code, want := range cases {
		if got := code.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", code, got, want)
		}
	}
}

func TestSequenceTracker_ResyncsWithoutError(t *testing.T) {
	st := NewSequenceTracker("dx0")
	if err := st.Check(0); err != nil {
		t.Fatalf("first check: %v", err)
	}
	if err := st.Check(1); err != nil {
		t.Fatalf("in-sequence check: %v", err)
	}
	// Skip ahead: should log/resync, return a non-fatal wrapped error.
	if err := st.Check(5); !errors.Is(err, domain.ErrOutOfSequence) {
		t.Fatalf("expected ErrOutOfSequence, got %v", err)
	}
	// Tracker should now expect 6, not refuse future messages.
	if err := st.Check(6); err != nil {
		t.Fatalf("post-resync check: %v", err)
	}
}
