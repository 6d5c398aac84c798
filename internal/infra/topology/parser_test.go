package topology

import (
	"errors"
	"strings"
	"testing"

	"github.com/sonata-sse/sse-core/internal/domain"
)

const sampleTopology = `TOPOLOGY-V1
Site site1 IFChain ifc1 ifc2
IFChain ifc1 Beam beam1
IFChain ifc2 Beam beam2
Beam beam1 Detector dx0 dx1
Beam beam2 Detector dx2 dx3
BeamToAtaBeams beam1 ata0 ata1
BeamToAtaBeams beam2 ata2
Channelizer beam1 0 1 2 3
Channelizer beam2 4 5 6 7
`

func TestParse_WellFormedTopology(t *testing.T) {
	topo, err := Parse(strings.NewReader(sampleTopology))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if topo.Version != "TOPOLOGY-V1" {
		t.Errorf("version = %q", topo.Version)
	}
	if len(topo.Nodes) != 5 {
		t.Errorf("expected 5 nodes, got %d", len(topo.Nodes))
	}
	if len(topo.BeamToAtaBeams) != 2 {
		t.Errorf("expected 2 beam associations, got %d", len(topo.BeamToAtaBeams))
	}
	if len(topo.ChannelizerAssoc) != 2 {
		t.Errorf("expected 2 channelizer associations, got %d", len(topo.ChannelizerAssoc))
	}
}

func TestParse_RejectsDuplicateChild(t *testing.T) {
	bad := "V1\n" +
		"Site site1 IFChain ifc1 ifc2\n" +
		"IFChain ifc1 Beam beam1\n" +
		"IFChain ifc2 Beam beam1\n" // beam1 listed under two parents
	_, err := Parse(strings.NewReader(bad))
	if !errors.Is(err, domain.ErrDuplicateChild) {
		t.Fatalf("expected ErrDuplicateChild, got %v", err)
	}
}

func TestParse_RejectsMissingParent(t *testing.T) {
	bad := "V1\n" +
		"IFChain ifc1 Beam beam1\n" // ifc1 never declared as anyone's child, and isn't Site
	_, err := Parse(strings.NewReader(bad))
	if !errors.Is(err, domain.ErrMissingParent) {
		t.Fatalf("expected ErrMissingParent, got %v", err)
	}
}

func TestParse_RejectsUnknownComponentType(t *testing.T) {
	bad := "V1\nBogusType site1 IFChain ifc1\n"
	_, err := Parse(strings.NewReader(bad))
	if !errors.Is(err, domain.ErrTopologyInvalid) {
		t.Fatalf("expected ErrTopologyInvalid, got %v", err)
	}
}

func TestBeamRouter_ResolvesKnownChannel(t *testing.T) {
	topo, err := Parse(strings.NewReader(sampleTopology))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	r := NewBeamRouter(topo)
	beam, err := r.BeamForChannel(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if beam != "beam1" {
		t.Errorf("beam = %q, want beam1", beam)
	}
}

func TestBeamRouter_UnknownChannelFails(t *testing.T) {
	topo, err := Parse(strings.NewReader(sampleTopology))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	r := NewBeamRouter(topo)
	if _, err := r.BeamForChannel(999); !errors.Is(err, domain.ErrUnknownBeam) {
		t.Fatalf("expected ErrUnknownBeam, got %v", err)
	}
}
