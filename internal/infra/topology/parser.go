// Package topology parses the expected-topology file describing the
// Site→IFChain→Beam→Detector hierarchy and the Beam↔AtaBeam,
// Channelizer↔Beam associations, and resolves channel→beam lookups
// against it.
package topology

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sonata-sse/sse-core/internal/domain"
)

var validComponentTypes = map[string]domain.ComponentType{
	"Site":        domain.ComponentSite,
	"IFChain":     domain.ComponentIFChain,
	"Beam":        domain.ComponentBeam,
	"Detector":    domain.ComponentDetector,
	"Telescope":   domain.ComponentTelescope,
	"Testgen":     domain.ComponentTestgen,
	"Channelizer": domain.ComponentChannelizer,
	"Archiver":    domain.ComponentArchiver,
}

// Parse reads an expected-topology description from r.
//
// Grammar: the first non-comment line is a fixed version token. Subsequent
// lines are one of:
//   <ParentType> <Name> <ChildListType> <ChildName>...   hierarchy record
//   BeamToAtaBeams <beam> <ataBeam>...                    beam association
//   Channelizer <beam> <chan>...                          channel association
// Comments begin with '#'; blank lines are ignored. Lines with fewer than
// three fields (two for the association directives) are skipped; a
// hierarchy record whose parent or child type is not a known component type
// is rejected with ErrTopologyInvalid.
func Parse(r io.Reader) (*domain.ExpectedTopology, error) {
	topo := &domain.ExpectedTopology{}

	scanner := bufio.NewScanner(r)
	haveVersion := false

	parentOf := make(map[string]string) // child name -> parent name (for missing-parent check)
	childSeen := make(map[string]bool)  // dedupe across all child lists

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !haveVersion {
			topo.Version = line
			haveVersion = true
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		switch fields[0] {
		case "BeamToAtaBeams":
			topo.BeamToAtaBeams = append(topo.BeamToAtaBeams, domain.BeamAtaBeams{
				Beam:     fields[1],
				AtaBeams: append([]string{}, fields[2:]...),
			})

		case "Channelizer":
			chans, err := parseChannelList(fields[2:])
			if err != nil {
				return nil, fmt.Errorf("topology: %w", err)
			}
			topo.ChannelizerAssoc = append(topo.ChannelizerAssoc, domain.ChannelizerBeamChans{
				Beam:     fields[1],
				Channels: chans,
			})

		default:
			if len(fields) < 3 {
				continue
			}
			parentType, ok := validComponentTypes[fields[0]]
			if !ok {
				return nil, fmt.Errorf("topology: %w: %q", domain.ErrTopologyInvalid, fields[0])
			}
			name := fields[1]
			childType, ok := validComponentTypes[fields[2]]
			if !ok {
				return nil, fmt.Errorf("topology: %w: %q", domain.ErrTopologyInvalid, fields[2])
			}
			children := fields[3:]

			for _, c := range children {
				if childSeen[c] {
					return nil, fmt.Errorf("topology: %w: %q", domain.ErrDuplicateChild, c)
				}
				childSeen[c] = true
				parentOf[c] = name
			}

			topo.Nodes = append(topo.Nodes, domain.TopologyNode{
				Type:      parentType,
				Name:      name,
				ChildType: childType,
				Children:  append([]string{}, children...),
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("topology: read: %w", err)
	}
	if !haveVersion {
		return nil, fmt.Errorf("topology: %w: empty description", domain.ErrTopologyInvalid)
	}

	// Only Site nodes may be roots; every other node must appear in some
	// record's child list.
	for _, n := range topo.Nodes {
		if n.Type == domain.ComponentSite {
			continue
		}
		if _, hasParent := parentOf[n.Name]; !hasParent {
			return nil, fmt.Errorf("topology: %w: %q", domain.ErrMissingParent, n.Name)
		}
	}

	return topo, nil
}

func parseChannelList(fields []string) ([]int, error) {
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid channel %q", domain.ErrTopologyInvalid, f)
		}
		out = append(out, n)
	}
	return out, nil
}
