package network

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the YAML layout of a network fixture
type File struct {
	Conduits []EdgeDoc    `yaml:"conduits"`
	Channels *[]EdgeDoc   `yaml:"channels,omitempty"`
	Liaisons []LiaisonDoc `yaml:"liaisons,omitempty"`
	Entities []EntityDoc  `yaml:"entities,omitempty"`
	Nodes    []NodeDoc    `yaml:"nodes,omitempty"`
}

// EdgeDoc is one conduit or channel record as stored in the file
type EdgeDoc struct {
	ID             int64    `yaml:"id"`
	Start          string   `yaml:"start"`
	End            string   `yaml:"end"`
	Category       string   `yaml:"category,omitempty"`
	Function       string   `yaml:"function,omitempty"`
	FlowType       string   `yaml:"flow_type,omitempty"`
	Length         *float64 `yaml:"length,omitempty"`
	GeometryLength float64  `yaml:"geometry_length,omitempty"`
	Diameter       int      `yaml:"diameter,omitempty"`
	Inversion      string   `yaml:"inversion,omitempty"`
}

// LiaisonDoc links a node to an entity
type LiaisonDoc struct {
	ID     int64  `yaml:"id"`
	Node   string `yaml:"node"`
	Entity string `yaml:"entity"`
}

// EntityDoc is an external entity with opaque attributes
type EntityDoc struct {
	ID         string            `yaml:"id"`
	Attributes map[string]string `yaml:"attributes,omitempty"`
}

// NodeDoc carries structure attributes
type NodeDoc struct {
	ID          string `yaml:"id"`
	NetworkType string `yaml:"network_type,omitempty"`
}

// Edge converts the record, resolving endpoints and length once
func (d EdgeDoc) Edge(c Collection) Edge {
	length := d.GeometryLength
	if d.Length != nil {
		length = *d.Length
	}
	return Edge{
		Collection: c,
		ID:         EdgeID(d.ID),
		Start:      ParseEndpoint(d.Start),
		End:        ParseEndpoint(d.End),
		Category:   ParseCode(d.Category),
		Function:   ParseCode(d.Function),
		FlowType:   ParseCode(d.FlowType),
		Length:     length,
		Diameter:   d.Diameter,
		Inversion:  ParseCode(d.Inversion),
	}
}

// LoadYAML reads a network fixture from disk
func LoadYAML(path string) (*MemorySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open network file: %w", err)
	}
	defer f.Close()

	src, err := DecodeYAML(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return src, nil
}

// DecodeYAML builds a MemorySource from a YAML document
func DecodeYAML(r io.Reader) (*MemorySource, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc File
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode network: %w", err)
	}
	return doc.Source()
}

// Source converts the document into a MemorySource
func (doc *File) Source() (*MemorySource, error) {
	src := NewMemorySource()
	for _, d := range doc.Conduits {
		if err := src.AddEdge(d.Edge(Conduit)); err != nil {
			return nil, err
		}
	}
	if doc.Channels != nil {
		src.EnableCollection(Channel)
		for _, d := range *doc.Channels {
			if err := src.AddEdge(d.Edge(Channel)); err != nil {
				return nil, err
			}
		}
	}
	for _, d := range doc.Liaisons {
		node, ok := ParseEndpoint(d.Node).Get()
		entity, entityOK := ParseEndpoint(d.Entity).Get()
		if !ok || !entityOK {
			continue
		}
		l := Liaison{ID: LiaisonID(d.ID), Node: node, Entity: EntityID(entity)}
		if err := src.AddLiaison(l); err != nil {
			return nil, err
		}
	}
	for _, d := range doc.Entities {
		src.AddEntity(Entity{ID: EntityID(d.ID), Attributes: d.Attributes})
	}
	for _, d := range doc.Nodes {
		src.AddNode(NodeInfo{ID: NodeID(d.ID), NetworkType: ParseCode(d.NetworkType)})
	}
	return src, nil
}
