package core

import (
	"context"
)

// Adapter defines the interface that all graph store adapters must implement.
type Adapter interface {
	// Connect establishes a connection to the store.
	Connect(ctx context.Context, cfg AdapterConfig) error

	// Close closes the connection and releases resources.
	Close() error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Introspect reads the labels, relationship types and property keys
	// currently present in the store.
	Introspect(ctx context.Context) (*SchemaInfo, error)

	// Run executes a read or write query and collects its records.
	Run(ctx context.Context, query string, opts RunOptions) (*Result, error)
}

// RunOptions tune a single Run call.
type RunOptions struct {
	Params map[string]any
	// MaxRows stops reading records once this many rows are collected and
	// marks the result truncated when more were available. Zero reads
	// every record.
	MaxRows int
}

// AdapterConfig holds configuration for connecting to a graph store.
type AdapterConfig struct {
	Type     string
	URI      string
	Database string
	Username string
	Password string
	Params   map[string]any
}

// PropertyInfo describes one property key and the type names observed for it.
type PropertyInfo struct {
	Name  string   `json:"name" yaml:"name"`
	Types []string `json:"types,omitempty" yaml:"types,omitempty"`
}

// LabelInfo describes a node label and its property keys.
type LabelInfo struct {
	Label      string         `json:"label" yaml:"label"`
	Properties []PropertyInfo `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// RelTypeInfo describes a relationship type and its property keys.
type RelTypeInfo struct {
	Type       string         `json:"type" yaml:"type"`
	Properties []PropertyInfo `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// RelPattern records that relationships of Type connect From to To.
type RelPattern struct {
	From string `json:"from" yaml:"from"`
	Type string `json:"type" yaml:"type"`
	To   string `json:"to" yaml:"to"`
}

// SchemaInfo is the raw result of store introspection, before it is
// normalised into a snapshot.
type SchemaInfo struct {
	Nodes         []LabelInfo   `json:"nodes" yaml:"nodes"`
	Relationships []RelTypeInfo `json:"relationships" yaml:"relationships"`
	Patterns      []RelPattern  `json:"patterns,omitempty" yaml:"patterns,omitempty"`
}
