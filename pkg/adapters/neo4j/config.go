package neo4j

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/graphask/pkg/adapter"
)

// Introspection modes.
const (
	// IntrospectProcedures reads the schema with db.schema.* procedures.
	IntrospectProcedures = "procedures"
	// IntrospectSample infers the schema from a sample of nodes and
	// relationships. It works on any Cypher store.
	IntrospectSample = "sample"
)

// Params holds adapter specific configuration.
// Parsed from core.AdapterConfig.Params using mapstructure.
type Params struct {
	// Introspection is "procedures" or "sample". Defaults to procedures
	// for neo4j and sample for memgraph.
	Introspection string `mapstructure:"introspection"`

	// SampleSize bounds the nodes and relationships read when sampling,
	// and the relationships scanned for patterns.
	SampleSize int `mapstructure:"sample_size"`

	// AccessMode routes sessions in a cluster: "write" (default) or "read".
	AccessMode string `mapstructure:"access_mode"`

	MaxPoolSize           int           `mapstructure:"max_pool_size"`
	FetchSize             int           `mapstructure:"fetch_size"`
	MaxConnectionLifetime time.Duration `mapstructure:"max_connection_lifetime"`
	ConnectTimeout        time.Duration `mapstructure:"connect_timeout"`
}

const defaultSampleSize = 1000

// parseParams decodes params and fills in defaults for flavor.
func parseParams(flavor string, params map[string]any) (*Params, error) {
	p := &Params{}
	if err := adapter.DecodeParams(params, p); err != nil {
		return nil, err
	}

	if p.Introspection == "" {
		p.Introspection = IntrospectProcedures
		if flavor == FlavorMemgraph {
			p.Introspection = IntrospectSample
		}
	}
	switch p.Introspection {
	case IntrospectProcedures, IntrospectSample:
	default:
		return nil, fmt.Errorf("invalid store params: introspection must be %q or %q, got %q",
			IntrospectProcedures, IntrospectSample, p.Introspection)
	}

	if p.AccessMode == "" {
		p.AccessMode = "write"
	}
	if p.AccessMode != "read" && p.AccessMode != "write" {
		return nil, fmt.Errorf("invalid store params: access_mode must be \"read\" or \"write\", got %q", p.AccessMode)
	}

	if p.SampleSize <= 0 {
		p.SampleSize = defaultSampleSize
	}
	return p, nil
}
