// Package validator decides whether a generated Cypher query may be run.
//
// Validate applies three checks in order and stops at the first rejection:
//
//  1. syntax: the text parses as exactly one Cypher statement
//     (core.ReasonMalformedSyntax)
//  2. schema conformance: every label, relationship type and property key
//     the query names exists in the snapshot (core.ReasonUnknownSchema)
//  3. safety: the query performs no unscoped or administrative writes
//     unless the policy allows it (core.ReasonDisallowed)
//
// Validation is pure. It never contacts the store.
package validator

import (
	"errors"
	"strings"

	"github.com/leapstack-labs/graphask/pkg/core"
	"github.com/leapstack-labs/graphask/pkg/cypher"
	"github.com/leapstack-labs/graphask/pkg/graphschema"
)

// Policy controls the safety check.
type Policy struct {
	// AllowDangerous disables the safety gate for writes and administration
	// commands.
	AllowDangerous bool
	// ReadOnly rejects every mutating clause, even scoped ones. It takes
	// precedence over AllowDangerous.
	ReadOnly bool
	// Procedures extends the read-only procedure allowlist. An entry ending
	// in ".*" allows every procedure under that namespace.
	Procedures []string
	// WriteLimit is the largest literal LIMIT that scopes a write. Zero
	// means DefaultWriteLimit.
	WriteLimit int64
}

// DefaultWriteLimit is the largest LIMIT that scopes a write by default.
const DefaultWriteLimit = 100

func (p Policy) writeLimit() int64 {
	if p.WriteLimit > 0 {
		return p.WriteLimit
	}
	return DefaultWriteLimit
}

// defaultProcedures are read-only introspection procedures.
var defaultProcedures = []string{
	"db.labels",
	"db.relationshipTypes",
	"db.propertyKeys",
	"db.schema.*",
	"apoc.meta.*",
}

// AllowsProcedure reports whether name is on the read-only allowlist.
func (p Policy) AllowsProcedure(name string) bool {
	name = strings.ToLower(name)
	for _, lists := range [][]string{defaultProcedures, p.Procedures} {
		for _, entry := range lists {
			entry = strings.ToLower(entry)
			if prefix, ok := strings.CutSuffix(entry, "*"); ok {
				if strings.HasPrefix(name, prefix) {
					return true
				}
				continue
			}
			if name == entry {
				return true
			}
		}
	}
	return false
}

// Validate checks a candidate against the snapshot and policy. A nil
// snapshot skips the conformance check.
func Validate(cand core.CandidateQuery, snap *graphschema.Snapshot, policy Policy) core.Verdict {
	stmt, err := cypher.Parse(cand.Text)
	if err != nil {
		return syntaxVerdict(err)
	}

	if snap != nil {
		if v := checkConformance(stmt, snap); v != nil {
			return *v
		}
	}

	if v := checkSafety(stmt, policy); v != nil {
		return *v
	}
	return core.Accept()
}

func syntaxVerdict(err error) core.Verdict {
	var pe *cypher.ParseError
	if errors.As(err, &pe) {
		return core.Reject(core.ReasonMalformedSyntax, pe.Near, pe.Message, pe.Pos)
	}
	return core.Verdict{Reason: core.ReasonMalformedSyntax, Detail: err.Error()}
}
