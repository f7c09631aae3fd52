// Package core defines the shared language of the graphask system.
//
// This package contains:
//   - Domain entities (Request, CandidateQuery, Verdict, Result)
//   - The failure taxonomy (InputError, GenerationFailure, ValidationFailure,
//     ExecutionFailure, Failure)
//   - Service interfaces (Adapter) and their configuration (AdapterConfig)
//   - Raw introspection data (SchemaInfo)
//
// The Golden Rule: pkg/core imports ONLY pkg/token and stdlib.
// All other packages depend on core, not the reverse.
package core
