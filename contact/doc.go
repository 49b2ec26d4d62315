// Package contact defines the canonical contact entity and its validation
// gate.
//
// A [Contact] is one outlet in a promotion campaign: a radio station, blog,
// playlist curator, magazine, label, venue, or promoter. The storage facade
// runs every write through [Validate], so code downstream of the facade can
// assume trimmed fields, enumerated type/status values, and well-formed
// relation collections.
//
// Enumerations (contact [Type], [VerificationStatus], social [Platform]) are
// closed: unknown scalar values are rejected at the validation boundary,
// never passed through.
package contact
