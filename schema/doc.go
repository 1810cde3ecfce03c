// Package schema holds the immutable, validated description of the content
// platform's user types: their fields and the policy directives attached to
// them.
//
// A schema description is loaded once (YAML document or in-code definition)
// into an [Index]. All policy resolution is a pure lookup against that
// snapshot; nothing in this package mutates state after [Build] returns.
//
// Duplicate directive instances of the same name on one type are rejected at
// build time. Silently letting one instance shadow another is a
// misconfiguration trap, not a feature.
package schema
