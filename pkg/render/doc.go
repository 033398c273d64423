// Package render turns resolved records into EOS-style device syntax.
//
// Rendering is deterministic: sections are emitted in one fixed order,
// list-valued fields in their declared order, and no state outside the
// record is consulted. Optional sections vanish when their governing field
// is absent; nothing is ever defaulted in. Definitions (prefix-lists,
// route-maps) render before the routing block that references them, and a
// dangling reference aborts the render with no partial output.
package render
