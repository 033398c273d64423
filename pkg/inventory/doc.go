// Package inventory reads the workspace: the device file that names
// the fleet and the context sources that configure it. Context blobs
// come from plain YAML or JSON files, from CUE files checked against an
// embedded schema, and from Starlark derive scripts that generate blobs
// from the inventory itself. The loader settles which blobs apply to
// which device; precedence between applicable blobs is the resolver's
// job.
package inventory
