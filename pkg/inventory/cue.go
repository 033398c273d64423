package inventory

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// blobSchema constrains .cue context files. A file declares a blobs
// list; every entry must satisfy #Blob. Keeping the schema here rather
// than in the workspace means a malformed schema cannot be shipped by
// accident.
const blobSchema = `
#Blob: {
	// name identifies the blob in provenance and diagnostics
	name: string & =~"^[a-zA-Z0-9_.-]+$"

	// tier fixes the precedence class; override is reserved for
	// run-time values and never valid in a file
	tier: "device" | "site" | "role" | "group"

	// weight orders blobs within one tier
	weight?: int

	// scope restricts the blob to part of the fleet
	scope?: {
		devices?: [...string]
		sites?: [...string]
		roles?: [...string]
		groups?: [...string]
	}

	// payload carries the context values
	payload: {...}
}

blobs: [...#Blob]
`

// CUEParser compiles .cue context files and checks them against the
// blob schema before handing the results to the loader.
type CUEParser struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewCUEParser creates a parser with the embedded blob schema.
func NewCUEParser() *CUEParser {
	ctx := cuecontext.New()
	return &CUEParser{
		ctx:    ctx,
		schema: ctx.CompileString(blobSchema),
	}
}

// ParseFile compiles one .cue file, unifies it with the schema and
// returns the declared blobs.
func (p *CUEParser) ParseFile(path string) ([]ContextBlob, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	val := p.ctx.CompileString(string(content), cue.Filename(path))
	if err := val.Err(); err != nil {
		return nil, convertCUEErrors(path, err)
	}

	unified := val.Unify(p.schema)
	blobsVal := unified.LookupPath(cue.ParsePath("blobs"))
	if !blobsVal.Exists() {
		if err := unified.Err(); err != nil {
			return nil, convertCUEErrors(path, err)
		}
		return nil, &LoadError{File: path, Message: "no blobs list declared"}
	}
	if err := blobsVal.Validate(cue.Concrete(true)); err != nil {
		return nil, convertCUEErrors(path, err)
	}

	var blobs []ContextBlob
	if err := blobsVal.Decode(&blobs); err != nil {
		return nil, convertCUEErrors(path, err)
	}
	for i := range blobs {
		blobs[i].Source = path
		if len(blobs) > 1 {
			blobs[i].Source = fmt.Sprintf("%s#%d", path, i)
		}
	}
	return blobs, nil
}

// convertCUEErrors flattens a CUE error into positioned load errors.
func convertCUEErrors(path string, err error) error {
	var out LoadErrors
	for _, e := range cueerrors.Errors(err) {
		le := &LoadError{
			File:    path,
			Message: cueerrors.Details(e, nil),
		}
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			le.File = pos[0].Filename()
			le.Line = pos[0].Line()
			le.Column = pos[0].Column()
		}
		out = append(out, le)
	}
	if len(out) == 0 {
		return &LoadError{File: path, Message: err.Error()}
	}
	return out
}
