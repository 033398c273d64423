package inventory

import (
	"strings"
	"testing"
)

func TestCUEParseFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pods.cue", `
blobs: [
	{
		name:   "pod1-vlans"
		tier:   "role"
		weight: 10
		scope: roles: ["leaf"]
		payload: {
			vlans: [
				{id: 10, name: "DATA"},
				{id: 20, name: "VOICE"},
			]
		}
	},
]
`)

	blobs, err := NewCUEParser().ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(blobs) != 1 {
		t.Fatalf("got %d blobs, want 1", len(blobs))
	}

	b := blobs[0]
	if b.Name != "pod1-vlans" || b.Tier != "role" || b.Weight != 10 {
		t.Errorf("blob = %+v", b)
	}
	if b.Source != path {
		t.Errorf("Source = %q, want %q", b.Source, path)
	}
	if len(b.Scope.Roles) != 1 || b.Scope.Roles[0] != "leaf" {
		t.Errorf("Scope.Roles = %v", b.Scope.Roles)
	}

	vlans, ok := b.Payload["vlans"].([]interface{})
	if !ok || len(vlans) != 2 {
		t.Fatalf("payload.vlans = %#v", b.Payload["vlans"])
	}
	first, ok := vlans[0].(map[string]interface{})
	if !ok || first["name"] != "DATA" {
		t.Errorf("vlans[0] = %#v", vlans[0])
	}
}

func TestCUEParseFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "tier outside the enumeration",
			content: `blobs: [{name: "x", tier: "rack", payload: {a: 1}}]`,
			want:    "tier",
		},
		{
			name:    "name fails the pattern",
			content: `blobs: [{name: "bad name!", tier: "group", payload: {a: 1}}]`,
			want:    "name",
		},
		{
			name:    "syntax error",
			content: `blobs: [`,
			want:    "expected",
		},
		{
			name:    "no blobs declared",
			content: `defaults: {dns: ["10.0.0.53"]}`,
			want:    "no blobs list declared",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "bad.cue", tt.content)
			_, err := NewCUEParser().ParseFile(path)
			if err == nil {
				t.Fatal("expected error, got none")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
