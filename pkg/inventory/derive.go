package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// DeriveRunner executes Starlark derive scripts. A script sees the
// device inventory as the predeclared devices list and assigns the
// blobs global with the context blobs it generates. Scripts that print
// or run past the deadline are cut off.
type DeriveRunner struct {
	timeout time.Duration
}

// NewDeriveRunner creates a runner. A zero timeout selects the default
// of 30 seconds.
func NewDeriveRunner(timeout time.Duration) *DeriveRunner {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &DeriveRunner{
		timeout: timeout,
	}
}

// Run executes one derive script against the inventory and returns the
// blobs it produced.
func (r *DeriveRunner) Run(ctx context.Context, name string, script string, devices []Device) ([]ContextBlob, error) {
	evalCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			// print output is discarded
		},
	}

	resultCh := make(chan []ContextBlob, 1)
	errCh := make(chan error, 1)

	go func() {
		blobs, err := r.runSync(thread, name, script, devices)
		if err != nil {
			errCh <- err
		} else {
			resultCh <- blobs
		}
	}()

	select {
	case <-evalCtx.Done():
		thread.Cancel("deadline exceeded")
		return nil, fmt.Errorf("derive script timed out after %v", r.timeout)
	case err := <-errCh:
		return nil, err
	case blobs := <-resultCh:
		return blobs, nil
	}
}

// runSync performs the actual evaluation synchronously.
func (r *DeriveRunner) runSync(thread *starlark.Thread, name, script string, devices []Device) ([]ContextBlob, error) {
	devList := make([]interface{}, len(devices))
	for i, d := range devices {
		devList[i] = map[string]interface{}{
			"hostname":     d.Hostname,
			"role":         d.Role,
			"site":         d.Site,
			"platform":     d.Platform,
			"mgmt_address": d.MgmtAddress,
			"groups":       toAnySlice(d.Groups),
			"labels":       toAnyMap(d.Labels),
		}
	}
	devVal, err := toStarlarkValue(devList)
	if err != nil {
		return nil, fmt.Errorf("failed to convert inventory: %w", err)
	}

	predeclared := starlark.StringDict{
		"struct":  starlark.NewBuiltin("struct", starlarkstruct.Make),
		"devices": devVal,
	}

	globals, err := starlark.ExecFile(thread, name, script, predeclared)
	if err != nil {
		return nil, fmt.Errorf("starlark execution failed: %w", err)
	}

	blobsVal, ok := globals["blobs"]
	if !ok {
		return nil, fmt.Errorf("script did not assign blobs")
	}
	raw, err := fromStarlarkValue(blobsVal)
	if err != nil {
		return nil, fmt.Errorf("failed to convert blobs: %w", err)
	}
	rawList, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("blobs must be a list, got %T", raw)
	}

	blobs := make([]ContextBlob, 0, len(rawList))
	for i, item := range rawList {
		var b ContextBlob
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:      &b,
			TagName:     "json",
			ErrorUnused: true,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(item); err != nil {
			return nil, fmt.Errorf("blobs[%d]: %w", i, err)
		}
		b.Source = fmt.Sprintf("%s#%d", name, i)
		blobs = append(blobs, b)
	}
	return blobs, nil
}

func toAnySlice(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func toAnyMap(in map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v interface{}) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []interface{}:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			starlarkItem, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = starlarkItem
		}
		return starlark.NewList(list), nil
	case map[string]interface{}:
		dict := starlark.NewDict(len(val))
		for k, v := range val {
			starlarkVal, err := toStarlarkValue(v)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), starlarkVal); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlarkValue converts a Starlark value to a Go value.
func fromStarlarkValue(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case starlark.Tuple:
		list := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case *starlark.Dict:
		dict := make(map[string]interface{})
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]interface{})
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}
