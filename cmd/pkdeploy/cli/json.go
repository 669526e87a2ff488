// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"io"
	"os"
	"reflect"
)

// JSONOutput is an embeddable struct that adds a --json flag and the
// [JSONOutput.EmitJSON] method to a command's parameter struct.
//
//	type historyParams struct {
//	    cli.JSONOutput
//	    Limit int `flag:"limit" desc:"number of records" default:"20"`
//	}
//
//	if done, err := params.EmitJSON(records); done {
//	    return err
//	}
//	// ... text formatting ...
type JSONOutput struct {
	OutputJSON bool `json:"-" flag:"json" desc:"output as JSON"`

	// Stdout overrides the destination. Nil means os.Stdout.
	Stdout io.Writer `json:"-"`
}

// EmitJSON writes result as indented JSON if --json is set. It returns
// (true, nil) on success, (true, err) on write failure, or (false, nil)
// when --json is not set and the caller should format text instead.
//
// Nil slices are written as [] rather than null.
func (j *JSONOutput) EmitJSON(result any) (bool, error) {
	if !j.OutputJSON {
		return false, nil
	}
	output := j.Stdout
	if output == nil {
		output = os.Stdout
	}
	return true, WriteJSON(output, normalizeNilSlice(result))
}

// WriteJSON marshals value as indented JSON and writes it to w.
func WriteJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func normalizeNilSlice(value any) any {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Slice && v.IsNil() {
		return reflect.MakeSlice(v.Type(), 0, 0).Interface()
	}
	return value
}
