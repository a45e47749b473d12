package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// generic converts data to plain maps, slices and scalars through its json form,
// so amounts keep their decimal string encoding in every format.
func generic(data any) (any, error) {
	bz, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(bz))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return numbers(out), nil
}

func numbers(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for k, inner := range v {
			v[k] = numbers(inner)
		}
		return v
	case []any:
		for i, inner := range v {
			v[i] = numbers(inner)
		}
		return v
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	}
	return v
}

func Render(format string, data any) ([]byte, error) {
	switch format {
	case "yaml":
		v, err := generic(data)
		if err != nil {
			return nil, err
		}
		return yaml.Marshal(v)
	case "toml":
		v, err := generic(data)
		if err != nil {
			return nil, err
		}
		// toml documents are tables
		if _, ok := v.(map[string]any); !ok {
			v = map[string]any{"result": v}
		}
		return toml.Marshal(v)
	default:
		bz, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(bz, '\n'), nil
	}
}

func printOut(w io.Writer, format string, data any) error {
	bz, err := Render(format, data)
	if err != nil {
		return fmt.Errorf("could not render output: %v", err)
	}
	_, err = w.Write(bz)
	return err
}
