package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rileyhilliard/myssh/internal/engine"
	"github.com/rileyhilliard/myssh/internal/errors"
	"gopkg.in/yaml.v3"
)

// Output formats for --output.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func parseOutputFormat(f string) error {
	switch f {
	case formatText, formatJSON, formatYAML:
		return nil
	}
	return errors.New(errors.ErrInvalidArgument,
		fmt.Sprintf("Unknown output format %q", f),
		"Use --output text, json, or yaml.")
}

// machineMode reports whether output is structured (json or yaml) instead of
// styled text. Machine output carries the same envelope as the HTTP API.
func machineMode() bool {
	return outputFormat == formatJSON || outputFormat == formatYAML
}

// writeMachine encodes an engine response in the selected structured format.
func writeMachine(w io.Writer, v interface{}) error {
	if outputFormat == formatYAML {
		b, err := toYAML(v)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeFailure writes err as a failed envelope.
func writeFailure(w io.Writer, err error) error {
	return writeMachine(w, engine.Failure(err))
}

// toYAML renders v with its JSON field names and order. The JSON document is
// parsed as YAML, then flow styles and quoting are reset to block style.
func toYAML(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	blockStyle(&doc)
	return yaml.Marshal(&doc)
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
