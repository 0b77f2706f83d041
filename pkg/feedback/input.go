package feedback

import (
	"encoding/json"
	"fmt"

	"github.com/ormasoftchile/itemforge/pkg/content"
)

// Input is the JSON document a plan is built from outside a pipeline run.
type Input struct {
	ResponseDeclarations []content.ResponseDeclaration `json:"responseDeclarations"`
	Interactions         map[string]content.Interaction `json:"interactions"`
}

// ParseInput decodes and checks an Input document.
func ParseInput(data []byte) (Input, error) {
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return Input{}, fmt.Errorf("parse plan input: %w", err)
	}
	for id, it := range in.Interactions {
		if err := it.Validate(); err != nil {
			return Input{}, fmt.Errorf("interaction %s: %w", id, err)
		}
	}
	return in, nil
}

// Plan builds the feedback plan of the input.
func (in Input) Plan() Plan {
	return Build(in.ResponseDeclarations, in.Interactions)
}
