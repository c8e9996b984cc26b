// Package validation gates every candidate content before it may become a
// new version. Checks are structural only: syntax compiles, braces balance,
// required JSON fields exist. Semantic correctness of a merge is out of
// scope; the gate exists so a wrong merge heuristic produces a rejected
// patch, never a broken live artifact.
package validation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mdwoicke/dentix-ortho-sub002/common/models"
)

// Validator dispatches content to the structural check for its artifact kind
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Check validates content for the given artifact kind. A result with
// Valid == false means the caller MUST discard the candidate and MUST NOT
// create a new version. Warnings never block a commit.
func (v *Validator) Check(ctx context.Context, content string, kind models.ArtifactKind) *models.ValidationResult {
	result := &models.ValidationResult{Valid: true}

	switch kind {
	case models.KindJSONTool:
		v.checkToolDefinition(content, result)
	case models.KindFlowJSON:
		v.checkFlowDefinition(content, result)
	case models.KindJavaScriptTool:
		v.checkJavaScript(ctx, content, result)
	default:
		// prompt-text and anything else: generic balanced-delimiter check
		v.checkBalanced(content, result)
	}

	return result
}

// checkToolDefinition validates a JSON tool definition: it must parse and
// must carry the fields the tool loader reads.
func (v *Validator) checkToolDefinition(content string, result *models.ValidationResult) {
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		result.AddError(fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	for _, field := range []string{"name", "description", "schema", "func"} {
		if _, ok := parsed[field]; !ok {
			result.AddError(fmt.Sprintf("tool definition missing required field %q", field))
		}
	}

	if schema, ok := parsed["schema"].(map[string]interface{}); ok {
		if _, ok := schema["properties"].(map[string]interface{}); !ok {
			result.AddError("tool schema must contain a 'properties' object")
		}
	} else if _, present := parsed["schema"]; present {
		result.AddError(fmt.Sprintf("tool 'schema' must be an object, got %T", parsed["schema"]))
	}
}

// checkFlowDefinition validates a flow export: it must be a JSON array.
// A flow without a tab node is suspicious but importable, so that is a
// warning, not an error.
func (v *Validator) checkFlowDefinition(content string, result *models.ValidationResult) {
	var nodes []map[string]interface{}
	if err := json.Unmarshal([]byte(content), &nodes); err != nil {
		result.AddError(fmt.Sprintf("flow definition must be a JSON array: %v", err))
		return
	}

	hasTab := false
	for _, node := range nodes {
		if t, ok := node["type"].(string); ok && t == "tab" {
			hasTab = true
			break
		}
	}

	if !hasTab {
		result.AddWarning("flow definition has no node of type 'tab'")
	}
}
