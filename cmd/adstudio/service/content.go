package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"
	"github.com/lyzr/adstudio/cmd/adstudio/models"
	"github.com/lyzr/adstudio/common/validation"
)

// ContentNormalizer turns client JSON into validated, id-stamped content
type ContentNormalizer struct {
	rules *validation.Evaluator
	newID func() string
}

// NewContentNormalizer creates a normalizer using the stream content rules
func NewContentNormalizer(rules *validation.Evaluator) *ContentNormalizer {
	return &ContentNormalizer{
		rules: rules,
		newID: func() string { return uuid.NewString() },
	}
}

// Normalize decodes raw content for a stream, checks it, and fills missing track ids
func (n *ContentNormalizer) Normalize(stream models.StreamType, raw []byte) (models.Content, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, validationError("%s content must be a JSON object: %v", stream, err)
	}

	if err := n.rules.Check(validation.RulesFor(string(stream)), doc); err != nil {
		var violation *validation.Violation
		if errors.As(err, &violation) {
			return nil, validationError("%s", violation.Error())
		}
		return nil, fmt.Errorf("failed to check %s content: %w", stream, err)
	}

	content, err := models.DecodeContent(stream, raw)
	if err != nil {
		return nil, validationError("%v", err)
	}
	if err := content.Validate(); err != nil {
		return nil, validationError("%v", err)
	}

	content.AssignIDs(n.newID)
	return content, nil
}

// ApplyPatch applies a content patch to an existing version's content.
// A JSON array is an RFC 6902 patch; a JSON object is an RFC 7396 merge patch.
func (n *ContentNormalizer) ApplyPatch(current models.Content, patch []byte) ([]byte, error) {
	doc, err := models.EncodeContent(current)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(patch)
	if len(trimmed) == 0 {
		return doc, nil
	}

	switch trimmed[0] {
	case '[':
		ops, err := jsonpatch.DecodePatch(trimmed)
		if err != nil {
			return nil, validationError("invalid JSON patch: %v", err)
		}
		patched, err := ops.Apply(doc)
		if err != nil {
			return nil, validationError("failed to apply JSON patch: %v", err)
		}
		return patched, nil

	case '{':
		patched, err := jsonpatch.MergePatch(doc, trimmed)
		if err != nil {
			return nil, validationError("failed to apply merge patch: %v", err)
		}
		return patched, nil

	default:
		return nil, validationError("content patch must be a JSON object or array")
	}
}
