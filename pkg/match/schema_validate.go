package match

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var ruleSchemaJSON []byte

var ruleSchemaLoader = gojsonschema.NewBytesLoader(ruleSchemaJSON)

// validateSchema checks source's outer document shape (the top-level rule,
// fix, constraints, utils, transform keys) against the rule schema before
// the field-by-field compiler runs, so a document with a misspelled
// top-level key or a wrong value type is rejected with a schema error
// naming every offense in one pass, not just the first one compileRuleObject
// would reach.
func validateSchema(source []byte) error {
	var generic any
	if err := yaml.Unmarshal(source, &generic); err != nil {
		return newCompileError(KindSchema, "parse rule document: %w", err)
	}

	documentLoader := gojsonschema.NewGoLoader(generic)

	result, err := gojsonschema.Validate(ruleSchemaLoader, documentLoader)
	if err != nil {
		return newCompileError(KindSchema, "validate rule document: %w", err)
	}

	if result.Valid() {
		return nil
	}

	descriptions := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		descriptions = append(descriptions, fmt.Sprintf("%s: %s", verr.Field(), verr.Description()))
	}

	return newCompileError(KindSchema, "%w: %s", ErrSchemaInvalid, strings.Join(descriptions, "; "))
}
