package inject_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegrove/structgrep/pkg/inject"
	"github.com/codegrove/structgrep/pkg/lang"
	"github.com/codegrove/structgrep/pkg/match"
)

func TestExtractRegions_FindsRecognizedSubLanguage(t *testing.T) {
	t.Parallel()

	registry := lang.NewRegistry()

	jsLang, err := registry.Get("javascript")
	require.NoError(t, err)

	selector, err := match.Compile(jsLang, []byte(`
rule:
  pattern: "JSON.parse($A)"
`))
	require.NoError(t, err)

	reg := inject.NewRegistry()
	reg.Register(inject.Recognizer{HostLanguage: "javascript", SubLanguage: "json", Selector: selector})

	assert.True(t, reg.HasRecognizers("javascript"))
	assert.False(t, reg.HasRecognizers("go"))

	source := []byte(`const cfg = JSON.parse({"a": 1});`)

	doc, err := match.Parse(jsLang, source)
	require.NoError(t, err)

	t.Cleanup(doc.Close)

	regions := inject.ExtractRegions(reg, doc)
	require.Len(t, regions, 1)
	assert.Equal(t, "json", regions[0].Language)
	assert.Equal(t, string(source[regions[0].Start:regions[0].End]), "JSON.parse({\"a\": 1})")
}

func TestExtract_ParsesEachRegionUnderItsSubLanguage(t *testing.T) {
	t.Parallel()

	registry := lang.NewRegistry()

	regions := []inject.Region{{Language: "json", Start: 0, End: 10}}
	source := []byte(`{"a": 1}  `)

	extracted, err := inject.Extract(registry, source, regions)
	require.NoError(t, err)

	t.Cleanup(func() { inject.CloseAll(extracted) })

	require.Len(t, extracted, 1)
	assert.Equal(t, "json", extracted[0].Doc.Language().Name())
	assert.Equal(t, 0, extracted[0].ByteOffset)
}

func TestExtract_UnknownSubLanguage(t *testing.T) {
	t.Parallel()

	registry := lang.NewRegistry()

	_, err := inject.Extract(registry, []byte("x"), []inject.Region{{Language: "cobol", Start: 0, End: 1}})
	require.Error(t, err)
}
