package metaindex

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	regexptokenizer "github.com/blevesearch/bleve/v2/analysis/tokenizer/regexp"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildMapping constructs the bleve index mapping for the metadata index
// per spec §4.3: doc_key/volume/size/created/modified/flags are stored as
// numeric fast fields for range and equality filtering without
// materializing the document; name and path are indexed with the
// "name_split" analyzer (split on whitespace, slash, backslash, dot,
// underscore and hyphen, then lowercased) and additionally indexed as
// unanalyzed keyword fields for exact/prefix lookups; ext is a keyword
// field.
func buildMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = "standard"

	_ = im.AddCustomTokenizer("name_sep", map[string]interface{}{
		"type":   regexptokenizer.Name,
		"regexp": `[^\s\\/._-]+`,
	})
	_ = im.AddCustomAnalyzer("name_split", map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     "name_sep",
		"token_filters": []string{lowercase.Name},
	})

	metaDoc := bleve.NewDocumentMapping()

	numeric := bleve.NewNumericFieldMapping()
	numeric.Store = true
	numeric.Index = true

	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = "keyword"
	keyword.Store = true
	keyword.Index = true

	text := bleve.NewTextFieldMapping()
	text.Analyzer = "name_split"
	text.Store = true
	text.Index = true

	metaDoc.AddFieldMappingsAt("doc_key", numeric)
	metaDoc.AddFieldMappingsAt("volume", numeric)
	metaDoc.AddFieldMappingsAt("size", numeric)
	metaDoc.AddFieldMappingsAt("created", numeric)
	metaDoc.AddFieldMappingsAt("modified", numeric)
	metaDoc.AddFieldMappingsAt("flags", numeric)
	metaDoc.AddFieldMappingsAt("seq", numeric)
	metaDoc.AddFieldMappingsAt("ext", keyword)
	metaDoc.AddFieldMappingsAt("name", text)
	metaDoc.AddFieldMappingsAt("name_exact", keyword)
	metaDoc.AddFieldMappingsAt("path", text)
	metaDoc.AddFieldMappingsAt("path_exact", keyword)

	typeField := bleve.NewTextFieldMapping()
	typeField.Analyzer = "keyword"
	typeField.Store = false
	metaDoc.AddFieldMappingsAt("type", typeField)

	im.AddDocumentMapping("metadata", metaDoc)
	im.DefaultMapping = metaDoc
	return im
}
