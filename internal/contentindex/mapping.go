package contentindex

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildMapping constructs the bleve mapping for the content index per
// spec §4.4: `content` uses the default English analyzer (tokenize,
// lowercase, stopword removal, stemming, all bundled in bleve's "en"
// analyzer) and is stored with term vectors so the highlighter can return
// snippet fragments; name/path use bleve's standard analyzer and, unlike
// the metadata index, have no keyword twin fields.
func buildMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = "en"

	contentDoc := bleve.NewDocumentMapping()

	numeric := bleve.NewNumericFieldMapping()
	numeric.Store = true
	numeric.Index = true

	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = "keyword"
	keyword.Store = true
	keyword.Index = true

	name := bleve.NewTextFieldMapping()
	name.Analyzer = "standard"
	name.Store = true
	name.Index = true

	path := bleve.NewTextFieldMapping()
	path.Analyzer = "standard"
	path.Store = true
	path.Index = true

	content := bleve.NewTextFieldMapping()
	content.Analyzer = "en"
	content.Store = true
	content.IncludeTermVectors = true
	content.Index = true

	contentDoc.AddFieldMappingsAt("doc_key", numeric)
	contentDoc.AddFieldMappingsAt("volume", numeric)
	contentDoc.AddFieldMappingsAt("size", numeric)
	contentDoc.AddFieldMappingsAt("modified", numeric)
	contentDoc.AddFieldMappingsAt("ext", keyword)
	contentDoc.AddFieldMappingsAt("content_lang", keyword)
	contentDoc.AddFieldMappingsAt("name", name)
	contentDoc.AddFieldMappingsAt("path", path)
	contentDoc.AddFieldMappingsAt("content", content)

	typeField := bleve.NewTextFieldMapping()
	typeField.Analyzer = "keyword"
	typeField.Store = false
	contentDoc.AddFieldMappingsAt("type", typeField)

	im.AddDocumentMapping("content", contentDoc)
	im.DefaultMapping = contentDoc
	return im
}
