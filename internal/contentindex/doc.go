package contentindex

import "ultrasearch/pkg/models"

// doc is the bleve-indexed shape of a content document (spec §4.4).
type doc struct {
	Type        string `json:"type"`
	DocKey      uint64 `json:"doc_key"`
	Volume      uint16 `json:"volume"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	Ext         string `json:"ext"`
	Size        uint64 `json:"size"`
	Modified    int64  `json:"modified"`
	ContentLang string `json:"content_lang"`
	Content     string `json:"content"`
}

func toDoc(c models.ContentDoc) doc {
	return doc{
		Type:        "content",
		DocKey:      uint64(c.DocKey),
		Volume:      uint16(c.Volume),
		Name:        c.Name,
		Path:        c.Path,
		Ext:         c.Ext,
		Size:        c.Size,
		Modified:    c.Modified.Unix(),
		ContentLang: c.ContentLang,
		Content:     c.Content,
	}
}
