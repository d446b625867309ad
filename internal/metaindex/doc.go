package metaindex

import "ultrasearch/pkg/models"

// doc is the bleve-indexed shape of a metadata document (spec §4.3). It
// mirrors pkg/models.MetadataDoc but with the field types bleve's default
// mapping handles cleanly (Unix timestamps instead of time.Time, an
// explicit Type discriminator so the content index and metadata index
// could in principle share a bleve cluster without field collisions).
type doc struct {
	Type      string `json:"type"`
	DocKey    uint64 `json:"doc_key"`
	Volume    uint16 `json:"volume"`
	Name      string `json:"name"`
	NameExact string `json:"name_exact"`
	Path      string `json:"path"`
	PathExact string `json:"path_exact"`
	Ext       string `json:"ext"`
	Size      uint64 `json:"size"`
	Created   int64  `json:"created"`
	Modified  int64  `json:"modified"`
	Flags     uint16 `json:"flags"`
	SeqNum    uint16 `json:"seq"`
}

func toDoc(m models.MetadataDoc) doc {
	return doc{
		Type:      "metadata",
		DocKey:    uint64(m.DocKey),
		Volume:    uint16(m.Volume),
		Name:      m.Name,
		NameExact: m.Name,
		Path:      m.Path,
		PathExact: m.Path,
		Ext:       m.Ext,
		Size:      m.Size,
		Created:   m.Created.Unix(),
		Modified:  m.Modified.Unix(),
		Flags:     uint16(m.Flags),
		SeqNum:    m.SeqNum,
	}
}
