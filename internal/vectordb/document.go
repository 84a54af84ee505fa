package vectordb

// Well-known metadata keys set on catalog documents.
const (
	// MetaPrimaryColumn names the metadata field holding the catalog item key.
	MetaPrimaryColumn = "primary_column"
	// MetaFullPath is the stored image path of an image document.
	MetaFullPath = "full_path"
	// MetaSource records where a document was ingested from.
	MetaSource = "source"
)

// Document represents a piece of content to be stored and searched.
// Embedding may be left empty for text collections; the index embeds the
// content on insert.
type Document struct {
	ID        string
	Content   string
	Metadata  map[string]string
	Embedding []float32
}

// PrimaryKey returns the catalog item key of the document, i.e. the value of
// the metadata field named by primary_column.
func (d Document) PrimaryKey() string {
	col := d.Metadata[MetaPrimaryColumn]
	if col == "" {
		return ""
	}
	return d.Metadata[col]
}

// SearchResult pairs a document with its similarity score.
type SearchResult struct {
	Document   Document
	Similarity float32
}

// TextCollection is the name of a company's catalog text collection.
func TextCollection(companyID string) string {
	return companyID
}

// ImageCollection is the name of a company's catalog image collection.
func ImageCollection(companyID string) string {
	return companyID + "-image"
}
