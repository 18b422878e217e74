package model

import "strings"

// GenericRecord is a schema-agnostic map for any data source
type GenericRecord map[string]interface{}

// Clone returns a shallow copy of the record
func (r GenericRecord) Clone() GenericRecord {
	out := make(GenericRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RawRecord is a record as received from a source, before cleaning.
type RawRecord struct {
	Source string        `json:"source"`
	Index  int           `json:"index"`
	Fields GenericRecord `json:"fields"`
}

// SourceType is the on-disk format of a source file
type SourceType string

const (
	SourceCSV  SourceType = "csv"
	SourceJSON SourceType = "json"
)

// Source represents a data source for the pipeline
type Source struct {
	Type SourceType `json:"type"`
	Path string     `json:"path"`
}

// SourceFromPath infers the source type from the file extension.
func SourceFromPath(path string) Source {
	t := SourceCSV
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		t = SourceJSON
	}
	return Source{Type: t, Path: path}
}

// Collection names known to the writer.
const (
	CollectionMovies    = "movies"
	CollectionDirectors = "directors"
)
