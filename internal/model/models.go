package model

// Movie is a cleaned movie record. Only the cleaner builds these.
type Movie struct {
	Title        string   `json:"title" bson:"title" validate:"required"`
	Year         int      `json:"year" bson:"year" validate:"gte=1888"`
	Summary      string   `json:"summary" bson:"summary"`
	ShortSummary string   `json:"short_summary,omitempty" bson:"short_summary,omitempty"`
	ExternalID   string   `json:"external_id" bson:"external_id" validate:"required,len=9,startswith=tt"`
	Runtime      float64  `json:"runtime" bson:"runtime" validate:"gt=0"`
	TrailerURL   string   `json:"trailer_url,omitempty" bson:"trailer_url,omitempty"`
	Rating       float64  `json:"rating" bson:"rating" validate:"gte=0,lte=10"`
	PosterURL    string   `json:"poster_url,omitempty" bson:"poster_url,omitempty"`
	Directors    []string `json:"directors" bson:"directors" validate:"required,min=1,dive,required"`
	Writers      []string `json:"writers" bson:"writers"`
	Cast         []string `json:"cast" bson:"cast"`
}

// ToRecord flattens the movie into a store document. Optional fields are
// omitted when empty.
func (m Movie) ToRecord() GenericRecord {
	rec := GenericRecord{
		"title":       m.Title,
		"year":        m.Year,
		"summary":     m.Summary,
		"external_id": m.ExternalID,
		"runtime":     m.Runtime,
		"rating":      m.Rating,
		"directors":   nonNil(m.Directors),
		"writers":     nonNil(m.Writers),
		"cast":        nonNil(m.Cast),
	}
	if m.ShortSummary != "" {
		rec["short_summary"] = m.ShortSummary
	}
	if m.TrailerURL != "" {
		rec["trailer_url"] = m.TrailerURL
	}
	if m.PosterURL != "" {
		rec["poster_url"] = m.PosterURL
	}
	return rec
}

// Director is an entry of the directors collection
type Director struct {
	Name string `json:"name" bson:"name" validate:"required"`
}

// ToRecord flattens the director into a store document.
func (d Director) ToRecord() GenericRecord {
	return GenericRecord{"name": d.Name}
}

// ViewRow is one row read back from an aggregation view.
type ViewRow struct {
	Key    string   `json:"key"`
	Metric float64  `json:"metric"`
	Titles []string `json:"titles,omitempty"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
