package archive

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eigenbahn/dynix/internal/catalog"
)

type searchResponse struct {
	Response struct {
		NumFound int   `json:"numFound"`
		Start    int   `json:"start"`
		Docs     []doc `json:"docs"`
	} `json:"response"`
}

// doc is one index document. Multi-valued fields arrive as a bare string
// when they hold a single value.
type doc struct {
	Identifier string     `json:"identifier"`
	Title      stringList `json:"title"`
	Creator    stringList `json:"creator"`
	Publisher  stringList `json:"publisher"`
	PublicDate string     `json:"publicdate"`
	Subject    stringList `json:"subject"`
	Collection stringList `json:"collection"`
	ISBN       stringList `json:"isbn"`
	LCCN       stringList `json:"lccn"`
}

type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*l = stringList{one}
		return nil
	}
	var many []any
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected string or array, got %s", data)
	}
	out := make(stringList, 0, len(many))
	for _, v := range many {
		out = append(out, fmt.Sprint(v))
	}
	*l = out
	return nil
}

// item converts a document, filling the placeholders the listing shows for
// missing authors, publishers, title and date.
func (d doc) item() catalog.Item {
	it := catalog.Item{
		ID:          d.Identifier,
		Title:       catalog.Unknown,
		Authors:     orUnknown(d.Creator),
		Publishers:  orUnknown(d.Publisher),
		Subjects:    nonNil(d.Subject),
		Series:      nonNil(d.Collection),
		PubDate:     catalog.UnknownPubDate,
		Identifiers: map[string]string{},
	}
	if len(d.Title) > 0 && d.Title[0] != "" {
		it.Title = d.Title[0]
	}
	it.SortTitle = strings.ToUpper(it.Title)
	if len(d.PublicDate) >= 4 {
		it.PubDate = d.PublicDate[:4]
	}
	if len(d.ISBN) > 0 {
		it.Identifiers["ISBN"] = d.ISBN[0]
	}
	if len(d.LCCN) > 0 {
		it.Identifiers["LCCN"] = d.LCCN[0]
	}
	return it
}

func orUnknown(l stringList) []string {
	if len(l) == 0 {
		return []string{catalog.Unknown}
	}
	return []string(l)
}

func nonNil(l stringList) []string {
	if l == nil {
		return []string{}
	}
	return []string(l)
}
