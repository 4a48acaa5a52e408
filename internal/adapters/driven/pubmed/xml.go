package pubmed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
)

// inlineText collects the character data of an element and its children,
// dropping inline markup such as <i> and <sup>.
type inlineText string

// UnmarshalXML implements xml.Unmarshaler.
func (t *inlineText) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	var b strings.Builder
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch v := tok.(type) {
		case xml.CharData:
			b.Write(v)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				*t = inlineText(strings.Join(strings.Fields(b.String()), " "))
				return nil
			}
			depth--
		}
	}
}

type pubmedArticleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	MedlineCitation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			Journal struct {
				Title           string `xml:"Title"`
				ISOAbbreviation string `xml:"ISOAbbreviation"`
				JournalIssue    struct {
					Volume  string `xml:"Volume"`
					PubDate struct {
						Year        string `xml:"Year"`
						MedlineDate string `xml:"MedlineDate"`
					} `xml:"PubDate"`
				} `xml:"JournalIssue"`
			} `xml:"Journal"`
			ArticleTitle inlineText `xml:"ArticleTitle"`
			Pagination   struct {
				MedlinePgn string `xml:"MedlinePgn"`
			} `xml:"Pagination"`
			Abstract struct {
				Texts []abstractText `xml:"AbstractText"`
			} `xml:"Abstract"`
			AuthorList struct {
				Authors []struct {
					LastName       string `xml:"LastName"`
					Initials       string `xml:"Initials"`
					CollectiveName string `xml:"CollectiveName"`
				} `xml:"Author"`
			} `xml:"AuthorList"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
	PubmedData struct {
		ArticleIDs []struct {
			Type  string `xml:"IdType,attr"`
			Value string `xml:",chardata"`
		} `xml:"ArticleIdList>ArticleId"`
	} `xml:"PubmedData"`
}

type abstractText struct {
	Label string `xml:"Label,attr"`
	Text  inlineText
}

// UnmarshalXML keeps the Label attribute and flattens the body.
func (a *abstractText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "Label" {
			a.Label = attr.Value
		}
	}
	return a.Text.UnmarshalXML(d, start)
}

var yearRe = regexp.MustCompile(`\b(19|20)\d{2}\b`)

func parseArticles(body []byte) ([]pubmedArticle, error) {
	var set pubmedArticleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, err
	}
	return set.Articles, nil
}

// toResult converts a record into an external search result.
func (a *pubmedArticle) toResult() domain.RetrievalResult {
	art := &a.MedlineCitation.Article
	pmid := strings.TrimSpace(a.MedlineCitation.PMID)

	meta := domain.PaperMetadata{
		DocumentID:  "pmid:" + pmid,
		Title:       strings.TrimSuffix(string(art.ArticleTitle), "."),
		Venue:       art.Journal.ISOAbbreviation,
		Volume:      art.Journal.JournalIssue.Volume,
		Pages:       art.Pagination.MedlinePgn,
		ExternalID:  pmid,
		QualityFlag: domain.QualityHigh,
	}
	if meta.Venue == "" {
		meta.Venue = art.Journal.Title
	}

	date := art.Journal.JournalIssue.PubDate
	if y, err := strconv.Atoi(date.Year); err == nil {
		meta.Year = y
	} else if m := yearRe.FindString(date.MedlineDate); m != "" {
		meta.Year, _ = strconv.Atoi(m)
	}

	for _, au := range art.AuthorList.Authors {
		name := strings.TrimSpace(au.LastName + " " + au.Initials)
		if name == "" {
			name = au.CollectiveName
		}
		if name != "" {
			meta.Authors = append(meta.Authors, name)
		}
	}
	if len(meta.Authors) > 0 {
		meta.FirstAuthor = meta.Authors[0]
	}

	for _, id := range a.PubmedData.ArticleIDs {
		switch id.Type {
		case "pmc":
			meta.PMCID = strings.TrimSpace(id.Value)
		case "doi":
			meta.DOI = strings.TrimSpace(id.Value)
		}
	}

	abstract := formatAbstract(art.Abstract.Texts)
	text := abstract
	if text == "" {
		text = meta.Title
	}
	return domain.RetrievalResult{
		Text:     text,
		Abstract: abstract,
		Metadata: meta,
		Tier:     domain.TierExternalSearch,
	}
}

func formatAbstract(parts []abstractText) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		text := string(p.Text)
		if text == "" {
			continue
		}
		if p.Label != "" {
			text = p.Label + ": " + text
		}
		out = append(out, text)
	}
	return strings.Join(out, "\n")
}

// bodyText extracts the paragraphs and section titles under <body> of a
// JATS article, one per line.
func bodyText(data []byte) (string, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.Strict = false

	var (
		b      strings.Builder
		inBody int
		block  strings.Builder
	)
	flush := func() {
		if text := strings.Join(strings.Fields(block.String()), " "); text != "" {
			b.WriteString(text)
			b.WriteString("\n\n")
		}
		block.Reset()
	}

	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch v := tok.(type) {
		case xml.StartElement:
			if v.Name.Local == "body" {
				inBody++
			}
		case xml.EndElement:
			switch v.Name.Local {
			case "body":
				inBody--
				flush()
			case "p", "title":
				if inBody > 0 {
					flush()
				}
			}
		case xml.CharData:
			if inBody > 0 {
				block.Write(v)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
