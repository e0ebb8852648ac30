package publications

import (
	"strings"
	"time"

	"github.com/researchportal/pubportal/pkg/policy"
)

// Type is the kind of publication
type Type string

const (
	TypeJournal     Type = "journal"
	TypeConference  Type = "conference"
	TypeBookChapter Type = "book_chapter"
)

// AllTypes returns every publication type
func AllTypes() []Type {
	return []Type{TypeJournal, TypeConference, TypeBookChapter}
}

// Valid reports whether t is a known type
func (t Type) Valid() bool {
	switch t {
	case TypeJournal, TypeConference, TypeBookChapter:
		return true
	}
	return false
}

// MaxBulkIDs caps one bulk delete or selected export
const MaxBulkIDs = 500

// Publication is a stored publication
type Publication struct {
	ID         int64     `json:"id"`
	Type       Type      `json:"type"`
	Title      string    `json:"title"`
	Authors    string    `json:"authors"`
	Venue      string    `json:"venue"`
	Publisher  string    `json:"publisher,omitempty"`
	Year       int       `json:"year"`
	DOI        string    `json:"doi,omitempty"`
	Volume     string    `json:"volume,omitempty"`
	Issue      string    `json:"issue,omitempty"`
	Pages      string    `json:"pages,omitempty"`
	ISBNISSN   string    `json:"isbn_issn,omitempty"`
	Indexing   string    `json:"indexing,omitempty"`
	Quartile   string    `json:"quartile,omitempty"`
	URL        string    `json:"url,omitempty"`
	FacultyID  string    `json:"faculty_id"`
	OwnerID    int64     `json:"owner_id"`
	College    string    `json:"college"`
	Institute  string    `json:"institute"`
	Department string    `json:"department"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Paper returns the policy view of p
func (p *Publication) Paper() policy.Paper {
	return policy.Paper{
		FacultyID:  p.FacultyID,
		College:    p.College,
		Institute:  p.Institute,
		Department: p.Department,
	}
}

// Fields are the descriptive, editable attributes of a publication
type Fields struct {
	Type      Type   `json:"type" validate:"required,oneof=journal conference book_chapter"`
	Title     string `json:"title" validate:"required,max=500"`
	Authors   string `json:"authors" validate:"required,max=2000"`
	Venue     string `json:"venue" validate:"required,max=500"`
	Publisher string `json:"publisher" validate:"max=255"`
	Year      int    `json:"year" validate:"required,gte=1900,lte=2100"`
	DOI       string `json:"doi" validate:"max=255"`
	Volume    string `json:"volume" validate:"max=32"`
	Issue     string `json:"issue" validate:"max=32"`
	Pages     string `json:"pages" validate:"max=32"`
	ISBNISSN  string `json:"isbn_issn" validate:"max=32"`
	Indexing  string `json:"indexing" validate:"omitempty,oneof=scopus sci wos ugc other"`
	Quartile  string `json:"quartile" validate:"omitempty,oneof=Q1 Q2 Q3 Q4"`
	URL       string `json:"url" validate:"omitempty,url,max=1000"`
}

func (f *Fields) normalize() {
	f.Type = Type(strings.ToLower(strings.TrimSpace(string(f.Type))))
	for _, s := range []*string{&f.Title, &f.Authors, &f.Venue, &f.Publisher, &f.DOI,
		&f.Volume, &f.Issue, &f.Pages, &f.ISBNISSN, &f.URL} {
		*s = strings.TrimSpace(*s)
	}
	f.Indexing = strings.ToLower(strings.TrimSpace(f.Indexing))
	f.Quartile = strings.ToUpper(strings.TrimSpace(f.Quartile))
}

// check applies the rules that depend on the publication type
func (f *Fields) check(verr *policy.ValidationError) {
	switch f.Type {
	case TypeJournal:
		if f.ISBNISSN == "" {
			verr.Add("isbn_issn", "is required for journal papers")
		}
	case TypeBookChapter:
		if f.Publisher == "" {
			verr.Add("publisher", "is required for book chapters")
		}
		if f.Quartile != "" {
			verr.Add("quartile", "does not apply to book chapters")
		}
	case TypeConference:
		if f.Quartile != "" {
			verr.Add("quartile", "does not apply to conference papers")
		}
	}
}

func (f *Fields) apply(p *Publication) {
	p.Type = f.Type
	p.Title = f.Title
	p.Authors = f.Authors
	p.Venue = f.Venue
	p.Publisher = f.Publisher
	p.Year = f.Year
	p.DOI = f.DOI
	p.Volume = f.Volume
	p.Issue = f.Issue
	p.Pages = f.Pages
	p.ISBNISSN = f.ISBNISSN
	p.Indexing = f.Indexing
	p.Quartile = f.Quartile
	p.URL = f.URL
}

// Draft is a publication to be uploaded. FacultyID names the owner and
// defaults to the uploader.
type Draft struct {
	Fields
	FacultyID string `json:"faculty_id" validate:"omitempty,max=64"`
}

// ListQuery narrows a listing inside the actor's visibility scope
type ListQuery struct {
	Type       Type
	YearFrom   int
	YearTo     int
	College    string
	Institute  string
	Department string
	FacultyID  string
	Search     string
	IDs        []int64
	Limit      int
	Offset     int
}

// Row is a publication with the actions the actor has on it
type Row struct {
	Publication
	Actions policy.RowActions `json:"actions"`
}

// ListResult is one page of publications
type ListResult struct {
	Publications []Row `json:"publications"`
	Total        int   `json:"total"`
	Limit        int   `json:"limit"`
	Offset       int   `json:"offset"`
}

// BulkDeleteFailure is one id a bulk delete skipped
type BulkDeleteFailure struct {
	ID    int64  `json:"id"`
	Error string `json:"error"`
}

// BulkDeleteResult summarizes a bulk delete
type BulkDeleteResult struct {
	Deleted []int64             `json:"deleted"`
	Failed  []BulkDeleteFailure `json:"failed"`
}
