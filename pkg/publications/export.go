package publications

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/researchportal/pubportal/pkg/audit"
	"github.com/researchportal/pubportal/pkg/policy"
)

const (
	exportPageSize = 500

	// MaxExportRows caps one export
	MaxExportRows = 20000
)

var exportHeader = []string{
	"ID", "Type", "Title", "Authors", "Venue", "Publisher", "Year", "DOI", "Volume", "Issue",
	"Pages", "ISBN/ISSN", "Indexing", "Quartile", "URL", "Faculty ID", "College", "Institute",
	"Department",
}

func exportRecord(p *Publication) []string {
	return []string{
		strconv.FormatInt(p.ID, 10),
		string(p.Type),
		p.Title,
		p.Authors,
		p.Venue,
		p.Publisher,
		strconv.Itoa(p.Year),
		p.DOI,
		p.Volume,
		p.Issue,
		p.Pages,
		p.ISBNISSN,
		p.Indexing,
		p.Quartile,
		p.URL,
		p.FacultyID,
		p.College,
		p.Institute,
		p.Department,
	}
}

// Export writes the publications actor may see that match q as CSV, a page
// at a time. q.Limit and q.Offset are ignored. It returns the number of rows
// written.
func (s *Service) Export(ctx context.Context, actor policy.Actor, q ListQuery, w io.Writer) (int, error) {
	if len(q.IDs) > 0 {
		if err := checkIDs(q.IDs); err != nil {
			return 0, err
		}
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return 0, fmt.Errorf("failed to write CSV header: %w", err)
	}

	sc := s.engine.PublicationFilter(actor)
	written := 0
	for offset := 0; written < MaxExportRows; offset += exportPageSize {
		q.Limit, q.Offset = exportPageSize, offset
		page, _, err := s.repo.List(ctx, sc, q)
		if err != nil {
			return written, err
		}
		for i := range page {
			if written == MaxExportRows {
				break
			}
			if err := writer.Write(exportRecord(&page[i])); err != nil {
				return written, fmt.Errorf("failed to write CSV row: %w", err)
			}
			written++
		}
		if len(page) < exportPageSize {
			break
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return written, fmt.Errorf("failed to flush CSV: %w", err)
	}

	s.audit.Log(ctx, audit.NewEvent(audit.EventTypePublicationExport, audit.EventStatusSuccess, actor).
		On(audit.ResourceTypePublication, 0).
		WithMetadata("rows", written))
	return written, nil
}
