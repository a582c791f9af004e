// Package report renders a clinician's stored record as CSV, PDF or XLSX.
package report

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"medpassport/internal/equivalency"
	"medpassport/internal/errors"
	"medpassport/internal/store"
	"medpassport/internal/types"
)

// ErrNoData matches, via errors.Is, the error returned when there is nothing to export.
var ErrNoData = errors.NewNotFoundError(errors.ErrCodeNoData, "no data logged yet", nil)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// Formats lists the supported export formats.
var Formats = []Format{FormatCSV, FormatPDF, FormatXLSX}

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatCSV, FormatPDF, FormatXLSX:
		return f, nil
	case "":
		return FormatCSV, nil
	}
	return "", errors.NewValidationError(errors.ErrCodeInvalidFormat,
		fmt.Sprintf("unsupported export format: %s", s), nil).WithContext("supported", Formats)
}

// ContentType is the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Filename is the attachment name for a report generated at t.
func Filename(f Format, t time.Time) string {
	return fmt.Sprintf("medical-passport-%s.%s", t.Format("20060102"), f)
}

// Source is the read side of the store a report needs.
type Source interface {
	store.ProfileStore
	store.LogbookStore
}

// Builder gathers a user's rows and renders them.
type Builder struct {
	source Source
	table  *equivalency.Table
	now    func() time.Time
}

// NewBuilder creates a report builder.
func NewBuilder(source Source, table *equivalency.Table) *Builder {
	return &Builder{source: source, table: table, now: time.Now}
}

// Portfolio is everything stored for one user at export time.
type Portfolio struct {
	Email       string
	GeneratedAt time.Time
	Profile     *types.Profile
	Comparison  *equivalency.Comparison
	Rotations   []types.Rotation
	Procedures  []types.Procedure
	Projects    []types.Project
}

// Empty reports whether there is nothing worth exporting.
func (p Portfolio) Empty() bool {
	return p.Profile == nil && len(p.Rotations) == 0 && len(p.Procedures) == 0 && len(p.Projects) == 0
}

// Report is a rendered export.
type Report struct {
	Data        []byte
	Format      Format
	ContentType string
	Filename    string
}

// Gather loads the portfolio for email. It returns ErrNoData when the user
// has neither a profile nor any logbook rows.
func (b *Builder) Gather(ctx context.Context, email string) (Portfolio, error) {
	email = store.NormalizeEmail(email)
	p := Portfolio{Email: email, GeneratedAt: b.now()}

	profile, err := b.source.GetProfile(ctx, email)
	switch {
	case err == nil:
		p.Profile = &profile
		cmp := b.table.Compare(profile.GlobalTier, profile.SelectedCountries)
		p.Comparison = &cmp
	case stderrors.Is(err, store.ErrNotFound):
	default:
		return Portfolio{}, fmt.Errorf("load profile: %w", err)
	}

	if p.Rotations, err = b.source.ListRotations(ctx, email); err != nil {
		return Portfolio{}, fmt.Errorf("load rotations: %w", err)
	}
	if p.Procedures, err = b.source.ListProcedures(ctx, email); err != nil {
		return Portfolio{}, fmt.Errorf("load procedures: %w", err)
	}
	if p.Projects, err = b.source.ListProjects(ctx, email); err != nil {
		return Portfolio{}, fmt.Errorf("load projects: %w", err)
	}

	if p.Empty() {
		return Portfolio{}, errors.NewNotFoundError(errors.ErrCodeNoData,
			"Nothing to export yet. Save a profile or log a rotation, procedure or project first.", nil).
			WithContext("email", email)
	}
	return p, nil
}

// Build gathers and renders the report for email.
func (b *Builder) Build(ctx context.Context, email string, format Format) (Report, error) {
	p, err := b.Gather(ctx, email)
	if err != nil {
		return Report{}, err
	}
	data, err := Render(p, format)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Data:        data,
		Format:      format,
		ContentType: format.ContentType(),
		Filename:    Filename(format, p.GeneratedAt),
	}, nil
}

// Render writes p in the given format.
func Render(p Portfolio, format Format) ([]byte, error) {
	if p.Empty() {
		return nil, ErrNoData
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatCSV:
		data, err = renderCSV(p)
	case FormatPDF:
		data, err = renderPDF(p)
	case FormatXLSX:
		data, err = renderXLSX(p)
	default:
		_, err = ParseFormat(string(format))
		return nil, err
	}
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeRenderFailed,
			fmt.Sprintf("failed to render %s report", format), err)
	}
	return data, nil
}

// Section names, in the order every format writes them.
const (
	SectionIdentity    = "identity"
	SectionEquivalency = "equivalency"
	SectionRotations   = "rotations"
	SectionProcedures  = "procedures"
	SectionAcademic    = "academic"
)

// Section is one block of the report. The first column of each row is the
// row's field, the rest are its values.
type Section struct {
	Name    string
	Title   string
	Columns []string
	Rows    [][]string
}

// Sections lays the portfolio out as identity, equivalency, rotations,
// procedures and academic, always in that order. Empty sections are kept.
func (p Portfolio) Sections() []Section {
	return []Section{
		p.identitySection(),
		p.equivalencySection(),
		p.rotationSection(),
		p.procedureSection(),
		p.academicSection(),
	}
}

func (p Portfolio) identitySection() Section {
	s := Section{Name: SectionIdentity, Title: "Identity", Columns: []string{"Field", "Value"}}
	s.Rows = append(s.Rows, []string{"email", p.Email})
	if p.Profile != nil {
		s.Rows = append(s.Rows,
			[]string{"global_tier", p.Profile.GlobalTier},
			[]string{"selected_countries", strings.Join(p.Profile.SelectedCountries, "; ")},
		)
		if p.Comparison != nil && p.Comparison.Responsibilities != "" {
			s.Rows = append(s.Rows, []string{"responsibilities", p.Comparison.Responsibilities})
		}
		if p.Profile.Summary != "" {
			s.Rows = append(s.Rows, []string{"summary", p.Profile.Summary})
		}
	}
	s.Rows = append(s.Rows, []string{"generated_at", p.GeneratedAt.UTC().Format(time.RFC3339)})
	return s
}

func (p Portfolio) equivalencySection() Section {
	s := Section{Name: SectionEquivalency, Title: "International Equivalency",
		Columns: []string{"Country", "Key", "Title", "Mapped"}}
	if p.Comparison == nil {
		return s
	}
	for _, row := range p.Comparison.Rows {
		s.Rows = append(s.Rows, []string{row.Country, row.Key, row.Title, strconv.FormatBool(row.Mapped)})
	}
	return s
}

func (p Portfolio) rotationSection() Section {
	s := Section{Name: SectionRotations, Title: "Clinical Rotations",
		Columns: []string{"Hospital", "Specialty", "Dates", "Grade", "Description"}}
	for _, r := range p.Rotations {
		s.Rows = append(s.Rows, []string{r.Hospital, r.Specialty, r.Dates, r.Grade, r.Description})
	}
	return s
}

func (p Portfolio) procedureSection() Section {
	s := Section{Name: SectionProcedures, Title: "Procedure Logbook",
		Columns: []string{"Procedure", "Level", "Count"}}
	for _, r := range p.Procedures {
		s.Rows = append(s.Rows, []string{r.Procedure, r.Level, strconv.Itoa(r.Count)})
	}
	return s
}

func (p Portfolio) academicSection() Section {
	s := Section{Name: SectionAcademic, Title: "Academic & QIP",
		Columns: []string{"Type", "Title", "Role", "Year"}}
	for _, r := range p.Projects {
		year := ""
		if r.Year > 0 {
			year = strconv.Itoa(r.Year)
		}
		s.Rows = append(s.Rows, []string{r.Type, r.Title, r.Role, year})
	}
	return s
}
