// Package patient defines the patient record moved between the two systems
// and the parser that recovers it from OCR'd screen text.
package patient

import (
	"fmt"
	"strings"
	"time"
)

// Sex codes as the analysis platform expects them.
const (
	SexMale   = "M"
	SexFemale = "F"
)

// Patient is the identity extracted from the practice-management screen (or
// supplied manually in the flow file). BirthDate and CaptureDate are
// yyyy-mm-dd strings.
type Patient struct {
	ChartNo     string `json:"chart_no"`
	FamilyName  string `json:"family_name"`
	GivenName   string `json:"given_name"`
	BirthDate   string `json:"birth_date"`
	Sex         string `json:"sex"`
	Phone       string `json:"phone,omitempty"`
	Address     string `json:"address,omitempty"`
	CaptureDate string `json:"capture_date"`
}

// FullName returns the display name in Korean order, family name first.
func (p *Patient) FullName() string {
	return p.FamilyName + p.GivenName
}

// Complete reports whether the record carries enough identity to register
// the patient on the analysis platform.
func (p *Patient) Complete() bool {
	return p.ChartNo != "" && p.GivenName != "" && p.BirthDate != ""
}

// ReportName returns the archive filename for this patient's report on the
// given date: <name>_<chart>_<YYYYMMDD>.pdf.
func (p *Patient) ReportName(t time.Time) string {
	return fmt.Sprintf("%s_%s_%s.pdf", p.FullName(), p.ChartNo, t.Format("20060102"))
}

// SplitName splits a Korean full name: the first rune is the family name,
// the remainder the given name.
func SplitName(full string) (family, given string) {
	runes := []rune(strings.TrimSpace(full))
	if len(runes) == 0 {
		return "", ""
	}
	if len(runes) == 1 {
		return string(runes), ""
	}
	return string(runes[0]), string(runes[1:])
}

// Merge fills empty fields of p from other, leaving populated fields
// untouched. Manual flow-file overrides win over OCR results this way.
func (p *Patient) Merge(other *Patient) {
	if p.ChartNo == "" {
		p.ChartNo = other.ChartNo
	}
	if p.FamilyName == "" && p.GivenName == "" {
		p.FamilyName, p.GivenName = other.FamilyName, other.GivenName
	}
	if p.BirthDate == "" {
		p.BirthDate = other.BirthDate
	}
	if p.Sex == "" {
		p.Sex = other.Sex
	}
	if p.Phone == "" {
		p.Phone = other.Phone
	}
	if p.Address == "" {
		p.Address = other.Address
	}
	if p.CaptureDate == "" {
		p.CaptureDate = other.CaptureDate
	}
}
