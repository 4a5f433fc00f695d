package patient

import (
	"regexp"
	"strings"
	"time"
)

// The practice-management banner puts the patient summary on its first
// line, e.g. "홍길동(남 25Y 3M) Chart No. 10482 1999-02-14". Parsing
// prefers that line and falls back to scanning the whole capture.

var (
	topNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`([가-힣]{2,4})\s*\(`),      // 홍길동(남 25Y 0M)
		regexp.MustCompile(`([가-힣]{2,4})\s*님`),       // 홍길동님
		regexp.MustCompile(`([가-힣]{2,4})\s*환자`),      // 홍길동환자
		regexp.MustCompile(`^([가-힣]{2,4})\s`),        // leading name
		regexp.MustCompile(`([가-힣]{2,4})\s*\d+Y`),    // 홍길동 25Y
	}
	labeledNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`이름[:\s]*([가-힣]{2,4})`),
		regexp.MustCompile(`성명[:\s]*([가-힣]{2,4})`),
		regexp.MustCompile(`([가-힣]{2,4})\s*\(`),
		regexp.MustCompile(`([가-힣]{2,4})\s*님`),
		regexp.MustCompile(`([가-힣]{2,4})\s*환자`),
		regexp.MustCompile(`^([가-힣]{2,4})$`),
	}

	numericDateRe = regexp.MustCompile(`([0-9]{4})[-./]([0-9]{1,2})[-./]([0-9]{1,2})`)
	koreanDateRe  = regexp.MustCompile(`([0-9]{4})년\s*([0-9]{1,2})월\s*([0-9]{1,2})일`)

	labeledBirthRe = regexp.MustCompile(`(?:생년월일|출생|생일|DOB)[:\s]*([0-9]{4}[-./][0-9]{1,2}[-./][0-9]{1,2})`)

	chartPatterns = []*regexp.Regexp{
		regexp.MustCompile(`Chart No[.\s:]*([0-9]+)`),
		regexp.MustCompile(`차트번호[:\s]*([0-9]+)`),
		regexp.MustCompile(`No[.\s:]*([0-9]+)`),
	}

	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(01[016789]-\d{3,4}-\d{4})`),
		regexp.MustCompile(`(01[016789]\d{7,8})`),
	}

	sexHeaderRe = regexp.MustCompile(`\((남|여)\s*\d+Y`)
	// Resident registration number: the first digit after the hyphen
	// encodes sex (1/3 male, 2/4 female).
	residentNoRe = regexp.MustCompile(`\d{6}[- ]?(\d)\d{6}`)

	addressLabelRe = regexp.MustCompile(`주소|Address`)
	fieldLabelRe   = regexp.MustCompile(`^[가-힣]+[:：]`)
)

// ParseOCRText recovers a patient record from the OCR'd text of a
// practice-management screen capture. Fields that cannot be located stay
// empty; callers decide whether the record is complete enough to proceed.
func ParseOCRText(text string) *Patient {
	p := &Patient{CaptureDate: time.Now().Format("2006-01-02")}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return p
	}
	first := lines[0]

	// Name: first line wins, labeled fields elsewhere as fallback.
	for _, re := range topNamePatterns {
		if m := re.FindStringSubmatch(first); m != nil {
			p.FamilyName, p.GivenName = SplitName(m[1])
			break
		}
	}
	if p.GivenName == "" {
	nameScan:
		for _, line := range lines {
			for _, re := range labeledNamePatterns {
				if m := re.FindStringSubmatch(line); m != nil {
					p.FamilyName, p.GivenName = SplitName(m[1])
					break nameScan
				}
			}
		}
	}

	// Birth date: first line first, then a labeled field, then any bare
	// date anywhere.
	if d := findDate(first); d != "" {
		p.BirthDate = d
	}
	if p.BirthDate == "" {
		for _, line := range lines {
			if m := labeledBirthRe.FindStringSubmatch(line); m != nil {
				p.BirthDate = normalizeDate(m[1])
				break
			}
		}
	}
	if p.BirthDate == "" {
		for _, line := range lines {
			if d := findDate(line); d != "" {
				p.BirthDate = d
				break
			}
		}
	}

	// Chart number: first line first, then anywhere.
	p.ChartNo = findChartNo(first)
	if p.ChartNo == "" {
		for _, line := range lines {
			if p.ChartNo = findChartNo(line); p.ChartNo != "" {
				break
			}
		}
	}

	for _, line := range lines {
		for _, re := range phonePatterns {
			if m := re.FindStringSubmatch(line); m != nil && p.Phone == "" {
				p.Phone = m[1]
			}
		}
	}

	p.Address = findAddress(lines)
	p.Sex = findSex(lines)

	return p
}

func findDate(line string) string {
	if m := numericDateRe.FindStringSubmatch(line); m != nil {
		return normalizeDate(m[0])
	}
	if m := koreanDateRe.FindStringSubmatch(line); m != nil {
		return m[1] + "-" + pad2(m[2]) + "-" + pad2(m[3])
	}
	return ""
}

func normalizeDate(s string) string {
	m := numericDateRe.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	return m[1] + "-" + pad2(m[2]) + "-" + pad2(m[3])
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

func findChartNo(line string) string {
	for _, re := range chartPatterns {
		if m := re.FindStringSubmatch(line); m != nil {
			return m[1]
		}
	}
	return ""
}

// findAddress joins the labeled address line with its continuation lines,
// stopping at the next labeled field.
func findAddress(lines []string) string {
	var parts []string
	capture := false
	for _, line := range lines {
		if capture {
			if fieldLabelRe.MatchString(line) {
				break
			}
			parts = append(parts, line)
			continue
		}
		if addressLabelRe.MatchString(line) {
			addr := line
			if i := strings.Index(line, ":"); i >= 0 {
				addr = strings.TrimSpace(line[i+1:])
			}
			if addr != "" {
				parts = append(parts, addr)
			}
			capture = true
		}
	}
	return strings.Join(parts, " ")
}

// findSex prefers the banner header "(남 25Y …)" and falls back to the
// resident registration number's check digit.
func findSex(lines []string) string {
	for _, line := range lines {
		if m := sexHeaderRe.FindStringSubmatch(line); m != nil {
			if m[1] == "남" {
				return SexMale
			}
			return SexFemale
		}
	}
	for _, line := range lines {
		if m := residentNoRe.FindStringSubmatch(line); m != nil {
			switch m[1] {
			case "1", "3":
				return SexMale
			case "2", "4":
				return SexFemale
			}
		}
	}
	return ""
}
