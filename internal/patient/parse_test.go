package patient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBannerLine(t *testing.T) {
	text := "홍길동(남 25Y 3M) Chart No. 10482\n1999-02-14\n010-1234-5678"

	p := ParseOCRText(text)

	assert.Equal(t, "홍", p.FamilyName)
	assert.Equal(t, "길동", p.GivenName)
	assert.Equal(t, "10482", p.ChartNo)
	assert.Equal(t, "1999-02-14", p.BirthDate)
	assert.Equal(t, SexMale, p.Sex)
	assert.Equal(t, "010-1234-5678", p.Phone)
}

func TestParseLabeledFields(t *testing.T) {
	text := "=== 진료 기록 ===\n성명: 김영희\n차트번호: 77\n생년월일: 1985.7.3\n전화: 01087654321"

	p := ParseOCRText(text)

	assert.Equal(t, "김", p.FamilyName)
	assert.Equal(t, "영희", p.GivenName)
	assert.Equal(t, "77", p.ChartNo)
	assert.Equal(t, "1985-07-03", p.BirthDate)
	assert.Equal(t, "01087654321", p.Phone)
}

// The first line always wins the name search, even when it is not a
// patient banner: a leading Hangul word followed by a space is taken as
// the name before any labeled field is considered.
func TestParseFirstLineBeatsLabels(t *testing.T) {
	p := ParseOCRText("홍길동(남 25Y 0M)\n성명: 김영희")
	assert.Equal(t, "홍길동", p.FullName())

	p = ParseOCRText("진료 기록\n성명: 김영희")
	assert.Equal(t, "진료", p.FullName())
}

func TestParseKoreanDateForm(t *testing.T) {
	p := ParseOCRText("이순신님\n1970년 1월 5일")

	assert.Equal(t, "1970-01-05", p.BirthDate)
	assert.Equal(t, "이순신", p.FullName())
}

func TestParseSexFromResidentNumber(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"male check digit", "박민수\n900101-1234567", SexMale},
		{"female check digit", "박민수\n900101-2234567", SexFemale},
		{"header beats resident number", "박민수(여 30Y 0M)\n900101-1234567", SexFemale},
		{"no marker", "박민수", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseOCRText(tc.text).Sex)
		})
	}
}

func TestParseMultiLineAddress(t *testing.T) {
	text := "홍길동(남 25Y 0M)\n주소: 서울특별시 강남구\n테헤란로 123\n전화: 010-1234-5678"

	p := ParseOCRText(text)

	assert.Equal(t, "서울특별시 강남구 테헤란로 123", p.Address)
}

func TestParseEmptyText(t *testing.T) {
	p := ParseOCRText("   \n\n  ")

	require.NotNil(t, p)
	assert.False(t, p.Complete())
	assert.Empty(t, p.GivenName)
}

func TestParseComplete(t *testing.T) {
	p := ParseOCRText("홍길동(남 25Y 0M) Chart No. 10482\n1999-02-14")

	assert.True(t, p.Complete())
}
