package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"

	"speech-analytics-go/internal/types"
)

// LoadSegments reads transcript segments from the first sheet of an xlsx
// workbook. Columns are found by header: start, end, speaker, text and
// confidence. Rows whose times do not parse are skipped; a missing
// confidence reads as 1.
func LoadSegments(path string) ([]types.Segment, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}

	startIdx, endIdx, speakerIdx, textIdx, confIdx := -1, -1, -1, -1, -1
	for i, h := range rows[0] {
		switch {
		case headerHas(h, "start", "from", "begin"):
			if startIdx == -1 {
				startIdx = i
			}
		case headerHas(h, "end", "to", "stop"):
			if endIdx == -1 {
				endIdx = i
			}
		case headerHas(h, "speaker", "spk", "who"):
			if speakerIdx == -1 {
				speakerIdx = i
			}
		case headerHas(h, "text", "transcript", "utterance"):
			if textIdx == -1 {
				textIdx = i
			}
		case headerHas(h, "conf"):
			if confIdx == -1 {
				confIdx = i
			}
		}
	}
	if startIdx == -1 || endIdx == -1 {
		return nil, fmt.Errorf("start/end columns not found in header %v", rows[0])
	}

	out := []types.Segment{}
	for i, r := range rows {
		if i == 0 {
			continue
		}
		start, okStart := number(r, startIdx)
		end, okEnd := number(r, endIdx)
		if !okStart || !okEnd {
			continue
		}
		seg := types.Segment{Start: start, End: end, Confidence: 1}
		if c, ok := number(r, confIdx); ok {
			seg.Confidence = c
		}
		seg.Speaker = cell(r, speakerIdx)
		seg.Text = cell(r, textIdx)
		out = append(out, seg)
	}
	return out, nil
}

// headerHas reports whether a word of header h is one of words. Words of three
// letters or more also match as a prefix, so "EndTime" and "confidence" are
// found but "Sender" is not.
func headerHas(h string, words ...string) bool {
	toks := strings.FieldsFunc(strings.ToLower(h), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range toks {
		for _, w := range words {
			if tok == w || (len(w) >= 3 && strings.HasPrefix(tok, w)) {
				return true
			}
		}
	}
	return false
}

func cell(r []string, idx int) string {
	if idx < 0 || idx >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[idx])
}

func number(r []string, idx int) (float64, bool) {
	v := cell(r, idx)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(v, 64)
	return n, err == nil
}
