package dataset

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"speech-analytics-go/internal/types"
)

const (
	speakersSheet = "Speakers"
	historySheet  = "History"
)

// WriteReport saves a result as a workbook: one row per speaker with stats,
// 0-1 scores, 0-10 ratings and suggestions, plus a per-speaker history
// sheet when a historical comparison is present.
func WriteReport(path string, res types.AnalysisResult) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(speakersSheet)
	if err != nil {
		return fmt.Errorf("new sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	rows := [][]any{{
		"speaker", "word_count", "total_duration", "words_per_minute", "average_confidence", "pauses",
		"pace_score", "confidence_score", "pause_score", "overall_score", "overall_rating", "suggestions",
	}}
	for i, st := range res.SpeakerAnalysis.SpeakerStats {
		row := []any{st.Speaker, st.WordCount, st.TotalDuration, types.Round2(st.WordsPerMinute), types.Round2(st.AverageConfidence), len(st.Pauses)}
		if i < len(res.Comparison.SpeakerScores) {
			sc := res.Comparison.SpeakerScores[i]
			row = append(row, types.Round2(sc.PaceScore), types.Round2(sc.ConfidenceScore), types.Round2(sc.PauseScore),
				types.Round2(sc.OverallScore), sc.Rating.Overall, strings.Join(sc.Suggestions, "\n"))
		}
		rows = append(rows, row)
	}
	if err := writeRows(f, speakersSheet, rows); err != nil {
		return err
	}

	if hc := res.Comparison.HistoricalComparison; hc != nil {
		if _, err := f.NewSheet(historySheet); err != nil {
			return fmt.Errorf("new sheet: %w", err)
		}
		hrows := [][]any{{"speaker", "current_pace", "historical_avg_pace", "difference", "average_historical_score", "trend"}}
		for _, sc := range hc.Speakers {
			hrows = append(hrows, []any{sc.Speaker, types.Round2(sc.CurrentPace), types.Round2(sc.HistoricalAvgPace),
				types.Round2(sc.Difference), types.Round2(sc.AverageHistoricalScore), sc.Trend})
		}
		if err := writeRows(f, historySheet, hrows); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// ExportHistory writes the records of one comparison key, one row per
// record and speaker.
func ExportHistory(path, key string, recs []types.HistoricalRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(historySheet)
	if err != nil {
		return fmt.Errorf("new sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	rows := [][]any{{"key", "id", "timestamp", "overall_score", "total_duration", "speaker", "pace", "speaker_duration", "speaker_score"}}
	for _, r := range recs {
		if len(r.Speakers) == 0 {
			rows = append(rows, []any{key, r.ID, r.Timestamp.Format(time.RFC3339), types.Round2(r.OverallScore), r.TotalDuration})
			continue
		}
		for _, s := range r.Speakers {
			rows = append(rows, []any{key, r.ID, r.Timestamp.Format(time.RFC3339), types.Round2(r.OverallScore), r.TotalDuration,
				s.Speaker, types.Round2(s.Pace), s.TotalDuration, types.Round2(s.OverallScore)})
		}
	}
	if err := writeRows(f, historySheet, rows); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, axis, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

