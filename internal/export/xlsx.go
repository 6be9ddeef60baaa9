package export

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	sheetSubmissions = "Submissions"
	sheetSamples     = "Samples"
	sheetInfo        = "Info"
)

var (
	submissionHeaders = []any{
		"Submission ID", "Short Ref", "Project", "Owner", "Source Organism",
		"Sequencing Type", "Sample Type", "Samples", "Filename", "Scanned At", "Created At", "File Hash",
	}
	sampleHeaders = []any{
		"Submission ID", "#", "Sample Name", "Volume (uL)", "Qubit (ng/uL)",
		"Nanodrop (ng/uL)", "A260/280", "A260/230",
	}
	infoHeaders = []any{"Submission ID", "Key", "Value"}
)

// ExportXLSX returns a workbook with one sheet each for submissions, samples
// and info entries.
func (s *Service) ExportXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()
	recs, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", sheetSubmissions); err != nil {
		return nil, err
	}
	for _, name := range []string{sheetSamples, sheetInfo} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	subRows := [][]any{submissionHeaders}
	sampleRows := [][]any{sampleHeaders}
	infoRows := [][]any{infoHeaders}
	for _, r := range recs {
		subRows = append(subRows, []any{
			r.SubmissionID, r.ShortRef, str(r.ProjectID), str(r.Owner), str(r.SourceOrganism),
			str(r.SequencingType), str(r.SampleType), r.TotalSamples, r.PDFFilename,
			r.ScannedAt.UTC().Format(time.RFC3339), r.CreatedAt.UTC().Format(time.RFC3339), r.FileHash,
		})
		for _, smp := range r.Samples {
			sampleRows = append(sampleRows, []any{
				r.SubmissionID, smp.Index, smp.Name, num(smp.VolumeUL), num(smp.QubitConc),
				num(smp.NanodropConc), num(smp.A260280), num(smp.A260230),
			})
		}
		for _, e := range r.Info {
			infoRows = append(infoRows, []any{r.SubmissionID, e.Key, e.Value})
		}
	}

	for sheet, rows := range map[string][][]any{
		sheetSubmissions: subRows,
		sheetSamples:     sampleRows,
		sheetInfo:        infoRows,
	} {
		if err := writeRows(f, sheet, rows); err != nil {
			return nil, fmt.Errorf("xlsx %s: %w", sheet, err)
		}
	}

	_ = f.SetColWidth(sheetSubmissions, "A", "A", 28)
	_ = f.SetColWidth(sheetSubmissions, "C", "G", 20)
	_ = f.SetColWidth(sheetSubmissions, "I", "K", 24)
	_ = f.SetColWidth(sheetSubmissions, "L", "L", 66)
	_ = f.SetColWidth(sheetSamples, "A", "A", 28)
	_ = f.SetColWidth(sheetSamples, "C", "C", 20)
	_ = f.SetColWidth(sheetSamples, "D", "H", 14)
	_ = f.SetColWidth(sheetInfo, "A", "B", 28)
	_ = f.SetColWidth(sheetInfo, "C", "C", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"submissions", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func str(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func num(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
