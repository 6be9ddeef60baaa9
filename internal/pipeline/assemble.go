package pipeline

import (
	"fmt"
	"sort"

	"github.com/joseph-ayodele/submissions-tracker/constants"
	"github.com/joseph-ayodele/submissions-tracker/internal/common"
	"github.com/joseph-ayodele/submissions-tracker/internal/entity"
	"github.com/joseph-ayodele/submissions-tracker/internal/fields"
	"github.com/joseph-ayodele/submissions-tracker/internal/identity"
	"github.com/joseph-ayodele/submissions-tracker/internal/table"
)

// requiredColumns must hold a valid measurement whenever the table has them;
// a row failing any of them is dropped.
var requiredColumns = []string{
	constants.ColumnVolume,
	constants.ColumnQubit,
	constants.ColumnNanodrop,
	constants.ColumnA260280,
}

// Assemble combines the extraction results into one record. Only identity
// fields are mandatory; every other problem becomes a warning.
func Assemble(id identity.Identity, fr fields.Result, tr table.Result) (*entity.Record, []entity.Warning, error) {
	v := common.NewValidator().
		Field("submission_id", id.SubmissionID, common.Required, common.MaxLength(128)).
		Field("uuid", id.UUID, common.Required, common.UUID).
		Field("file_hash", id.FileHash, common.Required, common.SHA256Hex)
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, nil, err
	}

	rec := &entity.Record{
		Submission: entity.Submission{
			SubmissionID:   id.SubmissionID,
			UUID:           id.UUID,
			ShortRef:       id.ShortRef,
			FileHash:       id.FileHash,
			PDFFilename:    id.Filename,
			ScannedAt:      id.ScannedAt,
			ProjectID:      optional(fr, constants.FieldProjectID),
			Owner:          optional(fr, constants.FieldOwner),
			SourceOrganism: optional(fr, constants.FieldSourceOrganism),
			SequencingType: optional(fr, constants.FieldSequencingType),
			SampleType:     optional(fr, constants.FieldSampleType),
		},
	}

	var warnings []entity.Warning
	rec.Samples, warnings = samples(tr)
	rec.TotalSamples = len(rec.Samples)
	if rec.TotalSamples == 0 {
		warnings = append(warnings, entity.Warning{Field: constants.WarningNoSamples, Message: "no sample rows parsed"})
	}
	rec.Info = info(fr)
	return rec, warnings, nil
}

func optional(fr fields.Result, name string) *string {
	if v, ok := fr.Get(name); ok && v != "" {
		return &v
	}
	return nil
}

func samples(tr table.Result) ([]entity.Sample, []entity.Warning) {
	var (
		out      []entity.Sample
		warnings []entity.Warning
	)
	for _, row := range tr.Rows {
		if w, bad := invalidRequired(tr, row); bad {
			warnings = append(warnings, w)
			continue
		}
		s := entity.Sample{
			Index:        len(out) + 1,
			Name:         row.ID,
			VolumeUL:     row.Cell(constants.ColumnVolume).Value,
			QubitConc:    row.Cell(constants.ColumnQubit).Value,
			NanodropConc: row.Cell(constants.ColumnNanodrop).Value,
			A260280:      row.Cell(constants.ColumnA260280).Value,
		}
		ratio := row.Cell(constants.ColumnA260230)
		switch {
		case ratio.Err != nil:
			warnings = append(warnings, entity.Warning{
				Field: constants.ColumnA260230, Row: row.Number,
				Message: fmt.Sprintf("sample %s: %v; stored as null", row.ID, ratio.Err),
			})
		case common.NonNegative(constants.ColumnA260230, ratio.Value) != nil:
			warnings = append(warnings, entity.Warning{
				Field: constants.ColumnA260230, Row: row.Number,
				Message: fmt.Sprintf("sample %s: negative ratio %q; stored as null", row.ID, ratio.Raw),
			})
		default:
			s.A260230 = ratio.Value
		}
		out = append(out, s)
	}
	return out, warnings
}

// invalidRequired reports the first required measurement of row that is
// present in the table but unusable.
func invalidRequired(tr table.Result, row table.Row) (entity.Warning, bool) {
	for _, col := range requiredColumns {
		if !tr.HasColumn(col) {
			continue
		}
		c := row.Cell(col)
		var reason string
		switch {
		case c.Err != nil:
			reason = c.Err.Error()
		case common.NonNegative(col, c.Value) != nil:
			reason = fmt.Sprintf("negative value %q", c.Raw)
		default:
			continue
		}
		return entity.Warning{
			Field:   col,
			Row:     row.Number,
			Message: fmt.Sprintf("sample %s dropped: %s", row.ID, reason),
		}, true
	}
	return entity.Warning{}, false
}

func info(fr fields.Result) []entity.InfoEntry {
	out := make([]entity.InfoEntry, 0, len(fr.Info)+1)
	for k, v := range fr.Info {
		if v == "" {
			continue
		}
		out = append(out, entity.InfoEntry{Key: k, Value: v})
	}
	if notes, ok := fr.Get(constants.FieldNotes); ok && notes != "" {
		if _, dup := fr.Info[constants.FieldNotes]; !dup {
			out = append(out, entity.InfoEntry{Key: constants.FieldNotes, Value: notes})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
