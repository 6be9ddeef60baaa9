package constants

// Known header fields stored as submission columns.
const (
	FieldProjectID      = "project_id"
	FieldOwner          = "owner"
	FieldSourceOrganism = "source_organism"
	FieldSequencingType = "sequencing_type"
	FieldSampleType     = "sample_type"
	FieldNotes          = "notes"
)

// KnownFields is the fixed set returned by the field extractor.
var KnownFields = []string{
	FieldProjectID,
	FieldOwner,
	FieldSourceOrganism,
	FieldSequencingType,
	FieldSampleType,
	FieldNotes,
}

// Info keys recognised by the field extractor rule table.
const (
	InfoSampleBuffer       = "sample_buffer"
	InfoContainsHumanDNA   = "contains_human_dna"
	InfoFlowCellType       = "flow_cell_type"
	InfoGenomeSize         = "approx_genome_size"
	InfoCoverageNeeded     = "coverage_needed"
	InfoEstimatedFlowCells = "estimated_flow_cells"
	InfoBasecalling        = "basecalling_method"
	InfoFileFormat         = "file_format"
	InfoNotificationEmail  = "notification_email"
	InfoDataDelivery       = "data_delivery"
	InfoExpectedReads      = "expected_reads_per_sample"
	InfoAmpliconLength     = "amplicon_length"
)

// WarningNoSamples is the warning field set on a record with no parsed sample rows.
const WarningNoSamples = "no_samples"

// Sample table columns.
const (
	ColumnIndex      = "index"
	ColumnSampleName = "sample_name"
	ColumnVolume     = "volume_ul"
	ColumnQubit      = "qubit_conc"
	ColumnNanodrop   = "nanodrop_conc"
	ColumnA260280    = "a260_280_ratio"
	ColumnA260230    = "a260_230_ratio"
)

// SequencingTypes are the library preparation kits offered on the form.
var SequencingTypes = []string{
	"Ligation Sequencing with Barcoding (SQK-NBD114.96)",
	"Ligation Sequencing (SQK-LSK114)",
	"Rapid Sequencing with Barcoding (SQK-RBK114.24)",
	"Rapid Sequencing (SQK-RAD114)",
}

// SampleTypes are the sample categories offered on the form.
var SampleTypes = []string{
	"High Molecular Weight DNA / gDNA",
	"Fragmented DNA",
	"PCR Amplicons",
	"cDNA",
}
