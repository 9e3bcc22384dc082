package barcode

// Format families used to assemble decode hints from configuration toggles.
var (
	ProductFormats    = []Format{FormatUPCA, FormatUPCE, FormatEAN13, FormatEAN8}
	IndustrialFormats = []Format{FormatCode39, FormatCode93, FormatCode128, FormatITF, FormatCodabar}
	QRFormats         = []Format{FormatQR}
	DataMatrixFormats = []Format{FormatDataMatrix}
	AztecFormats      = []Format{FormatAztec}
	PDF417Formats     = []Format{FormatPDF417}
)

// FormatToggles selects symbology families to search for.
type FormatToggles struct {
	Product1D    bool
	Industrial1D bool
	QR           bool
	DataMatrix   bool
	Aztec        bool
	PDF417       bool
}

// DefaultFormatToggles enables the standard 1D and 2D families. Aztec and
// PDF417 are off because they are rarely used and slow down every miss.
func DefaultFormatToggles(standard1D, standard2D bool) FormatToggles {
	return FormatToggles{
		Product1D:    standard1D,
		Industrial1D: standard1D,
		QR:           standard2D,
		DataMatrix:   standard2D,
	}
}

// DecodeFormats returns explicit when non-empty, otherwise the union of the
// toggled families.
func DecodeFormats(explicit []Format, t FormatToggles) []Format {
	if len(explicit) > 0 {
		out := make([]Format, len(explicit))
		copy(out, explicit)
		return out
	}
	var out []Format
	if t.Product1D {
		out = append(out, ProductFormats...)
	}
	if t.Industrial1D {
		out = append(out, IndustrialFormats...)
	}
	if t.QR {
		out = append(out, QRFormats...)
	}
	if t.DataMatrix {
		out = append(out, DataMatrixFormats...)
	}
	if t.Aztec {
		out = append(out, AztecFormats...)
	}
	if t.PDF417 {
		out = append(out, PDF417Formats...)
	}
	return out
}
