package constants

import (
	"fmt"
	"strings"
)

// DocumentKind selects the storage namespace of an archived upload.
type DocumentKind string

const (
	DocumentInvoicePDF DocumentKind = "PDF"
	DocumentReportCSV  DocumentKind = "CSV"
)

// StoragePrefixes maps each document kind to its object key prefix.
var StoragePrefixes = map[DocumentKind]string{
	DocumentInvoicePDF: "facturas/",
	DocumentReportCSV:  "csv/",
}

// AllowedExtensions holds the accepted upload extensions per document kind.
var AllowedExtensions = map[DocumentKind]string{
	DocumentInvoicePDF: "pdf",
	DocumentReportCSV:  "csv",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ExportFileName names a rated-results download after its reporting period.
func ExportFileName(period int, ext string) string {
	return fmt.Sprintf("scales_%d.%s", period, NormalizeExt(ext))
}
