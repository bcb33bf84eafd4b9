package enums

import "fmt"

// DocumentType mirrors SUMIT accounting document kinds.
type DocumentType string

const (
	DocumentTypeInvoice        DocumentType = "invoice"
	DocumentTypeReceipt        DocumentType = "receipt"
	DocumentTypeInvoiceReceipt DocumentType = "invoice_receipt"
	DocumentTypeOrder          DocumentType = "order"
)

var validDocumentTypes = []DocumentType{
	DocumentTypeInvoice,
	DocumentTypeReceipt,
	DocumentTypeInvoiceReceipt,
	DocumentTypeOrder,
}

func (d DocumentType) String() string {
	return string(d)
}

func (d DocumentType) IsValid() bool {
	for _, candidate := range validDocumentTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDocumentType converts raw input into a DocumentType.
func ParseDocumentType(value string) (DocumentType, error) {
	for _, candidate := range validDocumentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid document type %q", value)
}
