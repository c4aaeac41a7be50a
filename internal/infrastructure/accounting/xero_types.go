package accounting

// xeroInvoice is the document shape pushed to the Xero Invoices endpoint.
type xeroInvoice struct {
	Type          string `json:"Type"`
	InvoiceNumber string `json:"InvoiceNumber"`
	Reference     string `json:"Reference,omitempty"`
	CurrencyCode  string `json:"CurrencyCode"`
	Total         string `json:"Total"`
	Status        string `json:"Status"`
}

// xeroInvoiceRequest wraps invoices for the batch endpoint. We always send
// exactly one document per call.
type xeroInvoiceRequest struct {
	Invoices []xeroInvoice `json:"Invoices"`
}

// xeroInvoiceResponse is the success envelope returned by Xero.
type xeroInvoiceResponse struct {
	Invoices []struct {
		InvoiceID     string `json:"InvoiceID"`
		InvoiceNumber string `json:"InvoiceNumber"`
	} `json:"Invoices"`
}

// xeroErrorResponse is the error envelope returned on 4xx responses.
type xeroErrorResponse struct {
	Message string `json:"Message"`
	Detail  string `json:"Detail"`
}

func (r *xeroErrorResponse) text() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Detail
}
