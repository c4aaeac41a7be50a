package accounting

// myobInvoice is the document shape pushed to the MYOB sale invoice endpoint.
type myobInvoice struct {
	Number        string `json:"Number"`
	ExternalRef   string `json:"ExternalReference,omitempty"`
	TotalAmount   string `json:"TotalAmount"`
	CurrencyCode  string `json:"CurrencyCode"`
	InvoiceStatus string `json:"Status"`
}

// myobInvoiceResponse is the success envelope returned by MYOB.
type myobInvoiceResponse struct {
	UID    string `json:"UID"`
	Number string `json:"Number"`
}

// myobErrorResponse is the error envelope returned on failures.
type myobErrorResponse struct {
	Errors []struct {
		Name    string `json:"Name"`
		Message string `json:"Message"`
	} `json:"Errors"`
}

func (r *myobErrorResponse) text() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}
