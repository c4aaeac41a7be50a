package accounting

// quickBooksInvoice is the document shape pushed to QuickBooks Online.
type quickBooksInvoice struct {
	DocNumber    string             `json:"DocNumber"`
	TotalAmt     string             `json:"TotalAmt"`
	CurrencyRef  quickBooksRef      `json:"CurrencyRef"`
	PrivateNote  string             `json:"PrivateNote,omitempty"`
	CustomerMemo *quickBooksMemoRef `json:"CustomerMemo,omitempty"`
}

type quickBooksRef struct {
	Value string `json:"value"`
}

type quickBooksMemoRef struct {
	Value string `json:"value"`
}

// quickBooksInvoiceResponse is the success envelope returned by QuickBooks.
type quickBooksInvoiceResponse struct {
	Invoice struct {
		ID        string `json:"Id"`
		DocNumber string `json:"DocNumber"`
	} `json:"Invoice"`
}

// quickBooksErrorResponse is the fault envelope returned on errors.
type quickBooksErrorResponse struct {
	Fault struct {
		Error []struct {
			Message string `json:"Message"`
			Detail  string `json:"Detail"`
		} `json:"Error"`
	} `json:"Fault"`
}

func (r *quickBooksErrorResponse) text() string {
	if len(r.Fault.Error) == 0 {
		return ""
	}
	if r.Fault.Error[0].Message != "" {
		return r.Fault.Error[0].Message
	}
	return r.Fault.Error[0].Detail
}
