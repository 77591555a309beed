package model

// SubIDCount is the number of sub_id_N fields carried by a postback.
const SubIDCount = 10

// Postback is the normalized form of an inbound tracker notification.
// Every field is "" when the tracker did not send it.
type Postback struct {
	Status            string
	TransactionID     string
	ClickID           string
	CampaignID        string
	CampaignName      string
	OfferName         string
	ConversionRevenue string
	Payout            string
	Currency          string
	Country           string
	Source            string
	CreativeID        string
	LandingName       string
	SubIDs            [SubIDCount]string

	// TxID is the resolved dedup key: transaction_id, then click_id, then a
	// hash of Raw. NoTx marks the hashed fallback.
	TxID string
	NoTx bool

	// Raw is the decoded payload the hash fallback is computed over.
	Raw map[string]any
}

// SubID returns sub_id_n for n in 1..SubIDCount.
func (p Postback) SubID(n int) string {
	if n < 1 || n > SubIDCount {
		return ""
	}
	return p.SubIDs[n-1]
}

// Revenue is the amount recorded in the audit log.
func (p Postback) Revenue() string {
	if p.ConversionRevenue != "" {
		return p.ConversionRevenue
	}
	return p.Payout
}

// PostbackRequest is what the transport hands to the ingestion service.
type PostbackRequest struct {
	RequestID   string
	Kind        string
	Secret      string
	ContentType string
	Body        []byte
}
