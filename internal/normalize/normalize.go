// Package normalize turns raw postback bodies into model.Postback values.
package normalize

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"mime"
	"net/url"
	"strconv"
	"strings"

	"postback-relay/internal/model"
)

const (
	contentTypeForm = "application/x-www-form-urlencoded"
	contentTypeJSON = "application/json"
)

// fallbackTxLen is the number of hex characters kept from the payload hash.
const fallbackTxLen = 32

// Parse decodes body according to contentType and extracts the postback
// fields. It never fails: an unreadable body yields an empty payload.
func Parse(contentType string, body []byte) model.Postback {
	return Extract(Decode(contentType, body))
}

// Decode returns the flat payload map for a request body.
func Decode(contentType string, body []byte) map[string]any {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}

	switch mediaType {
	case contentTypeForm:
		return decodeQuery(body, true)
	case contentTypeJSON:
		return decodeJSON(body)
	default:
		return decodeQuery(body, false)
	}
}

// Extract maps a decoded payload onto the fixed postback schema and resolves
// the transaction id.
func Extract(raw map[string]any) model.Postback {
	if raw == nil {
		raw = map[string]any{}
	}
	field := func(key string) string {
		return stringValue(raw[key])
	}

	pb := model.Postback{
		Status:            strings.ToLower(field("status")),
		TransactionID:     field("transaction_id"),
		ClickID:           field("click_id"),
		CampaignID:        field("campaign_id"),
		CampaignName:      field("campaign_name"),
		OfferName:         field("offer_name"),
		ConversionRevenue: field("conversion_revenue"),
		Payout:            field("payout"),
		Currency:          field("currency"),
		Country:           field("country"),
		Source:            field("source"),
		CreativeID:        field("creative_id"),
		LandingName:       field("landing_name"),
		Raw:               raw,
	}
	for i := range pb.SubIDs {
		pb.SubIDs[i] = field("sub_id_" + strconv.Itoa(i+1))
	}

	switch {
	case pb.TransactionID != "":
		pb.TxID = pb.TransactionID
	case pb.ClickID != "":
		pb.TxID = pb.ClickID
	default:
		pb.TxID = PayloadHash(raw)
		pb.NoTx = true
	}

	return pb
}

// PayloadHash is the deterministic transaction id for payloads that carry
// neither transaction_id nor click_id.
func PayloadHash(raw map[string]any) string {
	sum := sha256.Sum256(canonicalJSON(raw))
	return hex.EncodeToString(sum[:])[:fallbackTxLen]
}

// decodeQuery keeps the first value per key. Blank values survive only for
// declared form bodies.
func decodeQuery(body []byte, keepBlank bool) map[string]any {
	out := map[string]any{}
	values, err := url.ParseQuery(string(body))
	if err != nil && len(values) == 0 {
		return out
	}
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		if !keepBlank {
			vals = nonBlank(vals)
			if len(vals) == 0 {
				continue
			}
		}
		out[key] = vals[0]
	}
	return out
}

func nonBlank(vals []string) []string {
	out := vals[:0:0]
	for _, v := range vals {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func decodeJSON(body []byte) map[string]any {
	out := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return map[string]any{}
	}
	return out
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
