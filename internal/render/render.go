// Package render formats postbacks as Telegram HTML messages.
package render

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/osteele/liquid"

	"postback-relay/internal/model"
)

// maxExtraSubIDs caps the sub id footer; postbacks carrying more skip it.
const maxExtraSubIDs = 3

// Renderer turns a normalized postback into message text.
type Renderer interface {
	Render(pb model.Postback) (string, error)
}

const registrationTemplate = `📝 <b>Registration</b>
Campaign: <code>{{ campaign_name | escape | na }}</code>
Offer: <code>{{ offer | escape | na }}</code>
GEO: <code>{{ country | escape | na }}</code>
{%- if source != "" %}
Source: <code>{{ source | escape }}</code>
{%- endif %}
{%- if sub_id_1 != "" %}
Sub1: <code>{{ sub_id_1 | escape }}</code>
{%- endif %}` + txFooter

const depositTemplate = `💰 <b>Deposit</b>
Campaign: <code>{{ campaign_name | escape | na }}</code>
{%- if creative_id != "" %}
Creative: <code>{{ creative_id | escape }}</code>
{%- endif %}
Landing: <code>{{ offer | escape | na }}</code>
Revenue: <b>{{ amount | escape }}</b>
{%- if sub_id_1 != "" %}
Sub1: <code>{{ sub_id_1 | escape }}</code>
{%- endif %}
{%- if country != "" %} | GEO: <code>{{ country | escape }}</code>{% endif %}` + txFooter

const rejectedTemplate = `⛔️ <b>Rejected</b>
Campaign: <code>{{ campaign_name | escape | na }}</code>
{%- if reason != "" %}
Reason: <code>{{ reason | escape }}</code>
{%- endif %}` + txFooter

const txFooter = `
{%- if tx != "" %}
TX: <code>{{ tx | escape }}</code>
{%- endif %}
{%- if has_extras %}
📎 {% for s in extras %}s{{ s.n }}:{{ s.value | escape }}{% unless forloop.last %} | {% endunless %}{% endfor %}
{%- endif %}`

// TemplateRenderer renders one Liquid template per status group. Every
// interpolated value passes through the escape filter.
type TemplateRenderer struct {
	engine    *liquid.Engine
	templates map[Group]*liquid.Template
}

// NewTemplateRenderer parses the message templates.
func NewTemplateRenderer() (*TemplateRenderer, error) {
	engine := liquid.NewEngine()
	engine.RegisterFilter("escape", html.EscapeString)
	engine.RegisterFilter("na", func(s string) string {
		if s == "" {
			return "N/A"
		}
		return s
	})

	r := &TemplateRenderer{
		engine:    engine,
		templates: make(map[Group]*liquid.Template, 3),
	}
	sources := map[Group]string{
		GroupRegistration: registrationTemplate,
		GroupDeposit:      depositTemplate,
		GroupRejected:     rejectedTemplate,
	}
	for group, src := range sources {
		tpl, err := engine.ParseString(src)
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", group, err)
		}
		r.templates[group] = tpl
	}
	return r, nil
}

func (r *TemplateRenderer) Render(pb model.Postback) (string, error) {
	group := NormalizeStatus(pb.Status)
	out, err := r.templates[group].RenderString(bindings(pb))
	if err != nil {
		return "", fmt.Errorf("render %s message: %w", group, err)
	}
	return strings.TrimRight(out, "\n"), nil
}

func bindings(pb model.Postback) liquid.Bindings {
	offer := pb.OfferName
	if offer == "" {
		offer = pb.LandingName
	}

	tx := pb.TxID
	if pb.NoTx && len(tx) > 8 {
		tx = tx[:8] + "... (generated)"
	}

	var extras []map[string]any
	for n := 2; n <= model.SubIDCount; n++ {
		if v := pb.SubID(n); strings.TrimSpace(v) != "" {
			extras = append(extras, map[string]any{"n": strconv.Itoa(n), "value": v})
		}
	}

	return liquid.Bindings{
		"campaign_name": pb.CampaignName,
		"offer":         offer,
		"country":       pb.Country,
		"source":        pb.Source,
		"sub_id_1":      pb.SubID(1),
		"creative_id":   pb.CreativeID,
		"reason":        pb.SubID(2),
		"amount":        FormatAmount(pb.ConversionRevenue, pb.Payout, pb.Currency),
		"tx":            tx,
		"extras":        extras,
		"has_extras":    len(extras) > 0 && len(extras) <= maxExtraSubIDs,
	}
}
