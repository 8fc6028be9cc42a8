package adapter

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/portfolio-sync/internal/config"
	"github.com/portfolio-sync/internal/types"
)

// notionQueryRequest is the body of a database query
type notionQueryRequest struct {
	PageSize    int    `json:"page_size"`
	StartCursor string `json:"start_cursor,omitempty"`
}

// notionQueryResponse is one page of database query results
type notionQueryResponse struct {
	Results    []NotionPage `json:"results"`
	HasMore    bool         `json:"has_more"`
	NextCursor *string      `json:"next_cursor"`
}

// NotionPage is a database row as returned by the query endpoint
type NotionPage struct {
	ID         string                    `json:"id"`
	Archived   bool                      `json:"archived"`
	Properties map[string]NotionProperty `json:"properties"`
}

// NotionProperty is a typed property value; only the field matching Type is set
type NotionProperty struct {
	Type     string             `json:"type"`
	Title    []notionRichText   `json:"title,omitempty"`
	RichText []notionRichText   `json:"rich_text,omitempty"`
	Select   *notionSelect      `json:"select,omitempty"`
	Checkbox bool               `json:"checkbox,omitempty"`
	Number   *decimal.Decimal   `json:"number,omitempty"`
	Date     *notionDate        `json:"date,omitempty"`
	Formula  *notionFormulaItem `json:"formula,omitempty"`
}

type notionRichText struct {
	PlainText string `json:"plain_text"`
}

type notionSelect struct {
	Name string `json:"name"`
}

type notionDate struct {
	Start string `json:"start"`
}

type notionFormulaItem struct {
	Type   string           `json:"type"`
	Number *decimal.Decimal `json:"number,omitempty"`
	String *string          `json:"string,omitempty"`
}

func plainText(parts []notionRichText) string {
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(p.PlainText)
	}
	return strings.TrimSpace(sb.String())
}

// text returns the text of a title, rich_text, select or string formula property
func (p NotionProperty) text() string {
	switch {
	case len(p.Title) > 0:
		return plainText(p.Title)
	case len(p.RichText) > 0:
		return plainText(p.RichText)
	case p.Select != nil:
		return strings.TrimSpace(p.Select.Name)
	case p.Formula != nil && p.Formula.String != nil:
		return strings.TrimSpace(*p.Formula.String)
	default:
		return ""
	}
}

// number returns a number or numeric formula property; absent numbers are zero
func (p NotionProperty) number() decimal.Decimal {
	switch {
	case p.Number != nil:
		return *p.Number
	case p.Formula != nil && p.Formula.Number != nil:
		return *p.Formula.Number
	default:
		return decimal.Zero
	}
}

// ParseHolding converts a database row into a Holding. Missing or
// mistyped properties become zero values; the row is never rejected here.
func ParseHolding(page NotionPage, props config.PropertyNames, defaultWeekday time.Weekday) types.Holding {
	get := func(name string) NotionProperty {
		return page.Properties[name]
	}

	h := types.Holding{
		PageID: page.ID,
		Name:   get(props.Name).text(),
		Code:   get(props.Code).text(),
	}
	if h.Name == "" {
		h.Name = types.DefaultHoldingName
	}

	if category, ok := types.ParseCategory(get(props.Category).text()); ok {
		h.Category = category
	}

	h.AutoBuyEnabled = get(props.AutoBuy).Checkbox
	h.Frequency = types.ParseBuyFrequency(get(props.Frequency).text(), defaultWeekday)

	if d := get(props.LastBuyDate).Date; d != nil && d.Start != "" {
		if parsed, err := types.ParseDate(d.Start); err == nil {
			h.LastBuyDate = &parsed
		}
	}

	h.FixedAmount = nonNegative(get(props.FixedAmount).number())
	h.FixedQuantity = nonNegative(get(props.FixedQuantity).number())
	h.CurrentQuantity = nonNegative(get(props.CurrentQuantity).number())

	return h
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// notionUpdateRequest is the body of a page update
type notionUpdateRequest struct {
	Properties map[string]interface{} `json:"properties"`
}

type numberValue struct {
	Number json.Number `json:"number"`
}

type dateValue struct {
	Date notionDate `json:"date"`
}

// buildUpdateRequest maps a HoldingUpdate onto property values
func buildUpdateRequest(update types.HoldingUpdate, props config.PropertyNames) notionUpdateRequest {
	properties := map[string]interface{}{
		props.Price:        numberValue{Number: json.Number(update.Price.String())},
		props.ExchangeRate: numberValue{Number: json.Number(update.ExchangeRate.String())},
	}
	if update.Quantity != nil {
		properties[props.CurrentQuantity] = numberValue{Number: json.Number(update.Quantity.String())}
	}
	if update.LastBuyDate != nil {
		properties[props.LastBuyDate] = dateValue{Date: notionDate{Start: update.LastBuyDate.String()}}
	}
	return notionUpdateRequest{Properties: properties}
}
