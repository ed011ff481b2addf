package scraper

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"orglens/internal/company/models"
)

// The upstream suggest endpoint returns legal entities and sole proprietors
// in separate lists.
type searchPayload struct {
	Companies   []searchItem `json:"ul"`
	Proprietors []searchItem `json:"ip"`
}

type searchItem struct {
	INN              string `json:"inn"`
	OGRN             string `json:"ogrn"`
	RawOGRN          string `json:"raw_ogrn"`
	Name             string `json:"name"`
	RawName          string `json:"raw_name"`
	Inactive         int    `json:"inactive"`
	Address          string `json:"address"`
	Region           string `json:"region"`
	CEOName          string `json:"ceo_name"`
	CEOType          string `json:"ceo_type"`
	MainOKVEDID      string `json:"main_okved_id"`
	OKVEDDescription string `json:"okved_descr"`
	OKPO             string `json:"okpo"`
	// Sometimes a number, sometimes a formatted string.
	AuthorizedCapital any    `json:"authorized_capital"`
	RegDate           string `json:"reg_date"`
	URL               string `json:"url"`
}

func parseSearchPayload(raw []byte) ([]searchItem, error) {
	var payload searchPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return append(payload.Companies, payload.Proprietors...), nil
}

// cleanINN strips the highlight markers the suggest endpoint embeds around
// the matched digits.
func cleanINN(raw string) string {
	return strings.TrimSpace(strings.NewReplacer("!", "", "~", "").Replace(raw))
}

func (item *searchItem) inn() string {
	return cleanINN(item.INN)
}

func (item *searchItem) ogrn() string {
	if item.OGRN != "" {
		return item.OGRN
	}
	return item.RawOGRN
}

func (item *searchItem) name() string {
	if item.RawName != "" {
		return item.RawName
	}
	return item.Name
}

func (item *searchItem) status() models.Status {
	if item.Inactive != 0 {
		return models.StatusLiquidated
	}
	return models.StatusActive
}

func (item *searchItem) record(baseURL string) models.Record {
	record := models.Record{
		INN:              item.inn(),
		OGRN:             item.ogrn(),
		Name:             item.name(),
		Status:           item.status(),
		Address:          item.Address,
		Region:           item.Region,
		CEOName:          item.CEOName,
		CEOTitle:         item.CEOType,
		OKVEDCode:        item.MainOKVEDID,
		OKVEDName:        item.OKVEDDescription,
		OKPO:             item.OKPO,
		Capital:          formatCapital(item.AuthorizedCapital),
		RegistrationDate: item.RegDate,
	}
	if item.URL != "" {
		record.URL = baseURL + item.URL
	}
	return record
}

func (item *searchItem) searchResult(baseURL string) models.SearchResult {
	result := models.SearchResult{
		INN:     item.inn(),
		OGRN:    item.ogrn(),
		Name:    item.name(),
		Address: item.Address,
		CEOName: item.CEOName,
		Status:  item.status(),
	}
	if item.URL != "" {
		result.URL = baseURL + item.URL
	}
	return result
}

func formatCapital(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		if c == "" {
			return ""
		}
		if f, err := strconv.ParseFloat(c, 64); err == nil {
			return groupThousands(f) + " руб."
		}
		return c
	case float64:
		return groupThousands(c) + " руб."
	default:
		return fmt.Sprint(c)
	}
}

// groupThousands renders 1234567 as "1 234 567".
func groupThousands(f float64) string {
	digits := strconv.FormatFloat(f, 'f', 0, 64)
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// pageFields are the extra identifiers only present on the company page, not
// in suggest results.
type pageFields struct {
	KPP      string
	OKPO     string
	OKATO    string
	OKTMO    string
	OKFS     string
	OKOGU    string
	FullName string
}

var clipFieldIDs = map[string]func(*pageFields, string){
	"clip_kpp":       func(f *pageFields, v string) { f.KPP = v },
	"clip_okpo":      func(f *pageFields, v string) { f.OKPO = v },
	"clip_okato":     func(f *pageFields, v string) { f.OKATO = v },
	"clip_oktmo":     func(f *pageFields, v string) { f.OKTMO = v },
	"clip_okfs":      func(f *pageFields, v string) { f.OKFS = v },
	"clip_okogu":     func(f *pageFields, v string) { f.OKOGU = v },
	"clip_name-long": func(f *pageFields, v string) { f.FullName = v },
}

// parseCompanyPage extracts the clip-element identifiers and the legal name
// from a company page. All fields are optional; a page with none of them
// yields an empty result, not an error.
func parseCompanyPage(r io.Reader) (*pageFields, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	fields := &pageFields{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if set, ok := clipFieldIDs[attrValue(n, "id")]; ok {
				set(fields, strings.TrimSpace(nodeText(n)))
			}
			if fields.FullName == "" && attrValue(n, "itemprop") == "legalName" {
				fields.FullName = strings.TrimSpace(nodeText(n))
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return fields, nil
}

// apply overlays the page fields onto a suggest record, producing a new
// record. Suggest values win only where the page had nothing.
func (f *pageFields) apply(record models.Record) models.Record {
	if f.KPP != "" {
		record.KPP = f.KPP
	}
	if f.OKPO != "" {
		record.OKPO = f.OKPO
	}
	if f.OKATO != "" {
		record.OKATO = f.OKATO
	}
	if f.OKTMO != "" {
		record.OKTMO = f.OKTMO
	}
	if f.OKFS != "" {
		record.OKFS = f.OKFS
	}
	if f.OKOGU != "" {
		record.OKOGU = f.OKOGU
	}
	if f.FullName != "" {
		record.FullName = f.FullName
	}
	return record
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}
