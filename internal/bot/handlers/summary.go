package handlers

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/edgard/zalobot/internal/config"
	"github.com/edgard/zalobot/internal/gemini"
)

var (
	viPrinter = message.NewPrinter(language.Vietnamese)

	itemMoneyKeys    = []string{"giá", "tiền", "price", "total", "amount"}
	summaryMoneyKeys = []string{"tiền", "amount", "total"}
)

// FormatAnalysisSummary renders the reply for a saved analysis: one numbered
// line per item with all of its fields, then the summary block.
func FormatAnalysisSummary(a *gemini.Analysis, msgs config.MessagesConfig) string {
	items := a.Items()
	if len(items) == 0 {
		return msgs.NoItems
	}

	var b strings.Builder
	b.WriteString(msgs.Saved)
	b.WriteString("\n\n")

	for i, it := range items {
		fmt.Fprintf(&b, "%d. ", i+1)
		obj, ok := it.(map[string]any)
		if !ok {
			b.WriteString(displayValue("", it, nil))
			b.WriteString("\n")
			continue
		}
		var fields []string
		for _, k := range sortedKeys(obj) {
			if isBlank(obj[k]) {
				continue
			}
			fields = append(fields, k+": "+displayValue(k, obj[k], itemMoneyKeys))
		}
		b.WriteString(strings.Join(fields, " | "))
		b.WriteString("\n")
	}

	if summary := a.Summary(); summary != nil {
		b.WriteString("\n")
		b.WriteString(msgs.Summary)
		b.WriteString("\n")
		for _, k := range sortedKeys(summary) {
			if isBlank(summary[k]) {
				continue
			}
			fmt.Fprintf(&b, "- %s: %s\n", k, displayValue(k, summary[k], summaryMoneyKeys))
		}
	}

	return b.String()
}

// FormatNumber renders n with Vietnamese digit grouping, e.g. 1234567.5 as "1.234.567,5".
func FormatNumber(n float64) string {
	return viPrinter.Sprint(number.Decimal(n, number.MaxFractionDigits(3)))
}

func displayValue(key string, v any, moneyKeys []string) string {
	switch t := v.(type) {
	case json.Number:
		f, err := strconv.ParseFloat(t.String(), 64)
		if err != nil {
			return t.String()
		}
		return withCurrency(key, FormatNumber(f), moneyKeys)
	case float64:
		return withCurrency(key, FormatNumber(t), moneyKeys)
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func withCurrency(key, formatted string, moneyKeys []string) string {
	lower := strings.ToLower(key)
	for _, m := range moneyKeys {
		if strings.Contains(lower, m) {
			return formatted + "đ"
		}
	}
	return formatted
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
