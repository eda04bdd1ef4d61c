package utils

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/metrico/tablepipe/model"
)

// ConversationOfPage renders a page in the named output format.
func ConversationOfPage(page *model.OutputJSON, format string) (string, error) {
	switch format {
	case "", "JSONCompact", "JSON":
		return pageToJSON(page)
	case "CSVWithNames":
		return pageToCSV(page, true)
	case "CSV":
		return pageToCSV(page, false)
	case "TSVWithNames", "TabSeparatedWithNames":
		return pageToTSV(page, true), nil
	case "TSV", "TabSeparated":
		return pageToTSV(page, false), nil
	}
	return "", fmt.Errorf("unknown format %q", format)
}

// ContentType returns the media type of the named output format.
func ContentType(format string) string {
	switch format {
	case "CSVWithNames", "CSV":
		return "text/csv; charset=utf-8"
	case "TSVWithNames", "TabSeparatedWithNames", "TSV", "TabSeparated":
		return "text/tab-separated-values; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}

func pageToJSON(page *model.OutputJSON) (string, error) {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(page, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func columnIDs(page *model.OutputJSON) []string {
	res := make([]string, len(page.Meta))
	for i, m := range page.Meta {
		res[i] = m.ID
	}
	return res
}

func cellText(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func pageToTSV(page *model.OutputJSON, cols bool) string {
	var result []string
	if cols {
		result = append(result, strings.Join(columnIDs(page), "\t"))
	}
	replacer := strings.NewReplacer("\t", " ", "\n", " ")
	for _, row := range page.Data {
		lineParts := make([]string, len(row))
		for i, v := range row {
			lineParts[i] = replacer.Replace(cellText(v))
		}
		result = append(result, strings.Join(lineParts, "\t"))
	}
	return strings.Join(result, "\n")
}

func pageToCSV(page *model.OutputJSON, cols bool) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if cols {
		if err := w.Write(columnIDs(page)); err != nil {
			return "", err
		}
	}
	for _, row := range page.Data {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = cellText(v)
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
