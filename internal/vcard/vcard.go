// Package vcard reads and writes the two contact interchange formats
// the import/export endpoints accept: vCard 3.0 and CSV.
package vcard

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"net/mail"
	"path/filepath"
	"strings"
)

// Entry is one imported or exported contact.
type Entry struct {
	Name    string
	Address string
}

// ParseFile dispatches on the upload's file extension.
func ParseFile(filename string, r io.Reader) ([]Entry, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".vcf", ".vcard":
		return ParseVCard(r)
	case ".csv":
		return ParseCSV(r)
	default:
		return nil, fmt.Errorf("unsupported contact file %q: want .vcf or .csv", filename)
	}
}

// ParseVCard extracts name and first email address from each vCard in
// the stream. Cards without any EMAIL property are skipped. Folded
// continuation lines are unfolded per RFC 6350.
func ParseVCard(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)

	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && len(lines) > 0 {
			lines[len(lines)-1] += line[1:]
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading vcard: %w", err)
	}

	var entries []Entry
	var current *Entry
	for _, line := range lines {
		key, value, ok := splitProperty(line)
		if !ok {
			continue
		}

		switch key {
		case "BEGIN":
			if strings.EqualFold(value, "VCARD") {
				current = &Entry{}
			}
		case "END":
			if strings.EqualFold(value, "VCARD") && current != nil {
				if current.Address != "" {
					entries = append(entries, *current)
				}
				current = nil
			}
		case "FN":
			if current != nil && current.Name == "" {
				current.Name = value
			}
		case "EMAIL":
			if current != nil && current.Address == "" {
				current.Address = strings.TrimSpace(value)
			}
		}
	}

	return entries, nil
}

// splitProperty splits a content line into its property name (without
// parameters) and value.
func splitProperty(line string) (key, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	name := line[:idx]
	if semi := strings.Index(name, ";"); semi >= 0 {
		name = name[:semi]
	}
	return strings.ToUpper(strings.TrimSpace(name)), line[idx+1:], true
}

// ParseCSV extracts contacts from a CSV upload. A first row mentioning
// an email or name column is treated as a header; otherwise columns are
// probed for the first value containing "@". Rows without a parseable
// address are skipped.
func ParseCSV(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	emailCol, nameCol := -1, -1
	start := 0
	// A header cell naming a column must itself not be an address, or
	// "bob@mail.example" in row one would eat the first contact.
	for i, col := range records[0] {
		switch normalized := strings.ToLower(strings.TrimSpace(col)); {
		case strings.Contains(normalized, "mail") && !strings.Contains(normalized, "@"):
			emailCol = i
		case normalized == "name" || strings.Contains(normalized, "display"):
			nameCol = i
		}
	}
	if emailCol >= 0 {
		start = 1
	}

	var entries []Entry
	for _, row := range records[start:] {
		entry := Entry{}
		if emailCol >= 0 {
			if emailCol < len(row) {
				entry.Address = strings.TrimSpace(row[emailCol])
			}
			if nameCol >= 0 && nameCol < len(row) {
				entry.Name = strings.TrimSpace(row[nameCol])
			}
		} else {
			for i, col := range row {
				if strings.Contains(col, "@") {
					entry.Address = strings.TrimSpace(col)
					if i > 0 {
						entry.Name = strings.TrimSpace(row[0])
					}
					break
				}
			}
		}

		if entry.Address == "" {
			continue
		}
		if _, err := mail.ParseAddress(entry.Address); err != nil {
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// Generate renders entries as a vCard 3.0 stream with CRLF line
// endings, one card per contact.
func Generate(entries []Entry) []byte {
	var b strings.Builder
	for _, e := range entries {
		name := e.Name
		if name == "" {
			name = e.Address
		}
		b.WriteString("BEGIN:VCARD\r\n")
		b.WriteString("VERSION:3.0\r\n")
		b.WriteString("FN:" + escapeValue(name) + "\r\n")
		b.WriteString("EMAIL;TYPE=INTERNET:" + e.Address + "\r\n")
		b.WriteString("END:VCARD\r\n")
	}
	return []byte(b.String())
}

// escapeValue escapes the characters RFC 6350 reserves in text values.
func escapeValue(s string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		"\n", "\\n",
		",", "\\,",
		";", "\\;",
	)
	return replacer.Replace(s)
}
