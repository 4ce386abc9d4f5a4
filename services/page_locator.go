package services

import (
	"math"
	"strconv"
	"strings"
)

// PageMarker is one candidate page-number line detected in the source text.
type PageMarker struct {
	Value int // the printed page number
	Order int // encounter order while scanning
}

// LocatePageMarkers scans text line by line and collects lines consisting
// solely of digits, at most 3 characters long, with a value in [1,1000].
// These are treated as printed page numbers surviving text extraction.
func LocatePageMarkers(text string) []PageMarker {
	var markers []PageMarker
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || len(line) > 3 {
			continue
		}
		value, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		if value < 1 || value > 1000 {
			continue
		}
		markers = append(markers, PageMarker{Value: value, Order: len(markers)})
	}
	return markers
}

// EstimatePage projects a fragment's start offset onto the ordered marker
// list proportionally. The result is advisory, not a ground-truth page
// mapping; nil means no markers were found.
func EstimatePage(startChar, totalLen int, markers []PageMarker) *int {
	if len(markers) == 0 || totalLen <= 0 {
		return nil
	}
	relative := float64(startChar) / float64(totalLen)
	index := int(math.Ceil(relative * float64(len(markers))))
	if index < 1 {
		index = 1
	}
	if index > len(markers) {
		index = len(markers)
	}
	page := markers[index-1].Value
	return &page
}
