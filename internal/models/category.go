package models

import "strings"

// categoryKeywords maps title keywords to component categories. First
// match wins, so more specific terms come before generic ones.
var categoryKeywords = []struct {
	keyword  string
	category string
}{
	{"motherboard", "motherboard"},
	{"mainboard", "motherboard"},
	{"tarjeta madre", "motherboard"},
	{"graphics card", "graphics"},
	{"video card", "graphics"},
	{"geforce", "graphics"},
	{"radeon", "graphics"},
	{"rtx", "graphics"},
	{"gtx", "graphics"},
	{"gpu", "graphics"},
	{"processor", "processor"},
	{"procesador", "processor"},
	{"ryzen", "processor"},
	{"core i3", "processor"},
	{"core i5", "processor"},
	{"core i7", "processor"},
	{"core i9", "processor"},
	{"cpu", "processor"},
	{"ddr4", "memory"},
	{"ddr5", "memory"},
	{"memoria ram", "memory"},
	{"ram", "memory"},
	{"nvme", "storage"},
	{"ssd", "storage"},
	{"hdd", "storage"},
	{"hard drive", "storage"},
	{"disco duro", "storage"},
	{"power supply", "power"},
	{"fuente de poder", "power"},
	{"psu", "power"},
	{"cooler", "cooling"},
	{"liquid cooling", "cooling"},
	{"heatsink", "cooling"},
	{"ventilador", "cooling"},
	{"pc case", "case"},
	{"gabinete", "case"},
	{"tower case", "case"},
	{"chassis", "case"},
}

// InferCategory guesses a component category from title keywords,
// returning fallback when nothing matches.
func InferCategory(title, fallback string) string {
	lower := strings.ToLower(title)
	for _, kw := range categoryKeywords {
		if strings.Contains(lower, kw.keyword) {
			return kw.category
		}
	}
	return fallback
}
