package manholecard

import (
	"regexp"
	"strings"
)

// The migration stage resolves a card's free-text Location field into
// zero or more (facility name, address) pairs, grounded on
// ManholeCardMigrator._parse_location / _split_location_blocks /
// _parse_locations. The original's most baroque single-line cleanups
// (the "公社" legal-entity special case) are dropped; see DESIGN.md.

var (
	municipalityMarkerRE = regexp.MustCompile(`[市郡区町村]`)
	addressDigitRE       = regexp.MustCompile(`[0-9０-９\-－ー丁目番地号字大字]`)
	phoneOnlyLineRE      = regexp.MustCompile(`^[0-9０-９\-\s－ー]+$`)
	leadingBracketRE     = regexp.MustCompile(`^【[^】]*】\s*`)
	inlineBracketRE      = regexp.MustCompile(`【[^】]*】`)
	fullWidthParenRE     = regexp.MustCompile(`（[^）]*）`)
	halfWidthParenRE     = regexp.MustCompile(`\([^)]*\)`)
	windowSuffixRE       = regexp.MustCompile(`(入口)?(チケット)?窓口\s*$`)
	quotedSuffixRE       = regexp.MustCompile(`「[^」]*」\s*$`)
	leadingScheduleRE    = regexp.MustCompile(`^(平日|休日)[：:]\s*`)
)

var orgKeywords = []string{
	"役場", "市役所", "県庁", "上下水道局", "下水処理センター", "浄化センター", "水再生センター",
}

var inquiryPrefixes = []string{
	"（問合せ先", "(問合せ先", "（問い合わせ先", "(問い合わせ先", "（問合せ", "(問合せ", "（問い合わせ", "(問い合わせ",
}

func looksLikeAddress(line string) bool {
	if line == "" {
		return false
	}
	return municipalityMarkerRE.MatchString(line) && addressDigitRE.MatchString(line)
}

func cleanCommon(s string) string {
	s = leadingBracketRE.ReplaceAllString(s, "")
	s = inlineBracketRE.ReplaceAllString(s, "")
	s = fullWidthParenRE.ReplaceAllString(s, "")
	s = halfWidthParenRE.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// splitLocationBlocks groups consecutive lines into blocks, closing a
// block after a line that mentions a phone number, and drops blocks that
// are inquiry-only (no distribution address of their own).
func splitLocationBlocks(location string) []string {
	if location == "" {
		return nil
	}
	var blocks []string
	var current []string
	for _, line := range strings.Split(location, "\n") {
		current = append(current, line)
		lower := strings.ToLower(line)
		if strings.Contains(line, "電話") || strings.Contains(lower, "tel") {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
		}
	}
	if len(current) > 0 {
		blocks = append(blocks, strings.Join(current, "\n"))
	}

	filtered := blocks[:0]
	for _, b := range blocks {
		if !isInquiryBlock(b) {
			filtered = append(filtered, b)
		}
	}
	if len(filtered) == 0 && strings.TrimSpace(location) != "" {
		return []string{location}
	}
	return filtered
}

func isInquiryBlock(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, prefix := range inquiryPrefixes {
			if strings.HasPrefix(line, prefix) {
				return true
			}
		}
		return false
	}
	return false
}

// parseLocationBlock resolves one block of text into a (facility,
// address) pair, reproducing _parse_location's address-line detection
// and facility-name disambiguation.
func parseLocationBlock(text, prefectureName string) (facility, address string, ok bool) {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.EqualFold(line, "none") {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return "", "", false
	}

	whole := strings.Join(lines, "\n")
	if strings.Contains(whole, "配布を一時中止") || strings.Contains(whole, "配布を中止") {
		return "", "", false
	}

	addrIdx := -1
	if prefectureName != "" {
		for i, line := range lines {
			if strings.Contains(line, prefectureName) && looksLikeAddress(line) {
				addrIdx = i
				break
			}
		}
		if addrIdx == -1 {
			for i, line := range lines {
				if strings.Contains(line, prefectureName) {
					addrIdx = i
					break
				}
			}
		}
	}
	if addrIdx == -1 && len(lines) >= 2 && looksLikeAddress(lines[len(lines)-1]) {
		addrIdx = len(lines) - 1
	}

	facilityLines := lines
	if addrIdx >= 0 {
		facilityLines = lines[:addrIdx]
	}

	var candidates []string
	for _, line := range facilityLines {
		if strings.HasPrefix(line, "※") {
			continue
		}
		skip := false
		for _, prefix := range inquiryPrefixes {
			if strings.HasPrefix(line, prefix) {
				skip = true
				break
			}
		}
		if skip || phoneOnlyLineRE.MatchString(line) {
			continue
		}
		if cleaned := cleanCommon(line); cleaned != "" {
			candidates = append(candidates, cleaned)
		}
	}
	if len(candidates) == 0 {
		return "", "", false
	}

	facility = pickFacilityName(candidates)
	facility = cleanCommon(facility)
	facility = strings.TrimSpace(windowSuffixRE.ReplaceAllString(facility, ""))
	facility = strings.TrimSpace(quotedSuffixRE.ReplaceAllString(facility, ""))
	if facility == "" {
		return "", "", false
	}

	if addrIdx >= 0 {
		address = cleanCommon(lines[addrIdx])
		if i := strings.Index(address, "　"); i >= 0 {
			address = strings.TrimSpace(address[:i])
		}
		if i := strings.Index(address, " "); i >= 0 {
			address = strings.TrimSpace(address[:i])
		}
		address = leadingScheduleRE.ReplaceAllString(address, "")
	}

	return facility, address, true
}

func pickFacilityName(candidates []string) string {
	if len(candidates) == 1 {
		return candidates[0]
	}

	bases := map[string]bool{}
	for _, c := range candidates {
		if base := orgBase(c); base != "" {
			bases[base] = true
		}
	}
	if len(bases) == 1 {
		for b := range bases {
			return b
		}
	}

	firstTokens := map[string]bool{}
	for _, c := range candidates {
		fields := strings.Fields(c)
		if len(fields) > 0 {
			firstTokens[fields[0]] = true
		}
	}
	if len(firstTokens) == 1 {
		for t := range firstTokens {
			return t
		}
	}

	return candidates[0]
}

func orgBase(s string) string {
	for _, kw := range orgKeywords {
		if idx := strings.Index(s, kw); idx != -1 {
			return s[:idx+len(kw)]
		}
	}
	return ""
}

// ParseLocations resolves a Record's Location field into every
// (facility, address) pair it describes, grounded on
// ManholeCardMigrator._parse_locations.
func ParseLocations(location, prefectureName string) []Facility {
	if location == "" {
		return nil
	}

	var results []Facility
	for _, block := range splitLocationBlocks(location) {
		if name, addr, ok := parseLocationBlock(block, prefectureName); ok && addr != "" {
			results = append(results, Facility{Name: name, Address: addr})
		}
	}
	if len(results) > 0 {
		return results
	}

	if name, addr, ok := parseLocationBlock(location, prefectureName); ok && addr != "" {
		return []Facility{{Name: name, Address: addr}}
	}
	return nil
}
