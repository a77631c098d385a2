package address

import (
	"regexp"
	"strings"
)

// Region identifies the country whose postal and phone formats apply to a
// delivery address. Values are ISO 3166-1 alpha-2 codes.
type Region string

const (
	RegionUS Region = "US"
	RegionCA Region = "CA"
	RegionGB Region = "GB"
	RegionES Region = "ES"
	RegionMX Region = "MX"
	RegionDE Region = "DE"
	RegionFR Region = "FR"
)

// Format holds the patterns a region uses for postal codes and phone numbers.
// Phone patterns are matched after separators (spaces, dashes, dots,
// parentheses) are stripped.
type Format struct {
	PostalCode *regexp.Regexp
	Phone      *regexp.Regexp
}

var formats = map[Region]Format{
	RegionUS: {
		PostalCode: regexp.MustCompile(`^\d{5}(-\d{4})?$`),
		Phone:      regexp.MustCompile(`^(\+?1)?[2-9]\d{2}[2-9]\d{6}$`),
	},
	RegionCA: {
		PostalCode: regexp.MustCompile(`^[ABCEGHJ-NPRSTVXY]\d[ABCEGHJ-NPRSTV-Z] ?\d[ABCEGHJ-NPRSTV-Z]\d$`),
		Phone:      regexp.MustCompile(`^(\+?1)?[2-9]\d{2}[2-9]\d{6}$`),
	},
	RegionGB: {
		PostalCode: regexp.MustCompile(`^[A-Z]{1,2}\d[A-Z\d]? ?\d[A-Z]{2}$`),
		Phone:      regexp.MustCompile(`^(\+44|0)\d{9,10}$`),
	},
	RegionES: {
		PostalCode: regexp.MustCompile(`^(0[1-9]|[1-4]\d|5[0-2])\d{3}$`),
		Phone:      regexp.MustCompile(`^(\+34)?[6789]\d{8}$`),
	},
	RegionMX: {
		PostalCode: regexp.MustCompile(`^\d{5}$`),
		Phone:      regexp.MustCompile(`^(\+52)?\d{10}$`),
	},
	RegionDE: {
		PostalCode: regexp.MustCompile(`^\d{5}$`),
		Phone:      regexp.MustCompile(`^(\+49|0)\d{6,13}$`),
	},
	RegionFR: {
		PostalCode: regexp.MustCompile(`^\d{5}$`),
		Phone:      regexp.MustCompile(`^(\+33|0)[1-9]\d{8}$`),
	},
}

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")

// Supported reports whether the region has known formats.
func Supported(region Region) bool {
	_, ok := formats[normalizeRegion(region)]
	return ok
}

// ValidPostalCode reports whether code matches the region's postal format.
// Codes are compared upper-cased.
func ValidPostalCode(region Region, code string) bool {
	f, ok := formats[normalizeRegion(region)]
	if !ok {
		return false
	}
	return f.PostalCode.MatchString(strings.ToUpper(strings.TrimSpace(code)))
}

// ValidPhone reports whether phone matches the region's phone format.
func ValidPhone(region Region, phone string) bool {
	f, ok := formats[normalizeRegion(region)]
	if !ok {
		return false
	}
	return f.Phone.MatchString(NormalizePhone(phone))
}

// NormalizePhone strips common separators from a phone number.
func NormalizePhone(phone string) string {
	return phoneSeparators.Replace(strings.TrimSpace(phone))
}

func normalizeRegion(region Region) Region {
	return Region(strings.ToUpper(strings.TrimSpace(string(region))))
}
