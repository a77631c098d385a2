package address_test

import (
	"testing"

	"github.com/dukerupert/checkout/internal/address"
	"github.com/stretchr/testify/assert"
)

func TestValidPostalCode(t *testing.T) {
	tests := []struct {
		name   string
		region address.Region
		code   string
		want   bool
	}{
		{"us five digit", address.RegionUS, "97201", true},
		{"us zip plus four", address.RegionUS, "97201-1234", true},
		{"us too short", address.RegionUS, "9720", false},
		{"canada with space", address.RegionCA, "K1A 0B1", true},
		{"canada lower case", address.RegionCA, "k1a0b1", true},
		{"canada bad letter", address.RegionCA, "D1A 0B1", false},
		{"uk postcode", address.RegionGB, "SW1A 1AA", true},
		{"spain madrid", address.RegionES, "28013", true},
		{"spain out of range", address.RegionES, "53000", false},
		{"mexico", address.RegionMX, "06600", true},
		{"germany", address.RegionDE, "10115", true},
		{"france letters", address.RegionFR, "75O01", false},
		{"lower case region", address.Region("us"), "97201", true},
		{"unsupported region", address.Region("ZZ"), "12345", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, address.ValidPostalCode(tt.region, tt.code))
		})
	}
}

func TestValidPhone(t *testing.T) {
	tests := []struct {
		name   string
		region address.Region
		phone  string
		want   bool
	}{
		{"us dashed", address.RegionUS, "503-555-1234", true},
		{"us with country code", address.RegionUS, "+1 (503) 555-1234", true},
		{"us leading one in area code", address.RegionUS, "103-555-1234", false},
		{"spain mobile", address.RegionES, "+34 612 345 678", true},
		{"spain landline", address.RegionES, "912345678", true},
		{"spain wrong prefix", address.RegionES, "512345678", false},
		{"uk", address.RegionGB, "020 7946 0958", true},
		{"france", address.RegionFR, "01 23 45 67 89", true},
		{"mexico", address.RegionMX, "55 1234 5678", true},
		{"letters", address.RegionUS, "call me", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, address.ValidPhone(tt.region, tt.phone))
		})
	}
}

func TestSupported(t *testing.T) {
	assert.True(t, address.Supported(address.RegionDE))
	assert.True(t, address.Supported(" fr "))
	assert.False(t, address.Supported("JP"))
}
