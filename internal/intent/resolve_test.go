package intent

import "testing"

func TestResolvePrecedence(t *testing.T) {
	testCases := []struct {
		name     string
		signals  []Signal
		expected Intent
	}{
		{"nothing", nil, General},
		{"predicted only", []Signal{Predicted(Street)}, Street},
		{"verified beats predicted", []Signal{Predicted(Street), Verified(Address)}, Address},
		{"order does not matter", []Signal{Verified(Address), Predicted(Street)}, Address},
		{"preserved beats verified", []Signal{Predicted(Street), Verified(Address), Preserved(Suburb)}, Suburb},
		{"empty verified is skipped", []Signal{Predicted(Street), Verified("")}, Street},
		{"unknown value is skipped", []Signal{Preserved("postcode"), Predicted(Suburb)}, Suburb},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Resolve(tc.signals...); got != tc.expected {
				t.Errorf("Expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestClassifyResult(t *testing.T) {
	testCases := []struct {
		types       []string
		description string
		expected    Intent
	}{
		{[]string{"street_address", "geocode"}, "Collins St", Address},
		{[]string{"premise"}, "Rialto Towers", Address},
		{[]string{"route"}, "123 Collins St, Melbourne", Address},
		{[]string{"route", "geocode"}, "Collins St, Melbourne VIC", Street},
		{[]string{"locality", "political"}, "Footscray VIC", Suburb},
		{[]string{"postal_code"}, "Melbourne VIC 3000", Suburb},
		{[]string{"administrative_area_level_2"}, "Yarra Ranges", Suburb},
		{[]string{"establishment"}, "Melbourne Central", General},
		{nil, "", General},
	}

	for _, tc := range testCases {
		if got := ClassifyResult(tc.types, tc.description); got != tc.expected {
			t.Errorf("ClassifyResult(%v, %q): expected %s, got %s", tc.types, tc.description, tc.expected, got)
		}
	}
}

func TestParseState(t *testing.T) {
	testCases := []struct {
		text     string
		expected string
	}{
		{"123 Collins St, Melbourne VIC 3000, Australia", "VIC"},
		{"Parramatta NSW", "NSW"},
		{"Brisbane, Queensland", "QLD"},
		{"Perth Western Australia", "WA"},
		{"Adelaide, South Australia", "SA"},
		{"Darwin Northern Territory", "NT"},
		{"Canberra ACT 2600", "ACT"},
		{"Hobart, Tasmania", "TAS"},
		{"Victoria Street, Potts Point NSW 2011", "NSW"},
		{"Victoria Street", ""},
		{"South Yarra", ""},
		{"Footscray", ""},
	}

	for _, tc := range testCases {
		if got := ParseState(tc.text); got != tc.expected {
			t.Errorf("ParseState(%q): expected %q, got %q", tc.text, tc.expected, got)
		}
	}
}

func TestStatesCompatible(t *testing.T) {
	if !StatesCompatible("", "VIC") || !StatesCompatible("NSW", "") || !StatesCompatible("VIC", "VIC") {
		t.Error("Expected missing or equal states to be compatible")
	}
	if StatesCompatible("VIC", "NSW") {
		t.Error("Expected VIC and NSW to be incompatible")
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize("  O’Connor\t  ＡＣＴ \n")
	if got != "o'connor act" {
		t.Errorf("Unexpected normalisation: %q", got)
	}
}
