package validator

import "testing"

func TestValidator_CollectsFirstErrorPerKey(t *testing.T) {
	v := New()

	if !v.Valid() {
		t.Fatal("fresh validator must be valid")
	}

	v.Check(false, "phone", "must be provided")
	v.Check(false, "phone", "must be E.164")
	v.Check(true, "lat", "must be a latitude")

	if v.Valid() {
		t.Fatal("validator with errors must not be valid")
	}
	if got := v.Errors["phone"]; got != "must be provided" {
		t.Fatalf("want first message kept, got %q", got)
	}
	if _, ok := v.Errors["lat"]; ok {
		t.Fatal("passing checks must not record errors")
	}
}

func TestMatches_Phone(t *testing.T) {
	valid := []string{"+251911234567", "0911234567", "251911234567"}
	for _, s := range valid {
		if !Matches(s, PhoneRX) {
			t.Errorf("expected %q to match", s)
		}
	}

	invalid := []string{"", "+", "12345", "+2519112345678901", "09-11-23"}
	for _, s := range invalid {
		if Matches(s, PhoneRX) {
			t.Errorf("expected %q not to match", s)
		}
	}
}

func TestMatches_UUID(t *testing.T) {
	if !Matches("c7b9f1e0-61ab-4df1-9c40-7a0d1c2b3e4f", UUIDRX) {
		t.Error("canonical v4 uuid must match")
	}
	if Matches("c7b9f1e061ab4df19c407a0d1c2b3e4f", UUIDRX) {
		t.Error("uuid without dashes must not match")
	}
	if Matches("not-a-uuid", UUIDRX) {
		t.Error("garbage must not match")
	}
}

func TestPermittedValue(t *testing.T) {
	if !PermittedValue("cash", "cash", "wallet") {
		t.Error("cash should be permitted")
	}
	if PermittedValue("card", "cash", "wallet") {
		t.Error("card should not be permitted")
	}
}

func TestCoordinateBounds(t *testing.T) {
	cases := []struct {
		lat, lng float64
		ok       bool
	}{
		{9.0108, 38.7613, true},
		{-90, -180, true},
		{90, 180, true},
		{90.0001, 0, false},
		{0, 180.5, false},
	}
	for _, tc := range cases {
		got := ValidLatitude(tc.lat) && ValidLongitude(tc.lng)
		if got != tc.ok {
			t.Errorf("(%v, %v): want %v, got %v", tc.lat, tc.lng, tc.ok, got)
		}
	}
}
