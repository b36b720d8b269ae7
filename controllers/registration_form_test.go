package controllers

import (
	"mime/multipart"
	"net/textproto"
	"testing"

	"github.com/microcosm-cc/bluemonday"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guest-intake/models"
)

func validForm() *multipart.Form {
	file := func(name string) []*multipart.FileHeader {
		return []*multipart.FileHeader{{Filename: name, Header: textproto.MIMEHeader{"Content-Type": {"image/jpeg"}}}}
	}
	return &multipart.Form{
		Value: map[string][]string{
			"name":               {"<b>Asha</b> O'Brien"},
			"dob":                {"1990-05-01"},
			"age":                {"36"},
			"gender":             {"Female"},
			"phone":              {"9820000000"},
			"email":              {"Asha@Example.com"},
			"state":              {"Kerala"},
			"district":           {"Ernakulam"},
			"city":               {"Kochi"},
			"pincode":            {"682001"},
			"purpose":            {"Business"},
			"checkIn":            {"2026-10-19T12:00"},
			"expectedCheckout":   {"2026-10-20T10:00"},
			"roomNumber":         {"101"},
			"idType":             {"Passport"},
			"idNumber":           {"Z123"},
			"accompanyingGuests": {`[{"type":"adult","index":0,"name":"Ravi","dob":"1988-02-02","idType":"Aadhaar","idNumber":"1"},{"type":"child","index":0,"name":"Meera","dob":"2017-01-15","age":9}]`},
		},
		File: map[string][]*multipart.FileHeader{
			"idImageFront":         file("f.jpg"),
			"idImageBack":          file("b.jpg"),
			"livePhoto":            file("l.jpg"),
			"adult_0_livePhoto":    file("a.jpg"),
			"child_0_livePhoto":    file("c.jpg"),
			"child_9_idImageFront": file("stray.jpg"),
		},
	}
}

func TestParseRegistration(t *testing.T) {
	parsed, err := parseRegistration(validForm(), bluemonday.StrictPolicy())
	require.NoError(t, err)

	reg := parsed.reg
	require.Len(t, reg.Guests, 3)
	assert.Equal(t, "Asha O'Brien", reg.Guests[0].FullName)
	assert.True(t, reg.Guests[0].IsMainGuest)
	assert.Equal(t, 36, *reg.Guests[0].Age)
	assert.Equal(t, 1, reg.Adults)
	assert.Equal(t, 1, reg.Children)
	assert.Equal(t, "2026-10-19 12:00", reg.CheckIn.Format("2006-01-02 15:04"))
	assert.Equal(t, models.GuestTypeChild, reg.Guests[2].GuestType)
	assert.Equal(t, 9, *reg.Guests[2].Age)

	var parts []string
	for _, up := range parsed.uploads {
		parts = append(parts, up.guest.FullName+"/"+up.part)
	}
	assert.ElementsMatch(t, []string{
		"Asha O'Brien/idImageFront", "Asha O'Brien/idImageBack", "Asha O'Brien/livePhoto",
		"Ravi/livePhoto", "Meera/livePhoto",
	}, parts)

	for _, up := range parsed.uploads {
		up.path = "guests/" + up.file.Filename
		up.assign()
	}
	assert.Equal(t, "guests/f.jpg", reg.Guests[0].IDImageFrontPath)
	assert.Equal(t, "guests/c.jpg", reg.Guests[2].LivePhotoPath)
}

func TestParseRegistrationRejects(t *testing.T) {
	cases := map[string]func(f *multipart.Form){
		"email": func(f *multipart.Form) { f.Value["email"] = []string{"not-an-email"} },
		"checkIn": func(f *multipart.Form) {
			f.Value["checkIn"] = []string{"19/10/2026"}
		},
		"roomNumber": func(f *multipart.Form) { f.Value["roomNumber"] = []string{"<script></script>"} },
		"livePhoto":  func(f *multipart.Form) { delete(f.File, "livePhoto") },
		"accompanyingGuests": func(f *multipart.Form) {
			f.Value["accompanyingGuests"] = []string{`{"type":"adult"}`}
		},
		"accompanyingGuests[0]": func(f *multipart.Form) {
			f.Value["accompanyingGuests"] = []string{`[{"type":"pet","index":0,"name":"Rex"}]`}
		},
	}
	for field, mutate := range cases {
		f := validForm()
		mutate(f)
		_, err := parseRegistration(f, bluemonday.StrictPolicy())
		var fe *fieldError
		require.ErrorAs(t, err, &fe, field)
		assert.Equal(t, field, fe.Field)
	}
}

func TestParseRegistrationWithoutGuestsPart(t *testing.T) {
	f := validForm()
	delete(f.Value, "accompanyingGuests")
	parsed, err := parseRegistration(f, bluemonday.StrictPolicy())
	require.NoError(t, err)
	assert.Len(t, parsed.reg.Guests, 1)
	assert.JSONEq(t, "[]", string(parsed.reg.AccompanyingGuests))
}

func TestParseRegistrationAcceptsMinutePrecisionDOB(t *testing.T) {
	f := validForm()
	f.Value["dob"] = []string{"1990-05-01T00:00"}
	f.Value["accompanyingGuests"] = []string{`[{"type":"adult","index":0,"name":"Ravi","dob":"1988-02-02T00:00"}]`}

	parsed, err := parseRegistration(f, bluemonday.StrictPolicy())
	require.NoError(t, err)
	require.Len(t, parsed.reg.Guests, 2)
	assert.Equal(t, "1990-05-01", parsed.reg.Guests[0].DateOfBirth.Format("2006-01-02"))
	assert.Equal(t, "1988-02-02", parsed.reg.Guests[1].DateOfBirth.Format("2006-01-02"))

	f.Value["dob"] = []string{"01/05/1990"}
	_, err = parseRegistration(f, bluemonday.StrictPolicy())
	var fe *fieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "dob", fe.Field)
}

func TestParseRegistrationStoresSanitizedGuests(t *testing.T) {
	f := validForm()
	f.Value["accompanyingGuests"] = []string{`[{"type":"adult","index":0,"name":"<b>Ravi</b>","dob":"1988-02-02","idNumber":"<i>A1</i>","extra":"dropped"}]`}

	parsed, err := parseRegistration(f, bluemonday.StrictPolicy())
	require.NoError(t, err)
	assert.Equal(t, "Ravi", parsed.reg.Guests[1].FullName)
	assert.JSONEq(t,
		`[{"type":"adult","index":0,"name":"Ravi","dob":"1988-02-02","idNumber":"A1"}]`,
		string(parsed.reg.AccompanyingGuests))
}
