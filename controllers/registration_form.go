package controllers

import (
	"encoding/json"
	"fmt"
	"html"
	"mime/multipart"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"guest-intake/intake/form"
	"guest-intake/models"
)

const (
	msgBadDOB       = "must be YYYY-MM-DD or YYYY-MM-DDTHH:MM"
	msgBadTimestamp = "must be YYYY-MM-DDTHH:MM"
)

var imageParts = []string{"idImageFront", "idImageBack", "livePhoto"}

var requiredText = []string{
	"name", "dob", "gender", "phone", "email",
	"state", "district", "city", "pincode",
	"purpose", "checkIn", "expectedCheckout", "roomNumber",
	"idType", "idNumber",
}

var emailPattern = regexp.MustCompile(`^[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}$`)

func isValidEmail(email string) bool {
	return emailPattern.MatchString(strings.ToLower(email))
}

// fieldError is a client mistake in the registration payload.
type fieldError struct {
	Field   string
	Message string
}

func (e *fieldError) Error() string { return e.Field + ": " + e.Message }

// accompanyingGuest mirrors one element of the accompanyingGuests part.
type accompanyingGuest struct {
	Type     string `json:"type"`
	Index    int    `json:"index"`
	Name     string `json:"name"`
	DOB      string `json:"dob"`
	Age      *int   `json:"age,omitempty"`
	Gender   string `json:"gender,omitempty"`
	IDType   string `json:"idType,omitempty"`
	IDNumber string `json:"idNumber,omitempty"`
}

// imageUpload is one file to store, bound to the guest that owns it.
type imageUpload struct {
	guest *models.Guest
	part  string
	file  *multipart.FileHeader
	path  string
}

// registrationForm is the parsed registration before images are stored.
type registrationForm struct {
	reg     *models.Registration
	uploads []*imageUpload
}

// parseRegistration maps multipart values onto models. Free text is
// stripped of markup.
func parseRegistration(mf *multipart.Form, policy *bluemonday.Policy) (*registrationForm, error) {
	get := func(key string) string {
		if vs := mf.Value[key]; len(vs) > 0 {
			return sanitize(policy, vs[0])
		}
		return ""
	}
	for _, key := range requiredText {
		if get(key) == "" {
			return nil, &fieldError{Field: key, Message: "is required"}
		}
	}
	if !isValidEmail(get("email")) {
		return nil, &fieldError{Field: "email", Message: "is not a valid email address"}
	}
	dob, ok := form.ParseDOB(get("dob"))
	if !ok {
		return nil, &fieldError{Field: "dob", Message: msgBadDOB}
	}
	checkIn, ok := form.ParseTimestamp(get("checkIn"))
	if !ok {
		return nil, &fieldError{Field: "checkIn", Message: msgBadTimestamp}
	}
	checkout, ok := form.ParseTimestamp(get("expectedCheckout"))
	if !ok {
		return nil, &fieldError{Field: "expectedCheckout", Message: msgBadTimestamp}
	}

	raw := mf.Value["accompanyingGuests"]
	guestsJSON := "[]"
	if len(raw) > 0 && strings.TrimSpace(raw[0]) != "" {
		guestsJSON = raw[0]
	}
	var companions []accompanyingGuest
	if err := json.Unmarshal([]byte(guestsJSON), &companions); err != nil {
		return nil, &fieldError{Field: "accompanyingGuests", Message: "must be a JSON array"}
	}

	primary := models.Guest{
		IsMainGuest: true,
		GuestType:   models.GuestTypePrimary,
		FullName:    get("name"),
		DateOfBirth: &dob,
		Gender:      get("gender"),
		IDType:      get("idType"),
		IDNumber:    get("idNumber"),
		Email:       get("email"),
	}
	if age, err := strconv.Atoi(get("age")); err == nil {
		primary.Age = &age
	}

	reg := &models.Registration{
		RoomNumber:       get("roomNumber"),
		Purpose:          get("purpose"),
		CheckIn:          &checkIn,
		ExpectedCheckout: &checkout,
		Phone:            get("phone"),
		Email:            get("email"),
		State:            get("state"),
		District:         get("district"),
		City:             get("city"),
		Pincode:          get("pincode"),
		Guests:           make([]models.Guest, 0, len(companions)+1),
	}
	reg.Guests = append(reg.Guests, primary)

	seen := map[string]bool{}
	stored := make([]accompanyingGuest, 0, len(companions))
	for i, c := range companions {
		field := fmt.Sprintf("accompanyingGuests[%d]", i)
		if c.Type != models.GuestTypeAdult && c.Type != models.GuestTypeChild {
			return nil, &fieldError{Field: field, Message: "type must be adult or child"}
		}
		key := fmt.Sprintf("%s_%d", c.Type, c.Index)
		if c.Index < 0 || seen[key] {
			return nil, &fieldError{Field: field, Message: "index is invalid"}
		}
		seen[key] = true

		c.Name = sanitize(policy, c.Name)
		c.DOB = sanitize(policy, c.DOB)
		c.Gender = sanitize(policy, c.Gender)
		c.IDType = sanitize(policy, c.IDType)
		c.IDNumber = sanitize(policy, c.IDNumber)
		if c.Name == "" {
			return nil, &fieldError{Field: field, Message: "name is required"}
		}
		g := models.Guest{
			GuestType: c.Type,
			Position:  c.Index,
			FullName:  c.Name,
			Age:       c.Age,
			Gender:    c.Gender,
			IDType:    c.IDType,
			IDNumber:  c.IDNumber,
		}
		if c.DOB != "" {
			d, ok := form.ParseDOB(c.DOB)
			if !ok {
				return nil, &fieldError{Field: field, Message: "dob " + msgBadDOB}
			}
			g.DateOfBirth = &d
		}
		stored = append(stored, c)
		if c.Type == models.GuestTypeAdult {
			reg.Adults++
		} else {
			reg.Children++
		}
		reg.Guests = append(reg.Guests, g)
	}
	// The column keeps the sanitised list, not the raw part.
	storedJSON, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encode accompanying guests: %w", err)
	}
	reg.AccompanyingGuests = storedJSON

	out := &registrationForm{reg: reg}
	for _, part := range imageParts {
		fh := firstFile(mf, part)
		if fh == nil {
			return nil, &fieldError{Field: part, Message: "is required"}
		}
		out.uploads = append(out.uploads, &imageUpload{guest: &reg.Guests[0], part: part, file: fh})
	}
	for i := 1; i < len(reg.Guests); i++ {
		g := &reg.Guests[i]
		for _, part := range imageParts {
			name := fmt.Sprintf("%s_%d_%s", g.GuestType, g.Position, part)
			if fh := firstFile(mf, name); fh != nil {
				out.uploads = append(out.uploads, &imageUpload{guest: g, part: part, file: fh})
			}
		}
	}
	return out, nil
}

// sanitize drops markup but keeps the literal text, so "O'Brien" survives
// the policy's entity escaping.
func sanitize(policy *bluemonday.Policy, s string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(s)))
}

func firstFile(mf *multipart.Form, key string) *multipart.FileHeader {
	if fs := mf.File[key]; len(fs) > 0 {
		return fs[0]
	}
	return nil
}

// assign records a stored path on the owning guest.
func (u *imageUpload) assign() {
	switch u.part {
	case "idImageFront":
		u.guest.IDImageFrontPath = u.path
	case "idImageBack":
		u.guest.IDImageBackPath = u.path
	case "livePhoto":
		u.guest.LivePhotoPath = u.path
	}
}
