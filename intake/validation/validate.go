// Package validation checks a registration snapshot before submission.
package validation

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"guest-intake/intake/form"
)

// DefaultMinorIDAge is the age from which an accompanying child must
// present an identity document. The accompanying-guest screen historically
// used 14 while the main form used 10; 10 is the standard here.
const DefaultMinorIDAge = 10

const msgRequired = "This field is required"

// Result maps error keys to messages.
type Result struct {
	Errors map[string]string
}

func (r Result) Valid() bool { return len(r.Errors) == 0 }

// Keys returns the error keys in sorted order.
func (r Result) Keys() []string {
	keys := make([]string, 0, len(r.Errors))
	for k := range r.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Summary is the user-facing notification text for an invalid result.
func (r Result) Summary() string {
	switch n := len(r.Errors); n {
	case 0:
		return ""
	case 1:
		return "Please correct 1 highlighted field before submitting"
	default:
		return fmt.Sprintf("Please correct %d highlighted fields before submitting", n)
	}
}

type config struct {
	minorIDAge int
}

type Option func(*config)

// WithMinorIDAge overrides DefaultMinorIDAge.
func WithMinorIDAge(age int) Option {
	return func(c *config) { c.minorIDAge = age }
}

type collector struct {
	errs map[string]string
}

func (c *collector) add(ref form.GuestRef, field, msg string) {
	c.errs[form.ErrorKey(ref, field)] = msg
}

func (c *collector) require(ref form.GuestRef, field, value string) {
	if strings.TrimSpace(value) == "" {
		c.add(ref, field, msgRequired)
	}
}

func (c *collector) requireImage(ref form.GuestRef, g form.GuestRecord, field form.ImageField) {
	if g.Image(field).IsZero() {
		c.add(ref, string(field), "Please capture this photo")
	}
}

func (c *collector) date(ref form.GuestRef, field, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	if _, ok := form.ParseDOB(value); !ok {
		c.add(ref, field, "Enter a valid date")
	}
}

func (c *collector) timestamp(ref form.GuestRef, field, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	if _, ok := form.ParseTimestamp(value); !ok {
		c.add(ref, field, "Enter a valid date and time")
	}
}

func (c *collector) oneOf(ref form.GuestRef, field, value string, allowed []string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	if !slices.Contains(allowed, value) {
		c.add(ref, field, fmt.Sprintf("Must be one of %s", strings.Join(allowed, ", ")))
	}
}

func names[T ~string](vals []T) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	return out
}

// Validate evaluates every rule and collects all violations.
func Validate(m form.Model, opts ...Option) Result {
	cfg := config{minorIDAge: DefaultMinorIDAge}
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &collector{errs: map[string]string{}}

	validatePrimary(c, m.Primary)
	for _, g := range m.Adults.Records() {
		validateAdult(c, form.GuestRef{Kind: form.Adults, ID: g.ID}, g)
	}
	for _, g := range m.Children.Records() {
		validateChild(c, form.GuestRef{Kind: form.Children, ID: g.ID}, g, cfg.minorIDAge)
	}
	return Result{Errors: c.errs}
}

func validatePrimary(c *collector, p form.Primary) {
	ref := form.PrimaryGuest
	c.require(ref, "name", p.Name)
	c.require(ref, "dob", p.DOB)
	c.date(ref, "dob", p.DOB)
	c.require(ref, "gender", string(p.Gender))
	c.oneOf(ref, "gender", string(p.Gender), names(form.Genders))
	c.require(ref, "phone", p.Phone)
	c.require(ref, "email", p.Email)
	c.require(ref, "address.state", p.Address.State)
	c.require(ref, "address.district", p.Address.District)
	c.require(ref, "address.city", p.Address.City)
	c.require(ref, "address.pincode", p.Address.Pincode)
	c.require(ref, "purpose", p.Purpose)
	c.require(ref, "checkIn", p.CheckIn)
	c.timestamp(ref, "checkIn", p.CheckIn)
	c.require(ref, "expectedCheckout", p.ExpectedCheckout)
	c.timestamp(ref, "expectedCheckout", p.ExpectedCheckout)
	c.require(ref, "roomNumber", p.RoomNumber)
	c.require(ref, "idType", string(p.IDType))
	c.oneOf(ref, "idType", string(p.IDType), names(form.AdultIDTypes))
	c.require(ref, "idNumber", p.IDNumber)
	for _, f := range form.ImageFields {
		c.requireImage(ref, p.GuestRecord, f)
	}
}

func validateAdult(c *collector, ref form.GuestRef, g form.GuestRecord) {
	c.require(ref, "name", g.Name)
	c.require(ref, "dob", g.DOB)
	c.date(ref, "dob", g.DOB)
	c.require(ref, "idType", string(g.IDType))
	c.oneOf(ref, "idType", string(g.IDType), names(form.AdultIDTypes))
	c.require(ref, "idNumber", g.IDNumber)
	for _, f := range form.ImageFields {
		c.requireImage(ref, g, f)
	}
}

func validateChild(c *collector, ref form.GuestRef, g form.GuestRecord, minorIDAge int) {
	c.require(ref, "name", g.Name)
	c.require(ref, "dob", g.DOB)
	c.date(ref, "dob", g.DOB)
	c.requireImage(ref, g, form.LivePhoto)
	if !NeedsID(g, minorIDAge) {
		return
	}
	c.require(ref, "idType", string(g.IDType))
	c.oneOf(ref, "idType", string(g.IDType), names(form.MinorIDTypes))
	c.requireImage(ref, g, form.IDImageFront)
	c.requireImage(ref, g, form.IDImageBack)
}

// NeedsID reports whether a child record has reached the minor-ID age.
// A child without a derivable age is not held to the ID rules; the date of
// birth is reported on its own in that case.
func NeedsID(g form.GuestRecord, minorIDAge int) bool {
	return g.Age != nil && *g.Age >= minorIDAge
}
