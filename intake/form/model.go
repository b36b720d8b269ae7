// Package form holds the in-memory registration being edited: the primary
// guest, accompanying adults and children, and the field error map.
//
// A Model is not safe for concurrent use; the intake.Form container
// serialises access.
package form

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"guest-intake/intake/imagecodec"
)

const (
	// DateLayout is the date-of-birth input format.
	DateLayout = "2006-01-02"
	// DateTimeLayout is the local, minute-precision timestamp format sent
	// to the backend for check-in and checkout.
	DateTimeLayout = "2006-01-02T15:04"
)

type Model struct {
	Primary  Primary
	Adults   Collection
	Children Collection
	Errors   map[string]string

	nextID GuestID
	now    func() time.Time
}

type Option func(*Model)

// WithClock overrides the clock used for age derivation.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}

// New returns an empty model.
func New(opts ...Option) *Model {
	m := &Model{now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	m.clear()
	return m
}

func (m *Model) clear() {
	m.Primary = Primary{}
	m.Adults = newCollection(Adults)
	m.Children = newCollection(Children)
	m.Errors = map[string]string{}
}

// Reset returns the model to its initial empty state. Guest ids keep
// counting so keys from before the reset never collide with new guests.
func (m *Model) Reset() {
	m.clear()
}

// Snapshot returns a deep copy that shares nothing with m.
func (m *Model) Snapshot() Model {
	cp := Model{
		Primary:  m.Primary,
		Adults:   m.Adults.clone(),
		Children: m.Children.clone(),
		Errors:   maps.Clone(m.Errors),
		nextID:   m.nextID,
		now:      m.now,
	}
	cp.Primary.GuestRecord = m.Primary.GuestRecord.clone()
	if cp.Errors == nil {
		cp.Errors = map[string]string{}
	}
	return cp
}

// Now reports the model clock.
func (m *Model) Now() time.Time {
	if m.now == nil {
		return time.Now()
	}
	return m.now()
}

// Collection returns the accompanying-guest list for kind.
func (m *Model) Collection(kind Kind) (*Collection, error) {
	switch kind {
	case Adults:
		return &m.Adults, nil
	case Children:
		return &m.Children, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// AddGuest appends a blank record and returns its position and id.
func (m *Model) AddGuest(kind Kind) (int, GuestID, error) {
	c, err := m.Collection(kind)
	if err != nil {
		return -1, 0, err
	}
	m.nextID++
	id := m.nextID
	return c.add(id), id, nil
}

// RemoveGuest removes the record at index. Errors keyed on the removed
// guest are dropped; keys of other guests are unaffected because they use
// stable ids.
func (m *Model) RemoveGuest(kind Kind, index int) error {
	c, err := m.Collection(kind)
	if err != nil {
		return err
	}
	rec, ok := c.Get(index)
	if !ok {
		return fmt.Errorf("%w: %s[%d]", ErrGuestNotFound, kind, index)
	}
	c.remove(index)
	prefix := kind.Singular() + "_"
	suffix := fmt.Sprintf("_%d", rec.ID)
	for k := range m.Errors {
		if strings.HasPrefix(k, prefix) && strings.HasSuffix(k, suffix) {
			delete(m.Errors, k)
		}
	}
	return nil
}

// Ref resolves a collection position to a stable reference.
func (m *Model) Ref(kind Kind, index int) (GuestRef, error) {
	c, err := m.Collection(kind)
	if err != nil {
		return GuestRef{}, err
	}
	rec, ok := c.Get(index)
	if !ok {
		return GuestRef{}, fmt.Errorf("%w: %s[%d]", ErrGuestNotFound, kind, index)
	}
	return GuestRef{Kind: kind, ID: rec.ID}, nil
}

// Guest returns a copy of the addressed record.
func (m *Model) Guest(ref GuestRef) (GuestRecord, error) {
	g, err := m.record(ref)
	if err != nil {
		return GuestRecord{}, err
	}
	return g.clone(), nil
}

func (m *Model) record(ref GuestRef) (*GuestRecord, error) {
	if ref.IsPrimary() {
		return &m.Primary.GuestRecord, nil
	}
	c, err := m.Collection(ref.Kind)
	if err != nil {
		return nil, err
	}
	g := c.record(ref.ID)
	if g == nil {
		return nil, fmt.Errorf("%w: %s id %d", ErrGuestNotFound, ref.Kind, ref.ID)
	}
	return g, nil
}

// Set applies a parsed path. Text values for image paths are treated as
// image references.
func (m *Model) Set(p Path, value string) error {
	ref := PrimaryGuest
	if p.Kind != "" {
		r, err := m.Ref(p.Kind, p.Index)
		if err != nil {
			return err
		}
		ref = r
	}
	if p.Image != "" {
		return m.SetImage(ref, p.Image, imagecodec.Reference(value))
	}
	if ref.IsPrimary() {
		return m.SetPrimary(p.Field, value)
	}
	return m.SetGuest(ref, p.Field, value)
}

// SetPath parses and applies a legacy string path.
func (m *Model) SetPath(path, value string) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	return m.Set(p, value)
}

// SetPrimary sets a text field of the primary guest.
func (m *Model) SetPrimary(field Field, value string) error {
	p := &m.Primary
	switch field {
	case FieldDOB:
		return m.SetDOB(PrimaryGuest, value)
	case FieldPhone:
		p.Phone = value
	case FieldEmail:
		p.Email = value
	case FieldState:
		p.Address.State = value
	case FieldDistrict:
		p.Address.District = value
	case FieldCity:
		p.Address.City = value
	case FieldPincode:
		p.Address.Pincode = value
	case FieldPurpose:
		p.Purpose = value
	case FieldCheckIn:
		p.CheckIn = value
	case FieldExpectedCheckout:
		p.ExpectedCheckout = value
	case FieldRoomNumber:
		p.RoomNumber = value
	default:
		return setCommon(&p.GuestRecord, field, value)
	}
	return nil
}

// SetGuest sets a text field of an accompanying guest.
func (m *Model) SetGuest(ref GuestRef, field Field, value string) error {
	if ref.IsPrimary() {
		return m.SetPrimary(field, value)
	}
	g, err := m.record(ref)
	if err != nil {
		return err
	}
	if field == FieldDOB {
		m.setDOB(g, value)
		return nil
	}
	return setCommon(g, field, value)
}

func setCommon(g *GuestRecord, field Field, value string) error {
	switch field {
	case FieldName:
		g.Name = value
	case FieldGender:
		g.Gender = Gender(value)
	case FieldIDType:
		g.IDType = IDType(value)
	case FieldIDNumber:
		g.IDNumber = value
	case FieldAge:
		return fmt.Errorf("%w: %s", ErrReadOnly, field)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}

// SetDOB stores the date of birth and recomputes age. An unparsable value
// clears age rather than leaving it stale.
func (m *Model) SetDOB(ref GuestRef, value string) error {
	g, err := m.record(ref)
	if err != nil {
		return err
	}
	m.setDOB(g, value)
	return nil
}

func (m *Model) setDOB(g *GuestRecord, value string) {
	g.DOB = value
	g.Age = nil
	dob, ok := ParseDOB(value)
	if !ok {
		return
	}
	age := AgeOn(dob, m.Now())
	if age < 0 {
		return
	}
	g.Age = &age
}

// SetImage stores a captured image reference, or clears the slot when ref
// is empty.
func (m *Model) SetImage(ref GuestRef, field ImageField, img imagecodec.Reference) error {
	if !field.valid() {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	g, err := m.record(ref)
	if err != nil {
		return err
	}
	g.setImage(field, img)
	return nil
}

// SetErrors replaces the error map.
func (m *Model) SetErrors(errs map[string]string) {
	m.Errors = maps.Clone(errs)
	if m.Errors == nil {
		m.Errors = map[string]string{}
	}
}

func (m *Model) ClearErrors() {
	m.Errors = map[string]string{}
}

// ErrorKey builds the error-map key for a field of the referenced guest:
// the bare field name for the primary guest, "{adult|child}_{field}_{id}"
// otherwise.
func ErrorKey(ref GuestRef, field string) string {
	if ref.IsPrimary() {
		return field
	}
	return fmt.Sprintf("%s_%s_%d", ref.Kind.Singular(), field, ref.ID)
}
