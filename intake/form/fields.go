package form

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrUnknownField  = errors.New("form: unknown field")
	ErrUnknownKind   = errors.New("form: unknown guest collection")
	ErrReadOnly      = errors.New("form: field is read-only")
	ErrGuestNotFound = errors.New("form: guest not found")
	ErrBadPath       = errors.New("form: malformed field path")
)

// Field names a text field of a guest record. Address fields carry their
// dotted form.
type Field string

const (
	FieldName             Field = "name"
	FieldDOB              Field = "dob"
	FieldAge              Field = "age"
	FieldGender           Field = "gender"
	FieldIDType           Field = "idType"
	FieldIDNumber         Field = "idNumber"
	FieldPhone            Field = "phone"
	FieldEmail            Field = "email"
	FieldState            Field = "address.state"
	FieldDistrict         Field = "address.district"
	FieldCity             Field = "address.city"
	FieldPincode          Field = "address.pincode"
	FieldPurpose          Field = "purpose"
	FieldCheckIn          Field = "checkIn"
	FieldExpectedCheckout Field = "expectedCheckout"
	FieldRoomNumber       Field = "roomNumber"
)

// ImageField names one of the three photographs a guest record holds.
type ImageField string

const (
	IDImageFront ImageField = "idImageFront"
	IDImageBack  ImageField = "idImageBack"
	LivePhoto    ImageField = "livePhoto"
)

// ImageFields lists image slots in payload order.
var ImageFields = []ImageField{IDImageFront, IDImageBack, LivePhoto}

func (f ImageField) valid() bool {
	switch f {
	case IDImageFront, IDImageBack, LivePhoto:
		return true
	}
	return false
}

var guestFields = map[Field]bool{
	FieldName: true, FieldDOB: true, FieldAge: true, FieldGender: true,
	FieldIDType: true, FieldIDNumber: true,
}

var primaryOnlyFields = map[Field]bool{
	FieldPhone: true, FieldEmail: true, FieldState: true, FieldDistrict: true,
	FieldCity: true, FieldPincode: true, FieldPurpose: true, FieldCheckIn: true,
	FieldExpectedCheckout: true, FieldRoomNumber: true,
}

// Kind selects an accompanying-guest collection.
type Kind string

const (
	Adults   Kind = "adults"
	Children Kind = "children"
)

// Singular is the prefix used in error keys and payload part names.
func (k Kind) Singular() string {
	switch k {
	case Adults:
		return "adult"
	case Children:
		return "child"
	}
	return string(k)
}

func (k Kind) valid() bool { return k == Adults || k == Children }

// GuestID identifies a record for its whole lifetime in the model. Unlike
// collection positions it does not shift when other guests are removed.
type GuestID uint64

// GuestRef addresses the primary guest (zero value) or an accompanying guest.
type GuestRef struct {
	Kind Kind
	ID   GuestID
}

// PrimaryGuest refers to the primary guest.
var PrimaryGuest = GuestRef{}

func (r GuestRef) IsPrimary() bool { return r.Kind == "" }

// CaptureTarget identifies the image slot a pending capture will fill. The
// zero value means no capture is open.
type CaptureTarget struct {
	Guest GuestRef
	Field ImageField
}

func (t CaptureTarget) IsZero() bool { return t.Field == "" }

// DestinationKey is the slot name shown to the capture surface, e.g.
// "idImageFront" or "children.livePhoto".
func (t CaptureTarget) DestinationKey() string {
	if t.Guest.IsPrimary() {
		return string(t.Field)
	}
	return string(t.Guest.Kind) + "." + string(t.Field)
}

// Path is a parsed legacy string path. Index is -1 for the primary guest.
type Path struct {
	Kind  Kind
	Index int
	Field Field
	Image ImageField
}

func (p Path) String() string {
	name := string(p.Field)
	if p.Image != "" {
		name = string(p.Image)
	}
	if p.Kind == "" {
		return name
	}
	return fmt.Sprintf("%s[%d].%s", p.Kind, p.Index, name)
}

var collectionPath = regexp.MustCompile(`^(adults|children)\[(\d+)\]\.([A-Za-z]+)$`)

// ParsePath resolves "name", "address.city", "adults[2].idNumber" and
// similar strings into a typed Path.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Path{}, ErrBadPath
	}
	if m := collectionPath.FindStringSubmatch(s); m != nil {
		idx, err := strconv.Atoi(m[2])
		if err != nil {
			return Path{}, fmt.Errorf("%w: %s", ErrBadPath, s)
		}
		p := Path{Kind: Kind(m[1]), Index: idx}
		if img := ImageField(m[3]); img.valid() {
			p.Image = img
			return p, nil
		}
		f := Field(m[3])
		if !guestFields[f] {
			return Path{}, fmt.Errorf("%w: %s", ErrUnknownField, s)
		}
		p.Field = f
		return p, nil
	}
	if strings.ContainsAny(s, "[]") {
		return Path{}, fmt.Errorf("%w: %s", ErrBadPath, s)
	}
	if s == "address.zipCode" {
		s = string(FieldPincode)
	}
	if img := ImageField(s); img.valid() {
		return Path{Index: -1, Image: img}, nil
	}
	f := Field(s)
	if !guestFields[f] && !primaryOnlyFields[f] {
		return Path{}, fmt.Errorf("%w: %s", ErrUnknownField, s)
	}
	return Path{Index: -1, Field: f}, nil
}

// Gender values accepted by the form.
type Gender string

const (
	Male   Gender = "Male"
	Female Gender = "Female"
	Other  Gender = "Other"
)

var Genders = []Gender{Male, Female, Other}

// IDType is the identity document kind.
type IDType string

const (
	Aadhaar        IDType = "Aadhaar"
	Passport       IDType = "Passport"
	VoterID        IDType = "VoterID"
	DrivingLicense IDType = "DrivingLicense"
	SchoolID       IDType = "SchoolID"
)

// AdultIDTypes apply to the primary guest and accompanying adults.
var AdultIDTypes = []IDType{Aadhaar, Passport, VoterID, DrivingLicense}

// MinorIDTypes apply to children old enough to carry an ID.
var MinorIDTypes = []IDType{Aadhaar, SchoolID, Passport}
