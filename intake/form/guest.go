package form

import (
	"slices"

	"guest-intake/intake/imagecodec"
)

// GuestRecord is the field set shared by every guest on a registration.
type GuestRecord struct {
	ID       GuestID
	Name     string
	DOB      string
	Age      *int // derived from DOB; nil when DOB is empty or unparsable
	Gender   Gender
	IDType   IDType
	IDNumber string

	IDImageFront imagecodec.Reference
	IDImageBack  imagecodec.Reference
	LivePhoto    imagecodec.Reference
}

// Image returns the reference stored in an image slot.
func (g *GuestRecord) Image(f ImageField) imagecodec.Reference {
	switch f {
	case IDImageFront:
		return g.IDImageFront
	case IDImageBack:
		return g.IDImageBack
	case LivePhoto:
		return g.LivePhoto
	}
	return ""
}

func (g *GuestRecord) setImage(f ImageField, ref imagecodec.Reference) {
	switch f {
	case IDImageFront:
		g.IDImageFront = ref
	case IDImageBack:
		g.IDImageBack = ref
	case LivePhoto:
		g.LivePhoto = ref
	}
}

func (g GuestRecord) clone() GuestRecord {
	if g.Age != nil {
		age := *g.Age
		g.Age = &age
	}
	return g
}

// Address of the primary guest.
type Address struct {
	State    string
	District string
	City     string
	Pincode  string
}

// Primary is the guest who anchors the registration.
type Primary struct {
	GuestRecord
	Phone            string
	Email            string
	Address          Address
	Purpose          string
	CheckIn          string
	ExpectedCheckout string
	RoomNumber       string
}

// Collection is an ordered list of accompanying guests of one kind.
type Collection struct {
	kind    Kind
	records []GuestRecord
}

func newCollection(kind Kind) Collection {
	return Collection{kind: kind}
}

func (c *Collection) Kind() Kind { return c.kind }

func (c *Collection) Len() int { return len(c.records) }

// Get returns a copy of the record at index.
func (c *Collection) Get(index int) (GuestRecord, bool) {
	if index < 0 || index >= len(c.records) {
		return GuestRecord{}, false
	}
	return c.records[index].clone(), true
}

// IndexOf returns the current position of id, or -1.
func (c *Collection) IndexOf(id GuestID) int {
	return slices.IndexFunc(c.records, func(r GuestRecord) bool { return r.ID == id })
}

// Records returns copies of all records in order.
func (c *Collection) Records() []GuestRecord {
	if len(c.records) == 0 {
		return nil
	}
	out := make([]GuestRecord, len(c.records))
	for i, r := range c.records {
		out[i] = r.clone()
	}
	return out
}

func (c *Collection) add(id GuestID) int {
	c.records = append(c.records, GuestRecord{ID: id})
	return len(c.records) - 1
}

func (c *Collection) remove(index int) bool {
	if index < 0 || index >= len(c.records) {
		return false
	}
	c.records = slices.Delete(c.records, index, index+1)
	if len(c.records) == 0 {
		c.records = nil
	}
	return true
}

func (c *Collection) record(id GuestID) *GuestRecord {
	if i := c.IndexOf(id); i >= 0 {
		return &c.records[i]
	}
	return nil
}

func (c Collection) clone() Collection {
	out := Collection{kind: c.kind}
	if len(c.records) > 0 {
		out.records = make([]GuestRecord, len(c.records))
		for i, r := range c.records {
			out.records[i] = r.clone()
		}
	}
	return out
}
