package submission

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strconv"

	"golang.org/x/sync/errgroup"

	"guest-intake/intake/api"
	"guest-intake/intake/form"
	"guest-intake/intake/imagecodec"
)

// Multipart part names shared with the backend.
const (
	PartAccompanyingGuests = "accompanyingGuests"
	PartState              = "state"
	PartDistrict           = "district"
	PartCity               = "city"
	PartPincode            = "pincode"
)

// AccompanyingGuest is one element of the accompanyingGuests JSON part.
// Its images travel as separate parts named "{type}_{index}_{field}".
type AccompanyingGuest struct {
	Type     string `json:"type"`
	Index    int    `json:"index"`
	Name     string `json:"name"`
	DOB      string `json:"dob"`
	Age      *int   `json:"age,omitempty"`
	Gender   string `json:"gender,omitempty"`
	IDType   string `json:"idType,omitempty"`
	IDNumber string `json:"idNumber,omitempty"`
}

// Payload is an encoded multipart registration body.
type Payload struct {
	ContentType string
	Body        []byte
	Parts       []string // part names in write order
}

// GuestImagePart names the binary part of an accompanying guest image.
func GuestImagePart(kind form.Kind, index int, field form.ImageField) string {
	return fmt.Sprintf("%s_%d_%s", kind.Singular(), index, field)
}

type imageJob struct {
	part string
	ref  imagecodec.Reference
	blob *imagecodec.Blob
}

// BuildPayload encodes the model. Empty image slots produce no part.
func BuildPayload(m form.Model) (*Payload, error) {
	p := m.Primary
	text := []struct{ name, value string }{
		{"name", p.Name},
		{"dob", p.DOB},
		{"age", ageText(p.Age)},
		{"gender", string(p.Gender)},
		{"phone", p.Phone},
		{"email", p.Email},
		{PartState, p.Address.State},
		{PartDistrict, p.Address.District},
		{PartCity, p.Address.City},
		{PartPincode, p.Address.Pincode},
		{"purpose", p.Purpose},
		{"checkIn", p.CheckIn},
		{"expectedCheckout", p.ExpectedCheckout},
		{"roomNumber", p.RoomNumber},
		{"idType", string(p.IDType)},
		{"idNumber", p.IDNumber},
	}

	var jobs []*imageJob
	for _, f := range form.ImageFields {
		if ref := p.Image(f); !ref.IsZero() {
			jobs = append(jobs, &imageJob{part: string(f), ref: ref})
		}
	}

	var guests []AccompanyingGuest
	for _, kind := range []form.Kind{form.Adults, form.Children} {
		c, _ := m.Collection(kind)
		for i, g := range c.Records() {
			guests = append(guests, AccompanyingGuest{
				Type:     kind.Singular(),
				Index:    i,
				Name:     g.Name,
				DOB:      g.DOB,
				Age:      g.Age,
				Gender:   string(g.Gender),
				IDType:   string(g.IDType),
				IDNumber: g.IDNumber,
			})
			for _, f := range form.ImageFields {
				if ref := g.Image(f); !ref.IsZero() {
					jobs = append(jobs, &imageJob{part: GuestImagePart(kind, i, f), ref: ref})
				}
			}
		}
	}
	if guests == nil {
		guests = []AccompanyingGuest{}
	}

	var g errgroup.Group
	for _, job := range jobs {
		g.Go(func() error {
			blob, err := imagecodec.Decode(job.ref, job.part)
			if err != nil {
				return fmt.Errorf("submission: image %s: %w", job.part, err)
			}
			job.blob = blob
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	out := &Payload{}
	for _, t := range text {
		if err := w.WriteField(t.name, t.value); err != nil {
			return nil, fmt.Errorf("submission: field %s: %w", t.name, err)
		}
		out.Parts = append(out.Parts, t.name)
	}
	guestJSON, err := json.Marshal(guests)
	if err != nil {
		return nil, fmt.Errorf("submission: encode guests: %w", err)
	}
	if err := w.WriteField(PartAccompanyingGuests, string(guestJSON)); err != nil {
		return nil, fmt.Errorf("submission: field %s: %w", PartAccompanyingGuests, err)
	}
	out.Parts = append(out.Parts, PartAccompanyingGuests)
	for _, job := range jobs {
		if err := api.WriteFilePart(w, job.part, job.blob); err != nil {
			return nil, err
		}
		out.Parts = append(out.Parts, job.part)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("submission: close multipart: %w", err)
	}
	out.ContentType = w.FormDataContentType()
	out.Body = body.Bytes()
	return out, nil
}

func ageText(age *int) string {
	if age == nil {
		return ""
	}
	return strconv.Itoa(*age)
}
