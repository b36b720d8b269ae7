package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"guest-intake/intake"
	"guest-intake/intake/capture"
	"guest-intake/intake/form"
)

// Draft is a registration prepared as a YAML file. Photo paths are
// relative to the draft file.
type Draft struct {
	Primary  PrimaryDraft `yaml:"primary"`
	Adults   []GuestDraft `yaml:"adults"`
	Children []GuestDraft `yaml:"children"`

	dir string
}

type GuestDraft struct {
	Name     string `yaml:"name"`
	DOB      string `yaml:"dob"`
	Gender   string `yaml:"gender"`
	IDType   string `yaml:"idType"`
	IDNumber string `yaml:"idNumber"`
	Photos   Photos `yaml:"photos"`
}

type Photos struct {
	IDImageFront string `yaml:"idImageFront"`
	IDImageBack  string `yaml:"idImageBack"`
	LivePhoto    string `yaml:"livePhoto"`
}

type AddressDraft struct {
	State    string `yaml:"state"`
	District string `yaml:"district"`
	City     string `yaml:"city"`
	Pincode  string `yaml:"pincode"`
}

type PrimaryDraft struct {
	GuestDraft       `yaml:",inline"`
	Phone            string       `yaml:"phone"`
	Email            string       `yaml:"email"`
	Address          AddressDraft `yaml:"address"`
	Purpose          string       `yaml:"purpose"`
	CheckIn          string       `yaml:"checkIn"`
	ExpectedCheckout string       `yaml:"expectedCheckout"`
	RoomNumber       string       `yaml:"roomNumber"`
}

func LoadDraft(path string) (*Draft, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read draft: %w", err)
	}
	var d Draft
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parse draft %s: %w", path, err)
	}
	d.dir = filepath.Dir(path)
	return &d, nil
}

func (p Photos) byField() map[form.ImageField]string {
	return map[form.ImageField]string{
		form.IDImageFront: p.IDImageFront,
		form.IDImageBack:  p.IDImageBack,
		form.LivePhoto:    p.LivePhoto,
	}
}

// Apply types the draft into f and captures every photo through cam.
func (d *Draft) Apply(ctx context.Context, f *intake.Form, cam *capture.FileCamera) error {
	p := d.Primary
	fields := []struct {
		field form.Field
		value string
	}{
		{form.FieldName, p.Name},
		{form.FieldDOB, p.DOB},
		{form.FieldGender, p.Gender},
		{form.FieldPhone, p.Phone},
		{form.FieldEmail, p.Email},
		{form.FieldState, p.Address.State},
		{form.FieldDistrict, p.Address.District},
		{form.FieldCity, p.Address.City},
		{form.FieldPincode, p.Address.Pincode},
		{form.FieldPurpose, p.Purpose},
		{form.FieldCheckIn, p.CheckIn},
		{form.FieldExpectedCheckout, p.ExpectedCheckout},
		{form.FieldRoomNumber, p.RoomNumber},
		{form.FieldIDType, p.IDType},
		{form.FieldIDNumber, p.IDNumber},
	}
	for _, fv := range fields {
		if fv.value == "" {
			continue
		}
		if err := f.SetPrimary(fv.field, fv.value); err != nil {
			return fmt.Errorf("primary %s: %w", fv.field, err)
		}
	}
	if err := d.capturePhotos(ctx, f, cam, form.PrimaryGuest, p.Photos); err != nil {
		return err
	}

	for _, group := range []struct {
		kind   form.Kind
		guests []GuestDraft
	}{{form.Adults, d.Adults}, {form.Children, d.Children}} {
		for i, g := range group.guests {
			_, ref, err := f.AddGuest(group.kind)
			if err != nil {
				return err
			}
			for _, fv := range []struct {
				field form.Field
				value string
			}{
				{form.FieldName, g.Name},
				{form.FieldDOB, g.DOB},
				{form.FieldGender, g.Gender},
				{form.FieldIDType, g.IDType},
				{form.FieldIDNumber, g.IDNumber},
			} {
				if fv.value == "" {
					continue
				}
				if err := f.SetGuest(ref, fv.field, fv.value); err != nil {
					return fmt.Errorf("%s[%d] %s: %w", group.kind, i, fv.field, err)
				}
			}
			if err := d.capturePhotos(ctx, f, cam, ref, g.Photos); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Draft) capturePhotos(ctx context.Context, f *intake.Form, cam *capture.FileCamera, ref form.GuestRef, photos Photos) error {
	byField := photos.byField()
	for _, field := range form.ImageFields {
		path := byField[field]
		if path == "" {
			continue
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(d.dir, path)
		}
		target := form.CaptureTarget{Guest: ref, Field: field}
		cam.Load(capture.FacingFor(target.DestinationKey()), path)
		if err := f.OpenCapture(ctx, target); err != nil {
			return fmt.Errorf("open camera for %s: %w", target.DestinationKey(), err)
		}
		if _, err := f.Capture(); err != nil {
			return fmt.Errorf("capture %s: %w", target.DestinationKey(), err)
		}
	}
	return nil
}
