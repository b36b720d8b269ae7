package form

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guest-intake/intake/imagecodec"
)

var fixedNow = time.Date(2026, time.October, 19, 10, 0, 0, 0, time.Local)

func newModel() *Model {
	return New(WithClock(func() time.Time { return fixedNow }))
}

func TestAgeOn(t *testing.T) {
	cases := []struct {
		dob  string
		want int
	}{
		{"1990-05-01", 36},
		{"1990-10-19", 36},
		{"1990-10-20", 35},
		{"2016-12-31", 9},
		{"2016-10-19", 10},
	}
	for _, tc := range cases {
		dob, ok := ParseDOB(tc.dob)
		require.True(t, ok, tc.dob)
		assert.Equal(t, tc.want, AgeOn(dob, fixedNow), tc.dob)
	}
}

func TestSetDOBDerivesAge(t *testing.T) {
	m := newModel()
	require.NoError(t, m.SetPrimary(FieldDOB, "1990-05-01"))
	require.NotNil(t, m.Primary.Age)
	assert.Equal(t, 36, *m.Primary.Age)

	require.NoError(t, m.SetPrimary(FieldDOB, "not a date"))
	assert.Nil(t, m.Primary.Age, "age must be cleared, not stale")
	assert.Equal(t, "not a date", m.Primary.DOB)

	require.NoError(t, m.SetPrimary(FieldDOB, "2030-01-01"))
	assert.Nil(t, m.Primary.Age)

	require.NoError(t, m.SetPrimary(FieldDOB, "1990-05-01T08:30"))
	require.NotNil(t, m.Primary.Age)
}

func TestAgeIsReadOnly(t *testing.T) {
	m := newModel()
	assert.ErrorIs(t, m.SetPrimary(FieldAge, "40"), ErrReadOnly)
}

func TestSetPrimaryFields(t *testing.T) {
	m := newModel()
	require.NoError(t, m.SetPath("name", "Asha Rao"))
	require.NoError(t, m.SetPath("address.city", "Pune"))
	require.NoError(t, m.SetPath("address.zipCode", "411001"))
	require.NoError(t, m.SetPrimary(FieldRoomNumber, "204"))
	require.NoError(t, m.SetPrimary(FieldGender, "Female"))

	assert.Equal(t, "Asha Rao", m.Primary.Name)
	assert.Equal(t, "Pune", m.Primary.Address.City)
	assert.Equal(t, "411001", m.Primary.Address.Pincode)
	assert.Equal(t, "204", m.Primary.RoomNumber)
	assert.Equal(t, Female, m.Primary.Gender)
}

func TestUnknownPathsFail(t *testing.T) {
	m := newModel()
	assert.ErrorIs(t, m.SetPath("nickname", "x"), ErrUnknownField)
	assert.ErrorIs(t, m.SetPath("adults[0].phone", "x"), ErrUnknownField)
	assert.ErrorIs(t, m.SetPath("adults[0].name", "x"), ErrGuestNotFound)
	assert.ErrorIs(t, m.SetPath("pets[0].name", "x"), ErrBadPath)
	assert.ErrorIs(t, m.SetPrimary(Field("address.country"), "x"), ErrUnknownField)

	ref := GuestRef{Kind: Adults, ID: 99}
	assert.ErrorIs(t, m.SetGuest(ref, FieldName, "x"), ErrGuestNotFound)
	_, _, err := m.AddGuest(Kind("pets"))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestParsePath(t *testing.T) {
	p, err := ParsePath("adults[2].idNumber")
	require.NoError(t, err)
	assert.Equal(t, Path{Kind: Adults, Index: 2, Field: FieldIDNumber}, p)
	assert.Equal(t, "adults[2].idNumber", p.String())

	p, err = ParsePath("children[0].livePhoto")
	require.NoError(t, err)
	assert.Equal(t, LivePhoto, p.Image)

	p, err = ParsePath("idImageBack")
	require.NoError(t, err)
	assert.Equal(t, Path{Index: -1, Image: IDImageBack}, p)
}

func TestAddThenRemoveRestoresCollection(t *testing.T) {
	m := newModel()
	before := m.Adults.Records()

	idx, id, err := m.AddGuest(Adults)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	ref := GuestRef{Kind: Adults, ID: id}
	require.NoError(t, m.SetGuest(ref, FieldName, "Ravi"))
	require.NoError(t, m.SetGuest(ref, FieldDOB, "1985-02-14"))
	require.NoError(t, m.SetImage(ref, LivePhoto, imagecodec.Encode("image/jpeg", []byte{1, 2})))

	require.NoError(t, m.RemoveGuest(Adults, 0))
	assert.Equal(t, before, m.Adults.Records())
	assert.Equal(t, 0, m.Adults.Len())
}

func TestStableIDsSurviveRemoval(t *testing.T) {
	m := newModel()
	_, first, _ := m.AddGuest(Children)
	_, second, _ := m.AddGuest(Children)
	assert.NotEqual(t, first, second)

	secondKey := ErrorKey(GuestRef{Kind: Children, ID: second}, "name")
	firstKey := ErrorKey(GuestRef{Kind: Children, ID: first}, "name")
	m.SetErrors(map[string]string{firstKey: "required", secondKey: "required"})

	require.NoError(t, m.RemoveGuest(Children, 0))
	assert.Equal(t, 0, m.Children.IndexOf(second))
	assert.NotContains(t, m.Errors, firstKey)
	assert.Contains(t, m.Errors, secondKey)
}

func TestSnapshotIsIndependent(t *testing.T) {
	m := newModel()
	require.NoError(t, m.SetPrimary(FieldDOB, "1990-05-01"))
	_, id, _ := m.AddGuest(Adults)
	ref := GuestRef{Kind: Adults, ID: id}
	require.NoError(t, m.SetGuest(ref, FieldName, "Ravi"))

	snap := m.Snapshot()
	require.NoError(t, m.SetGuest(ref, FieldName, "Changed"))
	require.NoError(t, m.SetPrimary(FieldDOB, "2000-01-01"))
	m.Errors["name"] = "required"

	g, ok := snap.Adults.Get(0)
	require.True(t, ok)
	assert.Equal(t, "Ravi", g.Name)
	assert.Equal(t, 36, *snap.Primary.Age)
	assert.Empty(t, snap.Errors)
}

func TestResetClearsEverything(t *testing.T) {
	m := newModel()
	require.NoError(t, m.SetPrimary(FieldName, "Asha"))
	_, id, _ := m.AddGuest(Adults)
	m.SetErrors(map[string]string{"phone": "required"})

	m.Reset()
	assert.Equal(t, Primary{}, m.Primary)
	assert.Equal(t, 0, m.Adults.Len())
	assert.Empty(t, m.Errors)

	_, next, _ := m.AddGuest(Adults)
	assert.Greater(t, next, id)
}

func TestCaptureTarget(t *testing.T) {
	var none CaptureTarget
	assert.True(t, none.IsZero())

	primary := CaptureTarget{Guest: PrimaryGuest, Field: IDImageFront}
	assert.Equal(t, "idImageFront", primary.DestinationKey())

	child := CaptureTarget{Guest: GuestRef{Kind: Children, ID: 4}, Field: LivePhoto}
	assert.Equal(t, "children.livePhoto", child.DestinationKey())
}

func TestSetImageRejectsUnknownSlot(t *testing.T) {
	m := newModel()
	err := m.SetImage(PrimaryGuest, ImageField("selfie"), "")
	assert.True(t, errors.Is(err, ErrUnknownField))
}
