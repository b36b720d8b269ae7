package routes

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"guest-intake/config"
	"guest-intake/controllers"
	"guest-intake/intake"
	"guest-intake/intake/api"
	"guest-intake/intake/form"
	"guest-intake/intake/imagecodec"
	"guest-intake/intake/verification"
	"guest-intake/metrics"
	"guest-intake/services"
)

var quickVerify = intake.WithVerification(verification.WithDebounce(10 * time.Millisecond))

type fixedOCR struct{ name string }

func (f fixedOCR) ExtractName(context.Context, []byte) (string, error) { return f.name, nil }

type RouterSuite struct {
	suite.Suite
	dir    string
	mock   sqlmock.Sqlmock
	srv    *httptest.Server
	client *api.Client
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.dir = s.T().TempDir()

	sqlDB, mock, err := sqlmock.New()
	s.Require().NoError(err)
	s.mock = mock
	db, err := gorm.Open(gormmysql.New(gormmysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}),
		&gorm.Config{Logger: logger.Discard})
	s.Require().NoError(err)

	cfg := &config.Config{
		Uploads: config.UploadConfig{Dir: s.dir, MaxBytes: 1 << 20},
		CORS:    config.CORSConfig{Origins: []string{"*"}},
	}
	m := metrics.New()
	images := services.NewImageStore(s.dir, cfg.Uploads.MaxBytes, nil)
	router := SetupRouter(Handlers{
		Guests:       controllers.NewGuestController(services.NewGuestService(db, nil), images, m, cfg.Uploads.MaxBytes, nil),
		Images:       controllers.NewImageController(images, m, nil),
		Verification: controllers.NewVerificationController(services.NewVerificationService(images, fixedOCR{name: "ASHA RAO"}, nil), m, nil),
	}, cfg, m, zap.NewNop())

	s.srv = httptest.NewServer(router)
	s.client = api.New(s.srv.URL)
	s.T().Cleanup(func() {
		s.srv.Close()
		_ = sqlDB.Close()
	})
}

func (s *RouterSuite) get(path string) (int, string) {
	resp, err := http.Get(s.srv.URL + path)
	s.Require().NoError(err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func (s *RouterSuite) TestHealthAndMetrics() {
	code, body := s.get("/health")
	s.Equal(http.StatusOK, code)
	s.JSONEq(`{"status":"ok"}`, body)

	code, body = s.get("/metrics")
	s.Equal(http.StatusOK, code)
	s.Contains(body, "go_goroutines")
}

func (s *RouterSuite) TestUploadThenVerify() {
	ctx := context.Background()
	blob := &imagecodec.Blob{Filename: "id.jpg", MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff, 0xe0}}

	url, err := s.client.UploadImage(ctx, blob)
	s.Require().NoError(err)
	s.Regexp(`^/uploads/documents/[0-9A-Z]{26}\.jpg$`, url)

	res, err := s.client.VerifyIDText(ctx, url, "asha rao")
	s.Require().NoError(err)
	s.True(res.Match)
	s.Equal(services.MessageNameMatches, res.Message)

	res, err = s.client.VerifyIDText(ctx, url, "Ravi Kumar")
	s.Require().NoError(err)
	s.False(res.Match)

	_, err = s.client.VerifyIDText(ctx, "/uploads/documents/missing.jpg", "Asha")
	s.Equal("Uploaded image not found", api.MessageOf(err, ""))

	code, body := s.get("/metrics")
	s.Equal(http.StatusOK, code)
	s.Contains(body, `intake_id_verifications_total{result="match"} 1`)
}

func (s *RouterSuite) TestUploadRejectsText() {
	_, err := s.client.UploadImage(context.Background(), &imagecodec.Blob{Filename: "a.txt", MIMEType: "text/plain", Data: []byte("hello")})
	var apiErr *api.Error
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(http.StatusUnsupportedMediaType, apiErr.StatusCode)
}

func (s *RouterSuite) TestFormRegistersEndToEnd() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `registrations`")).
		WillReturnResult(sqlmock.NewResult(12, 1))
	s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `guests`")).
		WillReturnResult(sqlmock.NewResult(30, 2))
	s.mock.ExpectCommit()

	var registered api.RegisterResponse
	f := intake.New(s.client, nil, quickVerify,
		intake.WithClock(func() time.Time { return time.Date(2026, time.October, 19, 9, 0, 0, 0, time.Local) }),
		intake.WithOnRegistered(func(r api.RegisterResponse) { registered = r }))
	defer f.Close()

	fill(s.T(), f)
	_, child, err := f.AddGuest(form.Children)
	s.Require().NoError(err)
	s.Require().NoError(f.SetGuest(child, form.FieldName, "Meera"))
	s.Require().NoError(f.SetGuest(child, form.FieldDOB, "2017-01-15"))
	s.Require().NoError(f.SetImage(child, form.LivePhoto, jpegRef(9)))
	f.WaitVerification()

	resp, err := f.Submit(context.Background())
	s.Require().NoError(err)
	s.Equal(uint(12), resp.RegistrationID)
	s.Len(resp.Reference, 36)
	s.Equal(resp.Reference, registered.Reference)
	s.NoError(s.mock.ExpectationsWereMet())

	stored, err := filepath.Glob(filepath.Join(s.dir, "guests", "*.jpg"))
	s.Require().NoError(err)
	s.Len(stored, 4)
}

func (s *RouterSuite) TestRegisterDatabaseFailureRemovesImages() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `registrations`")).
		WillReturnError(io.ErrUnexpectedEOF)
	s.mock.ExpectRollback()

	f := intake.New(s.client, nil, quickVerify)
	defer f.Close()
	fill(s.T(), f)
	f.WaitVerification()

	_, err := f.Submit(context.Background())
	s.Require().Error(err)
	s.Equal("Could not save the registration", api.MessageOf(err, ""))
	s.Equal("Asha Rao", f.Snapshot().Primary.Name)

	stored, _ := filepath.Glob(filepath.Join(s.dir, "guests", "*"))
	s.Empty(stored)
}

func (s *RouterSuite) TestRegisterRejectsIncompletePayload() {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	s.Require().NoError(w.WriteField("name", "Asha"))
	s.Require().NoError(w.Close())

	_, err := s.client.Register(context.Background(), w.FormDataContentType(), &body)
	var apiErr *api.Error
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(http.StatusBadRequest, apiErr.StatusCode)
	s.Equal("dob: is required", apiErr.Message)
}

func (s *RouterSuite) TestListGuests() {
	s.mock.ExpectQuery("SELECT (.+) FROM `registrations`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	code, body := s.get("/api/registrations/5/guests")
	s.Equal(http.StatusNotFound, code)
	s.Contains(body, "Registration not found")

	code, _ = s.get("/api/registrations/abc/guests")
	s.Equal(http.StatusBadRequest, code)
}

func jpegRef(b byte) imagecodec.Reference {
	return imagecodec.Encode("image/jpeg", []byte{0xff, 0xd8, 0xff, b})
}

func fill(t *testing.T, f *intake.Form) {
	t.Helper()
	values := map[form.Field]string{
		form.FieldName:             "Asha Rao",
		form.FieldDOB:              "1990-05-01",
		form.FieldGender:           "Female",
		form.FieldPhone:            "9820000000",
		form.FieldEmail:            "asha@example.com",
		form.FieldState:            "Kerala",
		form.FieldDistrict:         "Ernakulam",
		form.FieldCity:             "Kochi",
		form.FieldPincode:          "682001",
		form.FieldPurpose:          "Business",
		form.FieldCheckIn:          "2026-10-19T12:00",
		form.FieldExpectedCheckout: "2026-10-20T10:00",
		form.FieldRoomNumber:       "101",
		form.FieldIDType:           "Passport",
		form.FieldIDNumber:         "Z1234567",
	}
	for field, v := range values {
		require.NoError(t, f.SetPrimary(field, v))
	}
	for i, slot := range form.ImageFields {
		require.NoError(t, f.SetImage(form.PrimaryGuest, slot, jpegRef(byte(i))))
	}
}
