// Package imagecodec converts captured image references to uploadable blobs.
package imagecodec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformed is returned when a reference is not a base64 data URL.
var ErrMalformed = errors.New("imagecodec: malformed image reference")

// Reference is an encoded still image in data URL form,
// e.g. "data:image/jpeg;base64,/9j/4AAQ...".
type Reference string

// Blob is a decoded image ready to be attached to a multipart request.
type Blob struct {
	Filename string
	MIMEType string
	Data     []byte
}

// Reader returns a fresh reader over the blob bytes.
func (b *Blob) Reader() io.Reader {
	return bytes.NewReader(b.Data)
}

// Size is the byte length of the decoded image.
func (b *Blob) Size() int {
	return len(b.Data)
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"image/heic": ".heic",
}

// ExtensionFor returns the file extension used for a MIME type.
func ExtensionFor(mime string) string {
	if ext, ok := extensions[strings.ToLower(mime)]; ok {
		return ext
	}
	return ".bin"
}

// Encode wraps raw image bytes into a data URL reference.
func Encode(mime string, data []byte) Reference {
	var sb strings.Builder
	sb.Grow(len("data:;base64,") + len(mime) + base64.StdEncoding.EncodedLen(len(data)))
	sb.WriteString("data:")
	sb.WriteString(mime)
	sb.WriteString(";base64,")
	sb.WriteString(base64.StdEncoding.EncodeToString(data))
	return Reference(sb.String())
}

// IsZero reports whether no image has been captured.
func (r Reference) IsZero() bool {
	return strings.TrimSpace(string(r)) == ""
}

// MIMEType returns the media type declared in the header, or "" when the
// header cannot be parsed.
func (r Reference) MIMEType() string {
	mime, _, err := splitHeader(string(r))
	if err != nil {
		return ""
	}
	return mime
}

func splitHeader(s string) (string, string, error) {
	if !strings.HasPrefix(s, "data:") {
		return "", "", fmt.Errorf("%w: missing data: scheme", ErrMalformed)
	}
	comma := strings.IndexByte(s, ',')
	if comma < 0 {
		return "", "", fmt.Errorf("%w: missing payload separator", ErrMalformed)
	}
	header := s[len("data:"):comma]
	params := strings.Split(header, ";")
	mime := strings.TrimSpace(params[0])
	if mime == "" || !strings.Contains(mime, "/") {
		return "", "", fmt.Errorf("%w: missing media type", ErrMalformed)
	}
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}
	if !isBase64 {
		return "", "", fmt.Errorf("%w: payload is not base64", ErrMalformed)
	}
	return strings.ToLower(mime), s[comma+1:], nil
}

// Decode parses the data URL header and decodes the full payload. The
// filename is basename plus the extension implied by the MIME type.
func Decode(ref Reference, basename string) (*Blob, error) {
	mime, payload, err := splitHeader(string(ref))
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if basename == "" {
		basename = "image"
	}
	return &Blob{
		Filename: basename + ExtensionFor(mime),
		MIMEType: mime,
		Data:     data,
	}, nil
}
