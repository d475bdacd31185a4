package sniffer_test

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"touris/api/internal/media/sniffer"
)

func TestDetectHead(t *testing.T) {
	cases := []struct {
		name string
		head []byte
		want sniffer.MediaType
	}{
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0, 0x00}, sniffer.TypeJPEG},
		{"png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00}, sniffer.TypePNG},
		{"webp", []byte("RIFF\x10\x00\x00\x00WEBPVP8 "), sniffer.TypeWEBP},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := sniffer.DetectHead(tc.head)
			require.NoError(t, err)
			assert.Equal(t, tc.want, result.Type)
		})
	}
}

func TestDetectHeadRejectsOtherFormats(t *testing.T) {
	for _, head := range [][]byte{
		nil,
		[]byte("GIF89a......"),
		[]byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`),
		[]byte("plain text"),
	} {
		_, err := sniffer.DetectHead(head)
		assert.ErrorIs(t, err, sniffer.ErrUnknownType)
	}
}

func TestDetectReturnsConsumedHead(t *testing.T) {
	body := append([]byte{0xff, 0xd8, 0xff, 0xe1}, bytes.Repeat([]byte{0x01}, 1024)...)
	result, head, err := sniffer.Detect(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", result.MIME)
	assert.Equal(t, "jpg", result.Extension())
	assert.Len(t, head, 512)
}

func TestMimeTypeFromHTTP(t *testing.T) {
	header := http.Header{}
	header.Set("Content-Type", "Image/PNG; charset=binary")
	assert.Equal(t, "image/png", sniffer.MimeTypeFromHTTP(header))
	assert.Equal(t, "", sniffer.MimeTypeFromHTTP(http.Header{}))
}
