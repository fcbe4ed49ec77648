package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeJobRequest_Legacy(t *testing.T) {
	r, err := DecodeJobRequest("photos/abc.jpg,12345")
	require.NoError(t, err)
	require.Equal(t, JobRequest{ImageKey: "photos/abc.jpg", ChatID: "12345"}, r)
}

func TestDecodeJobRequest_LegacyKeyWithComma(t *testing.T) {
	r, err := DecodeJobRequest("photos/a,b.jpg,42")
	require.NoError(t, err)
	require.Equal(t, "photos/a,b.jpg", r.ImageKey)
	require.Equal(t, "42", r.ChatID)
}

func TestDecodeJobRequest_JSONRoundTrip(t *testing.T) {
	body, err := EncodeJobRequest(JobRequest{ImageKey: "photos/a,b.jpg", ChatID: "7"})
	require.NoError(t, err)

	r, err := DecodeJobRequest(body)
	require.NoError(t, err)
	require.Equal(t, "photos/a,b.jpg", r.ImageKey)
	require.Equal(t, "7", r.ChatID)
}

func TestDecodeJobRequest_Invalid(t *testing.T) {
	for _, body := range []string{"", "no-comma", ",123", "photos/a.jpg,", "{bad json"} {
		_, err := DecodeJobRequest(body)
		require.ErrorIs(t, err, ErrInvalidJobBody, body)
	}
}

func TestJobRequest_ValidateNamesField(t *testing.T) {
	err := JobRequest{ImageKey: "photos/a.jpg", ChatID: "   "}.Validate()
	require.ErrorIs(t, err, ErrInvalidJobBody)
	require.Contains(t, err.Error(), "chat_id is required")

	err = JobRequest{ChatID: "1"}.Validate()
	require.ErrorIs(t, err, ErrInvalidJobBody)
	require.Contains(t, err.Error(), "image_key is required")

	_, err = DecodeJobRequest(`{"image_key":" ","chat_id":"1"}`)
	require.ErrorIs(t, err, ErrInvalidJobBody)

	_, err = EncodeJobRequest(JobRequest{ImageKey: "photos/a.jpg"})
	require.ErrorIs(t, err, ErrInvalidJobBody)
}
