package storage

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"medpassport/internal/auth"
	"medpassport/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeOwner(t *testing.T) {
	assert.Equal(t, "dr_jane_example_com", SanitizeOwner("Dr.Jane@Example.com"))
	assert.Equal(t, "a_b_c", SanitizeOwner(" a+b c "))
	assert.Equal(t, "lekarz___d__pl", SanitizeOwner("lekarz-łódź.pl"))
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"cv.pdf", "cv.pdf", false},
		{"../../etc/passwd", "passwd", false},
		{`C:\Users\jane\GMC certificate.pdf`, "GMC certificate.pdf", false},
		{"", "", true},
		{"..", "", true},
		{"dir/..", "", true},
		{".upload-123", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanName(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFSBucketPutListOpen(t *testing.T) {
	ctx := context.Background()
	b, err := NewFSBucket(t.TempDir(), 1024)
	require.NoError(t, err)

	obj, err := b.Put(ctx, "Dr.Jane@example.com", "../b-notes.txt", strings.NewReader("ward notes"))
	require.NoError(t, err)
	assert.Equal(t, Partition("dr.jane@example.com")+"/b-notes.txt", obj.Key)
	assert.True(t, strings.HasPrefix(obj.Key, "dr_jane_example_com-"))
	assert.Equal(t, int64(10), obj.Size)
	assert.Contains(t, obj.ContentType, "text/plain")

	_, err = b.Put(ctx, "dr.jane@example.com", "a-cert.pdf", strings.NewReader("%PDF-1.4\n"))
	require.NoError(t, err)

	list, err := b.List(ctx, "dr.jane@example.com")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a-cert.pdf", list[0].Name, "listing is sorted by name")
	assert.Equal(t, "b-notes.txt", list[1].Name)

	rc, got, err := b.Open(ctx, obj.Key)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "ward notes", string(body))
	assert.Equal(t, obj.Key, got.Key)

	other, err := b.List(ctx, "someone@else.com")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestPartitionSeparatesLookalikeEmails(t *testing.T) {
	ctx := context.Background()
	b, err := NewFSBucket(t.TempDir(), 1024)
	require.NoError(t, err)

	first, second := "dr.nowak@example.com", "dr_nowak@example.com"
	require.Equal(t, SanitizeOwner(first), SanitizeOwner(second))
	assert.NotEqual(t, Partition(first), Partition(second))
	assert.Equal(t, Partition(first), Partition("  DR.Nowak@Example.com "))

	obj, err := b.Put(ctx, first, "good-standing.pdf", strings.NewReader("%PDF-1.4\n"))
	require.NoError(t, err)

	list, err := b.List(ctx, second)
	require.NoError(t, err)
	assert.Empty(t, list, "a lookalike email sees none of the other user's files")

	assert.True(t, OwnsKey(first, obj.Key))
	assert.False(t, OwnsKey(second, obj.Key))
	assert.False(t, OwnsKey("", obj.Key))

	key, err := Key(second, "good-standing.pdf")
	require.NoError(t, err)
	_, _, err = b.Open(ctx, key)
	assert.Equal(t, 404, errors.HTTPStatus(err))
}

func TestFSBucketOverwriteAndLimit(t *testing.T) {
	ctx := context.Background()
	b, err := NewFSBucket(t.TempDir(), 8)
	require.NoError(t, err)

	_, err = b.Put(ctx, "x@y.z", "f.txt", strings.NewReader("one"))
	require.NoError(t, err)
	obj, err := b.Put(ctx, "x@y.z", "f.txt", strings.NewReader("two!"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), obj.Size, "no versioning, last write wins")

	_, err = b.Put(ctx, "x@y.z", "big.txt", bytes.NewReader(make([]byte, 9)))
	require.Error(t, err)
	assert.Equal(t, 413, errors.HTTPStatus(err))

	list, err := b.List(ctx, "x@y.z")
	require.NoError(t, err)
	assert.Len(t, list, 1, "rejected and temporary files are not listed")
}

func TestFSBucketOpenRejectsBadKeys(t *testing.T) {
	b, err := NewFSBucket(t.TempDir(), 0)
	require.NoError(t, err)

	p := Partition("a@b.c")
	for _, key := range []string{"", "noslash", "a/f.txt", "a_b_c/f.txt", p + "x/f.txt", strings.ToUpper(p) + "/f.txt",
		p + "/../b", p + "/b/c", p + "/.hidden"} {
		_, _, err := b.Open(context.Background(), key)
		assert.Error(t, err, key)
	}

	_, _, err = b.Open(context.Background(), p+"/missing.txt")
	assert.Equal(t, 404, errors.HTTPStatus(err))
}

func TestSignerRoundTrip(t *testing.T) {
	tokens := auth.NewTokenService("0123456789abcdef0123456789abcdef", "medpassport")
	s := NewSigner(tokens, time.Minute, "https://passport.example.com/")

	objectKey, err := Key("dr.jane@example.com", "cv.pdf")
	require.NoError(t, err)
	signed, err := s.SignURL(objectKey)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(signed.URL, "https://passport.example.com/v1/vault/object?token="))
	assert.WithinDuration(t, time.Now().Add(time.Minute), signed.ExpiresAt, 5*time.Second)

	u, err := url.Parse(signed.URL)
	require.NoError(t, err)
	key, err := s.Resolve(u.Query().Get("token"))
	require.NoError(t, err)
	assert.Equal(t, objectKey, key)

	session, _, err := tokens.Issue(auth.TokenTypeSession, objectKey, time.Minute)
	require.NoError(t, err)
	_, err = s.Resolve(session)
	assert.Error(t, err, "a session token is not a signed link")
}
