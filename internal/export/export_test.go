package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	id "dsrengine/pkg/domain"
	"dsrengine/pkg/platform/sentinel"
)

type ServiceSuite struct {
	suite.Suite
	now   time.Time
	blobs *MemoryBlobs
	svc   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.blobs = NewMemoryBlobs()
	s.svc = NewService(s.blobs, NewMemoryIndex(),
		WithKeyPrefix("exports/"),
		WithBaseURL("https://dsr.example.com/"),
		WithClock(func() time.Time { return s.now }),
	)
}

func (s *ServiceSuite) TestPublishThenResolveReturnsPayload() {
	ctx := context.Background()
	rid := id.NewRequestID()
	payload := []byte(`{"request_id":"x","categories":{"contact_info":[]}}`)

	handle, err := s.svc.Publish(ctx, "u1", rid, payload, time.Hour)
	s.Require().NoError(err)
	s.NotEmpty(handle.Token)
	s.Equal("https://dsr.example.com/exports/"+handle.Token, handle.URL)
	s.Equal(s.now.Add(time.Hour), handle.ExpiresAt)
	s.Equal(len(payload), handle.SizeBytes)

	stored, err := s.blobs.Get(ctx, "exports/u1/"+rid.String()+".json.zst")
	s.Require().NoError(err)
	s.NotEqual(payload, stored, "payload is stored compressed")

	dl, err := s.svc.Resolve(ctx, handle.Token)
	s.Require().NoError(err)
	s.Equal(payload, dl.Payload)
	s.Empty(dl.URL)
	s.Equal(rid, dl.Handle.RequestID)
}

func (s *ServiceSuite) TestTokensAreUnique() {
	ctx := context.Background()
	a, err := s.svc.Publish(ctx, "u1", id.NewRequestID(), []byte("{}"), time.Hour)
	s.Require().NoError(err)
	b, err := s.svc.Publish(ctx, "u1", id.NewRequestID(), []byte("{}"), time.Hour)
	s.Require().NoError(err)
	s.NotEqual(a.Token, b.Token)
}

func (s *ServiceSuite) TestResolveAfterExpiry() {
	ctx := context.Background()
	handle, err := s.svc.Publish(ctx, "u1", id.NewRequestID(), []byte("{}"), time.Hour)
	s.Require().NoError(err)

	s.now = s.now.Add(time.Hour)
	_, err = s.svc.Resolve(ctx, handle.Token)
	s.ErrorIs(err, sentinel.ErrExpired)
}

func (s *ServiceSuite) TestResolveUnknownToken() {
	_, err := s.svc.Resolve(context.Background(), "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ServiceSuite) TestPublishRejectsNonPositiveTTL() {
	_, err := s.svc.Publish(context.Background(), "u1", id.NewRequestID(), []byte("{}"), 0)
	s.Error(err)
}

func (s *ServiceSuite) TestPurgeDeletesExpiredPayloads() {
	ctx := context.Background()
	rid := id.NewRequestID()
	old, err := s.svc.Publish(ctx, "u1", rid, []byte(`{"email":"jane@example.com"}`), time.Hour)
	s.Require().NoError(err)
	fresh, err := s.svc.Publish(ctx, "u2", id.NewRequestID(), []byte("{}"), 48*time.Hour)
	s.Require().NoError(err)

	s.now = s.now.Add(2 * time.Hour)
	purged, err := s.svc.Purge(ctx)
	s.Require().NoError(err)
	s.Equal(1, purged)

	_, err = s.blobs.Get(ctx, "exports/u1/"+rid.String()+".json.zst")
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.svc.Resolve(ctx, old.Token)
	s.ErrorIs(err, sentinel.ErrNotFound)

	dl, err := s.svc.Resolve(ctx, fresh.Token)
	s.Require().NoError(err)
	s.Equal([]byte("{}"), dl.Payload)
	s.Equal(1, s.blobs.Len())

	purged, err = s.svc.Purge(ctx)
	s.Require().NoError(err)
	s.Zero(purged)
}

func (s *ServiceSuite) TestPurgeOwnerDropsOnlyThatUsersExports() {
	ctx := context.Background()
	for range 2 {
		_, err := s.svc.Publish(ctx, "u1", id.NewRequestID(), []byte("{}"), time.Hour)
		s.Require().NoError(err)
	}
	other, err := s.svc.Publish(ctx, "u2", id.NewRequestID(), []byte("{}"), time.Hour)
	s.Require().NoError(err)

	purged, err := s.svc.PurgeOwner(ctx, "u1")
	s.Require().NoError(err)
	s.Equal(2, purged)
	s.Equal(1, s.blobs.Len())

	_, err = s.svc.Resolve(ctx, other.Token)
	s.NoError(err)
}

type fakeS3 struct {
	objects   map[string][]byte
	presigned []time.Duration
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, errors.New("missing")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	f.presigned = append(f.presigned, opts.Expires)
	return &v4.PresignedHTTPRequest{URL: "https://bucket.example.com/" + *in.Key + "?sig=1"}, nil
}

func TestS3BlobsPresignUsesRemainingLifetime(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := &fakeS3{objects: map[string][]byte{}}
	svc := NewService(NewS3Blobs(fake, fake, "exports"), NewMemoryIndex(),
		WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()
	rid := id.NewRequestID()

	handle, err := svc.Publish(ctx, "u1", rid, []byte(`{"a":1}`), 72*time.Hour)
	require.NoError(t, err)
	require.Len(t, fake.objects, 1)

	now = now.Add(2 * time.Hour)
	dl, err := svc.Resolve(ctx, handle.Token)
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.example.com/u1/"+rid.String()+".json.zst?sig=1", dl.URL)
	assert.Nil(t, dl.Payload)
	require.Len(t, fake.presigned, 1)
	assert.Equal(t, 70*time.Hour, fake.presigned[0])

	raw, err := NewS3Blobs(fake, fake, "exports").Get(ctx, "u1/"+rid.String()+".json.zst")
	require.NoError(t, err)
	plain, err := decompress(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(plain))
}

func TestSealedExportsAreNeverPresigned(t *testing.T) {
	identity, recipient, err := GenerateIdentity()
	require.NoError(t, err)
	assert.Contains(t, recipient, "age1")
	sealer, err := NewAgeSealer(identity)
	require.NoError(t, err)

	fake := &fakeS3{objects: map[string][]byte{}}
	svc := NewService(NewS3Blobs(fake, fake, "exports"), NewMemoryIndex(), WithSealer(sealer))
	ctx := context.Background()
	rid := id.NewRequestID()

	handle, err := svc.Publish(ctx, "u1", rid, []byte(`{"email":"a@example.com"}`), time.Hour)
	require.NoError(t, err)

	stored := fake.objects["u1/"+rid.String()+".json.zst.age"]
	require.NotEmpty(t, stored)
	_, err = decompress(stored)
	assert.Error(t, err, "blob holds ciphertext")

	dl, err := svc.Resolve(ctx, handle.Token)
	require.NoError(t, err)
	assert.Empty(t, dl.URL)
	assert.Empty(t, fake.presigned)
	assert.JSONEq(t, `{"email":"a@example.com"}`, string(dl.Payload))
}

func TestNewAgeSealerRejectsGarbage(t *testing.T) {
	_, err := NewAgeSealer("not-a-key")
	assert.Error(t, err)
}

func TestS3BlobsDeleteRemovesObject(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{"u1/r.json.zst": []byte("x")}}
	blobs := NewS3Blobs(fake, fake, "exports")

	require.NoError(t, blobs.Delete(context.Background(), "u1/r.json.zst"))
	assert.Empty(t, fake.objects)
	assert.NoError(t, blobs.Delete(context.Background(), "u1/r.json.zst"))
}
