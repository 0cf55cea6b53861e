package modelstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/pushset/pkg/tabular"
)

const minimalBim = `{"name":"m","model":{"tables":[{"name":"Sales","columns":[{"name":"Amount","dataType":"double"}]}]}}`

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func TestStore_LocalRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := New(Options{})
	dir := t.TempDir()
	src := filepath.Join(dir, "in.bim")
	dst := filepath.Join(dir, "out", "nested", "reduced.bim")

	require.NoError(t, store.Write(ctx, src, []byte(minimalBim)))

	db, err := store.Load(ctx, src)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, dst, db))

	again, err := store.Load(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, "Sales", again.Model.Tables[0].Name)
	assert.Equal(t, tabular.DataTypeDouble, again.Model.Tables[0].Columns[0].DataType)
}

func TestStore_LocalNotFound(t *testing.T) {
	_, err := New(Options{}).Load(context.Background(), filepath.Join(t.TempDir(), "missing.bim"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_LocalInvalidDocument(t *testing.T) {
	ctx := context.Background()
	store := New(Options{})
	path := filepath.Join(t.TempDir(), "bad.bim")
	require.NoError(t, store.Write(ctx, path, []byte(`{"name": "x"}`)))

	_, err := store.Load(ctx, path)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "no model")
}

func TestStore_S3(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{"models/sales/model.bim": []byte(minimalBim)}}
	store := NewWithClient(fake)

	db, err := store.Load(ctx, "s3://models/sales/model.bim")
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, "s3://models/sales/push.bim", db))
	assert.Contains(t, string(fake.objects["models/sales/push.bim"]), `"Sales"`)

	_, err = store.Load(ctx, "s3://models/absent.bim")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		in      string
		bucket  string
		key     string
		wantErr bool
	}{
		{in: "s3://bucket/a/b.bim", bucket: "bucket", key: "a/b.bim"},
		{in: "s3://bucket/", wantErr: true},
		{in: "s3:///key", wantErr: true},
		{in: "gs://bucket/key", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			bucket, key, err := ParseS3URI(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("s3://b/k"))
	assert.False(t, IsRemote("./model.bim"))
	assert.False(t, IsRemote("/abs/s3://odd"))
}
