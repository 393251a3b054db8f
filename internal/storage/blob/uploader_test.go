package blob

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/catalog-entry/internal/domain/product"
)

// --- Mock implementations ---

type putCall struct {
	key         string
	body        []byte
	size        int64
	contentType string
}

type mockBucket struct {
	existing  map[string]bool
	existsErr error
	putErr    error
	deleteErr error

	puts    []putCall
	deletes []string
}

func (m *mockBucket) Exists(_ context.Context, key string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	return m.existing[key], nil
}

func (m *mockBucket) Put(_ context.Context, key string, body io.Reader, size int64, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.puts = append(m.puts, putCall{key: key, body: data, size: size, contentType: contentType})
	return nil
}

func (m *mockBucket) Delete(_ context.Context, key string) error {
	m.deletes = append(m.deletes, key)
	return m.deleteErr
}

// --- Helpers ---

var testConfig = Config{
	Account:   "shopassets",
	Domain:    "oss-eu-central-1.aliyuncs.com",
	Container: "product-images",
}

func newTestUploader(bucket Bucket) *Uploader {
	u := NewUploader(testConfig, bucket)
	u.newName = func() string { return "0b1d6f0e-4a43-4b8e-9d3c-1f2a3b4c5d6e" }
	return u
}

// --- Tests ---

func TestUpload(t *testing.T) {
	bucket := &mockBucket{}
	u := newTestUploader(bucket)
	data := []byte("\x89PNG\r\n\x1a\n rest of file")

	url, err := u.Upload(context.Background(), data, "front view.PNG")
	require.NoError(t, err)

	assert.Equal(t,
		"https://shopassets.oss-eu-central-1.aliyuncs.com/product-images/0b1d6f0e-4a43-4b8e-9d3c-1f2a3b4c5d6e.PNG",
		url,
	)
	require.Len(t, bucket.puts, 1)
	assert.Equal(t, "product-images/0b1d6f0e-4a43-4b8e-9d3c-1f2a3b4c5d6e.PNG", bucket.puts[0].key)
	assert.Equal(t, data, bucket.puts[0].body)
	assert.Equal(t, int64(len(data)), bucket.puts[0].size)
	assert.Equal(t, "image/png", bucket.puts[0].contentType)
}

func TestUpload_NoExtension(t *testing.T) {
	bucket := &mockBucket{}
	u := newTestUploader(bucket)

	url, err := u.Upload(context.Background(), []byte("x"), "README")
	require.NoError(t, err)
	assert.Equal(t, "https://shopassets.oss-eu-central-1.aliyuncs.com/product-images/0b1d6f0e-4a43-4b8e-9d3c-1f2a3b4c5d6e", url)
}

func TestUpload_UnsafeExtensionDropped(t *testing.T) {
	const base = "https://shopassets.oss-eu-central-1.aliyuncs.com/product-images/0b1d6f0e-4a43-4b8e-9d3c-1f2a3b4c5d6e"

	for filename, want := range map[string]string{
		"cat.png#1":  base,
		"x.png?v=2":  base,
		"a.p ng":     base,
		"a.jp%20g":   base,
		"a.":         base,
		"photo.jpeg": base + ".jpeg",
		"scan.tiff2": base + ".tiff2",
	} {
		bucket := &mockBucket{}
		u := newTestUploader(bucket)

		url, err := u.Upload(context.Background(), []byte("x"), filename)
		require.NoError(t, err, filename)
		assert.Equal(t, want, url, filename)

		require.Len(t, bucket.puts, 1)
		assert.Equal(t, strings.TrimPrefix(url, "https://shopassets.oss-eu-central-1.aliyuncs.com/"), bucket.puts[0].key,
			"URL must address the stored key for %s", filename)

		require.NoError(t, u.Delete(context.Background(), url))
		assert.Equal(t, []string{bucket.puts[0].key}, bucket.deletes)
	}
}

func TestUpload_UniqueNames(t *testing.T) {
	bucket := &mockBucket{}
	u := NewUploader(testConfig, bucket)

	a, err := u.Upload(context.Background(), []byte("a"), "a.jpg")
	require.NoError(t, err)
	b, err := u.Upload(context.Background(), []byte("b"), "a.jpg")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^https://shopassets\.oss-eu-central-1\.aliyuncs\.com/product-images/[0-9a-f-]{36}\.jpg$`, a)
}

func TestUpload_Collision(t *testing.T) {
	bucket := &mockBucket{existing: map[string]bool{
		"product-images/0b1d6f0e-4a43-4b8e-9d3c-1f2a3b4c5d6e.jpg": true,
	}}
	u := newTestUploader(bucket)

	_, err := u.Upload(context.Background(), []byte("x"), "a.jpg")

	var uerr *product.UploadError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "a.jpg", uerr.Filename)
	assert.ErrorIs(t, err, ErrObjectExists)
	assert.Empty(t, bucket.puts, "collision must not be retried or overwritten")
}

func TestUpload_StorageErrors(t *testing.T) {
	tests := []struct {
		name   string
		bucket *mockBucket
		msg    string
	}{
		{"exists check", &mockBucket{existsErr: errors.New("dial tcp: timeout")}, "check object"},
		{"put", &mockBucket{putErr: errors.New("AccessDenied")}, "put object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestUploader(tt.bucket).Upload(context.Background(), []byte("x"), "photo.png")

			var uerr *product.UploadError
			require.ErrorAs(t, err, &uerr)
			assert.Equal(t, "photo.png", uerr.Filename)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestDelete(t *testing.T) {
	bucket := &mockBucket{}
	u := newTestUploader(bucket)

	url, err := u.Upload(context.Background(), []byte("x"), "a.png")
	require.NoError(t, err)

	require.NoError(t, u.Delete(context.Background(), url))
	assert.Equal(t, []string{"product-images/0b1d6f0e-4a43-4b8e-9d3c-1f2a3b4c5d6e.png"}, bucket.deletes)
}

func TestDelete_ForeignURL(t *testing.T) {
	bucket := &mockBucket{}
	u := newTestUploader(bucket)

	for _, url := range []string{
		"https://elsewhere.example.com/product-images/a.png",
		"https://shopassets.oss-eu-central-1.aliyuncs.com/product-images/",
		"https://shopassets.oss-eu-central-1.aliyuncs.com/product-images/nested/a.png",
	} {
		assert.Error(t, u.Delete(context.Background(), url), url)
	}
	assert.Empty(t, bucket.deletes)
}

func TestDelete_StorageError(t *testing.T) {
	bucket := &mockBucket{deleteErr: errors.New("NoSuchKey")}
	u := newTestUploader(bucket)

	err := u.Delete(context.Background(), u.URL("a.png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete object")
}
