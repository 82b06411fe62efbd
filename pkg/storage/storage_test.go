package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/webstart/config"
)

func TestClean(t *testing.T) {
	cases := map[string]string{
		"/css/site.css":        "css/site.css",
		"css/../js/app.js":     "js/app.js",
		"/../../../etc/passwd": "etc/passwd",
		"/":                    "",
		"":                     "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Clean(in), in)
	}
}

func TestLocalDisk(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "css"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "css", "site.css"), []byte("body{}"), 0o644))

	disk := NewLocal(root)
	assert.Equal(t, "local", disk.Name())

	info, err := disk.Stat(context.Background(), "/css/site.css")
	require.NoError(t, err)
	assert.Equal(t, "site.css", info.Name)
	assert.EqualValues(t, 6, info.Size)
	assert.False(t, info.IsDir)

	dir, err := disk.Stat(context.Background(), "css")
	require.NoError(t, err)
	assert.True(t, dir.IsDir)

	rc, err := disk.Open(context.Background(), "css/site.css")
	require.NoError(t, err)
	defer rc.Close()
	_, seekable := rc.(io.ReadSeeker)
	assert.True(t, seekable)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(data))

	_, err = disk.Stat(context.Background(), "missing.txt")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestLocalDiskUnnameablePathsAreMissing(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "app.js"), []byte("1"), 0o644))
	disk := NewLocal(root)

	for _, p := range []string{"app.js/info", strings.Repeat("a", 300), "app.js/" + strings.Repeat("b", 300)} {
		_, err := disk.Stat(context.Background(), p)
		assert.ErrorIs(t, err, ErrNotExist, p)
		assert.NotContains(t, err.Error(), root, "absolute path must not leak")

		_, err = disk.Open(context.Background(), p)
		assert.ErrorIs(t, err, ErrNotExist, p)
	}
}

func TestLocalDiskStaysInRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "public")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("x"), 0o644))

	_, err := NewLocal(root).Stat(context.Background(), "../secret.txt")
	assert.ErrorIs(t, err, ErrNotExist)
}

type fakeS3 struct {
	objects map[string][]byte
	mod     time.Time
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data))), LastModified: aws.Time(f.mod)}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Disk(t *testing.T) {
	mod := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	fake := &fakeS3{objects: map[string][]byte{"site/app.js": []byte("alert(1)")}, mod: mod}
	disk := newS3Disk(fake, "bucket", "/site/")

	assert.Equal(t, "s3", disk.Name())

	info, err := disk.Stat(context.Background(), "/app.js")
	require.NoError(t, err)
	assert.EqualValues(t, 8, info.Size)
	assert.Equal(t, mod, info.ModTime)
	assert.Equal(t, "app.js", info.Name)

	rc, err := disk.Open(context.Background(), "app.js")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "alert(1)", string(data))

	_, err = disk.Stat(context.Background(), "nope.js")
	assert.ErrorIs(t, err, ErrNotExist)
	_, err = disk.Open(context.Background(), "nope.js")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestTranslateLeavesOtherErrors(t *testing.T) {
	boom := errors.New("throttled")
	assert.Same(t, boom, translate(boom))
}

func TestNewSelectsDriver(t *testing.T) {
	cfg := config.Defaults()
	cfg.PublicDir = t.TempDir()

	disk, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "local", disk.Name())

	cfg.StaticDisk = "s3"
	_, err = New(context.Background(), cfg)
	assert.Error(t, err, "bucket is required")

	cfg.StaticDisk = "ftp"
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)
}
