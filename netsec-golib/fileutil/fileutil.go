package fileutil

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/netsec-ml/netsec/netsec-golib/awsutil"
	"github.com/netsec-ml/netsec/netsec-golib/errors"
)

// NewReader opens a local or remote path for reading. If the path looks like
// "s3://bucket/path/to/object" then this will read an object from S3. Otherwise, this
// will read a path from the local filesystem.
func NewReader(path string) (io.ReadCloser, error) {
	if awsutil.IsS3URI(path) {
		return awsutil.NewS3Reader(path)
	}
	return os.Open(path)
}

// NamedWriteCloser is a file-like object extending io.WriteCloser with a string Name() similar to os.File.Name()
type NamedWriteCloser = awsutil.NamedWriteCloser

// NewBufferedWriter opens a local or remote path for writing. If the path starts with
// "s3://", then this will write to a local buffer, copying to s3 on close. Otherwise,
// this will write to the local FS, creating parent directories and truncating any
// existing file.
func NewBufferedWriter(path string) (NamedWriteCloser, error) {
	if awsutil.IsS3URI(path) {
		return awsutil.NewBufferedS3Writer(path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.Create(path)
}

// ReadFile reads the contents of a local or remote path.
func ReadFile(path string) ([]byte, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return ioutil.ReadAll(r)
}

// WriteFile writes data to a local or remote path.
func WriteFile(path string, data []byte) (err error) {
	w, err := NewBufferedWriter(path)
	if err != nil {
		return err
	}
	defer errors.Defer(&err, w.Close)

	_, err = w.Write(data)
	return err
}

// Exists returns true if a local path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Size returns the size in bytes of a local file, or 0 if it cannot be stat'd.
func Size(path string) uint64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return uint64(info.Size())
}

// CopyFile copies src to dst, creating parent directories of dst.
func CopyFile(src, dst string) (err error) {
	r, err := NewReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	w, err := NewBufferedWriter(dst)
	if err != nil {
		return err
	}
	defer errors.Defer(&err, w.Close)

	_, err = io.Copy(w, r)
	return err
}
