package awsutil

import (
	"fmt"
	"io"
	"io/ioutil"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/netsec-ml/netsec/netsec-golib/envutil"
)

var defaultRegion = envutil.GetenvDefault("AWS_REGION", "us-east-1")

// IsS3URI returns true if the path is an s3 uri.
func IsS3URI(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

// ValidateURI checks whether the given uri points to S3.
func ValidateURI(uri string) (*url.URL, error) {
	s3url, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}
	if s3url.Scheme != "s3" {
		return nil, fmt.Errorf("%s is not a s3 path", s3url.String())
	}
	if s3url.Host == "" {
		return nil, fmt.Errorf("%s has no bucket", s3url.String())
	}
	return s3url, nil
}

// Join appends path elements to an s3 uri without cleaning the scheme.
func Join(uri string, elems ...string) string {
	out := strings.TrimSuffix(uri, "/")
	for _, e := range elems {
		e = strings.Trim(filepath.ToSlash(e), "/")
		if e == "" {
			continue
		}
		out += "/" + e
	}
	return out
}

func newClient(uri *url.URL) (*s3.S3, error) {
	sess, err := session.NewSession()
	if err != nil {
		return nil, err
	}

	region, err := objectRegion(sess, uri)
	if err != nil {
		return nil, fmt.Errorf("unable to determine region: %v", err)
	}

	return s3.New(sess, aws.NewConfig().WithRegion(region)), nil
}

func objectRegion(sess *session.Session, uri *url.URL) (string, error) {
	client := s3.New(sess, aws.NewConfig().WithRegion(defaultRegion))

	out, err := client.GetBucketLocation(&s3.GetBucketLocationInput{
		Bucket: aws.String(uri.Host),
	})
	if err != nil {
		return "", err
	}
	if out.LocationConstraint == nil || *out.LocationConstraint == "" {
		return "us-east-1", nil
	}
	return *out.LocationConstraint, nil
}

// NewS3Reader returns a io.ReadCloser that will read the contents
// of the file pointed to by the uri. URI will be of the form
// s3://bucket-name/path/to/file
func NewS3Reader(uri string) (io.ReadCloser, error) {
	s3url, err := ValidateURI(uri)
	if err != nil {
		return nil, err
	}

	client, err := newClient(s3url)
	if err != nil {
		return nil, err
	}

	out, err := client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s3url.Host),
		Key:    aws.String(strings.TrimPrefix(s3url.Path, "/")),
	})
	if err != nil {
		return nil, fmt.Errorf("error getting %s: %v", uri, err)
	}
	return out.Body, nil
}

// S3PutObject writes the contents of the specified reader
// to the specified s3 URI.
func S3PutObject(r io.ReadSeeker, uri string) error {
	s3url, err := ValidateURI(uri)
	if err != nil {
		return err
	}

	client, err := newClient(s3url)
	if err != nil {
		return err
	}

	_, err = client.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(s3url.Host),
		Key:    aws.String(strings.TrimPrefix(s3url.Path, "/")),
		Body:   r,
	})
	return err
}

// NamedWriteCloser is a file-like object extending io.WriteCloser with a string Name() similar to os.File.Name()
type NamedWriteCloser interface {
	io.WriteCloser
	Name() string
}

type bufferedS3Writer struct {
	f     *os.File
	s3uri string
}

// Write writes to disk
func (w bufferedS3Writer) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

// Close flushes to disk, copies the written data to s3, and closes the file
func (w bufferedS3Writer) Close() error {
	defer os.Remove(w.f.Name())
	defer w.f.Close()

	if err := w.f.Sync(); err != nil {
		return err
	}
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	return S3PutObject(w.f, w.s3uri)
}

func (w bufferedS3Writer) Name() string {
	return w.s3uri
}

// NewBufferedS3Writer returns an io.WriteCloser that will write
// to disk and upload to S3 on Close
func NewBufferedS3Writer(uri string) (NamedWriteCloser, error) {
	if _, err := ValidateURI(uri); err != nil {
		return nil, err
	}

	f, err := ioutil.TempFile("", "s3buffer")
	if err != nil {
		return nil, err
	}
	return bufferedS3Writer{f: f, s3uri: uri}, nil
}

// SyncDir uploads every regular file under localDir to the s3 prefix uri,
// keeping relative paths. It returns the number of uploaded objects.
func SyncDir(localDir, uri string) (int, error) {
	if _, err := ValidateURI(uri); err != nil {
		return 0, err
	}

	var count int
	err := filepath.Walk(localDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		if err := S3PutObject(f, Join(uri, rel)); err != nil {
			return fmt.Errorf("error uploading %s: %v", path, err)
		}
		count++
		return nil
	})
	return count, err
}
