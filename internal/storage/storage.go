// Package storage writes result artifacts to a local folder or an S3 bucket.
package storage

import (
	"bytes"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"
)

// Sink stores named objects. Names use forward slashes.
type Sink interface {
	WriteObject(name string, data []byte) error
	// Location describes where name ends up, for logging.
	Location(name string) string
}

// Open picks a sink for dest: "s3://bucket/prefix" or a local directory.
func Open(dest string) (Sink, error) {
	if dest == "" {
		return nil, errors.New("no output destination configured")
	}
	if strings.HasPrefix(dest, "s3://") {
		bucket, prefix := splitS3URL(dest)
		if bucket == "" {
			return nil, errors.Errorf("invalid S3 destination %q", dest)
		}
		sess, err := session.NewSessionWithOptions(session.Options{SharedConfigState: session.SharedConfigEnable})
		if err != nil {
			return nil, errors.Wrap(err, "creating AWS session")
		}
		return NewS3Sink(s3.New(sess), bucket, prefix), nil
	}
	return NewFSSink(dest)
}

func splitS3URL(u string) (bucket, prefix string) {
	rest := strings.TrimPrefix(u, "s3://")
	parts := strings.SplitN(rest, "/", 2)
	bucket = parts[0]
	if len(parts) == 2 {
		prefix = strings.Trim(parts[1], "/")
	}
	return bucket, prefix
}

// FSSink writes under a root directory, creating subdirectories on demand.
type FSSink struct {
	Root string
}

func NewFSSink(root string) (*FSSink, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating output directory %s", root)
	}
	return &FSSink{Root: root}, nil
}

func (fs *FSSink) Location(name string) string {
	return filepath.Join(fs.Root, filepath.FromSlash(name))
}

func (fs *FSSink) WriteObject(name string, data []byte) error {
	full := fs.Location(name)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", filepath.Dir(full))
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", full)
	}
	return nil
}

// S3Sink uploads objects below an optional key prefix.
type S3Sink struct {
	api    s3iface.S3API
	bucket string
	prefix string
}

func NewS3Sink(api s3iface.S3API, bucket, prefix string) *S3Sink {
	return &S3Sink{api: api, bucket: bucket, prefix: prefix}
}

func (s *S3Sink) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *S3Sink) Location(name string) string {
	return "s3://" + s.bucket + "/" + s.key(name)
}

func (s *S3Sink) WriteObject(name string, data []byte) error {
	_, err := s.api.PutObject(&s3.PutObjectInput{
		Body:   bytes.NewReader(data),
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return errors.Wrapf(err, "uploading %s", s.Location(name))
	}
	return nil
}

// Memory keeps objects in a map. Useful for tests and dry runs.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Location(name string) string {
	return "mem://" + name
}

func (m *Memory) WriteObject(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects[name] = buf
	return nil
}

func (m *Memory) Object(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[name]
	return b, ok
}

func (m *Memory) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.objects))
	for n := range m.objects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
