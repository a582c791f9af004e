// Package storage keeps each user's uploaded documents and hands out
// short-lived signed links to them.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"medpassport/internal/errors"
	"medpassport/internal/types"

	"github.com/gabriel-vasile/mimetype"
)

// Bucket stores objects under owner-partitioned keys of the form
// partition(owner)/name.
type Bucket interface {
	Put(ctx context.Context, owner, name string, r io.Reader) (types.VaultObject, error)
	List(ctx context.Context, owner string) ([]types.VaultObject, error)
	Open(ctx context.Context, key string) (io.ReadCloser, types.VaultObject, error)
}

// FSBucket is a Bucket on the local filesystem.
type FSBucket struct {
	dir      string
	maxBytes int64
}

var _ Bucket = (*FSBucket)(nil)

// NewFSBucket creates dir if needed. maxBytes <= 0 means no limit.
func NewFSBucket(dir string, maxBytes int64) (*FSBucket, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.NewIOError(errors.ErrCodeStorageFailed, "Failed to create storage directory", err).
			WithContext("dir", dir)
	}
	return &FSBucket{dir: dir, maxBytes: maxBytes}, nil
}

// SanitizeOwner lowercases owner and replaces every rune outside a-z0-9 with '_'.
func SanitizeOwner(owner string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(owner)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// partitionHashLen is the number of hex digits of the owner hash in a
// partition name.
const partitionHashLen = 16

// Partition names owner's folder: the sanitized email followed by a hash of
// the normalized email. Emails that sanitize alike, such as dr.nowak@ and
// dr_nowak@, still get separate folders.
func Partition(owner string) string {
	normalized := strings.ToLower(strings.TrimSpace(owner))
	if normalized == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalized))
	return SanitizeOwner(normalized) + "-" + hex.EncodeToString(sum[:])[:partitionHashLen]
}

// CleanName reduces a client filename to its base name.
func CleanName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	base := filepath.Base(name)
	if name == "" || base == "." || base == ".." || base == "/" || strings.HasPrefix(base, ".") {
		return "", errors.NewValidationError(errors.ErrCodeInvalidRequest, "Invalid file name", nil).
			WithContext("name", name)
	}
	return base, nil
}

// Key builds the object key for owner and name.
func Key(owner, name string) (string, error) {
	clean, err := CleanName(name)
	if err != nil {
		return "", err
	}
	prefix := Partition(owner)
	if prefix == "" {
		return "", errors.NewValidationError(errors.ErrCodeInvalidRequest, "Owner is required", nil)
	}
	return prefix + "/" + clean, nil
}

// OwnsKey reports whether key lives in owner's partition.
func OwnsKey(owner, key string) bool {
	prefix := Partition(owner)
	return prefix != "" && strings.HasPrefix(key, prefix+"/")
}

// Put writes r to owner's partition under name, replacing any object
// with that name. Uploads above the size limit are rejected.
func (b *FSBucket) Put(ctx context.Context, owner, name string, r io.Reader) (types.VaultObject, error) {
	key, err := Key(owner, name)
	if err != nil {
		return types.VaultObject{}, err
	}
	if err := ctx.Err(); err != nil {
		return types.VaultObject{}, err
	}

	path := b.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return types.VaultObject{}, storageError("create partition", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return types.VaultObject{}, storageError("create temp file", key, err)
	}
	defer os.Remove(tmp.Name())

	src := r
	if b.maxBytes > 0 {
		src = io.LimitReader(r, b.maxBytes+1)
	}
	n, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return types.VaultObject{}, storageError("write", key, err)
	}
	if b.maxBytes > 0 && n > b.maxBytes {
		return types.VaultObject{}, errors.NewValidationError(errors.ErrCodeFileTooLarge, "File exceeds the upload limit", nil).
			WithContext("max_bytes", b.maxBytes)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return types.VaultObject{}, storageError("commit", key, err)
	}
	return b.stat(key)
}

// List returns owner's objects sorted by name.
func (b *FSBucket) List(ctx context.Context, owner string) ([]types.VaultObject, error) {
	prefix := Partition(owner)
	if prefix == "" {
		return []types.VaultObject{}, nil
	}
	entries, err := os.ReadDir(filepath.Join(b.dir, prefix))
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return []types.VaultObject{}, nil
		}
		return nil, storageError("list", prefix, err)
	}

	objects := make([]types.VaultObject, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		obj, err := b.stat(prefix + "/" + entry.Name())
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

// Open returns a reader for key. The caller closes it.
func (b *FSBucket) Open(ctx context.Context, key string) (io.ReadCloser, types.VaultObject, error) {
	if !validKey(key) {
		return nil, types.VaultObject{}, errors.NewValidationError(errors.ErrCodeInvalidRequest, "Invalid object key", nil)
	}
	obj, err := b.stat(key)
	if err != nil {
		return nil, types.VaultObject{}, err
	}
	f, err := os.Open(b.path(key))
	if err != nil {
		return nil, types.VaultObject{}, storageError("open", key, err)
	}
	return f, obj, nil
}

func (b *FSBucket) stat(key string) (types.VaultObject, error) {
	path := b.path(key)
	info, err := os.Stat(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return types.VaultObject{}, errors.NewNotFoundError(errors.ErrCodeNotFound, "Object not found", err).
				WithContext("key", key)
		}
		return types.VaultObject{}, storageError("stat", key, err)
	}

	contentType := "application/octet-stream"
	if m, err := mimetype.DetectFile(path); err == nil && m != nil {
		contentType = m.String()
	}

	return types.VaultObject{
		Key:         key,
		Name:        filepath.Base(key),
		Size:        info.Size(),
		ContentType: contentType,
		UpdatedAt:   info.ModTime().UTC(),
	}, nil
}

func (b *FSBucket) path(key string) string {
	return filepath.Join(b.dir, filepath.FromSlash(key))
}

// validKey accepts exactly partition/name with a well-formed partition and
// a clean name.
func validKey(key string) bool {
	partition, name, ok := strings.Cut(key, "/")
	if !ok || !validPartition(partition) {
		return false
	}
	clean, err := CleanName(name)
	return err == nil && clean == name
}

func validPartition(partition string) bool {
	owner, sum, ok := strings.Cut(partition, "-")
	if !ok || owner == "" || SanitizeOwner(owner) != owner || len(sum) != partitionHashLen {
		return false
	}
	_, err := hex.DecodeString(sum)
	return err == nil && strings.ToLower(sum) == sum
}

func storageError(op, key string, err error) error {
	return errors.NewIOError(errors.ErrCodeStorageFailed, "Storage "+op+" failed", err).WithContext("key", key)
}
