package session

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	nonceLength = 24
	keyInfo     = "reader session store v1"
)

// encryptedMagic prefixes files written by a store configured with a secret.
var encryptedMagic = []byte("RSE1")

// FileStore persists the session as a single JSON document. Writes go to a temporary file
// that is renamed over the target, so readers in this or another process see either the old
// document or the new one.
type FileStore struct {
	mu   sync.RWMutex
	path string
	key  *[32]byte // nil stores plain JSON
}

var _ Store = (*FileStore)(nil)

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore) error

// WithSecret encrypts the file with NaCl secretbox using a key derived from secret.
func WithSecret(secret string) FileStoreOption {
	return func(fs *FileStore) error {
		if secret == "" {
			return nil
		}
		var key [32]byte
		if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key[:]); err != nil {
			return errors.Wrap(err, "derive session key")
		}
		fs.key = &key
		return nil
	}
}

// NewFileStore creates a store at path, creating the parent directory if needed.
func NewFileStore(path string, options ...FileStoreOption) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("[NewFileStore] path is required")
	}
	fs := &FileStore{path: path}
	for _, opt := range options {
		if err := opt(fs); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "NewFileStore os.MkdirAll")
	}
	return fs, nil
}

func (fs *FileStore) Get(context.Context) Session {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(fs.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Err(err).Str("path", fs.path).Msg("Failed to read session file")
		}
		return Session{}
	}

	session, err := fs.decode(data)
	if err != nil {
		log.Err(err).Str("path", fs.path).Msg("Ignoring unreadable session file")
		return Session{}
	}
	return session
}

func (fs *FileStore) Set(_ context.Context, session Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	data, err := fs.encode(session)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	return writeFileAtomic(fs.path, data)
}

func (fs *FileStore) Clear(context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "FileStore.Clear os.Remove")
	}
	return nil
}

func (fs *FileStore) encode(session Session) ([]byte, error) {
	plain, err := json.Marshal(session)
	if err != nil {
		return nil, errors.Wrap(err, "encode session")
	}
	if fs.key == nil {
		return plain, nil
	}

	var nonce [nonceLength]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, errors.Wrap(err, "generate nonce")
	}
	out := append([]byte{}, encryptedMagic...)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, plain, &nonce, fs.key), nil
}

func (fs *FileStore) decode(data []byte) (Session, error) {
	var session Session

	if bytes.HasPrefix(data, encryptedMagic) {
		if fs.key == nil {
			return session, errors.New("session file is encrypted and no secret is configured")
		}
		data = data[len(encryptedMagic):]
		if len(data) < nonceLength+secretbox.Overhead {
			return session, errors.New("session file is truncated")
		}
		var nonce [nonceLength]byte
		copy(nonce[:], data[:nonceLength])
		plain, ok := secretbox.Open(nil, data[nonceLength:], &nonce, fs.key)
		if !ok {
			return session, errors.New("session file failed authentication")
		}
		data = plain
	} else if fs.key != nil {
		return session, errors.New("session file is not encrypted")
	}

	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, errors.Wrap(err, "decode session")
	}
	if err := session.Validate(); err != nil {
		return Session{}, err
	}
	return session, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "writeFileAtomic os.CreateTemp")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writeFileAtomic Write")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writeFileAtomic Sync")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "writeFileAtomic Close")
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return errors.Wrap(err, "writeFileAtomic Chmod")
	}
	return errors.Wrap(os.Rename(tmpName, path), "writeFileAtomic Rename")
}
