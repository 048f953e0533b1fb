package cli

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/smallbiznis/petfeeder/internal/backend"
)

// stateFile is the on-disk shape of the CLI state.
type stateFile struct {
	Session   *backend.Session  `json:"session,omitempty"`
	Verifiers map[string]string `json:"verifiers,omitempty"`
}

// FileStore persists the backend session and pending PKCE verifiers in a
// single JSON file readable by the owner only.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load() (*backend.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, err := f.read()
	if err != nil {
		return nil, err
	}
	return st.Session, nil
}

func (f *FileStore) Save(s *backend.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, err := f.read()
	if err != nil {
		return err
	}
	st.Session = s
	return f.write(st)
}

func (f *FileStore) Clear() error {
	return f.Save(nil)
}

func (f *FileStore) SaveVerifier(provider, verifier string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, err := f.read()
	if err != nil {
		return err
	}
	if st.Verifiers == nil {
		st.Verifiers = map[string]string{}
	}
	st.Verifiers[provider] = verifier
	return f.write(st)
}

// TakeVerifier returns and forgets the verifier saved for provider.
func (f *FileStore) TakeVerifier(provider string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, err := f.read()
	if err != nil {
		return "", false, err
	}
	verifier, ok := st.Verifiers[provider]
	if !ok {
		return "", false, nil
	}
	delete(st.Verifiers, provider)
	return verifier, true, f.write(st)
}

func (f *FileStore) read() (stateFile, error) {
	var st stateFile
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	if len(raw) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		return stateFile{}, err
	}
	return st, nil
}

func (f *FileStore) write(st stateFile) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
