package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"xdao.co/diamond/model"
)

// KeyStore keeps account seeds as hex files on the local filesystem.
//
// Layout: <dir>/<name>/root.key and <dir>/<name>/roles/<role>.key.
// Role keys are derived from the root seed with DeriveRoleSeed.
type KeyStore struct {
	Directory string
}

// KeyEntry lists one stored account and the roles derived from it.
type KeyEntry struct {
	Name  string
	Roles []string
}

func GetDefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".xdao", "diamond", "keys"), nil
}

func CreateKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = GetDefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func (ks *KeyStore) rootKeyPath(name string) string {
	return filepath.Join(ks.Directory, name, "root.key")
}

func (ks *KeyStore) roleKeyPath(name, role string) string {
	return filepath.Join(ks.Directory, name, "roles", role+".key")
}

func checkIdent(kind, s string) error {
	if s == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}
	for _, c := range s {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in %s", c, kind)
	}
	return nil
}

func CheckKeyName(name string) error { return checkIdent("key name", name) }

func CheckRole(role string) error { return checkIdent("role", role) }

func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimPrefix(strings.TrimSpace(seedHex), "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != ed25519.SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", ed25519.SeedSize, len(data))
	}
	return data, nil
}

func saveSeed(path string, seed []byte, overwrite bool) error {
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("expected seed length of %d bytes", ed25519.SeedSize)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LoadSeedFile reads a hex seed file.
func LoadSeedFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(string(data))
}

// InitializeRootKey stores seed as the root key of name.
func (ks *KeyStore) InitializeRootKey(name string, seed []byte, overwrite bool) (model.Address, string, error) {
	if err := CheckKeyName(name); err != nil {
		return model.Address{}, "", err
	}
	path := ks.rootKeyPath(name)
	if err := saveSeed(path, seed, overwrite); err != nil {
		return model.Address{}, "", err
	}
	addr, err := AddressFromSeed(seed)
	return addr, path, err
}

// DeriveKeyFromRole derives and stores the role key of name.
func (ks *KeyStore) DeriveKeyFromRole(name, role string, overwrite bool) (model.Address, string, error) {
	if err := CheckKeyName(name); err != nil {
		return model.Address{}, "", err
	}
	rootSeed, err := LoadSeedFile(ks.rootKeyPath(name))
	if err != nil {
		return model.Address{}, "", err
	}
	roleSeed, err := DeriveRoleSeed(rootSeed, role)
	if err != nil {
		return model.Address{}, "", err
	}
	path := ks.roleKeyPath(name, role)
	if err := saveSeed(path, roleSeed, overwrite); err != nil {
		return model.Address{}, "", err
	}
	addr, err := AddressFromSeed(roleSeed)
	return addr, path, err
}

// LoadSeed resolves a seed from, in order: a hex string, a key file, or a
// stored name (and optional role).
func (ks *KeyStore) LoadSeed(seedHex, name, role, keyFile string) ([]byte, error) {
	if seedHex != "" {
		return ParseSeedHex(seedHex)
	}
	if keyFile != "" {
		return LoadSeedFile(keyFile)
	}
	if name == "" {
		return nil, errors.New("no signer provided")
	}
	if err := CheckKeyName(name); err != nil {
		return nil, err
	}
	if role == "" {
		return LoadSeedFile(ks.rootKeyPath(name))
	}
	if err := CheckRole(role); err != nil {
		return nil, err
	}
	return LoadSeedFile(ks.roleKeyPath(name, role))
}

// Address returns the Ed25519 account address of a stored key.
func (ks *KeyStore) Address(name, role string) (model.Address, error) {
	seed, err := ks.LoadSeed("", name, role, "")
	if err != nil {
		return model.Address{}, err
	}
	return AddressFromSeed(seed)
}

func (ks *KeyStore) ListKeys() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []KeyEntry
	for _, name := range names {
		var roles []string
		roleEntries, rerr := os.ReadDir(filepath.Join(ks.Directory, name, "roles"))
		if rerr == nil {
			for _, re := range roleEntries {
				if !re.IsDir() && strings.HasSuffix(re.Name(), ".key") {
					roles = append(roles, strings.TrimSuffix(re.Name(), ".key"))
				}
			}
			sort.Strings(roles)
		}
		out = append(out, KeyEntry{Name: name, Roles: roles})
	}
	return out, nil
}
