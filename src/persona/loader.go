package persona

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"kaiwa/src/config"
	apperrors "kaiwa/src/errors"
)

//go:embed data/*.toml
var embeddedProfiles embed.FS

var (
	profileCache     = make(map[string]*Profile)
	profileCacheLock sync.RWMutex
)

// Load returns a profile by name or alias, checking the user persona
// directory first and falling back to the embedded defaults. Loaded profiles
// are cached process-wide; they are read-only after load.
func Load(nameOrAlias string) (*Profile, error) {
	normalized := strings.ToLower(strings.TrimSpace(nameOrAlias))
	if normalized == "" {
		return nil, &apperrors.ProfileError{Name: nameOrAlias, Err: apperrors.ErrProfileNotFound}
	}

	profileCacheLock.RLock()
	if cached, ok := profileCache[normalized]; ok {
		profileCacheLock.RUnlock()
		return cached, nil
	}
	profileCacheLock.RUnlock()

	profile, err := loadFromUserDir(normalized)
	if err == nil {
		cacheProfile(normalized, profile)
		return profile, nil
	}

	profile, err = loadFromEmbedded(normalized)
	if err != nil {
		return nil, &apperrors.ProfileError{Name: nameOrAlias, Err: apperrors.ErrProfileNotFound}
	}

	cacheProfile(normalized, profile)
	return profile, nil
}

// List returns every available profile, user-defined ones shadowing embedded
// ones of the same name, sorted by name.
func List() ([]*Profile, error) {
	byName := make(map[string]*Profile)

	entries, err := embeddedProfiles.ReadDir("data")
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		data, err := embeddedProfiles.ReadFile(filepath.Join("data", entry.Name()))
		if err != nil {
			continue
		}
		profile, err := parseProfile(data)
		if err != nil {
			continue
		}
		byName[strings.ToLower(profile.Name())] = profile
	}

	if userEntries, err := os.ReadDir(config.PersonasDir()); err == nil {
		for _, entry := range userEntries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
				continue
			}
			data, err := os.ReadFile(filepath.Join(config.PersonasDir(), entry.Name()))
			if err != nil {
				continue
			}
			profile, err := parseProfile(data)
			if err != nil {
				continue
			}
			byName[strings.ToLower(profile.Name())] = profile
		}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	profiles := make([]*Profile, 0, len(names))
	for _, name := range names {
		profiles = append(profiles, byName[name])
	}
	return profiles, nil
}

func loadFromUserDir(name string) (*Profile, error) {
	data, err := os.ReadFile(filepath.Join(config.PersonasDir(), name+".toml"))
	if err != nil {
		return nil, err
	}
	return parseProfile(data)
}

func loadFromEmbedded(name string) (*Profile, error) {
	data, err := embeddedProfiles.ReadFile(fmt.Sprintf("data/%s.toml", name))
	if err == nil {
		return parseProfile(data)
	}

	// Fall back to an alias search across all embedded profiles.
	entries, err := embeddedProfiles.ReadDir("data")
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		data, err := embeddedProfiles.ReadFile(filepath.Join("data", entry.Name()))
		if err != nil {
			continue
		}
		profile, err := parseProfile(data)
		if err != nil {
			continue
		}
		for _, alias := range profile.Metadata.Aliases {
			if strings.EqualFold(alias, name) {
				return profile, nil
			}
		}
	}
	return nil, apperrors.ErrProfileNotFound
}

func parseProfile(data []byte) (*Profile, error) {
	var profile Profile
	if _, err := toml.Decode(string(data), &profile); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrProfileInvalid, err)
	}
	if profile.Metadata.Name == "" {
		return nil, fmt.Errorf("%w: missing metadata.name", apperrors.ErrProfileInvalid)
	}
	return &profile, nil
}

func cacheProfile(name string, profile *Profile) {
	profileCacheLock.Lock()
	defer profileCacheLock.Unlock()
	profileCache[name] = profile
}
