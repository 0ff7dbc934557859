// Package vpn provides VPN connection management functionality.
// This file contains the Profile and ProfileStore types for managing
// WireSock connection profiles and the persisted settings record.
package vpn

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yllada/wiresock-manager/common"
)

// Profile is a named WireSock configuration.
type Profile struct {
	// Name is the user-chosen key. It is the map key in the settings file.
	Name string `yaml:"-"`
	// ConfigFile is the file name inside the managed configs directory.
	ConfigFile string `yaml:"config_file"`
	// Imported is when the profile file was copied in.
	Imported time.Time `yaml:"imported"`
	// LastUsed is when the profile last connected successfully.
	LastUsed time.Time `yaml:"last_used,omitempty"`
}

// Settings is the persisted record owned by ProfileStore.
type Settings struct {
	BinaryPath     string              `yaml:"binary_path"`
	Profiles       map[string]*Profile `yaml:"profiles"`
	DefaultProfile string              `yaml:"default_profile,omitempty"`
	Autostart      bool                `yaml:"autostart"`
	Language       string              `yaml:"language,omitempty"`
}

// ProfileStore is the durable mapping of profile name to config file plus
// the client binary path. Every mutation rewrites the settings snapshot.
type ProfileStore struct {
	mu           sync.RWMutex
	settings     Settings
	dataDir      string
	configsDir   string
	settingsFile string
}

// NewProfileStore opens the store rooted at dataDir, creating the
// directory layout on first use and loading an existing snapshot.
func NewProfileStore(dataDir string) (*ProfileStore, error) {
	configsDir := filepath.Join(dataDir, common.ConfigsDirName)
	if err := common.EnsureDir(configsDir); err != nil {
		return nil, fmt.Errorf("failed to create configs directory: %w", err)
	}

	ps := &ProfileStore{
		dataDir:      dataDir,
		configsDir:   configsDir,
		settingsFile: filepath.Join(dataDir, common.SettingsFileName),
	}

	if err := ps.Load(); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	return ps, nil
}

// Load reads the settings file. A missing or empty file yields defaults.
func (ps *ProfileStore) Load() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	settings := Settings{Profiles: make(map[string]*Profile)}

	file, err := os.Open(ps.settingsFile)
	if err != nil {
		if os.IsNotExist(err) {
			ps.settings = settings
			return nil
		}
		return fmt.Errorf("failed to read settings file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(bufio.NewReader(file))
	decoder.KnownFields(true)
	if err := decoder.Decode(&settings); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse settings file: %w", err)
	}

	if settings.Profiles == nil {
		settings.Profiles = make(map[string]*Profile)
	}
	for name, p := range settings.Profiles {
		if p == nil {
			delete(settings.Profiles, name)
			continue
		}
		p.Name = name
	}
	if _, ok := settings.Profiles[settings.DefaultProfile]; !ok {
		settings.DefaultProfile = ""
	}

	ps.settings = settings
	return nil
}

// save persists the snapshot. Caller must hold ps.mu.
func (ps *ProfileStore) save() error {
	data, err := yaml.Marshal(&ps.settings)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfigSave, err)
	}

	if err := common.WriteFileAtomic(ps.settingsFile, data, 0600); err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfigSave, err)
	}

	return nil
}

// Resolve returns the absolute path of the config file for name. A profile
// whose managed file was removed behind the store's back is reported as
// not found.
func (ps *ProfileStore) Resolve(name string) (string, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	p, ok := ps.settings.Profiles[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", common.ErrProfileNotFound, name)
	}
	path := filepath.Join(ps.configsDir, p.ConfigFile)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %q: config file %s is missing", common.ErrProfileNotFound, name, path)
	}
	return path, nil
}

// Get returns a copy of the named profile.
func (ps *ProfileStore) Get(name string) (Profile, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	p, ok := ps.settings.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", common.ErrProfileNotFound, name)
	}
	return *p, nil
}

// List returns copies of all profiles sorted by name.
func (ps *ProfileStore) List() []Profile {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	profiles := make([]Profile, 0, len(ps.settings.Profiles))
	for _, p := range ps.settings.Profiles {
		profiles = append(profiles, *p)
	}
	sort.Slice(profiles, func(i, j int) bool {
		return strings.ToLower(profiles[i].Name) < strings.ToLower(profiles[j].Name)
	})
	return profiles
}

// Import copies sourceFile into the managed configs directory under name.
func (ps *ProfileStore) Import(name, sourceFile string) error {
	name, err := validateName(name)
	if err != nil {
		return err
	}
	if err := validateConfigFile(sourceFile); err != nil {
		return err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	if _, exists := ps.settings.Profiles[name]; exists {
		return fmt.Errorf("%w: %q", common.ErrDuplicateName, name)
	}

	fileName, err := ps.copyIntoConfigs(sourceFile)
	if err != nil {
		return err
	}

	ps.settings.Profiles[name] = &Profile{
		Name:       name,
		ConfigFile: fileName,
		Imported:   time.Now(),
	}

	if err := ps.save(); err != nil {
		delete(ps.settings.Profiles, name)
		os.Remove(filepath.Join(ps.configsDir, fileName))
		return err
	}

	common.LogInfo("Imported profile %q from %s", name, sourceFile)
	return nil
}

// copyIntoConfigs copies src keeping its base name, adding a numeric
// suffix when a file of that name is already managed.
func (ps *ProfileStore) copyIntoConfigs(src string) (string, error) {
	base := filepath.Base(src)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for i := 0; i < 1000; i++ {
		candidate := base
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		err := common.CopyFile(src, filepath.Join(ps.configsDir, candidate))
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free file name for %s in %s", base, ps.configsDir)
}

// Rename changes a profile's key. The backing file is unchanged.
func (ps *ProfileStore) Rename(oldName, newName string) error {
	newName, err := validateName(newName)
	if err != nil {
		return err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	p, ok := ps.settings.Profiles[oldName]
	if !ok {
		return fmt.Errorf("%w: %q", common.ErrProfileNotFound, oldName)
	}
	if oldName == newName {
		return nil
	}
	if _, exists := ps.settings.Profiles[newName]; exists {
		return fmt.Errorf("%w: %q", common.ErrDuplicateName, newName)
	}

	delete(ps.settings.Profiles, oldName)
	p.Name = newName
	ps.settings.Profiles[newName] = p
	if ps.settings.DefaultProfile == oldName {
		ps.settings.DefaultProfile = newName
	}

	return ps.save()
}

// Delete removes the mapping and its backing file.
func (ps *ProfileStore) Delete(name string) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	p, ok := ps.settings.Profiles[name]
	if !ok {
		return fmt.Errorf("%w: %q", common.ErrProfileNotFound, name)
	}

	if err := os.Remove(filepath.Join(ps.configsDir, p.ConfigFile)); err != nil && !os.IsNotExist(err) {
		common.LogWarn("Could not remove config file for %q: %v", name, err)
	}

	delete(ps.settings.Profiles, name)
	if ps.settings.DefaultProfile == name {
		ps.settings.DefaultProfile = ""
	}

	return ps.save()
}

// MarkUsed updates the LastUsed timestamp for a profile.
func (ps *ProfileStore) MarkUsed(name string) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	p, ok := ps.settings.Profiles[name]
	if !ok {
		return fmt.Errorf("%w: %q", common.ErrProfileNotFound, name)
	}
	p.LastUsed = time.Now()
	return ps.save()
}

// BinaryPath returns the configured client binary, or the platform default.
func (ps *ProfileStore) BinaryPath() string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	if ps.settings.BinaryPath == "" {
		return common.DefaultBinaryPath()
	}
	return ps.settings.BinaryPath
}

// SetBinaryPath stores a new client location. The file must exist.
func (ps *ProfileStore) SetBinaryPath(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: %s", common.ErrBinaryNotFound, path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.settings.BinaryPath = abs
	return ps.save()
}

// DefaultProfile returns the profile connected on startup, if any.
func (ps *ProfileStore) DefaultProfile() string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.settings.DefaultProfile
}

// SetDefaultProfile sets the startup profile. An empty name clears it.
func (ps *ProfileStore) SetDefaultProfile(name string) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if name != "" {
		if _, ok := ps.settings.Profiles[name]; !ok {
			return fmt.Errorf("%w: %q", common.ErrProfileNotFound, name)
		}
	}
	ps.settings.DefaultProfile = name
	return ps.save()
}

// Autostart reports whether the default profile connects on startup.
func (ps *ProfileStore) Autostart() bool {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.settings.Autostart
}

// SetAutostart toggles connecting the default profile on startup.
func (ps *ProfileStore) SetAutostart(enabled bool) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.settings.Autostart = enabled
	return ps.save()
}

// Language returns the stored UI language code.
func (ps *ProfileStore) Language() string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.settings.Language
}

// SetLanguage stores the UI language code.
func (ps *ProfileStore) SetLanguage(code string) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.settings.Language = strings.TrimSpace(code)
	return ps.save()
}

// StartupProfile returns the profile to connect on startup, or "" when
// autostart is off or no default is set.
func (ps *ProfileStore) StartupProfile() string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	if !ps.settings.Autostart {
		return ""
	}
	return ps.settings.DefaultProfile
}

// ConfigsDir returns the managed configs directory.
func (ps *ProfileStore) ConfigsDir() string {
	return ps.configsDir
}

// SettingsFile returns the path of the settings snapshot.
func (ps *ProfileStore) SettingsFile() string {
	return ps.settingsFile
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", common.ErrInvalidName)
	}
	if strings.ContainsAny(name, "\r\n\t") {
		return "", fmt.Errorf("%w: %q contains control characters", common.ErrInvalidName, name)
	}
	return name, nil
}

// validateConfigFile checks that path looks like a WireSock profile.
func validateConfigFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file not found: %w", err)
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: not a regular file", common.ErrInvalidConfig)
	}

	if !strings.EqualFold(filepath.Ext(path), common.ProfileExtension) {
		return fmt.Errorf("%w: expected %s extension", common.ErrInvalidConfig, common.ProfileExtension)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if !strings.Contains(strings.ToLower(string(data)), "[interface]") {
		return fmt.Errorf("%w: missing [Interface] section", common.ErrInvalidConfig)
	}

	return nil
}
