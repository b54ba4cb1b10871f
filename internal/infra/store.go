package infra

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	// Ensure sqlcipher driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/dkpark22-ai/TurnOffApp/internal/domain"
)

const settingsDBName = "settings.db"

// SettingsDB implements domain.SettingsStore using a SQLCipher encrypted
// SQLite database. Sets are stored as JSON arrays; schedule order is
// preserved via an explicit position column because the first active
// schedule wins at resolution time.
type SettingsDB struct {
	db     *sql.DB
	dbPath string
}

// NewSettingsDB opens (or creates) the encrypted settings database.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewSettingsDB(dataDir string, key []byte) (*SettingsDB, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, settingsDBName)
	keyHex := hex.EncodeToString(key)

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	store := &SettingsDB{db: db, dbPath: dbPath}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return store, nil
}

func (s *SettingsDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		start_minute INTEGER NOT NULL,
		end_minute INTEGER NOT NULL,
		days TEXT NOT NULL,
		enabled INTEGER NOT NULL,
		blocked_apps TEXT NOT NULL,
		blocked_websites TEXT NOT NULL,
		position INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS focus_profiles (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL,
		blocked_apps TEXT NOT NULL,
		blocked_websites TEXT NOT NULL,
		allow_breaks INTEGER NOT NULL DEFAULT 0,
		break_interval_minutes INTEGER NOT NULL DEFAULT 0,
		break_duration_minutes INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS manual_blocklist (
		kind TEXT NOT NULL,
		entry TEXT NOT NULL,
		PRIMARY KEY (kind, entry)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// DBPath returns the database file path (for tests and the status command).
func (s *SettingsDB) DBPath() string {
	return s.dbPath
}

// LoadSchedules returns all schedules in persisted order.
// A malformed row poisons the whole collection: the caller gets an error
// and treats the set as empty rather than enforcing half a policy.
func (s *SettingsDB) LoadSchedules() ([]domain.Schedule, error) {
	rows, err := s.db.Query(`
		SELECT id, name, start_minute, end_minute, days, enabled,
		       blocked_apps, blocked_websites
		FROM schedules ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []domain.Schedule
	for rows.Next() {
		var sc domain.Schedule
		var days, apps, sites string
		var enabled int
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.StartMinute, &sc.EndMinute,
			&days, &enabled, &apps, &sites); err != nil {
			return nil, err
		}
		sc.Enabled = enabled != 0
		if sc.Days, err = decodeIntSet(days); err != nil {
			return nil, fmt.Errorf("malformed schedule %s: %w", sc.ID, err)
		}
		if sc.BlockedApps, err = decodeStringSet(apps); err != nil {
			return nil, fmt.Errorf("malformed schedule %s: %w", sc.ID, err)
		}
		if sc.BlockedWebsites, err = decodeStringSet(sites); err != nil {
			return nil, fmt.Errorf("malformed schedule %s: %w", sc.ID, err)
		}
		schedules = append(schedules, sc)
	}
	return schedules, rows.Err()
}

// SaveSchedule inserts or updates a schedule. New schedules are appended at
// the end of the persisted order.
func (s *SettingsDB) SaveSchedule(sc domain.Schedule) error {
	days, err := encodeIntSet(sc.Days)
	if err != nil {
		return err
	}
	apps, err := encodeStringSet(sc.BlockedApps)
	if err != nil {
		return err
	}
	sites, err := encodeStringSet(sc.BlockedWebsites)
	if err != nil {
		return err
	}

	enabled := 0
	if sc.Enabled {
		enabled = 1
	}

	_, err = s.db.Exec(`
		INSERT INTO schedules
			(id, name, start_minute, end_minute, days, enabled,
			 blocked_apps, blocked_websites, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?,
			COALESCE((SELECT position FROM schedules WHERE id = ?),
			         (SELECT COALESCE(MAX(position), 0) + 1 FROM schedules)))
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			start_minute = excluded.start_minute,
			end_minute = excluded.end_minute,
			days = excluded.days,
			enabled = excluded.enabled,
			blocked_apps = excluded.blocked_apps,
			blocked_websites = excluded.blocked_websites`,
		sc.ID, sc.Name, sc.StartMinute, sc.EndMinute, days, enabled, apps, sites, sc.ID)
	return err
}

// DeleteSchedule removes a schedule by id.
func (s *SettingsDB) DeleteSchedule(id string) error {
	_, err := s.db.Exec(`DELETE FROM schedules WHERE id = ?`, id)
	return err
}

// LoadFocusProfiles returns all focus profiles.
func (s *SettingsDB) LoadFocusProfiles() ([]domain.FocusProfile, error) {
	rows, err := s.db.Query(`
		SELECT id, name, duration_minutes, blocked_apps, blocked_websites,
		       allow_breaks, break_interval_minutes, break_duration_minutes
		FROM focus_profiles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.FocusProfile
	for rows.Next() {
		var p domain.FocusProfile
		var apps, sites string
		var allowBreaks int
		if err := rows.Scan(&p.ID, &p.Name, &p.DurationMinutes, &apps, &sites,
			&allowBreaks, &p.BreakIntervalMinutes, &p.BreakDurationMinutes); err != nil {
			return nil, err
		}
		p.AllowBreaks = allowBreaks != 0
		if p.BlockedApps, err = decodeStringSet(apps); err != nil {
			return nil, fmt.Errorf("malformed focus profile %s: %w", p.ID, err)
		}
		if p.BlockedWebsites, err = decodeStringSet(sites); err != nil {
			return nil, fmt.Errorf("malformed focus profile %s: %w", p.ID, err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// SaveFocusProfile inserts or updates a focus profile.
func (s *SettingsDB) SaveFocusProfile(p domain.FocusProfile) error {
	apps, err := encodeStringSet(p.BlockedApps)
	if err != nil {
		return err
	}
	sites, err := encodeStringSet(p.BlockedWebsites)
	if err != nil {
		return err
	}

	allowBreaks := 0
	if p.AllowBreaks {
		allowBreaks = 1
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO focus_profiles
			(id, name, duration_minutes, blocked_apps, blocked_websites,
			 allow_breaks, break_interval_minutes, break_duration_minutes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.DurationMinutes, apps, sites,
		allowBreaks, p.BreakIntervalMinutes, p.BreakDurationMinutes)
	return err
}

// DeleteFocusProfile removes a focus profile by id.
func (s *SettingsDB) DeleteFocusProfile(id string) error {
	_, err := s.db.Exec(`DELETE FROM focus_profiles WHERE id = ?`, id)
	return err
}

// LoadManualBlocklists returns the always-on app and website blocklists.
func (s *SettingsDB) LoadManualBlocklists() (map[string]bool, map[string]bool, error) {
	rows, err := s.db.Query(`SELECT kind, entry FROM manual_blocklist`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	apps := make(map[string]bool)
	sites := make(map[string]bool)
	for rows.Next() {
		var kind, entry string
		if err := rows.Scan(&kind, &entry); err != nil {
			return nil, nil, err
		}
		switch kind {
		case "app":
			apps[entry] = true
		case "website":
			sites[entry] = true
		}
	}
	return apps, sites, rows.Err()
}

// SetAppBlocked adds or removes an app from the manual blocklist.
func (s *SettingsDB) SetAppBlocked(pkg string, blocked bool) error {
	return s.setBlocklistEntry("app", pkg, blocked)
}

// SetWebsiteBlocked adds or removes a website from the manual blocklist.
func (s *SettingsDB) SetWebsiteBlocked(domainName string, blocked bool) error {
	return s.setBlocklistEntry("website", domainName, blocked)
}

func (s *SettingsDB) setBlocklistEntry(kind, entry string, blocked bool) error {
	if blocked {
		_, err := s.db.Exec(
			`INSERT OR IGNORE INTO manual_blocklist (kind, entry) VALUES (?, ?)`,
			kind, entry)
		return err
	}
	_, err := s.db.Exec(
		`DELETE FROM manual_blocklist WHERE kind = ? AND entry = ?`, kind, entry)
	return err
}

// Close releases the database connection.
func (s *SettingsDB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func encodeStringSet(set map[string]bool) (string, error) {
	items := make([]string, 0, len(set))
	for item := range set {
		items = append(items, item)
	}
	sort.Strings(items)
	data, err := json.Marshal(items)
	return string(data), err
}

func decodeStringSet(data string) (map[string]bool, error) {
	var items []string
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set, nil
}

func encodeIntSet(set map[int]bool) (string, error) {
	items := make([]int, 0, len(set))
	for item := range set {
		items = append(items, item)
	}
	sort.Ints(items)
	data, err := json.Marshal(items)
	return string(data), err
}

func decodeIntSet(data string) (map[int]bool, error) {
	var items []int
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, err
	}
	set := make(map[int]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set, nil
}

// Ensure SettingsDB implements domain.SettingsStore.
var _ domain.SettingsStore = (*SettingsDB)(nil)
