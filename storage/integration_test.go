package storage

import (
	"os"
	"strings"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/go-lti/ltiprovider/storage/model"
)

// TestSQLiteConnection tests connecting to a SQLite database
func TestSQLiteConnection(t *testing.T) {
	// Skip if not running integration tests
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run")
	}

	// Create a temporary directory for the SQLite database
	tempDir, err := os.MkdirTemp("", "ltiprovider-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	// Create a SQLite configuration
	config := Config{
		Driver:  DriverSQLite,
		DataDir: tempDir,
	}

	// Connect to the database
	db, err := Connect(config)
	if err != nil {
		t.Fatalf("Failed to connect to SQLite database: %v", err)
	}

	// Check if the connection is valid
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get SQL DB: %v", err)
	}

	if err := sqlDB.Ping(); err != nil {
		t.Fatalf("Failed to ping SQLite database: %v", err)
	}
}

// TestMySQLConnection tests connecting to a MySQL database
func TestMySQLConnection(t *testing.T) {
	// Skip if not running integration tests
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run")
	}

	// Skip if MySQL DSN is not provided
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		t.Skip("Skipping MySQL test. Set MYSQL_DSN environment variable")
	}

	// Create a MySQL configuration
	config := Config{
		Driver: DriverMySQL,
		DSN:    dsn,
	}

	// Connect to the database
	db, err := Connect(config)
	if err != nil {
		t.Fatalf("Failed to connect to MySQL database: %v", err)
	}

	// Check if the connection is valid
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get SQL DB: %v", err)
	}

	if err := sqlDB.Ping(); err != nil {
		t.Fatalf("Failed to ping MySQL database: %v", err)
	}
}

// TestPostgresConnection tests connecting to a PostgreSQL database
func TestPostgresConnection(t *testing.T) {
	// Skip if not running integration tests
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run")
	}

	// Skip if PostgreSQL DSN is not provided
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("Skipping PostgreSQL test. Set POSTGRES_DSN environment variable")
	}

	// Create a PostgreSQL configuration
	config := Config{
		Driver: DriverPostgres,
		DSN:    dsn,
	}

	// Connect to the database
	db, err := Connect(config)
	if err != nil {
		t.Fatalf("Failed to connect to PostgreSQL database: %v", err)
	}

	// Check if the connection is valid
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get SQL DB: %v", err)
	}

	if err := sqlDB.Ping(); err != nil {
		t.Fatalf("Failed to ping PostgreSQL database: %v", err)
	}
}

func newSQLiteStorage(t *testing.T) *Storage {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run")
	}
	tempDir, err := os.MkdirTemp("", "ltiprovider-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })
	s, err := NewStorage(Config{Driver: DriverSQLite, DataDir: tempDir})
	if err != nil {
		t.Fatalf("Failed to create SQLite storage: %v", err)
	}
	return s
}

// TestNonceInsertIsAtomic tests that a nonce is only accepted once until it expires
func TestNonceInsertIsAtomic(t *testing.T) {
	s := newSQLiteStorage(t)
	nonces := s.NonceStorage()
	expires := time.Now().Add(model.MaxNonceAge)

	ok, err := nonces.Insert("key", "n1", expires)
	if err != nil || !ok {
		t.Fatalf("first insert: %v %v", ok, err)
	}
	ok, err = nonces.Insert("key", "n1", expires)
	if err != nil || ok {
		t.Fatalf("replayed insert accepted: %v %v", ok, err)
	}
	ok, err = nonces.Insert("other", "n1", expires)
	if err != nil || !ok {
		t.Fatalf("nonce of other consumer rejected: %v %v", ok, err)
	}
	ok, err = nonces.Insert("key", "n2", time.Now().Add(-time.Second))
	if err != nil || !ok {
		t.Fatalf("insert of n2: %v %v", ok, err)
	}
	ok, err = nonces.Insert("key", "n2", expires)
	if err != nil || !ok {
		t.Fatalf("expired nonce not accepted again: %v %v", ok, err)
	}
}

// TestResourceLinkLifecycle tests saving, sharing, renaming and deleting resource links
func TestResourceLinkLifecycle(t *testing.T) {
	s := newSQLiteStorage(t)
	consumers := s.ConsumerStorage()
	links := s.ResourceLinkStorage()
	users := s.UserStorage()

	for _, key := range []string{"primary", "secondary"} {
		if err := consumers.Save(&model.Consumer{Key: key, Name: key, Secret: "secret", Enabled: true}); err != nil {
			t.Fatalf("save consumer: %v", err)
		}
	}
	c, err := consumers.Get("primary")
	if err != nil || c == nil || c.CreatedAt.IsZero() {
		t.Fatalf("get consumer: %+v %v", c, err)
	}

	primary := &model.ResourceLink{
		ConsumerKey:    "primary",
		ResourceLinkID: "old",
		Settings:       datatypes.NewJSONType(map[string]string{"custom_a": "1"}),
	}
	if err = links.Save(primary, ""); err != nil {
		t.Fatalf("save primary: %v", err)
	}
	if err = users.Save(
		&model.User{ConsumerKey: "primary", ResourceLinkID: "old", UserID: "u1", ResultSourcedID: "s1"},
	); err != nil {
		t.Fatalf("save user: %v", err)
	}
	pk, pid := "primary", "old"
	share := &model.ResourceLink{
		ConsumerKey:           "secondary",
		ResourceLinkID:        "shared",
		PrimaryConsumerKey:    &pk,
		PrimaryResourceLinkID: &pid,
		ShareStatus:           model.ShareStatusApproved,
	}
	if err = links.Save(share, ""); err != nil {
		t.Fatalf("save share: %v", err)
	}
	if err = users.Save(
		&model.User{ConsumerKey: "secondary", ResourceLinkID: "shared", UserID: "u2", ResultSourcedID: "s2"},
	); err != nil {
		t.Fatalf("save user: %v", err)
	}

	primary.ResourceLinkID = "new"
	if err = links.Save(primary, "old"); err != nil {
		t.Fatalf("rename primary: %v", err)
	}
	if l, _ := links.Get("primary", "old"); l != nil {
		t.Fatal("old link id still present")
	}
	shares, err := links.Shares("primary", "new")
	if err != nil || len(shares) != 1 || shares[0].ResourceLinkID != "shared" {
		t.Fatalf("unexpected shares after rename: %+v %v", shares, err)
	}
	linked, err := links.ResultUsers("primary", "new", false)
	if err != nil || len(linked) != 2 {
		t.Fatalf("unexpected result users: %+v %v", linked, err)
	}
	local, err := links.ResultUsers("primary", "new", true)
	if err != nil || len(local) != 1 || local[0].UserID != "u1" {
		t.Fatalf("unexpected local result users: %+v %v", local, err)
	}

	self := &model.ResourceLink{ConsumerKey: "primary", ResourceLinkID: "new", PrimaryConsumerKey: &pk}
	selfID := "new"
	self.PrimaryResourceLinkID = &selfID
	if err = links.Save(self, ""); err == nil {
		t.Fatal("self referencing share was saved")
	}

	if err = consumers.Delete("primary"); err != nil {
		t.Fatalf("delete consumer: %v", err)
	}
	l, err := links.Get("secondary", "shared")
	if err != nil || l == nil || l.HasPrimary() || l.ShareStatus != model.ShareStatusNone {
		t.Fatalf("share not detached: %+v %v", l, err)
	}
	if err = consumers.Delete("primary"); err == nil {
		t.Fatal("deleting a missing consumer must fail")
	}
}

// TestShareKeyConsumeOnce tests that a share key can only be consumed once and not after it expired
func TestShareKeyConsumeOnce(t *testing.T) {
	s := newSQLiteStorage(t)
	keys := s.ShareKeyStorage()
	now := time.Now()
	if err := keys.Save(&model.ShareKey{ID: "abc", PrimaryConsumerKey: "p", Expires: now.Add(time.Hour)}); err != nil {
		t.Fatalf("save share key: %v", err)
	}
	if err := keys.Save(&model.ShareKey{ID: "old", PrimaryConsumerKey: "p", Expires: now.Add(time.Hour)}); err != nil {
		t.Fatalf("save share key: %v", err)
	}

	ok, err := keys.Consume("abc", now)
	if err != nil || !ok {
		t.Fatalf("first consume: %v %v", ok, err)
	}
	ok, err = keys.Consume("abc", now)
	if err != nil || ok {
		t.Fatalf("second consume succeeded: %v %v", ok, err)
	}
	ok, err = keys.Consume("old", now.Add(2*time.Hour))
	if err != nil || ok {
		t.Fatalf("expired share key consumed: %v %v", ok, err)
	}
}

// TestLaunchSettingsOverride tests that consumer settings override the provider settings
func TestLaunchSettingsOverride(t *testing.T) {
	s := newSQLiteStorage(t)
	settings := s.LaunchSettingsStorage()
	allow, deny, email := true, false, "@example.com"

	if err := settings.Update(model.ProviderScope, model.LaunchSettings{AllowSharing: &allow, DefaultEmail: &email}); err != nil {
		t.Fatalf("update provider settings: %v", err)
	}
	if err := settings.Update("c1", model.LaunchSettings{AllowSharing: &deny}); err != nil {
		t.Fatalf("update consumer settings: %v", err)
	}
	if err := settings.Update(model.ProviderScope, model.LaunchSettings{DefaultEmail: &email}); err != nil {
		t.Fatalf("second update: %v", err)
	}

	effective, err := settings.Effective("c1")
	if err != nil || effective.AllowSharing == nil || *effective.AllowSharing ||
		effective.DefaultEmail == nil || *effective.DefaultEmail != email {
		t.Fatalf("unexpected effective settings: %+v %v", effective, err)
	}
	provider, err := settings.Effective(model.ProviderScope)
	if err != nil || provider.AllowSharing == nil || !*provider.AllowSharing {
		t.Fatalf("provider setting lost: %+v %v", provider, err)
	}

	if err = settings.Unset("c1", model.SettingAllowSharing); err != nil {
		t.Fatalf("unset: %v", err)
	}
	if effective, err = settings.Effective("c1"); err != nil || !*effective.AllowSharing {
		t.Fatalf("provider setting must apply after unset: %+v %v", effective, err)
	}
}

// TestAdminUsersLifecycle tests creating, restricting, authenticating and disabling admin users
func TestAdminUsersLifecycle(t *testing.T) {
	s := newSQLiteStorage(t)
	s.hasher = newPasswordHasher(fastParams)
	users := s.AdminUsersStorage()
	loginAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	users.now = func() time.Time { return loginAt }

	if err := s.ConsumerStorage().Save(&model.Consumer{Key: "moodle", Name: "Moodle", Secret: "secret"}); err != nil {
		t.Fatalf("save consumer: %v", err)
	}
	if _, err := users.Create(model.AdminUser{Username: "root"}, "pw"); err != nil {
		t.Fatalf("create root: %v", err)
	}
	if _, err := users.Create(model.AdminUser{Username: "root"}, "pw"); err == nil {
		t.Fatal("duplicate user created")
	}
	if _, err := users.Create(model.AdminUser{Username: "lms", ConsumerKey: "unknown"}, "pw"); err == nil {
		t.Fatal("user restricted to an unknown consumer created")
	}
	scoped, err := users.Create(model.AdminUser{Username: "lms", ConsumerKey: "moodle"}, "pw")
	if err != nil || scoped.PasswordHash != "" || !scoped.CanManage("moodle") || scoped.CanManage("other") {
		t.Fatalf("create scoped user: %+v %v", scoped, err)
	}

	if _, err = users.Authenticate("lms", "wrong"); err != ErrInvalidCredentials {
		t.Fatalf("wrong password: %v", err)
	}
	if _, err = users.Authenticate("nobody", "pw"); err != ErrInvalidCredentials {
		t.Fatalf("unknown user: %v", err)
	}
	u, err := users.Authenticate("lms", "pw")
	if err != nil || u.LastLogin == nil || !u.LastLogin.Equal(loginAt) {
		t.Fatalf("authenticate: %+v %v", u, err)
	}

	// changed hashing parameters are applied on the next login
	users.hasher = newPasswordHasher(Argon2idParams{Time: 2, MemoryKiB: 1024, Parallelism: 1, KeyLen: 16, SaltLen: 8})
	if _, err = users.Authenticate("lms", "pw"); err != nil {
		t.Fatalf("authenticate after parameter change: %v", err)
	}
	var stored model.AdminUser
	if err = s.db.Where("username = ?", "lms").First(&stored).Error; err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stored.PasswordHash, ",t=2,") {
		t.Fatalf("password not rehashed: %s", stored.PasswordHash)
	}

	list, err := users.List()
	if err != nil || len(list) != 2 || list[0].Username != "lms" || list[0].PasswordHash != "" {
		t.Fatalf("list: %+v %v", list, err)
	}

	if err = s.ConsumerStorage().Delete("moodle"); err != nil {
		t.Fatalf("delete consumer: %v", err)
	}
	if u, err = users.Get("lms"); err != nil || !u.Disabled {
		t.Fatalf("user of a deleted consumer must be disabled: %+v %v", u, err)
	}
	if _, err = users.Authenticate("lms", "pw"); err != ErrInvalidCredentials {
		t.Fatalf("disabled user authenticated: %v", err)
	}
	if err = users.Delete("lms"); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if err = users.Delete("lms"); err == nil {
		t.Fatal("deleting a missing user must fail")
	}
}
