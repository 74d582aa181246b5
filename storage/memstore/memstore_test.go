package memstore

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/go-lti/ltiprovider/storage/model"
)

func TestNonceInsert(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := New()
	s.SetClock(func() time.Time { return now })
	nonces := s.Backends().Nonces

	tests := []struct {
		name     string
		key      string
		nonce    string
		expires  time.Time
		advance  time.Duration
		expected bool
	}{
		{name: "first", key: "k", nonce: "n", expires: now.Add(time.Minute), expected: true},
		{name: "replay", key: "k", nonce: "n", expires: now.Add(time.Minute), expected: false},
		{name: "other consumer", key: "k2", nonce: "n", expires: now.Add(time.Minute), expected: true},
		{name: "after expiry", key: "k", nonce: "n", advance: time.Minute, expires: now.Add(2 * time.Minute), expected: true},
	}
	for _, test := range tests {
		now = now.Add(test.advance)
		ok, err := nonces.Insert(test.key, test.nonce, test.expires)
		if err != nil {
			t.Fatalf("%s: %v", test.name, err)
		}
		if ok != test.expected {
			t.Errorf("%s: expected %v, got %v", test.name, test.expected, ok)
		}
	}
}

func TestResourceLinkSettingsAreCopied(t *testing.T) {
	b := New().Backends()
	link := &model.ResourceLink{
		ConsumerKey:    "k",
		ResourceLinkID: "l",
		Settings:       datatypes.NewJSONType(map[string]string{"a": "1"}),
	}
	if err := b.ResourceLinks.Save(link, ""); err != nil {
		t.Fatal(err)
	}
	link.Settings.Data()["a"] = "changed"
	got, err := b.ResourceLinks.Get("k", "l")
	if err != nil || got == nil {
		t.Fatalf("get: %+v %v", got, err)
	}
	if v := got.Settings.Data()["a"]; v != "1" {
		t.Fatalf("stored settings were mutated through the caller's map: %q", v)
	}
}

func TestSharesAndResultUsers(t *testing.T) {
	b := New().Backends()
	_ = b.Consumers.Save(&model.Consumer{Key: "p", IDScope: model.IDScopeGlobal})
	_ = b.Consumers.Save(&model.Consumer{Key: "s"})
	_ = b.ResourceLinks.Save(&model.ResourceLink{ConsumerKey: "p", ResourceLinkID: "l"}, "")
	pk, pid := "p", "l"
	_ = b.ResourceLinks.Save(
		&model.ResourceLink{
			ConsumerKey: "s", ResourceLinkID: "approved", PrimaryConsumerKey: &pk, PrimaryResourceLinkID: &pid,
			ShareStatus: model.ShareStatusApproved,
		}, "",
	)
	_ = b.ResourceLinks.Save(
		&model.ResourceLink{
			ConsumerKey: "s", ResourceLinkID: "pending", PrimaryConsumerKey: &pk, PrimaryResourceLinkID: &pid,
			ShareStatus: model.ShareStatusPending,
		}, "",
	)
	for _, u := range []model.User{
		{ConsumerKey: "p", ResourceLinkID: "l", UserID: "a", ResultSourcedID: "sa"},
		{ConsumerKey: "s", ResourceLinkID: "approved", UserID: "b", ResultSourcedID: "sb"},
		{ConsumerKey: "s", ResourceLinkID: "pending", UserID: "c", ResultSourcedID: "sc"},
	} {
		u := u
		_ = b.Users.Save(&u)
	}

	shares, _ := b.ResourceLinks.Shares("p", "l")
	if len(shares) != 2 || shares[0].ResourceLinkID != "approved" || shares[1].ResourceLinkID != "pending" {
		t.Fatalf("unexpected shares %+v", shares)
	}
	all, err := b.ResourceLinks.ResultUsers("p", "l", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].UserID != "a" || all[0].IDScope != model.IDScopeGlobal || all[1].UserID != "b" {
		t.Fatalf("unexpected result users %+v", all)
	}
	local, _ := b.ResourceLinks.ResultUsers("p", "l", true)
	if len(local) != 1 {
		t.Fatalf("unexpected local users %+v", local)
	}

	if err = b.ResourceLinks.Delete("p", "l"); err != nil {
		t.Fatal(err)
	}
	detached, _ := b.ResourceLinks.Get("s", "approved")
	if detached == nil || detached.HasPrimary() || detached.ShareStatus != model.ShareStatusNone {
		t.Fatalf("share not detached %+v", detached)
	}
	if u, _ := b.Users.Get("p", "l", "a"); u != nil {
		t.Fatal("users of a deleted link must be removed")
	}
}

func TestShareKeyExpiry(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := New()
	s.SetClock(func() time.Time { return now })
	keys := s.Backends().ShareKeys
	_ = keys.Save(&model.ShareKey{ID: "abc", Expires: now.Add(time.Hour)})
	if k, _ := keys.Get("abc"); k == nil {
		t.Fatal("valid share key not returned")
	}
	now = now.Add(time.Hour)
	if k, _ := keys.Get("abc"); k != nil {
		t.Fatal("expired share key returned")
	}
}

func TestShareKeyConsume(t *testing.T) {
	now := time.Unix(1700000000, 0)
	keys := New().Backends().ShareKeys
	_ = keys.Save(&model.ShareKey{ID: "abc", Expires: now.Add(time.Hour)})
	_ = keys.Save(&model.ShareKey{ID: "old", Expires: now.Add(-time.Minute)})

	var wg sync.WaitGroup
	var consumed atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := keys.Consume("abc", now)
			if err != nil {
				t.Error(err)
			}
			if ok {
				consumed.Add(1)
			}
		}()
	}
	wg.Wait()
	if n := consumed.Load(); n != 1 {
		t.Fatalf("share key consumed %d times", n)
	}
	if ok, _ := keys.Consume("old", now); ok {
		t.Fatal("expired share key consumed")
	}
	if ok, _ := keys.Consume("missing", now); ok {
		t.Fatal("unknown share key consumed")
	}
}

func TestLaunchSettingsScopes(t *testing.T) {
	s := New()
	b := s.Backends()
	allow, deny, email := true, false, "@example.com"
	if err := b.Settings.Update(model.ProviderScope, model.LaunchSettings{AllowSharing: &allow, DefaultEmail: &email}); err != nil {
		t.Fatal(err)
	}
	if err := b.Settings.Update("c1", model.LaunchSettings{AllowSharing: &deny}); err != nil {
		t.Fatal(err)
	}
	deny = true

	effective, _ := b.Settings.Effective("c1")
	if effective.AllowSharing == nil || *effective.AllowSharing || effective.DefaultEmail == nil || *effective.DefaultEmail != email {
		t.Fatalf("unexpected effective settings %+v", effective)
	}
	if other, _ := b.Settings.Effective("c2"); other.AllowSharing == nil || !*other.AllowSharing {
		t.Fatalf("provider setting must apply to other consumers: %+v", other)
	}

	*effective.DefaultEmail = "changed"
	if provider, _ := b.Settings.Get(model.ProviderScope); *provider.DefaultEmail != email {
		t.Fatal("returned settings must not alias the stored ones")
	}

	_ = b.Settings.Unset("c1", model.SettingAllowSharing)
	if effective, _ = b.Settings.Effective("c1"); !*effective.AllowSharing {
		t.Fatal("unset consumer setting must fall back to the provider")
	}

	_ = b.Consumers.Save(&model.Consumer{Key: "c1"})
	_ = b.Settings.Update("c1", model.LaunchSettings{AllowSharing: &deny})
	if err := b.Consumers.Delete("c1"); err != nil {
		t.Fatal(err)
	}
	if own, _ := b.Settings.Get("c1"); own.AllowSharing != nil {
		t.Fatal("settings of a deleted consumer must be removed")
	}
}
