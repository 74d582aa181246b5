package ltiprovider

import (
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/go-lti/ltiprovider/lti"
	"github.com/go-lti/ltiprovider/storage/model"
)

func newShareEnv(t *testing.T, allowSharing bool) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	env.provider.AllowSharing = allowSharing
	env.addConsumer(model.Consumer{Key: "primary", Secret: "psecret", Enabled: true})
	if err := env.backends.ResourceLinks.Save(
		&model.ResourceLink{
			ConsumerKey:    "primary",
			ResourceLinkID: "plink",
			Title:          "Primary course",
		}, "",
	); err != nil {
		t.Fatal(err)
	}
	return env
}

func (e *testEnv) addShareKey(id, consumerKey, linkID string, autoApprove bool) {
	e.t.Helper()
	if err := e.backends.ShareKeys.Save(
		&model.ShareKey{
			ID:                    id,
			PrimaryConsumerKey:    consumerKey,
			PrimaryResourceLinkID: linkID,
			AutoApprove:           autoApprove,
			Expires:               testNow.Add(time.Hour),
		},
	); err != nil {
		e.t.Fatal(err)
	}
}

func TestShareNotPermitted(t *testing.T) {
	env := newShareEnv(t, false)
	env.addShareKey("sharekey1", "primary", "plink", true)
	l := env.launch(with(basicLaunchForm(), ParamShareKey, "sharekey1"))
	if !errors.Is(l.Err, ErrSharingNotPermitted) {
		t.Fatalf("expected %q, got %q", ErrSharingNotPermitted, l.Reason())
	}

	allow := true
	if err := env.backends.Settings.Update(model.ProviderScope, model.LaunchSettings{AllowSharing: &allow}); err != nil {
		t.Fatal(err)
	}
	l = env.launch(with(basicLaunchForm(), ParamShareKey, "sharekey1"))
	if !l.OK() {
		t.Fatalf("stored setting must enable sharing: %s", l.Reason())
	}
}

func TestShareConsumerSetting(t *testing.T) {
	allow, deny := true, false
	tests := []struct {
		name     string
		provider *bool
		consumer *bool
		other    *bool
		allowed  bool
	}{
		{name: "consumer enables", consumer: &allow, allowed: true},
		{name: "consumer disables", provider: &allow, consumer: &deny},
		{name: "other consumer ignored", other: &allow},
		{name: "provider applies", provider: &allow, allowed: true},
	}
	for _, test := range tests {
		t.Run(
			test.name, func(t *testing.T) {
				env := newShareEnv(t, false)
				env.addShareKey("sharekey1", "primary", "plink", true)
				for scope, v := range map[string]*bool{
					model.ProviderScope: test.provider,
					"key":               test.consumer,
					"primary":           test.other,
				} {
					if err := env.backends.Settings.Update(scope, model.LaunchSettings{AllowSharing: v}); err != nil {
						t.Fatal(err)
					}
				}
				l := env.launch(with(basicLaunchForm(), ParamShareKey, "sharekey1"))
				if test.allowed && !l.OK() {
					t.Fatalf("launch failed: %s", l.Reason())
				}
				if !test.allowed && !errors.Is(l.Err, ErrSharingNotPermitted) {
					t.Fatalf("expected %q, got %q", ErrSharingNotPermitted, l.Reason())
				}
			},
		)
	}
}

func TestShareKeyUsedConcurrently(t *testing.T) {
	env := newShareEnv(t, true)
	env.addShareKey("sharekey1", "primary", "plink", true)
	env.provider.backends.ShareKeys = usedElsewhere{env.backends.ShareKeys}

	l := env.launch(with(basicLaunchForm(), ParamShareKey, "sharekey1"))
	if !errors.Is(l.Err, ErrNoShareAvailable) {
		t.Fatalf("expected %q, got %q", ErrNoShareAvailable, l.Reason())
	}
	if row := env.link("key", "rl-1"); row != nil && row.HasPrimary() {
		t.Fatalf("link must not be shared with a key used by another launch: %+v", row)
	}
}

// usedElsewhere lets another launch consume every key right before the
// wrapped store is asked to
type usedElsewhere struct {
	model.ShareKeyStore
}

func (u usedElsewhere) Consume(id string, now time.Time) (bool, error) {
	if _, err := u.ShareKeyStore.Consume(id, now); err != nil {
		return false, err
	}
	return u.ShareKeyStore.Consume(id, now)
}

func TestShareAutoApproved(t *testing.T) {
	env := newShareEnv(t, true)
	env.addShareKey("sharekey1", "primary", "plink", true)
	l := env.launch(with(basicLaunchForm(), ParamShareKey, "sharekey1", ParamResultSourcedID, "sid-1"))
	if !l.OK() {
		t.Fatalf("launch failed: %s", l.Reason())
	}
	if l.ResourceLink.Key() != "primary" || l.ResourceLink.ID() != "plink" {
		t.Fatalf("primary link must be active, got %s/%s", l.ResourceLink.Key(), l.ResourceLink.ID())
	}
	if l.SourceLink().Key() != "key" || l.SourceLink().ID() != "rl-1" {
		t.Fatalf("unexpected source link %s/%s", l.SourceLink().Key(), l.SourceLink().ID())
	}

	row := env.link("key", "rl-1")
	if !row.HasPrimary() || row.ShareStatus != model.ShareStatusApproved {
		t.Fatalf("share not stored: %+v", row)
	}
	if row.Title != "Maths: Week 1" {
		t.Fatalf("launch context of the source link must be stored, got %q", row.Title)
	}
	key, err := env.backends.ShareKeys.Get("sharekey1")
	if err != nil || key != nil {
		t.Fatalf("share key must be used up: %+v %v", key, err)
	}

	// the key is gone, but the stored arrangement is approved
	l = env.launch(with(basicLaunchForm(), ParamShareKey, "sharekey1", ParamResultSourcedID, "sid-1"))
	if !l.OK() || l.ResourceLink.ID() != "plink" {
		t.Fatalf("approved share must keep working: %s", l.Reason())
	}

	consumer, err := lti.LoadToolConsumer(env.backends, "primary")
	if err != nil {
		t.Fatal(err)
	}
	primary, err := lti.LoadResourceLink(consumer, "plink", "")
	if err != nil {
		t.Fatal(err)
	}
	users, err := primary.UserResultSourcedIDs(false, model.IDScopeGlobal)
	if err != nil {
		t.Fatal(err)
	}
	if u, ok := users["key:u-1"]; !ok || u.ResultSourcedID != "sid-1" {
		t.Fatalf("users of the share must be listed for the primary link: %v", users)
	}
	if users, err = primary.UserResultSourcedIDs(true, model.IDScopeGlobal); err != nil || len(users) != 0 {
		t.Fatalf("local users only: %v %v", users, err)
	}
}

func TestSharePendingApproval(t *testing.T) {
	env := newShareEnv(t, true)
	env.addShareKey("sharekey1", "primary", "plink", false)
	l := env.launch(with(basicLaunchForm(), ParamShareKey, "sharekey1"))
	if !errors.Is(l.Err, ErrSharePendingApproval) {
		t.Fatalf("expected %q, got %q", ErrSharePendingApproval, l.Reason())
	}
	row := env.link("key", "rl-1")
	if row == nil || !row.HasPrimary() || row.ShareStatus != model.ShareStatusPending {
		t.Fatalf("pending share must be stored: %+v", row)
	}

	l = env.launch(basicLaunchForm())
	if !errors.Is(l.Err, ErrUnexpectedShareState) {
		t.Fatalf("expected %q, got %q", ErrUnexpectedShareState, l.Reason())
	}

	consumer, err := lti.LoadToolConsumer(env.backends, "primary")
	if err != nil {
		t.Fatal(err)
	}
	primary, err := lti.LoadResourceLink(consumer, "plink", "")
	if err != nil {
		t.Fatal(err)
	}
	if err = primary.SetShareStatus("key", "rl-1", model.ShareStatusApproved); err != nil {
		t.Fatal(err)
	}
	l = env.launch(with(basicLaunchForm(), ParamShareKey, "sharekey1"))
	if !l.OK() || l.ResourceLink.ID() != "plink" {
		t.Fatalf("approved share must launch into the primary link: %s", l.Reason())
	}
}

func TestShareErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(env *testEnv)
		err   error
	}{
		{
			name: "self share",
			setup: func(env *testEnv) {
				env.addShareKey("sharekey1", "key", "rl-1", true)
			},
			err: ErrSelfShareRejected,
		},
		{
			name:  "unknown key",
			setup: func(*testEnv) {},
			err:   ErrNoShareAvailable,
		},
		{
			name: "expired key",
			setup: func(env *testEnv) {
				if err := env.backends.ShareKeys.Save(
					&model.ShareKey{
						ID:                    "sharekey1",
						PrimaryConsumerKey:    "primary",
						PrimaryResourceLinkID: "plink",
						AutoApprove:           true,
						Expires:               testNow.Add(-time.Minute),
					},
				); err != nil {
					env.t.Fatal(err)
				}
			},
			err: ErrNoShareAvailable,
		},
		{
			name: "missing primary link",
			setup: func(env *testEnv) {
				env.addShareKey("sharekey1", "primary", "gone", true)
			},
			err: ErrShareTargetUnavailable,
		},
		{
			name: "missing primary consumer",
			setup: func(env *testEnv) {
				env.addShareKey("sharekey1", "nobody", "plink", true)
			},
			err: ErrShareTargetUnavailable,
		},
	}
	for _, test := range tests {
		t.Run(
			test.name, func(t *testing.T) {
				env := newShareEnv(t, true)
				test.setup(env)
				l := env.launch(with(basicLaunchForm(), ParamShareKey, "sharekey1"))
				if !errors.Is(l.Err, test.err) {
					t.Fatalf("expected %q, got %q", test.err, l.Reason())
				}
				if l.Err.Kind != KindShare {
					t.Fatalf("expected share error, got %s", l.Err.Kind)
				}
			},
		)
	}
}
