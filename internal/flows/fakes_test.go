package flows

import (
	"context"
	"errors"
	"sync"

	"github.com/AnshRaj112/chatooz-backend/internal/models"
	"github.com/AnshRaj112/chatooz-backend/internal/services"
)

type fakeCredentials struct {
	mu          sync.Mutex
	identities  map[string]*models.Identity // by id
	registerErr error
	authErr     error
	nameErr     error
}

func newFakeCredentials() *fakeCredentials {
	return &fakeCredentials{identities: map[string]*models.Identity{}}
}

func (f *fakeCredentials) Register(_ context.Context, email, _ string) (*models.Identity, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := &models.Identity{ID: "id-" + email, Email: email}
	f.identities[id.ID] = id
	return id, nil
}

func (f *fakeCredentials) Authenticate(_ context.Context, email, _ string) (*models.Identity, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.identities {
		if id.Email == email {
			return id, nil
		}
	}
	return nil, services.ErrNoSuchUser
}

func (f *fakeCredentials) Get(_ context.Context, id string) (*models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if identity, ok := f.identities[id]; ok {
		return identity, nil
	}
	return nil, services.ErrNoSuchUser
}

func (f *fakeCredentials) SetDisplayName(_ context.Context, id, name string) error {
	if f.nameErr != nil {
		return f.nameErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if identity, ok := f.identities[id]; ok {
		identity.DisplayName = name
	}
	return nil
}

type fakeSessions struct {
	mu     sync.Mutex
	tokens map[string]string
	err    error
}

func newFakeSessions() *fakeSessions { return &fakeSessions{tokens: map[string]string{}} }

func (f *fakeSessions) Create(_ context.Context, userID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	token := "tok-" + userID
	f.tokens[token] = userID
	return token, nil
}

func (f *fakeSessions) Validate(_ context.Context, token string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.tokens[token]
	return id, ok, nil
}

func (f *fakeSessions) Invalidate(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, token)
	return nil
}

type fakeProfiles struct {
	mu       sync.Mutex
	byID     map[string]*models.Profile
	getErr   error
	putErr   error
	findErrs map[string]error
	keyErr   error
	puts     []models.Profile

	// onFind runs before every FindByEmail, outside the lock.
	onFind func(email string) error
}

func newFakeProfiles(profiles ...models.Profile) *fakeProfiles {
	f := &fakeProfiles{byID: map[string]*models.Profile{}, findErrs: map[string]error{}}
	for i := range profiles {
		p := profiles[i]
		f.byID[p.ID] = &p
	}
	return f
}

func (f *fakeProfiles) Get(_ context.Context, id string) (*models.Profile, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, services.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) FindByEmail(_ context.Context, email string) ([]models.Profile, error) {
	if f.onFind != nil {
		if err := f.onFind(email); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.findErrs[email]; err != nil {
		return nil, err
	}
	var out []models.Profile
	for _, p := range f.byID {
		if p.Email == email {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProfiles) Put(_ context.Context, p *models.Profile) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.byID[p.ID] = &cp
	f.puts = append(f.puts, cp)
	return nil
}

func (f *fakeProfiles) NewKey(context.Context) (string, error) {
	if f.keyErr != nil {
		return "", f.keyErr
	}
	return "key-1", nil
}

type fakeMedia struct {
	url      string
	err      error
	block    bool
	gotPaths []string
	mu       sync.Mutex
}

func (f *fakeMedia) Upload(ctx context.Context, _ []byte, path string) (string, error) {
	f.mu.Lock()
	f.gotPaths = append(f.gotPaths, path)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.url, f.err
}

type groupCall struct {
	creatorID string
	name      string
	groupID   string
	members   []string
}

type fakeTransport struct {
	mu           sync.Mutex
	connectErr   error
	connected    map[string][2]string // id -> name, avatar
	disconnected []string
	createErr    error
	inviteErrs   []services.InviteError
	groupCalls   []groupCall
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{connected: map[string][2]string{}}
}

func (f *fakeTransport) Connect(_ context.Context, userID, name, avatar string) (string, error) {
	if f.connectErr != nil {
		return "", f.connectErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected[userID] = [2]string{name, avatar}
	return "connect-" + userID, nil
}

func (f *fakeTransport) Disconnect(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.connected, userID)
	f.disconnected = append(f.disconnected, userID)
	return nil
}

func (f *fakeTransport) CreateGroup(_ context.Context, creatorID, name, groupID string, members []string) (*models.Group, []services.InviteError, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupCalls = append(f.groupCalls, groupCall{creatorID, name, groupID, append([]string(nil), members...)})
	if f.createErr != nil {
		return nil, nil, f.createErr
	}
	return &models.Group{ID: groupID, Name: name, MemberIDs: members, CreatedBy: creatorID}, f.inviteErrs, nil
}

func (f *fakeTransport) OpenConversation(targetID string, kind models.ConversationType) (models.Route, error) {
	if targetID == "" {
		return models.Route{}, errors.New("empty target")
	}
	return models.Route{Screen: models.ScreenMessage, TargetID: targetID, ConversationType: kind}, nil
}

type fakeVerifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeVerifier) Send(_ context.Context, identity *models.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, identity.ID)
	return f.err
}

func (f *fakeVerifier) Confirm(_ context.Context, token string) (string, error) {
	if token != "good" {
		return "", services.ErrVerificationToken
	}
	return "u1", nil
}

type harness struct {
	creds     *fakeCredentials
	sessions  *fakeSessions
	profiles  *fakeProfiles
	media     *fakeMedia
	transport *fakeTransport
	verifier  *fakeVerifier
	o         *Orchestrator
}

func newHarness(profiles ...models.Profile) *harness {
	h := &harness{
		creds:     newFakeCredentials(),
		sessions:  newFakeSessions(),
		profiles:  newFakeProfiles(profiles...),
		media:     &fakeMedia{url: "https://res.cloudinary.com/demo/profile_images/x.png"},
		transport: newFakeTransport(),
		verifier:  &fakeVerifier{},
	}
	h.o = New(Deps{
		Credentials: h.creds,
		Sessions:    h.sessions,
		Profiles:    h.profiles,
		Media:       h.media,
		Transport:   h.transport,
		Verifier:    h.verifier,
	})
	return h
}
