package tracker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"trading-journal/internal/models"
	"trading-journal/internal/remote"
)

type fakeUser struct {
	id       string
	password string
	username string
}

// fakeBackend is an in-memory remote.Backend with switchable failures.
type fakeBackend struct {
	session   *remote.Session
	listeners []remote.SessionListener
	users     map[string]fakeUser // by e-mail
	profiles  map[string]models.Profile
	trades    []models.Trade
	nextID    int

	insertCalls int
	// failInsert fails the n-th insert (1-based) when it returns true.
	failInsert func(n int) bool
	// blockInsert makes Insert wait for the context to end.
	blockInsert bool

	confirmSignUp   bool
	errSignIn       error
	errGetProfile   error
	errUpsert       error
	errList         error
	errDelete       error
	upsertedProfile []models.Profile
}

var _ remote.Backend = (*fakeBackend)(nil)

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		users:    map[string]fakeUser{},
		profiles: map[string]models.Profile{},
	}
}

// addUser registers a user with a profile.
func (f *fakeBackend) addUser(email, username, password string, s models.Settings) string {
	id := fmt.Sprintf("u-%d", len(f.users)+1)
	f.users[email] = fakeUser{id: id, password: password, username: username}
	f.profiles[id] = models.NewProfile(id, email, username, s)
	return id
}

func (f *fakeBackend) emit(event remote.SessionEvent, s *remote.Session) {
	f.session = s
	for _, fn := range f.listeners {
		fn(event, s)
	}
}

func (f *fakeBackend) GetSession(context.Context) (*remote.Session, error) {
	return f.session, nil
}

func (f *fakeBackend) SignUp(_ context.Context, email, password string, metadata map[string]any) (*remote.User, error) {
	if _, ok := f.users[email]; ok {
		return nil, &remote.Error{Status: 422, Message: "User already registered"}
	}
	username, _ := metadata["username"].(string)
	id := fmt.Sprintf("u-%d", len(f.users)+1)
	f.users[email] = fakeUser{id: id, password: password, username: username}
	if f.confirmSignUp {
		return nil, nil
	}
	return &remote.User{ID: id, Email: email, Username: username}, nil
}

func (f *fakeBackend) SignInWithPassword(_ context.Context, email, password string) (*remote.Session, error) {
	if f.errSignIn != nil {
		return nil, f.errSignIn
	}
	u, ok := f.users[email]
	if !ok || u.password != password {
		return nil, &remote.Error{Status: 400, Message: "Invalid login credentials"}
	}
	s := &remote.Session{AccessToken: "tok-" + u.id, User: remote.User{ID: u.id, Email: email, Username: u.username}}
	f.emit(remote.SignedIn, s)
	return s, nil
}

func (f *fakeBackend) SignOut(context.Context) error {
	f.emit(remote.SignedOut, nil)
	return nil
}

func (f *fakeBackend) OnSessionChange(fn remote.SessionListener) {
	f.listeners = append(f.listeners, fn)
}

func (f *fakeBackend) LookupEmailByUsername(_ context.Context, username string) (string, error) {
	for email, u := range f.users {
		if u.username == username {
			return email, nil
		}
	}
	return "", nil
}

func (f *fakeBackend) GetProfile(_ context.Context, userID string) (models.Profile, error) {
	if f.errGetProfile != nil {
		return models.Profile{}, f.errGetProfile
	}
	p, ok := f.profiles[userID]
	if !ok {
		return models.Profile{}, &remote.Error{Status: 406, Code: remote.CodeNoRows}
	}
	return p, nil
}

func (f *fakeBackend) UpsertProfile(_ context.Context, p models.Profile) error {
	if f.errUpsert != nil {
		return f.errUpsert
	}
	f.upsertedProfile = append(f.upsertedProfile, p)
	f.profiles[p.ID] = p
	return nil
}

func (f *fakeBackend) SaveSettings(_ context.Context, userID string, s models.Settings) error {
	p := f.profiles[userID]
	p.ID = userID
	p.BankInitial, p.InitialTradeValue, p.PercentTarget = s.InitialBalance, s.InitialTradeValue, s.PercentTarget
	f.profiles[userID] = p
	return nil
}

func (f *fakeBackend) ListByUser(_ context.Context, userID string) ([]models.Trade, error) {
	if f.errList != nil {
		return nil, f.errList
	}
	var out []models.Trade
	for _, t := range f.trades {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Trade) int { return strings.Compare(a.TradeDate, b.TradeDate) })
	return out, nil
}

func (f *fakeBackend) Insert(ctx context.Context, t models.Trade) (models.Trade, error) {
	f.insertCalls++
	if f.blockInsert {
		<-ctx.Done()
		return models.Trade{}, ctx.Err()
	}
	if f.failInsert != nil && f.failInsert(f.insertCalls) {
		return models.Trade{}, errors.New("insert rejected")
	}
	f.nextID++
	t.ID = fmt.Sprintf("t-%d", f.nextID)
	f.trades = append(f.trades, t)
	return t, nil
}

func (f *fakeBackend) Delete(_ context.Context, id, userID string) error {
	if f.errDelete != nil {
		return f.errDelete
	}
	f.trades = slices.DeleteFunc(f.trades, func(t models.Trade) bool { return t.ID == id && t.UserID == userID })
	return nil
}

func (f *fakeBackend) DeleteAllByUser(_ context.Context, userID string) error {
	if f.errDelete != nil {
		return f.errDelete
	}
	f.trades = slices.DeleteFunc(f.trades, func(t models.Trade) bool { return t.UserID == userID })
	return nil
}
