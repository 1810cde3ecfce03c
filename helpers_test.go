package unitecms

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/svirmi/unite-cms/schema"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

func testSchema(t *testing.T) *schema.Index {
	t.Helper()

	ix, err := schema.Build([]schema.TypeDef{
		{
			Name: "Member",
			Fields: []schema.Field{
				{Name: "email", Kind: schema.KindEmail, Required: true},
				{Name: "password", Kind: schema.KindPassword},
				{Name: "nickname", Kind: schema.KindText},
			},
			Directives: []schema.Directive{
				{Name: schema.DirectiveEmailChange, Args: map[string]string{
					"emailField": "email",
					"changeUrl":  "https://example.com/confirm/{token}",
				}},
				{Name: schema.DirectivePasswordAuth, Args: map[string]string{
					"passwordField": "password",
				}},
				{Name: schema.DirectivePasswordReset, Args: map[string]string{
					"emailField":    "email",
					"passwordField": "password",
					"resetUrl":      "https://example.com/reset/{token}",
				}},
			},
		},
		{
			// no directives at all
			Name: "Visitor",
			Fields: []schema.Field{
				{Name: "email", Kind: schema.KindEmail},
			},
		},
		{
			// emailChange pointing at a non-email field
			Name: "Broken",
			Fields: []schema.Field{
				{Name: "contact", Kind: schema.KindText},
			},
			Directives: []schema.Directive{
				{Name: schema.DirectiveEmailChange, Args: map[string]string{
					"emailField": "contact",
					"changeUrl":  "https://example.com/confirm/{token}",
				}},
			},
		},
	})
	if err != nil {
		t.Fatalf("build schema: %v", err)
	}
	return ix
}

// memoryRepo is an in-memory UserRepository with the same version
// compare-and-swap contract the shipped stores implement.
type memoryRepo struct {
	mu    sync.Mutex
	users map[string]*User

	loadErr    error
	persistErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[string]*User)}
}

func (r *memoryRepo) add(u *User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.Version == 0 {
		u.Version = 1
	}
	r.users[u.Subject()] = u.Clone()
}

func (r *memoryRepo) get(typeName, id string) *User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.users[typeName+"/"+id]
	return u.Clone()
}

func (r *memoryRepo) LoadCurrent(ctx context.Context) (*User, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	typeName, id, ok := CurrentUserFromContext(ctx)
	if !ok {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[typeName+"/"+id].Clone(), nil
}

func (r *memoryRepo) Load(_ context.Context, typeName, identifier string) (*User, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Type == typeName && u.StringField("email") == identifier {
			return u.Clone(), nil
		}
	}
	return nil, nil
}

func (r *memoryRepo) Persist(_ context.Context, user *User, kind ChangeKind) error {
	if r.persistErr != nil {
		return r.persistErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.users[user.Subject()]
	if kind == ChangeCreate {
		if exists {
			return ErrPersistConflict
		}
		user.Version = 1
		r.users[user.Subject()] = user.Clone()
		return nil
	}
	if !exists {
		return ErrUserNotFound
	}
	if stored.Version != user.Version {
		return ErrPersistConflict
	}
	user.Version++
	r.users[user.Subject()] = user.Clone()
	return nil
}

// mockSender records notifications and can be told to fail.
type mockSender struct {
	mu       sync.Mutex
	sent     []Notification
	failNext bool
	sendErr  error
	replies  int
}

func newMockSender() *mockSender {
	return &mockSender{replies: 1}
}

func (s *mockSender) Send(_ context.Context, n Notification) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return 0, s.sendErr
	}
	if s.failNext {
		s.failNext = false
		return 0, nil
	}
	s.sent = append(s.sent, n)
	return s.replies, nil
}

func (s *mockSender) last(t *testing.T) Notification {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		t.Fatal("no notification was sent")
	}
	return s.sent[len(s.sent)-1]
}

func (s *mockSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// mockValidator rejects values containing "invalid" and, with persist set,
// writes accepted values onto the user.
type mockValidator struct{}

func (mockValidator) Validate(_ context.Context, u *User, field string, value any, persist bool) error {
	s, _ := value.(string)
	if strings.Contains(s, "invalid") {
		return &FieldError{Field: field, Rule: "format", Message: "value rejected"}
	}
	if persist {
		u.SetField(field, value)
	}
	return nil
}

type testEngine struct {
	engine *Engine
	repo   *memoryRepo
	sender *mockSender
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	repo := newMemoryRepo()
	sender := newMockSender()

	engine, err := New().
		WithSigningKey(testSigningKey).
		WithSchema(testSchema(t)).
		WithUserRepository(repo).
		WithNotificationSender(sender).
		WithFieldValidator(mockValidator{}).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEngine{engine: engine, repo: repo, sender: sender}
}

func (te *testEngine) addMember(id, email, passwordHash string) {
	te.repo.add(&User{
		Type: "Member",
		ID:   id,
		Fields: map[string]any{
			"email":    email,
			"password": passwordHash,
		},
	})
}

func memberCtx(id string) context.Context {
	return WithCurrentUser(context.Background(), "Member", id)
}
