package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Marga-Ghale/statement-saas/internal/auth"
	"github.com/Marga-Ghale/statement-saas/internal/billing"
	"github.com/Marga-Ghale/statement-saas/internal/config"
	"github.com/Marga-Ghale/statement-saas/internal/email"
	"github.com/Marga-Ghale/statement-saas/internal/logger"
	"github.com/Marga-Ghale/statement-saas/internal/repository"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// memStore backs every fake repository so tests can assert on the whole
// state after an action ran.
type memStore struct {
	mu          sync.Mutex
	nextID      int64
	users       map[int64]*repository.User
	teams       map[int64]*repository.Team
	members     map[int64]*repository.TeamMember
	invitations map[int64]*repository.Invitation
	logs        []*repository.ActivityLog
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[int64]*repository.User{},
		teams:       map[int64]*repository.Team{},
		members:     map[int64]*repository.TeamMember{},
		invitations: map[int64]*repository.Invitation{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) repos() *repository.Repositories {
	return &repository.Repositories{
		UserRepo:       &fakeUserRepo{m},
		TeamRepo:       &fakeTeamRepo{m},
		InvitationRepo: &fakeInvitationRepo{m},
		ActivityRepo:   &fakeActivityRepo{m},
	}
}

func (m *memStore) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.logs))
	for _, l := range m.logs {
		out = append(out, l.Action)
	}
	sort.Strings(out)
	return out
}

func (m *memStore) userByEmail(email string) *repository.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (m *memStore) membersOf(teamID int64) []*repository.TeamMember {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.TeamMember
	for _, mem := range m.members {
		if mem.TeamID == teamID {
			out = append(out, mem)
		}
	}
	return out
}

func (m *memStore) teamCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.teams)
}

// seedUser stores a user with the given password, a team, and an owner
// membership, and returns the user and team.
func (m *memStore) seedUser(emailAddr, password string) (*repository.User, *repository.Team) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		panic(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	user := &repository.User{ID: m.id(), UUID: "seed", Email: emailAddr, PasswordHash: hash, Role: "owner"}
	m.users[user.ID] = user
	team := &repository.Team{ID: m.id(), Name: emailAddr + "'s Team"}
	m.teams[team.ID] = team
	member := &repository.TeamMember{ID: m.id(), UserID: user.ID, TeamID: team.ID, Role: "owner", JoinedAt: time.Now()}
	m.members[member.ID] = member
	return user, team
}

func (m *memStore) addMember(user *repository.User, team *repository.Team, role string) *repository.TeamMember {
	m.mu.Lock()
	defer m.mu.Unlock()
	member := &repository.TeamMember{ID: m.id(), UserID: user.ID, TeamID: team.ID, Role: role, JoinedAt: time.Now()}
	m.members[member.ID] = member
	return member
}

// ============================================
// Repositories
// ============================================

type fakeUserRepo struct{ m *memStore }

func (r *fakeUserRepo) Create(_ context.Context, user *repository.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	user.ID = r.m.id()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	r.m.users[user.ID] = &stored
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id int64) (*repository.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, nil
	}
	clone := *u
	return &clone, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, emailAddr string) (*repository.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.Email == emailAddr && u.DeletedAt == nil {
			clone := *u
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if u, ok := r.m.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (r *fakeUserRepo) UpdateAccount(_ context.Context, id int64, name, emailAddr string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.ID != id && u.Email == emailAddr {
			return repository.ErrDuplicate
		}
	}
	if u, ok := r.m.users[id]; ok {
		u.Name = &name
		u.Email = emailAddr
	}
	return nil
}

func (r *fakeUserRepo) SoftDelete(_ context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if u, ok := r.m.users[id]; ok {
		now := time.Now()
		u.DeletedAt = &now
		u.Email = fmt.Sprintf("%s-%d-deleted", u.Email, u.ID)
	}
	return nil
}

type fakeTeamRepo struct{ m *memStore }

func (r *fakeTeamRepo) Create(_ context.Context, team *repository.Team) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	team.ID = r.m.id()
	stored := *team
	r.m.teams[team.ID] = &stored
	return nil
}

func (r *fakeTeamRepo) FindByID(_ context.Context, id int64) (*repository.Team, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if t, ok := r.m.teams[id]; ok {
		clone := *t
		return &clone, nil
	}
	return nil, nil
}

func (r *fakeTeamRepo) FindByStripeCustomerID(_ context.Context, customerID string) (*repository.Team, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, t := range r.m.teams {
		if t.StripeCustomerID != nil && *t.StripeCustomerID == customerID {
			clone := *t
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeTeamRepo) FindForUser(_ context.Context, userID int64) (*repository.Team, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var first *repository.TeamMember
	for _, mem := range r.m.members {
		if mem.UserID == userID && (first == nil || mem.ID < first.ID) {
			first = mem
		}
	}
	if first == nil {
		return nil, nil
	}
	clone := *r.m.teams[first.TeamID]
	return &clone, nil
}

func (r *fakeTeamRepo) ListMembers(_ context.Context, teamID int64) ([]*repository.TeamMember, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*repository.TeamMember
	for _, mem := range r.m.members {
		if mem.TeamID == teamID {
			clone := *mem
			if u, ok := r.m.users[mem.UserID]; ok {
				clone.UserName = u.Name
				clone.UserEmail = u.Email
			}
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTeamRepo) UpdateSubscription(_ context.Context, teamID int64, update repository.SubscriptionUpdate) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.teams[teamID]
	if !ok {
		return nil
	}
	if update.CustomerID != nil {
		t.StripeCustomerID = update.CustomerID
	}
	t.StripeSubscriptionID = update.SubscriptionID
	t.StripeProductID = update.ProductID
	t.PlanName = update.PlanName
	status := update.Status
	t.SubscriptionStatus = &status
	return nil
}

func (r *fakeTeamRepo) AddMember(_ context.Context, member *repository.TeamMember) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, mem := range r.m.members {
		if mem.UserID == member.UserID && mem.TeamID == member.TeamID {
			return repository.ErrDuplicate
		}
	}
	member.ID = r.m.id()
	member.JoinedAt = time.Now()
	stored := *member
	r.m.members[member.ID] = &stored
	return nil
}

func (r *fakeTeamRepo) RemoveMember(_ context.Context, memberID, teamID int64) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	mem, ok := r.m.members[memberID]
	if !ok || mem.TeamID != teamID {
		return false, nil
	}
	delete(r.m.members, memberID)
	return true, nil
}

func (r *fakeTeamRepo) RemoveUser(_ context.Context, userID, teamID int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for id, mem := range r.m.members {
		if mem.UserID == userID && mem.TeamID == teamID {
			delete(r.m.members, id)
		}
	}
	return nil
}

func (r *fakeTeamRepo) HasMemberWithEmail(_ context.Context, teamID int64, emailAddr string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, mem := range r.m.members {
		if u, ok := r.m.users[mem.UserID]; ok && mem.TeamID == teamID && u.Email == emailAddr {
			return true, nil
		}
	}
	return false, nil
}

type fakeInvitationRepo struct{ m *memStore }

func (r *fakeInvitationRepo) Create(_ context.Context, invitation *repository.Invitation) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	invitation.ID = r.m.id()
	invitation.InvitedAt = time.Now()
	stored := *invitation
	r.m.invitations[invitation.ID] = &stored
	return nil
}

func (r *fakeInvitationRepo) FindPending(_ context.Context, id int64, emailAddr string) (*repository.Invitation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	inv, ok := r.m.invitations[id]
	if !ok || inv.Email != emailAddr || inv.Status != "pending" {
		return nil, nil
	}
	clone := *inv
	return &clone, nil
}

func (r *fakeInvitationRepo) HasPending(_ context.Context, teamID int64, emailAddr string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, inv := range r.m.invitations {
		if inv.TeamID == teamID && inv.Email == emailAddr && inv.Status == "pending" {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeInvitationRepo) MarkAccepted(_ context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if inv, ok := r.m.invitations[id]; ok {
		inv.Status = "accepted"
	}
	return nil
}

type fakeActivityRepo struct {
	m *memStore
}

func (r *fakeActivityRepo) Create(_ context.Context, entry *repository.ActivityLog) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	entry.ID = r.m.id()
	entry.Timestamp = time.Now()
	stored := *entry
	r.m.logs = append(r.m.logs, &stored)
	return nil
}

func (r *fakeActivityRepo) FindRecentByUser(_ context.Context, userID int64, limit int) ([]*repository.ActivityLog, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*repository.ActivityLog
	for i := len(r.m.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if l := r.m.logs[i]; l.UserID != nil && *l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

// failingActivityRepo rejects every write.
type failingActivityRepo struct{}

func (failingActivityRepo) Create(context.Context, *repository.ActivityLog) error {
	return errors.New("activity table unavailable")
}

func (failingActivityRepo) FindRecentByUser(context.Context, int64, int) ([]*repository.ActivityLog, error) {
	return nil, nil
}

// ============================================
// Collaborators
// ============================================

type fakeProvider struct {
	mu sync.Mutex

	checkoutParams []billing.CheckoutParams
	portalParams   []billing.PortalParams
	sessions       map[string]*billing.CheckoutSession
	subscriptions  map[string]*billing.Subscription
	productNames   map[string]string
	prices         []billing.Price
	products       []billing.Product
	listCalls      int
	event          *billing.Event
	eventErr       error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		sessions:      map[string]*billing.CheckoutSession{},
		subscriptions: map[string]*billing.Subscription{},
		productNames:  map[string]string{},
	}
}

func (p *fakeProvider) CreateCheckoutSession(_ context.Context, params billing.CheckoutParams) (*billing.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkoutParams = append(p.checkoutParams, params)
	return &billing.CheckoutSession{ID: "cs_test", URL: "https://checkout.stripe.test/cs_test"}, nil
}

func (p *fakeProvider) GetCheckoutSession(_ context.Context, id string) (*billing.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess, ok := p.sessions[id]
	if !ok {
		return nil, fmt.Errorf("no such checkout session: %s", id)
	}
	return sess, nil
}

func (p *fakeProvider) GetSubscription(_ context.Context, id string) (*billing.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sub, ok := p.subscriptions[id]
	if !ok {
		return nil, fmt.Errorf("no such subscription: %s", id)
	}
	return sub, nil
}

func (p *fakeProvider) GetProductName(_ context.Context, productID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	name, ok := p.productNames[productID]
	if !ok {
		return "", fmt.Errorf("no such product: %s", productID)
	}
	return name, nil
}

func (p *fakeProvider) CreatePortalSession(_ context.Context, params billing.PortalParams) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.portalParams = append(p.portalParams, params)
	return "https://billing.stripe.test/session", nil
}

func (p *fakeProvider) ListPrices(context.Context) ([]billing.Price, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listCalls++
	return p.prices, nil
}

func (p *fakeProvider) ListProducts(context.Context) ([]billing.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.products, nil
}

func (p *fakeProvider) ConstructEvent([]byte, string) (*billing.Event, error) {
	return p.event, p.eventErr
}

// memCache keeps values in memory. Only catalogs can be read back.
type memCache struct {
	mu      sync.Mutex
	entries map[string]interface{}
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]interface{}{}}
}

func (c *memCache) SetCache(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memCache) GetCache(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.entries[key]
	if !ok {
		return errors.New("cache miss")
	}
	catalog, ok := value.(*Catalog)
	target, isCatalog := dest.(*Catalog)
	if !ok || !isCatalog {
		return errors.New("unexpected cache type")
	}
	*target = *catalog
	return nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []email.TeamInvitationData
	to   []string
}

func (m *recordingMailer) QueueTeamInvitation(to string, data email.TeamInvitationData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = append(m.to, to)
	m.sent = append(m.sent, data)
}

// ============================================
// Harness
// ============================================

type harness struct {
	store    *memStore
	provider *fakeProvider
	cache    *memCache
	mailer   *recordingMailer
	codec    *auth.SessionCodec
	logs     *observer.ObservedLogs
	services *Services
}

func newHarness() *harness {
	store := newMemStore()
	provider := newFakeProvider()
	cache := newMemCache()
	mailer := &recordingMailer{}
	codec, err := auth.NewSessionCodec("test-secret", 24*time.Hour)
	if err != nil {
		panic(err)
	}
	core, logs := observer.New(zap.DebugLevel)

	services := NewServices(&ServiceDeps{
		Config: &config.Config{
			BaseURL:         "https://app.test",
			PricingCacheTTL: time.Hour,
		},
		Repos:   store.repos(),
		Codec:   codec,
		Billing: provider,
		Cache:   cache,
		Mailer:  mailer,
		Log:     logger.NewWithCore(core, "test"),
	})

	return &harness{
		store:    store,
		provider: provider,
		cache:    cache,
		mailer:   mailer,
		codec:    codec,
		logs:     logs,
		services: services,
	}
}

// as returns a context carrying a session for userID.
func as(userID int64) context.Context {
	claims := &auth.SessionClaims{User: auth.SessionUser{ID: userID}}
	return auth.WithSession(context.Background(), claims)
}

func strPtr(s string) *string {
	return &s
}
