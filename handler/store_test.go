package handler_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phbpx/crm"
)

// memStore keeps users, customers and leads in memory with the same ownership
// rules as the postgres services.
type memStore struct {
	mu        sync.Mutex
	seq       int
	users     map[string]crm.User
	passwords map[string]string
	customers map[string]crm.Customer
	leads     map[string]crm.Lead
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[string]crm.User{},
		passwords: map[string]string{},
		customers: map[string]crm.Customer{},
		leads:     map[string]crm.Lead{},
	}
}

// tick returns strictly increasing timestamps so newest-first ordering is
// deterministic.
func (s *memStore) tick() time.Time {
	s.seq++
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.seq) * time.Second)
}

// =============================================================================
// Users

type memUsers struct{ *memStore }

func (s memUsers) Register(ctx context.Context, nu crm.NewUser) (crm.User, error) {
	nu.Normalize()
	if err := crm.Validate(nu); err != nil {
		return crm.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == nu.Email {
			return crm.User{}, crm.ErrEmailInUse
		}
	}

	now := s.tick()
	u := crm.User{ID: uuid.NewString(), Name: nu.Name, Email: nu.Email, CreatedAt: now, UpdatedAt: now}
	s.users[u.ID] = u
	s.passwords[u.ID] = nu.Password
	return u, nil
}

func (s memUsers) Authenticate(ctx context.Context, cred crm.Credentials) (crm.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := crm.NormalizeEmail(cred.Email)
	for _, u := range s.users {
		if u.Email == email && s.passwords[u.ID] == cred.Password {
			return u, nil
		}
	}
	return crm.User{}, crm.ErrInvalidCredentials
}

func (s memUsers) GetByID(ctx context.Context, id string) (crm.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return crm.User{}, crm.ErrUserNotFound
	}
	return u, nil
}

// =============================================================================
// Customers

type memCustomers struct{ *memStore }

func (s memCustomers) List(ctx context.Context, ownerID string, filter crm.CustomerFilter) ([]crm.Customer, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	search := strings.ToLower(filter.Search)
	var all []crm.Customer
	for _, c := range s.customers {
		if c.OwnerID != ownerID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Name), search) &&
			!strings.Contains(strings.ToLower(c.Email), search) &&
			!strings.Contains(strings.ToLower(c.Company), search) {
			continue
		}
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	return paginate(all, filter.Page), len(all), nil
}

func (s memCustomers) Get(ctx context.Context, ownerID, id string) (crm.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[id]
	if !ok || c.OwnerID != ownerID {
		return crm.Customer{}, crm.ErrCustomerNotFound
	}
	for _, l := range s.leads {
		if l.CustomerID == id {
			c.Leads = append(c.Leads, l)
		}
	}
	return c, nil
}

func (s memCustomers) Create(ctx context.Context, ownerID string, nc crm.NewCustomer) (crm.Customer, error) {
	nc.Normalize()
	if err := crm.Validate(nc); err != nil {
		return crm.Customer{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.tick()
	c := crm.Customer{
		ID:        uuid.NewString(),
		Name:      nc.Name,
		Email:     nc.Email,
		Phone:     nc.Phone,
		Company:   nc.Company,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.customers[c.ID] = c
	return c, nil
}

func (s memCustomers) Update(ctx context.Context, ownerID, id string, uc crm.UpdateCustomer) (crm.Customer, error) {
	uc.Normalize()
	if err := crm.Validate(uc); err != nil {
		return crm.Customer{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[id]
	if !ok || c.OwnerID != ownerID {
		return crm.Customer{}, crm.ErrCustomerNotFound
	}
	if uc.Name != nil {
		c.Name = *uc.Name
	}
	if uc.Email != nil {
		c.Email = *uc.Email
	}
	if uc.Phone != nil {
		c.Phone = *uc.Phone
	}
	if uc.Company != nil {
		c.Company = *uc.Company
	}
	c.UpdatedAt = s.tick()
	s.customers[id] = c
	return c, nil
}

func (s memCustomers) Delete(ctx context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[id]
	if !ok || c.OwnerID != ownerID {
		return crm.ErrCustomerNotFound
	}
	for lid, l := range s.leads {
		if l.CustomerID == id {
			delete(s.leads, lid)
		}
	}
	delete(s.customers, id)
	return nil
}

// =============================================================================
// Leads

type memLeads struct{ *memStore }

func (s memLeads) List(ctx context.Context, ownerID string, filter crm.LeadFilter) ([]crm.Lead, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := filter.StatusFilter()
	var all []crm.Lead
	for _, l := range s.leads {
		c, ok := s.customers[l.CustomerID]
		if !ok || c.OwnerID != ownerID {
			continue
		}
		if status != "" && l.Status != status {
			continue
		}
		l.Customer = c.Summary()
		all = append(all, l)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	return paginate(all, filter.Page), len(all), nil
}

func (s memLeads) authorize(ownerID, id string) (crm.Lead, crm.Customer, error) {
	l, ok := s.leads[id]
	if !ok {
		return crm.Lead{}, crm.Customer{}, crm.ErrLeadNotFound
	}
	c, ok := s.customers[l.CustomerID]
	if !ok || c.OwnerID != ownerID {
		return crm.Lead{}, crm.Customer{}, crm.ErrLeadForbidden
	}
	return l, c, nil
}

func (s memLeads) Get(ctx context.Context, ownerID, id string) (crm.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, c, err := s.authorize(ownerID, id)
	if err != nil {
		return crm.Lead{}, err
	}
	l.Customer = c.Summary()
	return l, nil
}

func (s memLeads) Create(ctx context.Context, ownerID string, nl crm.NewLead) (crm.Lead, error) {
	nl.Normalize()
	if err := crm.Validate(nl); err != nil {
		return crm.Lead{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[nl.CustomerID]
	if !ok || c.OwnerID != ownerID {
		return crm.Lead{}, crm.ErrCustomerNotAuthorized
	}

	now := s.tick()
	l := crm.Lead{
		ID:          uuid.NewString(),
		CustomerID:  c.ID,
		Title:       nl.Title,
		Description: nl.Description,
		Status:      nl.Status,
		Value:       *nl.Value,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.leads[l.ID] = l
	l.Customer = c.Summary()
	return l, nil
}

func (s memLeads) Update(ctx context.Context, ownerID, id string, ul crm.UpdateLead) (crm.Lead, error) {
	ul.Normalize()
	if err := crm.Validate(ul); err != nil {
		return crm.Lead{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, c, err := s.authorize(ownerID, id)
	if err != nil {
		return crm.Lead{}, err
	}
	if ul.CustomerID != nil && *ul.CustomerID != l.CustomerID {
		nc, ok := s.customers[*ul.CustomerID]
		if !ok || nc.OwnerID != ownerID {
			return crm.Lead{}, crm.ErrNewCustomerNotAuthorized
		}
		l.CustomerID, c = nc.ID, nc
	}
	if ul.Title != nil {
		l.Title = *ul.Title
	}
	if ul.Description != nil {
		l.Description = *ul.Description
	}
	if ul.Status != nil {
		l.Status = *ul.Status
	}
	if ul.Value != nil {
		l.Value = *ul.Value
	}
	l.UpdatedAt = s.tick()
	s.leads[id] = l
	l.Customer = c.Summary()
	return l, nil
}

func (s memLeads) Delete(ctx context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, _, err := s.authorize(ownerID, id); err != nil {
		return err
	}
	delete(s.leads, id)
	return nil
}

// =============================================================================
// Reports

type memReports struct{ *memStore }

func (s memReports) Summary(ctx context.Context, ownerID string) (crm.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		customers int
		statuses  = map[crm.Status]*crm.StatusTotal{}
		totals    = map[string]*crm.CustomerTotal{}
	)
	for _, c := range s.customers {
		if c.OwnerID == ownerID {
			customers++
		}
	}
	for _, l := range s.leads {
		c, ok := s.customers[l.CustomerID]
		if !ok || c.OwnerID != ownerID {
			continue
		}
		st, ok := statuses[l.Status]
		if !ok {
			st = &crm.StatusTotal{Status: l.Status}
			statuses[l.Status] = st
		}
		st.Count++
		st.Value += l.Value

		ct, ok := totals[c.ID]
		if !ok {
			ct = &crm.CustomerTotal{CustomerID: c.ID, Name: c.Name}
			totals[c.ID] = ct
		}
		ct.Count++
		ct.Value += l.Value
	}

	var st []crm.StatusTotal
	for _, v := range statuses {
		st = append(st, *v)
	}
	var ct []crm.CustomerTotal
	for _, v := range totals {
		ct = append(ct, *v)
	}
	return crm.Summarize(customers, st, ct), nil
}

func paginate[T any](all []T, p crm.Page) []T {
	start := p.Offset()
	if start >= len(all) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}
