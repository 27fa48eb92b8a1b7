package accounts

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu       sync.Mutex
	accounts map[string]Account // id -> account
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{accounts: make(map[string]Account)}
}

func (r *MemoryRepo) Create(ctx context.Context, a Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.IsDefault {
		for id, cur := range r.accounts {
			if cur.UserID == a.UserID && cur.IsDefault {
				cur.IsDefault = false
				r.accounts[id] = cur
			}
		}
	}
	r.accounts[a.ID] = a
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, userID, accountID string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok || a.UserID != userID {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Account
	for _, a := range r.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	// newest first, id as a stable tie-break
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *MemoryRepo) Update(ctx context.Context, a Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.accounts[a.ID]
	if !ok || cur.UserID != a.UserID {
		return ErrNotFound
	}
	r.accounts[a.ID] = a
	return nil
}

func (r *MemoryRepo) Delete(ctx context.Context, userID, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok || a.UserID != userID {
		return ErrNotFound
	}
	delete(r.accounts, accountID)
	return nil
}

func (r *MemoryRepo) SetDefault(ctx context.Context, userID, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.accounts[accountID]
	if !ok || target.UserID != userID {
		return ErrNotFound
	}
	for id, a := range r.accounts {
		if a.UserID == userID {
			a.IsDefault = id == accountID
			r.accounts[id] = a
		}
	}
	return nil
}

func (r *MemoryRepo) SetAppSID(ctx context.Context, userID, accountID, appSID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok || a.UserID != userID {
		return ErrNotFound
	}
	a.AppSID = appSID
	r.accounts[accountID] = a
	return nil
}

func (r *MemoryRepo) FindUserIDsByAccountSID(ctx context.Context, accountSID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for _, a := range r.accounts {
		if a.AccountSID != accountSID {
			continue
		}
		if _, ok := seen[a.UserID]; ok {
			continue
		}
		seen[a.UserID] = struct{}{}
		out = append(out, a.UserID)
	}
	sort.Strings(out)
	return out, nil
}

// MemoryProfileRepo is an in-memory ProfileRepository for tests.
type MemoryProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]Profile // userID -> profile
}

func NewMemoryProfileRepo() *MemoryProfileRepo {
	return &MemoryProfileRepo{profiles: make(map[string]Profile)}
}

func (r *MemoryProfileRepo) Put(p Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.UserID] = p
}

func (r *MemoryProfileRepo) Get(ctx context.Context, userID string) (Profile, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	return p, ok, nil
}

func (r *MemoryProfileRepo) SetAppSID(ctx context.Context, userID, appSID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	p.AppSID = appSID
	r.profiles[userID] = p
	return nil
}

func (r *MemoryProfileRepo) FindUserIDsByAccountSID(ctx context.Context, accountSID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for id, p := range r.profiles {
		if p.AccountSID == accountSID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}
