// Package repofake holds in-memory stores for tests.
package repofake

import (
	"context"
	"sort"
	"sync"
	"time"

	"touris/api/internal/models"
	"touris/api/internal/repository"
)

type UserRepo struct {
	mu    sync.Mutex
	users map[string]models.User
}

var _ repository.UserStore = (*UserRepo)(nil)

func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[string]models.User)}
}

// Count returns the number of stored users.
func (r *UserRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func (r *UserRepo) Create(_ context.Context, user models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == user.Email {
			return repository.ErrEmailExists
		}
		if user.GoogleID != nil && existing.GoogleID != nil && *existing.GoogleID == *user.GoogleID {
			return repository.ErrGoogleIDExists
		}
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (r *UserRepo) FindByEmail(_ context.Context, email string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (r *UserRepo) List(_ context.Context, role models.UserRole) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var users []models.User
	for _, user := range r.users {
		if role == "" || user.Role == role {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].Email < users[j].Email
		}
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

func (r *UserRepo) FindByGoogleIDOrEmail(_ context.Context, googleID, email string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var byEmail *models.User
	for _, user := range r.users {
		if user.GoogleID != nil && *user.GoogleID == googleID {
			return user, nil
		}
		if user.Email == email {
			u := user
			byEmail = &u
		}
	}
	if byEmail != nil {
		return *byEmail, nil
	}
	return models.User{}, repository.ErrUserNotFound
}

func (r *UserRepo) UpdateProfile(_ context.Context, user models.User) error {
	return r.update(user.ID, func(u *models.User) error {
		u.FirstName = user.FirstName
		u.LastName = user.LastName
		u.Country = user.Country
		return nil
	})
}

func (r *UserRepo) UpdateRole(_ context.Context, id string, role models.UserRole) error {
	return r.update(id, func(u *models.User) error {
		u.Role = role
		return nil
	})
}

func (r *UserRepo) UpdatePassword(_ context.Context, id string, passwordHash string) error {
	return r.update(id, func(u *models.User) error {
		u.PasswordHash = &passwordHash
		return nil
	})
}

func (r *UserRepo) SetGoogleLink(_ context.Context, id string, googleID *string, provider models.AuthProvider, picture *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	if googleID != nil {
		for otherID, other := range r.users {
			if otherID != id && other.GoogleID != nil && *other.GoogleID == *googleID {
				return repository.ErrGoogleIDExists
			}
		}
	}
	user.GoogleID = googleID
	user.Provider = provider
	if picture != nil {
		user.ProfilePicture = picture
	}
	user.UpdatedAt = time.Now().UTC()
	r.users[id] = user
	return nil
}

func (r *UserRepo) SetProfilePicture(_ context.Context, id string, url string) error {
	return r.update(id, func(u *models.User) error {
		u.ProfilePicture = &url
		return nil
	})
}

func (r *UserRepo) SetRefreshTokenHash(_ context.Context, id string, hash *string) error {
	return r.update(id, func(u *models.User) error {
		u.RefreshTokenHash = hash
		return nil
	})
}

func (r *UserRepo) SetResetToken(_ context.Context, id string, tokenHash string, expires time.Time) error {
	return r.update(id, func(u *models.User) error {
		u.ResetToken = &tokenHash
		u.ResetTokenExpires = &expires
		return nil
	})
}

func (r *UserRepo) ConsumeResetToken(_ context.Context, tokenHash string, now time.Time, passwordHash string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, user := range r.users {
		if user.ResetToken == nil || *user.ResetToken != tokenHash {
			continue
		}
		if user.ResetTokenExpires == nil || !user.ResetTokenExpires.After(now) {
			continue
		}
		user.PasswordHash = &passwordHash
		user.ResetToken = nil
		user.ResetTokenExpires = nil
		user.UpdatedAt = now
		r.users[id] = user
		return id, nil
	}
	return "", repository.ErrUserNotFound
}

func (r *UserRepo) ClearExpiredResetTokens(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var cleared int64
	for id, user := range r.users {
		if user.ResetToken == nil || user.ResetTokenExpires == nil || user.ResetTokenExpires.After(now) {
			continue
		}
		user.ResetToken = nil
		user.ResetTokenExpires = nil
		r.users[id] = user
		cleared++
	}
	return cleared, nil
}

func (r *UserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *UserRepo) update(id string, fn func(*models.User) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	if err := fn(&user); err != nil {
		return err
	}
	user.UpdatedAt = time.Now().UTC()
	r.users[id] = user
	return nil
}

type PartnerRepo struct {
	mu       sync.Mutex
	partners map[string]models.Partner
}

var _ repository.PartnerStore = (*PartnerRepo)(nil)

func NewPartnerRepo() *PartnerRepo {
	return &PartnerRepo{partners: make(map[string]models.Partner)}
}

func (r *PartnerRepo) Create(_ context.Context, partner models.Partner) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.partners {
		if existing.Email == partner.Email {
			return repository.ErrEmailExists
		}
	}
	now := time.Now().UTC()
	partner.CreatedAt = now
	partner.UpdatedAt = now
	r.partners[partner.ID] = partner
	return nil
}

func (r *PartnerRepo) GetByID(_ context.Context, id string) (models.Partner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	partner, ok := r.partners[id]
	if !ok {
		return models.Partner{}, repository.ErrPartnerNotFound
	}
	return partner, nil
}

func (r *PartnerRepo) FindByEmail(_ context.Context, email string) (models.Partner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, partner := range r.partners {
		if partner.Email == email {
			return partner, nil
		}
	}
	return models.Partner{}, repository.ErrPartnerNotFound
}

func (r *PartnerRepo) List(_ context.Context, status models.PartnerStatus) ([]models.Partner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var partners []models.Partner
	for _, partner := range r.partners {
		if status == "" || partner.Status == status {
			partners = append(partners, partner)
		}
	}
	sort.Slice(partners, func(i, j int) bool {
		return partners[i].CreatedAt.After(partners[j].CreatedAt)
	})
	return partners, nil
}

func (r *PartnerRepo) UpdateStatus(_ context.Context, id string, status models.PartnerStatus) error {
	return r.update(id, func(p *models.Partner) {
		p.Status = status
	})
}

func (r *PartnerRepo) UpdatePasswordByEmail(_ context.Context, email string, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, partner := range r.partners {
		if partner.Email != email {
			continue
		}
		partner.PasswordHash = &passwordHash
		partner.UpdatedAt = time.Now().UTC()
		r.partners[id] = partner
		return nil
	}
	return repository.ErrPartnerNotFound
}

func (r *PartnerRepo) SetRefreshTokenHash(_ context.Context, id string, hash *string) error {
	return r.update(id, func(p *models.Partner) {
		p.RefreshTokenHash = hash
	})
}

func (r *PartnerRepo) update(id string, fn func(*models.Partner)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	partner, ok := r.partners[id]
	if !ok {
		return repository.ErrPartnerNotFound
	}
	fn(&partner)
	partner.UpdatedAt = time.Now().UTC()
	r.partners[id] = partner
	return nil
}
