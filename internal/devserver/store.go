// Package devserver is an in-memory rendition of the SnapPdf backend. It
// exists so the CLI and the client packages can be exercised end to end
// without the hosted API: same routes, same cookie scheme, same response
// envelopes. State lives in memory except uploaded assets, which go through
// the filesystem store.
package devserver

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Default entitlements granted on signup, matching the seeded Free plan.
const freePlanCredits = 3

var (
	errNotFound  = errors.New("devserver: not found")
	errDuplicate = errors.New("devserver: already exists")
)

// User is the server-side account record.
type User struct {
	ID           string
	Fullname     string
	Email        string
	Mobile       string
	PasswordHash []byte
	Role         string
	Credit       int
	UsedCredits  int
	Image        string
}

// Plan is the server-side subscription plan record.
type Plan struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Price   int    `json:"price"`
	Credits int    `json:"credits"`
	Note    string `json:"note"`
}

// StoredFile is one uploaded PDF. Key addresses the bytes in the filesystem
// store; Path is the public URL handed to clients.
type StoredFile struct {
	ID        string    `json:"_id"`
	OwnerID   string    `json:"-"`
	Title     string    `json:"title"`
	Path      string    `json:"path"`
	Key       string    `json:"-"`
	Text      string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatEntry is one stored question/answer exchange. Seq preserves insertion
// order; map iteration alone would shuffle the transcript.
type ChatEntry struct {
	ID        string `json:"_id"`
	OwnerID   string `json:"-"`
	FileID    string `json:"-"`
	Seq       uint64 `json:"-"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	FileTitle string `json:"fileTitle"`
}

// PendingOrder is a checkout awaiting payment verification.
type PendingOrder struct {
	ID     string
	UserID string
	PlanID string
	Amount int
}

// Store holds all server state behind one mutex. The dataset is small
// enough that finer locking buys nothing.
type Store struct {
	mu      sync.Mutex
	users   map[string]*User
	plans   map[string]*Plan
	files   map[string]*StoredFile
	chats   map[string]*ChatEntry
	orders  map[string]*PendingOrder
	chatSeq uint64
}

// NewStore seeds an admin account (admin@snappdf.test / admin123) and the
// Free plan so a fresh development server is immediately usable.
func NewStore() *Store {
	s := &Store{
		users:  make(map[string]*User),
		plans:  make(map[string]*Plan),
		files:  make(map[string]*StoredFile),
		chats:  make(map[string]*ChatEntry),
		orders: make(map[string]*PendingOrder),
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	admin := &User{
		ID:           uuid.NewString(),
		Fullname:     "Admin",
		Email:        "admin@snappdf.test",
		PasswordHash: hash,
		Role:         "admin",
		Credit:       freePlanCredits,
	}
	s.users[admin.ID] = admin
	free := &Plan{
		ID:      uuid.NewString(),
		Name:    "Free",
		Price:   0,
		Credits: freePlanCredits,
		Note:    "Starter allowance for trying SnapPdf",
	}
	s.plans[free.ID] = free
	return s
}

// CreateUser registers an account. Emails are unique, case-insensitively.
func (s *Store) CreateUser(fullname, email, mobile, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return nil, errDuplicate
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &User{
		ID:           uuid.NewString(),
		Fullname:     strings.TrimSpace(fullname),
		Email:        email,
		Mobile:       strings.TrimSpace(mobile),
		PasswordHash: hash,
		Role:         "user",
		Credit:       freePlanCredits,
	}
	s.users[u.ID] = u
	return u, nil
}

// Authenticate checks credentials and returns the matching user.
func (s *Store) Authenticate(email, password string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) == nil {
				copied := *u
				return &copied, nil
			}
			break
		}
	}
	return nil, errNotFound
}

// UserByID returns a copy of the user record.
func (s *Store) UserByID(id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, errNotFound
	}
	copied := *u
	return &copied, nil
}

// SetUserImage updates the profile image reference.
func (s *Store) SetUserImage(id, image string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return errNotFound
	}
	u.Image = image
	return nil
}

// SpendCredit consumes one upload credit. Admins are exempt from the
// balance check but still accrue usage.
func (s *Store) SpendCredit(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return errNotFound
	}
	if u.Role != "admin" && u.UsedCredits >= u.Credit {
		return errors.New("devserver: no credits left")
	}
	u.UsedCredits++
	return nil
}

// AddCredits tops up the balance after a verified purchase.
func (s *Store) AddCredits(id string, credits int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return errNotFound
	}
	u.Credit += credits
	return nil
}

// Plans returns every plan, Free first, the rest by ascending price.
func (s *Store) Plans() []Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Plan, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		fi, fj := strings.EqualFold(out[i].Name, "free"), strings.EqualFold(out[j].Name, "free")
		if fi != fj {
			return fi
		}
		if out[i].Price != out[j].Price {
			return out[i].Price < out[j].Price
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// PlanByID returns a copy of the plan record.
func (s *Store) PlanByID(id string) (*Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, errNotFound
	}
	copied := *p
	return &copied, nil
}

// CreatePlan registers a plan and returns it with its assigned id.
func (s *Store) CreatePlan(name string, price, credits int, note string) *Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &Plan{ID: uuid.NewString(), Name: name, Price: price, Credits: credits, Note: note}
	s.plans[p.ID] = p
	copied := *p
	return &copied
}

// UpdatePlan edits an existing plan.
func (s *Store) UpdatePlan(id, name string, price, credits int, note string) (*Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, errNotFound
	}
	p.Name, p.Price, p.Credits, p.Note = name, price, credits, note
	copied := *p
	return &copied, nil
}

// DeletePlan removes a plan.
func (s *Store) DeletePlan(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[id]; !ok {
		return errNotFound
	}
	delete(s.plans, id)
	return nil
}

// CreateOrder opens a pending checkout for the plan.
func (s *Store) CreateOrder(userID string, plan *Plan) *PendingOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := &PendingOrder{
		ID:     "order_" + uuid.NewString(),
		UserID: userID,
		PlanID: plan.ID,
		Amount: plan.Price * 100,
	}
	s.orders[o.ID] = o
	copied := *o
	return &copied
}

// TakeOrder removes and returns a pending order. Each order verifies at
// most once.
func (s *Store) TakeOrder(orderID string) (*PendingOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, errNotFound
	}
	delete(s.orders, orderID)
	copied := *o
	return &copied, nil
}

// AddFile records an uploaded PDF.
func (s *Store) AddFile(f *StoredFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[f.ID] = f
}

// FilesByOwner lists a user's uploads, newest last.
func (s *Store) FilesByOwner(ownerID string) []StoredFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StoredFile, 0)
	for _, f := range s.files {
		if f.OwnerID == ownerID {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// FileByID returns a copy of the file record.
func (s *Store) FileByID(id string) (*StoredFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return nil, errNotFound
	}
	copied := *f
	return &copied, nil
}

// RemoveFile deletes the record and its transcript, returning the storage
// key so the caller can drop the bytes too.
func (s *Store) RemoveFile(id, ownerID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok || f.OwnerID != ownerID {
		return "", errNotFound
	}
	delete(s.files, id)
	for cid, c := range s.chats {
		if c.FileID == id {
			delete(s.chats, cid)
		}
	}
	return f.Key, nil
}

// AddChat records one exchange.
func (s *Store) AddChat(c *ChatEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatSeq++
	c.Seq = s.chatSeq
	s.chats[c.ID] = c
}

// ChatsByFile lists a document's transcript in insertion order.
func (s *Store) ChatsByFile(fileID, ownerID string) []ChatEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatEntry, 0)
	for _, c := range s.chats {
		if c.FileID == fileID && c.OwnerID == ownerID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// RemoveChat deletes one transcript entry.
func (s *Store) RemoveChat(id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok || c.OwnerID != ownerID {
		return errNotFound
	}
	delete(s.chats, id)
	return nil
}
