package databases

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// MemoryStore is an in-process Store. Row locks are per-row semaphores held
// until the owning transaction finishes; staged writes are applied together at
// commit under the store lock.
type MemoryStore struct {
	mu          sync.RWMutex
	emergencies map[string]models.EmergencyCall
	ambulances  map[string]models.Ambulance
	hospitals   map[string]models.Hospital
	users       map[string]models.User

	locksMu  sync.Mutex
	locks    map[string]chan struct{}
	lockWait time.Duration
}

// NewMemoryStore returns an empty store. lockWait bounds how long a
// transaction waits for a row lock.
func NewMemoryStore(lockWait time.Duration) *MemoryStore {
	return &MemoryStore{
		emergencies: map[string]models.EmergencyCall{},
		ambulances:  map[string]models.Ambulance{},
		hospitals:   map[string]models.Hospital{},
		users:       map[string]models.User{},
		locks:       map[string]chan struct{}{},
		lockWait:    lockWait,
	}
}

func newID() string {
	return primitive.NewObjectID().Hex()
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", models.ErrNotFound, kind, id)
}

func cloneEmergency(c models.EmergencyCall) models.EmergencyCall {
	if c.Details.DispatchedAt != nil {
		t := *c.Details.DispatchedAt
		c.Details.DispatchedAt = &t
	}
	return c
}

func cloneAmbulance(a models.Ambulance) models.Ambulance {
	if a.Details.Location != nil {
		p := *a.Details.Location
		a.Details.Location = &p
	}
	if a.Details.LastLocationUpdate != nil {
		t := *a.Details.LastLocationUpdate
		a.Details.LastLocationUpdate = &t
	}
	return a
}

func cloneHospital(h models.Hospital) models.Hospital {
	h.Details.Specialties = append([]string(nil), h.Details.Specialties...)
	return h
}

func cloneUser(u models.User) models.User {
	if u.Details.IsAvailable != nil {
		v := *u.Details.IsAvailable
		u.Details.IsAvailable = &v
	}
	return u
}

func (s *MemoryStore) GetEmergency(_ context.Context, id string) (*models.EmergencyCall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.emergencies[id]
	if !ok {
		return nil, notFound("emergency", id)
	}
	c = cloneEmergency(c)
	return &c, nil
}

func (s *MemoryStore) ListEmergencies(_ context.Context, filter EmergencyFilter) ([]models.EmergencyCall, error) {
	s.mu.RLock()
	list := make([]models.EmergencyCall, 0, len(s.emergencies))
	for _, c := range s.emergencies {
		if len(filter.Statuses) > 0 && !statusIn(filter.Statuses, c.Details.Status) {
			continue
		}
		if filter.ParamedicID != "" && c.Details.AssignedParamedicID != filter.ParamedicID {
			continue
		}
		list = append(list, cloneEmergency(c))
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].Details.ReceivedAt.Equal(list[j].Details.ReceivedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].Details.ReceivedAt.After(list[j].Details.ReceivedAt)
	})
	if filter.Limit > 0 && int64(len(list)) > filter.Limit {
		list = list[:filter.Limit]
	}
	return list, nil
}

func statusIn(list []models.EmergencyStatus, s models.EmergencyStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (s *MemoryStore) CreateEmergency(_ context.Context, call *models.EmergencyCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if call.ID == "" {
		call.ID = newID()
	}
	s.emergencies[call.ID] = cloneEmergency(*call)
	return nil
}

func (s *MemoryStore) GetAmbulance(_ context.Context, id string) (*models.Ambulance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.ambulances[id]
	if !ok {
		return nil, notFound("ambulance", id)
	}
	a = cloneAmbulance(a)
	return &a, nil
}

func (s *MemoryStore) ListAmbulances(_ context.Context) ([]models.Ambulance, error) {
	s.mu.RLock()
	list := make([]models.Ambulance, 0, len(s.ambulances))
	for _, a := range s.ambulances {
		list = append(list, cloneAmbulance(a))
	}
	s.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].Details.UnitNumber < list[j].Details.UnitNumber })
	return list, nil
}

func (s *MemoryStore) CreateAmbulance(_ context.Context, ambulance *models.Ambulance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.ambulances {
		if a.Details.UnitNumber == ambulance.Details.UnitNumber {
			return fmt.Errorf("%w: unit %s already exists", models.ErrConflict, ambulance.Details.UnitNumber)
		}
	}
	if ambulance.ID == "" {
		ambulance.ID = newID()
	}
	s.ambulances[ambulance.ID] = cloneAmbulance(*ambulance)
	return nil
}

func (s *MemoryStore) GetHospital(_ context.Context, id string) (*models.Hospital, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hospitals[id]
	if !ok {
		return nil, notFound("hospital", id)
	}
	h = cloneHospital(h)
	return &h, nil
}

func (s *MemoryStore) ListHospitals(_ context.Context) ([]models.Hospital, error) {
	s.mu.RLock()
	list := make([]models.Hospital, 0, len(s.hospitals))
	for _, h := range s.hospitals {
		list = append(list, cloneHospital(h))
	}
	s.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].Details.Name < list[j].Details.Name })
	return list, nil
}

func (s *MemoryStore) CreateHospital(_ context.Context, hospital *models.Hospital) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hospital.ID == "" {
		hospital.ID = newID()
	}
	s.hospitals[hospital.ID] = cloneHospital(*hospital)
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	u = cloneUser(u)
	return &u, nil
}

func (s *MemoryStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Details.Email, email) {
			u = cloneUser(u)
			return &u, nil
		}
	}
	return nil, notFound("user", email)
}

func (s *MemoryStore) ListUsers(_ context.Context, role models.Role) ([]models.User, error) {
	s.mu.RLock()
	list := make([]models.User, 0)
	for _, u := range s.users {
		if role == "" || u.Details.Role == role {
			list = append(list, cloneUser(u))
		}
	}
	s.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].Details.Name < list[j].Details.Name })
	return list, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Details.Email, user.Details.Email) {
			return fmt.Errorf("%w: email %s already registered", models.ErrConflict, user.Details.Email)
		}
	}
	if user.ID == "" {
		user.ID = newID()
	}
	user.Details.Email = strings.ToLower(user.Details.Email)
	s.users[user.ID] = cloneUser(*user)
	return nil
}

func (s *MemoryStore) SaveUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[user.ID]
	if !ok {
		return notFound("user", user.ID)
	}
	next := cloneUser(*user)
	next.Version = cur.Version + 1
	s.users[user.ID] = next
	user.Version = next.Version
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close(context.Context) error {
	return nil
}

func (s *MemoryStore) semaphore(key string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	ch, ok := s.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[key] = ch
	}
	return ch
}

func (s *MemoryStore) acquire(ctx context.Context, key string) error {
	ch := s.semaphore(key)
	timer := time.NewTimer(s.lockWait)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: timed out waiting for lock on %s", models.ErrUnavailable, key)
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", models.ErrUnavailable, ctx.Err())
	}
}

func (s *MemoryStore) release(key string) {
	<-s.semaphore(key)
}

// WithTx runs fn with a fresh transaction. Staged writes become visible only
// if fn returns nil; locks are released after the commit is applied.
func (s *MemoryStore) WithTx(ctx context.Context, fn TxFunc) error {
	tx := &memoryTx{
		s:           s,
		held:        map[string]bool{},
		emergencies: map[string]models.EmergencyCall{},
		ambulances:  map[string]models.Ambulance{},
		hospitals:   map[string]models.Hospital{},
		deleted:     map[string]bool{},
	}
	defer tx.releaseAll()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type memoryTx struct {
	s     *MemoryStore
	held  map[string]bool
	order []string

	emergencies map[string]models.EmergencyCall
	ambulances  map[string]models.Ambulance
	hospitals   map[string]models.Hospital
	// keys of rows removed at commit
	deleted map[string]bool
}

func (t *memoryTx) lock(ctx context.Context, key string) error {
	if t.held[key] {
		return nil
	}
	if err := t.s.acquire(ctx, key); err != nil {
		return err
	}
	t.held[key] = true
	t.order = append(t.order, key)
	return nil
}

func (t *memoryTx) unlock(key string) {
	if !t.held[key] {
		return
	}
	delete(t.held, key)
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.s.release(key)
}

func (t *memoryTx) releaseAll() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.s.release(t.order[i])
	}
	t.order = nil
	t.held = map[string]bool{}
}

func (t *memoryTx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for id, c := range t.emergencies {
		c.Version = t.s.emergencies[id].Version + 1
		t.s.emergencies[id] = c
	}
	for id, a := range t.ambulances {
		a.Version = t.s.ambulances[id].Version + 1
		t.s.ambulances[id] = a
	}
	for id, h := range t.hospitals {
		h.Version = t.s.hospitals[id].Version + 1
		t.s.hospitals[id] = h
	}

	for key := range t.deleted {
		kind, id, _ := strings.Cut(key, "/")
		switch kind {
		case "ambulance":
			delete(t.s.ambulances, id)
			t.s.clearEmergencyRefs(id, func(d *models.EmergencyDetails) *string { return &d.AssignedAmbulanceID })
		case "hospital":
			delete(t.s.hospitals, id)
		case "user":
			delete(t.s.users, id)
			for aid, a := range t.s.ambulances {
				if a.Details.AssignedParamedicID == id {
					a.Details.AssignedParamedicID = ""
					a.Version++
					t.s.ambulances[aid] = a
				}
			}
			t.s.clearEmergencyRefs(id, func(d *models.EmergencyDetails) *string { return &d.AssignedParamedicID })
			t.s.clearEmergencyRefs(id, func(d *models.EmergencyDetails) *string { return &d.DispatcherID })
		}
	}
}

// clearEmergencyRefs blanks the field picked by ref on every call pointing at
// id. The caller holds s.mu.
func (s *MemoryStore) clearEmergencyRefs(id string, ref func(*models.EmergencyDetails) *string) {
	for cid, c := range s.emergencies {
		if f := ref(&c.Details); *f == id {
			*f = ""
			c.Version++
			s.emergencies[cid] = c
		}
	}
}

func (t *memoryTx) LockEmergency(ctx context.Context, id string) (*models.EmergencyCall, error) {
	key := "emergency/" + id
	if err := t.lock(ctx, key); err != nil {
		return nil, err
	}
	if c, ok := t.emergencies[id]; ok {
		c = cloneEmergency(c)
		return &c, nil
	}
	c, err := t.s.GetEmergency(ctx, id)
	if err != nil {
		t.unlock(key)
		return nil, err
	}
	// the version this row gets if the transaction commits
	c.Version++
	return c, nil
}

func (t *memoryTx) LockAmbulance(ctx context.Context, id string) (*models.Ambulance, error) {
	key := "ambulance/" + id
	if err := t.lock(ctx, key); err != nil {
		return nil, err
	}
	if a, ok := t.ambulances[id]; ok {
		a = cloneAmbulance(a)
		return &a, nil
	}
	a, err := t.s.GetAmbulance(ctx, id)
	if err != nil {
		t.unlock(key)
		return nil, err
	}
	// the version this row gets if the transaction commits
	a.Version++
	return a, nil
}

func (t *memoryTx) LockHospital(ctx context.Context, id string) (*models.Hospital, error) {
	key := "hospital/" + id
	if err := t.lock(ctx, key); err != nil {
		return nil, err
	}
	if h, ok := t.hospitals[id]; ok {
		h = cloneHospital(h)
		return &h, nil
	}
	h, err := t.s.GetHospital(ctx, id)
	if err != nil {
		t.unlock(key)
		return nil, err
	}
	// the version this row gets if the transaction commits
	h.Version++
	return h, nil
}

func (t *memoryTx) GetUser(ctx context.Context, id string) (*models.User, error) {
	return t.s.GetUser(ctx, id)
}

func (t *memoryTx) GetHospital(ctx context.Context, id string) (*models.Hospital, error) {
	if h, ok := t.hospitals[id]; ok {
		h = cloneHospital(h)
		return &h, nil
	}
	return t.s.GetHospital(ctx, id)
}

func (t *memoryTx) SaveEmergency(_ context.Context, call *models.EmergencyCall) error {
	if !t.held["emergency/"+call.ID] {
		return fmt.Errorf("emergency %s saved without holding its lock", call.ID)
	}
	t.emergencies[call.ID] = cloneEmergency(*call)
	return nil
}

func (t *memoryTx) SaveAmbulance(_ context.Context, ambulance *models.Ambulance) error {
	if !t.held["ambulance/"+ambulance.ID] {
		return fmt.Errorf("ambulance %s saved without holding its lock", ambulance.ID)
	}
	t.ambulances[ambulance.ID] = cloneAmbulance(*ambulance)
	return nil
}

func (t *memoryTx) SaveHospital(_ context.Context, hospital *models.Hospital) error {
	if !t.held["hospital/"+hospital.ID] {
		return fmt.Errorf("hospital %s saved without holding its lock", hospital.ID)
	}
	t.hospitals[hospital.ID] = cloneHospital(*hospital)
	return nil
}

func (t *memoryTx) DeleteAmbulance(_ context.Context, id string) error {
	key := "ambulance/" + id
	if !t.held[key] {
		return fmt.Errorf("ambulance %s deleted without holding its lock", id)
	}
	delete(t.ambulances, id)
	t.deleted[key] = true
	return nil
}

func (t *memoryTx) DeleteHospital(_ context.Context, id string) error {
	key := "hospital/" + id
	if !t.held[key] {
		return fmt.Errorf("hospital %s deleted without holding its lock", id)
	}
	delete(t.hospitals, id)
	t.deleted[key] = true
	return nil
}

func (t *memoryTx) DeleteUser(ctx context.Context, id string) error {
	if _, err := t.s.GetUser(ctx, id); err != nil {
		return err
	}
	t.deleted["user/"+id] = true
	return nil
}
