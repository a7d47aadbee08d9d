package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"idmanager/internal/issuance/models"
)

// InMemoryStore is a Store for tests and local runs. It is safe for
// concurrent use but does not survive restarts.
type InMemoryStore struct {
	mu          sync.RWMutex
	txMu        sync.Mutex
	seq         int64
	definitions map[uuid.UUID]models.CredentialDefinition
	requests    map[uuid.UUID]models.CredentialRequest
	invitations []models.ConnectionInvitation
	offers      []models.CredentialOffer
	now         func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		definitions: make(map[uuid.UUID]models.CredentialDefinition),
		requests:    make(map[uuid.UUID]models.CredentialRequest),
		now:         time.Now,
	}
}

func (s *InMemoryStore) SaveDefinition(_ context.Context, def *models.CredentialDefinition) error {
	return s.saveDefinition(def, nil)
}

func (s *InMemoryStore) saveDefinition(def *models.CredentialDefinition, log *undoLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.definitions {
		if existing.CredentialID == def.CredentialID && existing.ID != def.ID {
			return ErrDuplicate
		}
	}
	if def.CreatedAt.IsZero() {
		def.CreatedAt = s.now()
	}
	id := def.ID
	prev, existed := s.definitions[id]
	s.definitions[id] = cloneDefinition(*def)
	log.add(func() {
		if existed {
			s.definitions[id] = prev
			return
		}
		delete(s.definitions, id)
	})
	return nil
}

func (s *InMemoryStore) FindDefinition(_ context.Context, id uuid.UUID) (*models.CredentialDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.definitions[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneDefinition(def)
	return &out, nil
}

func (s *InMemoryStore) FindEnabledDefinition(_ context.Context, credDefIDOrName string) (*models.CredentialDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var byName *models.CredentialDefinition
	for _, def := range s.definitions {
		if !def.Enabled {
			continue
		}
		if def.CredentialID == credDefIDOrName {
			out := cloneDefinition(def)
			return &out, nil
		}
		if def.Name == credDefIDOrName && (byName == nil || def.CreatedAt.After(byName.CreatedAt)) {
			d := cloneDefinition(def)
			byName = &d
		}
	}
	if byName == nil {
		return nil, ErrNotFound
	}
	return byName, nil
}

func (s *InMemoryStore) SetDefinitionEnabled(_ context.Context, id uuid.UUID, enabled bool) error {
	return s.setDefinitionEnabled(id, enabled, nil)
}

func (s *InMemoryStore) setDefinitionEnabled(id uuid.UUID, enabled bool, log *undoLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.definitions[id]
	if !ok {
		return ErrNotFound
	}
	prev := def.Enabled
	def.Enabled = enabled
	s.definitions[id] = def
	log.add(func() {
		if d, ok := s.definitions[id]; ok {
			d.Enabled = prev
			s.definitions[id] = d
		}
	})
	return nil
}

func (s *InMemoryStore) SaveRequest(_ context.Context, req *models.CredentialRequest) error {
	return s.saveRequest(req, nil)
}

func (s *InMemoryStore) saveRequest(req *models.CredentialRequest, log *undoLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.requests {
		if existing.Code == req.Code && existing.ID != req.ID {
			return ErrDuplicate
		}
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = s.now()
	}
	id := req.ID
	prev, existed := s.requests[id]
	s.requests[id] = cloneRequest(*req)
	log.add(func() {
		if existed {
			s.requests[id] = prev
			return
		}
		delete(s.requests, id)
	})
	return nil
}

func (s *InMemoryStore) FindRequest(_ context.Context, id uuid.UUID) (*models.CredentialRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneRequest(req)
	return &out, nil
}

func (s *InMemoryStore) FindRequestByCode(_ context.Context, code string) (*models.CredentialRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, req := range s.requests {
		if req.Code == code {
			out := cloneRequest(req)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) MarkRequestRevoked(_ context.Context, id uuid.UUID) (bool, error) {
	return s.markRequestRevoked(id, nil)
}

func (s *InMemoryStore) markRequestRevoked(id uuid.UUID, log *undoLog) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return false, ErrNotFound
	}
	if req.Revoked {
		return false, nil
	}
	req.Revoked = true
	s.requests[id] = req
	log.add(func() {
		if r, ok := s.requests[id]; ok {
			r.Revoked = false
			s.requests[id] = r
		}
	})
	return true, nil
}

func (s *InMemoryStore) SaveInvitation(_ context.Context, inv *models.ConnectionInvitation) error {
	return s.saveInvitation(inv, nil)
}

func (s *InMemoryStore) saveInvitation(inv *models.ConnectionInvitation, log *undoLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	inv.Seq = s.seq
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = s.now()
	}
	s.invitations = append(s.invitations, cloneInvitation(*inv))
	id := inv.ID
	log.add(func() {
		s.invitations = slices.DeleteFunc(s.invitations, func(i models.ConnectionInvitation) bool { return i.ID == id })
	})
	return nil
}

func (s *InMemoryStore) LatestInvitationByConnection(_ context.Context, connectionID string) (*models.ConnectionInvitation, error) {
	return s.latestInvitation(func(inv *models.ConnectionInvitation) bool {
		return inv.ConnectionID == connectionID
	})
}

func (s *InMemoryStore) LatestInvitationForRequest(_ context.Context, requestID uuid.UUID) (*models.ConnectionInvitation, error) {
	return s.latestInvitation(func(inv *models.ConnectionInvitation) bool {
		return inv.CredentialRequestID != nil && *inv.CredentialRequestID == requestID
	})
}

func (s *InMemoryStore) LatestPendingInvitationForRequest(_ context.Context, requestID uuid.UUID) (*models.ConnectionInvitation, error) {
	return s.latestInvitation(func(inv *models.ConnectionInvitation) bool {
		return !inv.Accepted && inv.CredentialRequestID != nil && *inv.CredentialRequestID == requestID
	})
}

func (s *InMemoryStore) latestInvitation(match func(*models.ConnectionInvitation) bool) (*models.ConnectionInvitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.ConnectionInvitation
	for i := range s.invitations {
		inv := &s.invitations[i]
		if match(inv) && (latest == nil || inv.NewerThan(latest)) {
			latest = inv
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	out := cloneInvitation(*latest)
	return &out, nil
}

func (s *InMemoryStore) LinkInvitation(_ context.Context, invitationID, requestID uuid.UUID) (bool, error) {
	return s.linkInvitation(invitationID, requestID, nil)
}

func (s *InMemoryStore) linkInvitation(invitationID, requestID uuid.UUID, log *undoLog) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv := s.findInvitationLocked(invitationID)
	if inv == nil {
		return false, ErrNotFound
	}
	if inv.CredentialRequestID != nil {
		return false, nil
	}
	id := requestID
	inv.CredentialRequestID = &id
	log.add(func() {
		if inv := s.findInvitationLocked(invitationID); inv != nil {
			inv.CredentialRequestID = nil
		}
	})
	return true, nil
}

func (s *InMemoryStore) MarkInvitationAccepted(_ context.Context, invitationID uuid.UUID) (bool, error) {
	return s.markInvitationAccepted(invitationID, nil)
}

func (s *InMemoryStore) markInvitationAccepted(invitationID uuid.UUID, log *undoLog) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv := s.findInvitationLocked(invitationID)
	if inv == nil {
		return false, ErrNotFound
	}
	if inv.Accepted {
		return false, nil
	}
	inv.Accepted = true
	log.add(func() {
		if inv := s.findInvitationLocked(invitationID); inv != nil {
			inv.Accepted = false
		}
	})
	return true, nil
}

func (s *InMemoryStore) findInvitationLocked(id uuid.UUID) *models.ConnectionInvitation {
	for i := range s.invitations {
		if s.invitations[i].ID == id {
			return &s.invitations[i]
		}
	}
	return nil
}

func (s *InMemoryStore) SaveOffer(_ context.Context, offer *models.CredentialOffer) error {
	return s.saveOffer(offer, nil)
}

func (s *InMemoryStore) saveOffer(offer *models.CredentialOffer, log *undoLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.offers {
		if existing.CredExID == offer.CredExID {
			return ErrDuplicate
		}
	}
	s.seq++
	offer.Seq = s.seq
	if offer.CreatedAt.IsZero() {
		offer.CreatedAt = s.now()
	}
	s.offers = append(s.offers, cloneOffer(*offer))
	id := offer.ID
	log.add(func() {
		s.offers = slices.DeleteFunc(s.offers, func(o models.CredentialOffer) bool { return o.ID == id })
	})
	return nil
}

func (s *InMemoryStore) LatestOfferByConnection(_ context.Context, connectionID string) (*models.CredentialOffer, error) {
	return s.latestOffer(func(o *models.CredentialOffer) bool {
		return o.ConnectionID == connectionID
	})
}

func (s *InMemoryStore) LatestOfferForRequest(_ context.Context, requestID uuid.UUID) (*models.CredentialOffer, error) {
	return s.latestOffer(func(o *models.CredentialOffer) bool {
		return o.CredentialRequestID != nil && *o.CredentialRequestID == requestID
	})
}

func (s *InMemoryStore) latestOffer(match func(*models.CredentialOffer) bool) (*models.CredentialOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.CredentialOffer
	for i := range s.offers {
		o := &s.offers[i]
		if match(o) && (latest == nil || o.NewerThan(latest)) {
			latest = o
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	out := cloneOffer(*latest)
	return &out, nil
}

func (s *InMemoryStore) HasOfferForConnection(_ context.Context, connectionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.offers {
		if o.ConnectionID == connectionID {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) MarkOfferAccepted(_ context.Context, offerID uuid.UUID) (bool, error) {
	return s.markOfferAccepted(offerID, nil)
}

func (s *InMemoryStore) markOfferAccepted(offerID uuid.UUID, log *undoLog) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.findOfferLocked(offerID)
	if o == nil {
		return false, ErrNotFound
	}
	if o.Accepted {
		return false, nil
	}
	o.Accepted = true
	log.add(func() {
		if o := s.findOfferLocked(offerID); o != nil {
			o.Accepted = false
		}
	})
	return true, nil
}

func (s *InMemoryStore) UpdateOfferRecord(_ context.Context, offerID uuid.UUID, revocationID, credentialID *string) error {
	return s.updateOfferRecord(offerID, revocationID, credentialID, nil)
}

func (s *InMemoryStore) updateOfferRecord(offerID uuid.UUID, revocationID, credentialID *string, log *undoLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.findOfferLocked(offerID)
	if o == nil {
		return ErrNotFound
	}
	prevRevocation, prevCredential := o.RevocationID, o.CredentialID
	o.RevocationID = cloneString(revocationID)
	o.CredentialID = cloneString(credentialID)
	log.add(func() {
		if o := s.findOfferLocked(offerID); o != nil {
			o.RevocationID, o.CredentialID = prevRevocation, prevCredential
		}
	})
	return nil
}

func (s *InMemoryStore) findOfferLocked(id uuid.UUID) *models.CredentialOffer {
	for i := range s.offers {
		if s.offers[i].ID == id {
			return &s.offers[i]
		}
	}
	return nil
}

func (s *InMemoryStore) ListOffers(_ context.Context, requestID *uuid.UUID) ([]*models.CredentialOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.CredentialOffer, 0, len(s.offers))
	for _, o := range s.offers {
		if requestID != nil && (o.CredentialRequestID == nil || *o.CredentialRequestID != *requestID) {
			continue
		}
		c := cloneOffer(o)
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *models.CredentialOffer) int {
		switch {
		case a.NewerThan(b):
			return -1
		case b.NewerThan(a):
			return 1
		}
		return 0
	})
	return out, nil
}

// RunInTx serializes transactions. When fn fails only the writes fn made
// through tx are undone, newest first; concurrent writes outside the
// transaction survive. Sequence numbers are not reclaimed.
func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{InMemoryStore: s, log: &undoLog{}}
	if err := fn(tx); err != nil {
		s.rollback(tx.log)
		return err
	}
	return nil
}

func (s *InMemoryStore) rollback(log *undoLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(log.steps) - 1; i >= 0; i-- {
		log.steps[i]()
	}
}

// undoLog records how to reverse each write of one transaction. Steps are
// appended and replayed with s.mu held.
type undoLog struct {
	steps []func()
}

func (l *undoLog) add(step func()) {
	if l != nil {
		l.steps = append(l.steps, step)
	}
}

// memoryTx routes writes through the undo log; reads hit the live store.
type memoryTx struct {
	*InMemoryStore
	log *undoLog
}

func (t *memoryTx) SaveDefinition(_ context.Context, def *models.CredentialDefinition) error {
	return t.saveDefinition(def, t.log)
}

func (t *memoryTx) SetDefinitionEnabled(_ context.Context, id uuid.UUID, enabled bool) error {
	return t.setDefinitionEnabled(id, enabled, t.log)
}

func (t *memoryTx) SaveRequest(_ context.Context, req *models.CredentialRequest) error {
	return t.saveRequest(req, t.log)
}

func (t *memoryTx) MarkRequestRevoked(_ context.Context, id uuid.UUID) (bool, error) {
	return t.markRequestRevoked(id, t.log)
}

func (t *memoryTx) SaveInvitation(_ context.Context, inv *models.ConnectionInvitation) error {
	return t.saveInvitation(inv, t.log)
}

func (t *memoryTx) LinkInvitation(_ context.Context, invitationID, requestID uuid.UUID) (bool, error) {
	return t.linkInvitation(invitationID, requestID, t.log)
}

func (t *memoryTx) MarkInvitationAccepted(_ context.Context, invitationID uuid.UUID) (bool, error) {
	return t.markInvitationAccepted(invitationID, t.log)
}

func (t *memoryTx) SaveOffer(_ context.Context, offer *models.CredentialOffer) error {
	return t.saveOffer(offer, t.log)
}

func (t *memoryTx) MarkOfferAccepted(_ context.Context, offerID uuid.UUID) (bool, error) {
	return t.markOfferAccepted(offerID, t.log)
}

func (t *memoryTx) UpdateOfferRecord(_ context.Context, offerID uuid.UUID, revocationID, credentialID *string) error {
	return t.updateOfferRecord(offerID, revocationID, credentialID, t.log)
}

// RunInTx joins the enclosing transaction.
func (t *memoryTx) RunInTx(_ context.Context, fn func(tx Store) error) error {
	return fn(t)
}

func cloneDefinition(d models.CredentialDefinition) models.CredentialDefinition {
	d.AttributeNames = slices.Clone(d.AttributeNames)
	return d
}

func cloneRequest(r models.CredentialRequest) models.CredentialRequest {
	r.CredentialData = slices.Clone(r.CredentialData)
	return r
}

func cloneInvitation(i models.ConnectionInvitation) models.ConnectionInvitation {
	i.InvitationJSON = slices.Clone(i.InvitationJSON)
	i.CredentialRequestID = cloneUUID(i.CredentialRequestID)
	return i
}

func cloneOffer(o models.CredentialOffer) models.CredentialOffer {
	o.OfferJSON = slices.Clone(o.OfferJSON)
	o.RevocationID = cloneString(o.RevocationID)
	o.CredentialID = cloneString(o.CredentialID)
	o.CredentialRequestID = cloneUUID(o.CredentialRequestID)
	return o
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

var (
	_ Store = (*InMemoryStore)(nil)
	_ Store = (*memoryTx)(nil)
)
