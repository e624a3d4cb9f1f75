package store

import (
	"sync"

	"sealrelay/internal/domain"
)

// PeerDirectory is the client's view of every peer seen on the current
// connection. Records are never removed: a peer that leaves the relay's
// directory is marked offline so its history survives.
type PeerDirectory struct {
	mu    sync.Mutex
	peers map[domain.PeerID]*domain.PeerRecord
	order []domain.PeerID

	// deferred holds a received key that lost to our own pending key. It is
	// adopted if our handshake aborts and dropped once it completes.
	deferred map[domain.PeerID]domain.SessionKey
}

// NewPeerDirectory returns an empty directory.
func NewPeerDirectory() *PeerDirectory {
	return &PeerDirectory{
		peers:    make(map[domain.PeerID]*domain.PeerRecord),
		deferred: make(map[domain.PeerID]domain.SessionKey),
	}
}

// record returns the record for id, creating an empty one if needed.
// Callers must hold d.mu.
func (d *PeerDirectory) record(id domain.PeerID) *domain.PeerRecord {
	rec, ok := d.peers[id]
	if !ok {
		rec = &domain.PeerRecord{Identity: domain.Identity{ID: id}}
		d.peers[id] = rec
		d.order = append(d.order, id)
	}
	return rec
}

// ApplyDirectory merges a relay snapshot. Existing session keys and history
// are preserved and no record is ever downgraded.
func (d *PeerDirectory) ApplyDirectory(self domain.PeerID, peers []domain.Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()

	listed := make(map[domain.PeerID]bool, len(peers))
	for _, p := range peers {
		if p.ID == "" || p.ID == self {
			continue
		}
		listed[p.ID] = true

		rec := d.record(p.ID)
		rec.Identity = p
		rec.Online = true
		if rec.State == domain.StateUnknown {
			rec.State = domain.StateKnown
		}
	}
	for id, rec := range d.peers {
		if !listed[id] {
			rec.Online = false
		}
	}
}

// Peer returns a copy of the record for id.
func (d *PeerDirectory) Peer(id domain.PeerID) (domain.PeerRecord, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.peers[id]
	if !ok {
		return domain.PeerRecord{}, false
	}
	return snapshot(rec), true
}

// Peers returns copies of all records in first-seen order.
func (d *PeerDirectory) Peers() []domain.PeerRecord {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]domain.PeerRecord, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, snapshot(d.peers[id]))
	}
	return out
}

// BeginHandshake claims a Known record for initiation.
func (d *PeerDirectory) BeginHandshake(id domain.PeerID) (domain.Identity, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.peers[id]
	if !ok || rec.State == domain.StateUnknown {
		return domain.Identity{}, false, domain.ErrUnknownPeer
	}
	if rec.State != domain.StateKnown {
		return rec.Identity, false, nil
	}
	if rec.Identity.PublicKey == "" {
		return rec.Identity, false, domain.ErrNoPublicKey
	}
	rec.State = domain.StateSessionPending
	return rec.Identity, true, nil
}

// ProposeSessionKey stores a locally generated key on a pending record. It
// reports false if a key already occupies the slot.
func (d *PeerDirectory) ProposeSessionKey(id domain.PeerID, key domain.SessionKey) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.peers[id]
	if !ok || rec.State != domain.StateSessionPending || rec.SessionKey != nil {
		return false
	}
	k := key
	rec.SessionKey = &k
	return true
}

// MarkEstablished completes a pending handshake.
func (d *PeerDirectory) MarkEstablished(id domain.PeerID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if rec, ok := d.peers[id]; ok && rec.State == domain.StateSessionPending && rec.SessionKey != nil {
		rec.State = domain.StateEstablished
		delete(d.deferred, id)
	}
}

// AbortHandshake abandons a pending handshake and forgets our key. If the
// peer's own key arrived meanwhile, the record adopts it and becomes
// Established; otherwise it returns to Known.
func (d *PeerDirectory) AbortHandshake(id domain.PeerID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.peers[id]
	if !ok || rec.State != domain.StateSessionPending {
		return
	}
	if k, ok := d.deferred[id]; ok {
		delete(d.deferred, id)
		rec.SessionKey = &k
		rec.State = domain.StateEstablished
		return
	}
	rec.State = domain.StateKnown
	rec.SessionKey = nil
}

// SetSessionKeyIfAbsent stores a received key. First key wins: if the slot
// is occupied, including by our own pending key, it reports false. A key
// that loses to a pending key is set aside for AbortHandshake.
func (d *PeerDirectory) SetSessionKeyIfAbsent(id domain.PeerID, key domain.SessionKey) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec := d.record(id)
	if rec.SessionKey != nil {
		if _, held := d.deferred[id]; !held && rec.State == domain.StateSessionPending {
			d.deferred[id] = key
		}
		return false
	}
	k := key
	rec.SessionKey = &k
	rec.State = domain.StateEstablished
	return true
}

// SessionKey returns the key for an established peer.
func (d *PeerDirectory) SessionKey(id domain.PeerID) (domain.SessionKey, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.peers[id]
	if !ok || rec.State != domain.StateEstablished || rec.SessionKey == nil {
		return domain.SessionKey{}, false
	}
	return *rec.SessionKey, true
}

// AppendMessage adds msg to the peer's history.
func (d *PeerDirectory) AppendMessage(id domain.PeerID, msg domain.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.peers[id]
	if !ok {
		return domain.ErrUnknownPeer
	}
	rec.History = append(rec.History, msg)
	return nil
}

func snapshot(rec *domain.PeerRecord) domain.PeerRecord {
	out := *rec
	if rec.SessionKey != nil {
		k := *rec.SessionKey
		out.SessionKey = &k
	}
	out.History = append([]domain.Message(nil), rec.History...)
	return out
}

// Compile-time assertion that PeerDirectory implements domain.PeerStore.
var _ domain.PeerStore = (*PeerDirectory)(nil)
