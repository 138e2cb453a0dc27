package ril

import (
	"errors"
	"fmt"
	"sort"

	"github.com/danmuck/ipcril/internal/logging"
	"github.com/rs/zerolog"
)

// SeqModulus bounds sequence ids to [0, 254].
const SeqModulus = 255

var ErrNotFound = errors.New("ril: request not found")

// RequestRecord binds a host token to the sequence id its commands carry.
type RequestRecord struct {
	Token    Token `json:"token"`
	Seq      uint8 `json:"seq"`
	Canceled bool  `json:"canceled"`
}

// Registry owns the rolling sequence counter and the live token/seq
// bindings. It is not safe for concurrent use; the engine lock guards it.
type Registry struct {
	counter uint8
	byToken map[Token]*RequestRecord
	bySeq   map[uint8]*RequestRecord
	log     zerolog.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		byToken: make(map[Token]*RequestRecord),
		bySeq:   make(map[uint8]*RequestRecord),
		log:     logging.Component("registry"),
	}
}

// Counter returns the last id handed out or observed.
func (r *Registry) Counter() uint8 { return r.counter }

// AllocateOrGet returns t's live id, or binds t to the next id. A stale
// record already holding that id is evicted.
func (r *Registry) AllocateOrGet(t Token) uint8 {
	if rec, ok := r.byToken[t]; ok {
		return rec.Seq
	}

	r.counter = (r.counter + 1) % SeqModulus
	seq := r.counter

	if stale, ok := r.bySeq[seq]; ok {
		r.log.Warn().
			Uint8("seq", seq).
			Uint64("stale_token", uint64(stale.Token)).
			Uint64("token", uint64(t)).
			Msg("evicting stale request bound to reused sequence id")
		r.remove(stale)
	}

	rec := &RequestRecord{Token: t, Seq: seq}
	r.byToken[t] = rec
	r.bySeq[seq] = rec
	return seq
}

// Resync moves the counter forward to an id the modem has already used, so
// the next allocation lands past it. The counter never moves backward.
func (r *Registry) Resync(observed uint8) {
	id := observed % SeqModulus
	if r.counter < id {
		r.counter = id
	}
}

func (r *Registry) LookupBySeq(seq uint8) (RequestRecord, error) {
	rec, ok := r.bySeq[seq]
	if !ok {
		return RequestRecord{}, fmt.Errorf("%w: seq=%d", ErrNotFound, seq)
	}
	return *rec, nil
}

func (r *Registry) LookupByToken(t Token) (RequestRecord, error) {
	rec, ok := r.byToken[t]
	if !ok {
		return RequestRecord{}, fmt.Errorf("%w: token=%d", ErrNotFound, t)
	}
	return *rec, nil
}

// TokenFor resolves an inbound sequence id, returning NoToken when unbound.
func (r *Registry) TokenFor(seq uint8) Token {
	if rec, ok := r.bySeq[seq]; ok {
		return rec.Token
	}
	return NoToken
}

func (r *Registry) SetCanceled(t Token, canceled bool) error {
	rec, ok := r.byToken[t]
	if !ok {
		return fmt.Errorf("%w: token=%d", ErrNotFound, t)
	}
	rec.Canceled = canceled
	return nil
}

// Take removes t's record and reports whether it existed and was canceled.
func (r *Registry) Take(t Token) (canceled bool, found bool) {
	rec, ok := r.byToken[t]
	if !ok {
		return false, false
	}
	r.remove(rec)
	return rec.Canceled, true
}

func (r *Registry) Len() int { return len(r.byToken) }

func (r *Registry) List() []RequestRecord {
	out := make([]RequestRecord, 0, len(r.byToken))
	for _, rec := range r.byToken {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Seq < out[j].Seq
	})
	return out
}

func (r *Registry) remove(rec *RequestRecord) {
	delete(r.byToken, rec.Token)
	if cur, ok := r.bySeq[rec.Seq]; ok && cur == rec {
		delete(r.bySeq, rec.Seq)
	}
}
