package service

import (
	"sort"

	"github.com/whisperwave/whisperwave/internal/domain"
)

// The merge reducer. Every transition is a pure function from a prior
// message list to a new one, so concurrent callbacks can never observe a
// half-applied mutation. Invariants after every transition: at most one
// entry per message id, entries sorted ascending by timestamp, and every
// sender is one of the two conversation participants.

// applySnapshot replaces state wholesale with the fetched set.
func applySnapshot(snapshot []domain.Message, participants [2]string) []domain.Message {
	out := make([]domain.Message, 0, len(snapshot))
	seen := make(map[string]struct{}, len(snapshot))
	for _, m := range snapshot {
		if !isParticipant(participants, m.SenderID) {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	sortByTimestamp(out)
	return out
}

// applyEvent folds one realtime change into state.
func applyEvent(state []domain.Message, ev domain.ChangeEvent, participants [2]string) []domain.Message {
	switch ev.Type {
	case domain.EventInsert:
		if !isParticipant(participants, ev.Record.SenderID) {
			return state
		}
		return upsertMessage(state, ev.Record)
	case domain.EventUpdate:
		if !isParticipant(participants, ev.Record.SenderID) {
			return state
		}
		return replaceMessage(state, ev.Record)
	case domain.EventDelete:
		return removeMessage(state, ev.Record.ID)
	}
	return state
}

// confirmPending swaps the optimistic temporary entry for the authoritative
// row returned by the store. The temporary id and the authoritative id
// never collide, so the swap is two independent steps.
func confirmPending(state []domain.Message, tempID string, stored domain.Message) []domain.Message {
	return upsertMessage(removeMessage(state, tempID), stored)
}

// upsertMessage replaces the entry with rec's id, or appends when the id is
// unseen, then restores timestamp order.
func upsertMessage(state []domain.Message, rec domain.Message) []domain.Message {
	out := make([]domain.Message, len(state))
	copy(out, state)

	replaced := false
	for i := range out {
		if out[i].ID == rec.ID {
			out[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		out = append(out, rec)
	}
	sortByTimestamp(out)
	return out
}

// replaceMessage swaps the entry with rec's id in place. An unseen id is
// a no-op: the row may have been removed locally while the update was in
// flight, and applying it anyway would resurrect a deleted message.
func replaceMessage(state []domain.Message, rec domain.Message) []domain.Message {
	for i := range state {
		if state[i].ID == rec.ID {
			out := make([]domain.Message, len(state))
			copy(out, state)
			out[i] = rec
			sortByTimestamp(out)
			return out
		}
	}
	return state
}

// removeMessage drops the entry with the given id. Absence is not an
// error: the entry may already be gone via an optimistic delete.
func removeMessage(state []domain.Message, id string) []domain.Message {
	for i := range state {
		if state[i].ID == id {
			out := make([]domain.Message, 0, len(state)-1)
			out = append(out, state[:i]...)
			return append(out, state[i+1:]...)
		}
	}
	return state
}

func sortByTimestamp(msgs []domain.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}

func isParticipant(participants [2]string, senderID string) bool {
	return senderID == participants[0] || senderID == participants[1]
}
