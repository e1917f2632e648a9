package cart

import (
	"context"

	"trolley/internal/auth"
	"trolley/internal/cart/models"
	"trolley/internal/cart/store"
)

const guestSessionKey = auth.GuestKey

// SetSession reacts to an authentication-state change. The transition is
// keyed to the session identity, so calling it again with an unchanged token
// is a no-op; pending mutations are discarded on any real transition.
//
// Guest to authenticated migrates the local cart into the server cart (or
// adopts the server cart when the local one is empty); authenticated to guest
// reloads whatever local storage holds. Migration failures are logged, never
// surfaced: the shopper keeps the best cart we have.
func (e *Engine) SetSession(ctx context.Context, token string) {
	sess := auth.FromToken(token)

	e.mu.Lock()
	if e.sessionKey == sess.Key() {
		e.mu.Unlock()
		return
	}
	e.sessionKey = sess.Key()
	e.pending = nil
	if sess.Authenticated() {
		e.persistence = e.remote
	} else {
		e.persistence = e.guest
	}
	e.mu.Unlock()

	e.client.SetToken(sess.Token)

	if sess.Authenticated() {
		e.adoptServerCart(ctx)
	} else {
		e.adoptGuestCart(ctx)
	}
}

// adoptServerCart handles the guest-to-authenticated transition.
func (e *Engine) adoptServerCart(ctx context.Context) {
	local, err := e.guest.Load(ctx)
	if err != nil {
		e.logger.Error("reading guest cart before migration failed", "error", err)
		local = nil
	}

	if len(local) > 0 {
		synced, err := e.client.SyncCart(ctx, store.ToItems(local))
		if err != nil {
			// Keep the local cart in memory so the shopper loses nothing;
			// storage stays put for the next attempt.
			e.logger.Error("syncing guest cart failed", "error", err)
			e.setLines(local)
			e.observeMigration("sync", false)
			return
		}
		e.setLines(store.FromItems(synced))
		// The guest cart must never reappear after a successful sync.
		if err := e.guest.Clear(ctx); err != nil {
			e.logger.Error("erasing guest cart after sync failed", "error", err)
		}
		e.observeMigration("sync", true)
		return
	}

	serverCart, err := e.remote.Load(ctx)
	if err != nil {
		e.logger.Error("fetching server cart failed", "error", err)
		e.setLines(nil)
		e.observeMigration("fetch", false)
		return
	}
	e.setLines(serverCart)
	e.observeMigration("fetch", true)
}

// adoptGuestCart handles the authenticated-to-guest transition: local storage
// becomes authoritative, no server call.
func (e *Engine) adoptGuestCart(ctx context.Context) {
	local, err := e.guest.Load(ctx)
	if err != nil {
		e.logger.Error("reading guest cart failed", "error", err)
		local = nil
	}
	e.setLines(local)
	e.observeMigration("guest", err == nil)
}

func (e *Engine) setLines(cart []models.Line) {
	e.mu.Lock()
	e.lines = cart
	e.mu.Unlock()
}

func (e *Engine) observeMigration(transition string, ok bool) {
	if e.metrics != nil {
		e.metrics.ObserveMigration(transition, ok)
	}
}
