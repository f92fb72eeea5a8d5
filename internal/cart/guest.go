package cart

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/nursingcollective/cartengine/pkg/enums"
	pkgerrors "github.com/nursingcollective/cartengine/pkg/errors"
	"github.com/nursingcollective/cartengine/pkg/storage"
	"github.com/shopspring/decimal"
)

// guestDocument is the persisted shape of the guest cart. Totals are never
// stored; they are derived again on every read.
type guestDocument struct {
	Items []Item `json:"items"`
}

// storedDocument is read line by line so one bad line cannot take the rest
// of the cart with it.
type storedDocument struct {
	Items []json.RawMessage `json:"items"`
}

// storedItem mirrors Item with added_at left as text. The timestamp is
// informational and unparseable values read as unset.
type storedItem struct {
	ProductID   string            `json:"product_id"`
	ProductName string            `json:"product_name"`
	ProductType enums.ProductType `json:"product_type"`
	Price       decimal.Decimal   `json:"price"`
	Quantity    int               `json:"quantity"`
	AddedAt     string            `json:"added_at"`
}

func decodeStoredItem(raw json.RawMessage) (Item, bool) {
	var stored storedItem
	if err := json.Unmarshal(raw, &stored); err != nil || stored.ProductID == "" {
		return Item{}, false
	}
	item := Item{
		ProductID:   stored.ProductID,
		ProductName: stored.ProductName,
		ProductType: stored.ProductType,
		Price:       stored.Price,
		Quantity:    stored.Quantity,
	}
	if t := parseTimePtr(stored.AddedAt); t != nil {
		item.AddedAt = *t
	}
	return item, true
}

// readGuest returns the stored guest cart. A missing key is an empty cart;
// unreadable or corrupt data is reported as a STORAGE_ERROR.
func (e *Engine) readGuest(ctx context.Context) (Cart, error) {
	raw, err := e.local.Get(ctx, e.guestKey)
	if errors.Is(err, storage.ErrNotFound) {
		return EmptyCart(), nil
	}
	if err != nil {
		return EmptyCart(), pkgerrors.Wrap(pkgerrors.CodeStorage, err, "read guest cart")
	}
	if len(raw) == 0 {
		return EmptyCart(), nil
	}
	var doc storedDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return EmptyCart(), pkgerrors.Wrap(pkgerrors.CodeStorage, err, "decode guest cart")
	}
	items := make([]Item, 0, len(doc.Items))
	skipped := 0
	for _, line := range doc.Items {
		item, ok := decodeStoredItem(line)
		if !ok {
			skipped++
			continue
		}
		items = append(items, item)
	}
	if skipped > 0 {
		e.logg.Warn(e.logg.WithField(ctx, "skipped_lines", skipped), "dropped unreadable guest cart lines")
	}
	return NewCart(items), nil
}

// loadGuest is readGuest with failures logged and read as an empty cart.
func (e *Engine) loadGuest(ctx context.Context) Cart {
	cart, err := e.readGuest(ctx)
	if err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "guest cart unreadable, treating as empty")
	}
	return cart
}

// saveGuest is best-effort: write failures are logged and swallowed.
func (e *Engine) saveGuest(ctx context.Context, cart Cart) {
	raw, err := json.Marshal(guestDocument{Items: cart.Items})
	if err != nil {
		e.logg.Error(ctx, "failed to encode guest cart", err)
		return
	}
	if err := e.local.Set(ctx, e.guestKey, raw); err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "failed to save guest cart")
	}
}

func (e *Engine) deleteGuest(ctx context.Context) {
	if err := e.local.Delete(ctx, e.guestKey); err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "failed to delete guest cart")
	}
}

func (e *Engine) saveNewlyAdded(ctx context.Context, ids []string) {
	raw, err := json.Marshal(ids)
	if err != nil {
		e.logg.Error(ctx, "failed to encode newly added items", err)
		return
	}
	if err := e.local.Set(ctx, NewlyAddedKey, raw); err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "failed to save newly added items")
	}
}

func (e *Engine) deleteNewlyAdded(ctx context.Context) {
	if err := e.local.Delete(ctx, NewlyAddedKey); err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "failed to clear newly added items")
	}
}

// NewlyAddedItems lists the product ids that were carried over from the
// guest cart at the last login. Unreadable data reads as none.
func (e *Engine) NewlyAddedItems(ctx context.Context) []string {
	raw, err := e.local.Get(ctx, NewlyAddedKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "failed to read newly added items")
		}
		return []string{}
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "newly added items unreadable")
		return []string{}
	}
	if ids == nil {
		ids = []string{}
	}
	return ids
}

// ClearNewlyAdded forgets the carried-over ids once the caller has shown them.
func (e *Engine) ClearNewlyAdded(ctx context.Context) {
	e.deleteNewlyAdded(ctx)
}
