package rates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bher20/bpimanager/internal/storage"
)

// DefaultLocalizedNames seeds the localized name of a currency the first time
// its code is ingested. Codes not listed here are named after themselves.
var DefaultLocalizedNames = map[string]string{
	"USD": "美元",
	"GBP": "英鎊",
	"EUR": "歐元",
	"JPY": "日圓",
}

const maxCodeLen = 16

// Directory is the locally curated currency-name table.
type Directory struct {
	store    storage.CurrencyStore
	defaults map[string]string
}

// NewDirectory returns a directory backed by store. overrides are layered on
// top of DefaultLocalizedNames.
func NewDirectory(store storage.CurrencyStore, overrides map[string]string) *Directory {
	defaults := make(map[string]string, len(DefaultLocalizedNames)+len(overrides))
	for k, v := range DefaultLocalizedNames {
		defaults[k] = v
	}
	for k, v := range overrides {
		if v != "" {
			defaults[k] = v
		}
	}
	return &Directory{store: store, defaults: defaults}
}

// DefaultName returns the localized name a new code would be created with.
func (d *Directory) DefaultName(code string) string {
	if n, ok := d.defaults[code]; ok {
		return n
	}
	return code
}

// Reconcile makes sure code exists. A new code gets its default localized
// name; an existing one only has its English name refreshed.
func (d *Directory) Reconcile(ctx context.Context, code, englishName string) error {
	err := d.store.UpsertCurrency(ctx, storage.Currency{
		Code:          code,
		LocalizedName: d.DefaultName(code),
		EnglishName:   englishName,
	})
	if err != nil {
		return fmt.Errorf("reconcile currency %s: %w", code, err)
	}
	return nil
}

// LocalizedNames returns code -> localized name for every directory entry.
func (d *Directory) LocalizedNames(ctx context.Context) (map[string]string, error) {
	list, err := d.store.ListCurrencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list currencies: %w", err)
	}
	names := make(map[string]string, len(list))
	for _, c := range list {
		names[c.Code] = c.LocalizedName
	}
	return names, nil
}

func (d *Directory) List(ctx context.Context) ([]storage.Currency, error) {
	list, err := d.store.ListCurrencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list currencies: %w", err)
	}
	return list, nil
}

func (d *Directory) Get(ctx context.Context, code string) (*storage.Currency, error) {
	c, err := d.store.GetCurrency(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get currency %s: %w", code, err)
	}
	if c == nil {
		return nil, fmt.Errorf("currency %s: %w", code, ErrCurrencyNotFound)
	}
	return c, nil
}

func (d *Directory) Create(ctx context.Context, c storage.Currency) (*storage.Currency, error) {
	c, err := normalizeCurrency(c)
	if err != nil {
		return nil, err
	}
	if err := d.store.CreateCurrency(ctx, c); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, fmt.Errorf("currency %s: %w", c.Code, ErrCurrencyExists)
		}
		return nil, fmt.Errorf("create currency %s: %w", c.Code, err)
	}
	return &c, nil
}

// Update replaces both names of an existing entry.
func (d *Directory) Update(ctx context.Context, c storage.Currency) (*storage.Currency, error) {
	c, err := normalizeCurrency(c)
	if err != nil {
		return nil, err
	}
	if err := d.store.UpdateCurrency(ctx, c); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("currency %s: %w", c.Code, ErrCurrencyNotFound)
		}
		return nil, fmt.Errorf("update currency %s: %w", c.Code, err)
	}
	return &c, nil
}

func (d *Directory) Delete(ctx context.Context, code string) error {
	err := d.store.DeleteCurrency(ctx, code)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("currency %s: %w", code, ErrCurrencyNotFound)
	case errors.Is(err, storage.ErrInUse):
		return fmt.Errorf("currency %s: %w", code, ErrCurrencyInUse)
	default:
		return fmt.Errorf("delete currency %s: %w", code, err)
	}
}

func normalizeCurrency(c storage.Currency) (storage.Currency, error) {
	c.Code = strings.TrimSpace(c.Code)
	c.LocalizedName = strings.TrimSpace(c.LocalizedName)
	c.EnglishName = strings.TrimSpace(c.EnglishName)
	if c.Code == "" {
		return c, fmt.Errorf("%w: code is required", ErrInvalidCurrency)
	}
	if len(c.Code) > maxCodeLen {
		return c, fmt.Errorf("%w: code longer than %d characters", ErrInvalidCurrency, maxCodeLen)
	}
	if c.LocalizedName == "" {
		return c, fmt.Errorf("%w: localized name is required", ErrInvalidCurrency)
	}
	return c, nil
}
