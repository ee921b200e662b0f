package inventory

import (
	"context"
	"strings"
)

// Catalog registers products and locations. It validates input and, when
// Strict is set, refuses to delete entries that movements still reference.
// With Strict unset, deletes leave dangling references in the ledger, which
// Compute ignores.
type Catalog struct {
	Store  TxStore
	Strict bool
}

func NewCatalog(store TxStore, strict bool) *Catalog {
	return &Catalog{Store: store, Strict: strict}
}

func (c *Catalog) AddProduct(ctx context.Context, id ProductID, name string) (Product, error) {
	p := Product{ID: ProductID(strings.TrimSpace(string(id))), Name: strings.TrimSpace(name)}
	if err := validateEntry(string(p.ID), p.Name); err != nil {
		return Product{}, err
	}
	if err := c.Store.InsertProduct(ctx, p); err != nil {
		return Product{}, err
	}
	return p, nil
}

func (c *Catalog) Products(ctx context.Context) ([]Product, error) {
	return c.Store.ListProducts(ctx)
}

func (c *Catalog) RemoveProduct(ctx context.Context, id ProductID) error {
	id = ProductID(strings.TrimSpace(string(id)))
	if !c.Strict {
		return c.Store.DeleteProduct(ctx, id)
	}
	return c.Store.WithTx(ctx, func(s Store) error {
		used, err := s.ProductReferenced(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return ErrReferenced
		}
		return s.DeleteProduct(ctx, id)
	})
}

func (c *Catalog) AddLocation(ctx context.Context, id LocationID, name string) (Location, error) {
	l := Location{ID: LocationID(strings.TrimSpace(string(id))), Name: strings.TrimSpace(name)}
	if err := validateEntry(string(l.ID), l.Name); err != nil {
		return Location{}, err
	}
	if err := c.Store.InsertLocation(ctx, l); err != nil {
		return Location{}, err
	}
	return l, nil
}

func (c *Catalog) Locations(ctx context.Context) ([]Location, error) {
	return c.Store.ListLocations(ctx)
}

func (c *Catalog) RemoveLocation(ctx context.Context, id LocationID) error {
	id = LocationID(strings.TrimSpace(string(id)))
	if !c.Strict {
		return c.Store.DeleteLocation(ctx, id)
	}
	return c.Store.WithTx(ctx, func(s Store) error {
		used, err := s.LocationReferenced(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return ErrReferenced
		}
		return s.DeleteLocation(ctx, id)
	})
}

func validateEntry(id, name string) error {
	if id == "" {
		return invalid(ReasonMissingID, "id", "id must not be empty")
	}
	if name == "" {
		return invalid(ReasonMissingName, "name", "name must not be empty")
	}
	return nil
}
